package service

import (
	"math"
	"testing"

	"procurement_backend/internal/negotiation/ports"
	"procurement_backend/internal/negotiation/repository"
)

func TestViabilityScenarios(t *testing.T) {
	cases := []struct {
		name    string
		amounts []float64
		viable  bool
	}{
		{"close proposals", []float64{1000, 1100, 1300}, false},
		{"lowest already below discounted mean", []float64{1000, 1500, 1600}, false},
		{"tight cluster above threshold", []float64{1000, 1000, 1000}, true},
		{"single proposal", []float64{500}, true},
	}
	for _, tc := range cases {
		got := DefaultViabilityPolicy.Evaluate(tc.amounts)
		if got.Viable != tc.viable {
			t.Fatalf("%s: expected viable=%v, got %+v", tc.name, tc.viable, got)
		}
	}

	stats := DefaultViabilityPolicy.Evaluate([]float64{1000, 1100, 1300})
	if math.Abs(stats.Potential-3.67) > 0.01 || stats.Lowest != 1000 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if neg := DefaultViabilityPolicy.Evaluate([]float64{1000, 1500, 1600}); neg.Potential >= 0 {
		t.Fatalf("expected negative potential, got %v", neg.Potential)
	}
}

func TestViabilityMatchesFormula(t *testing.T) {
	sets := [][]float64{{100, 120}, {800, 810, 805}, {50, 400}, {1200, 1250, 1300, 1500}}
	for _, amounts := range sets {
		lowest, sum := amounts[0], 0.0
		for _, a := range amounts {
			lowest = min(lowest, a)
			sum += a
		}
		potential := (lowest - 0.85*sum/float64(len(amounts))) / lowest * 100
		if got := DefaultViabilityPolicy.Evaluate(amounts); got.Viable != (round2(potential) > 5) {
			t.Fatalf("%v: viable=%v but potential=%.2f", amounts, got.Viable, potential)
		}
	}
}

func TestDiscountBounds(t *testing.T) {
	if got := clampDiscount(40); got != 15 {
		t.Fatalf("expected 15, got %v", got)
	}
	if got := clampDiscount(1); got != 3 {
		t.Fatalf("expected 3, got %v", got)
	}
	if got := fallbackDiscount(15); got != 7.5 {
		t.Fatalf("expected half the potential, got %v", got)
	}
	if got := proposedAmount(1000, 7.5); got != 925 {
		t.Fatalf("expected 925, got %v", got)
	}
}

func ptr(v float64) *float64 { return &v }

func TestDecideTransition(t *testing.T) {
	base := repository.Negotiation{OriginalAmount: 1000, Status: repository.StatusNegotiating}
	withProposal := base
	withProposal.NegotiatedAmount = ptr(920)

	cases := []struct {
		name     string
		n        repository.Negotiation
		c        ports.Classification
		changed  bool
		to       string
		amount   float64
		discount float64
	}{
		{"accept with amount", base, ports.Classification{Intent: ports.IntentAccepted, Amount: ptr(950), Confidence: 90}, true, repository.StatusPendingApproval, 950, 5},
		{"accept our proposal", withProposal, ports.Classification{Intent: ports.IntentAccepted, Confidence: 85}, true, repository.StatusPendingApproval, 920, 8},
		{"accept without prior proposal", base, ports.Classification{Intent: ports.IntentAccepted, Confidence: 85}, true, repository.StatusPendingApproval, 1000, 0},
		{"low confidence accept", base, ports.Classification{Intent: ports.IntentAccepted, Confidence: 70}, false, repository.StatusNegotiating, 0, 0},
		{"counter offer", base, ports.Classification{Intent: ports.IntentCounterOffer, Amount: ptr(950), Confidence: 40}, true, repository.StatusPendingApproval, 950, 5},
		{"counter offer without amount", base, ports.Classification{Intent: ports.IntentCounterOffer, Confidence: 95}, false, repository.StatusNegotiating, 0, 0},
		{"confident rejection", base, ports.Classification{Intent: ports.IntentRejected, Confidence: 80}, true, repository.StatusFailed, 0, 0},
		{"question", base, ports.Classification{Intent: ports.IntentQuestion, Confidence: 99}, false, repository.StatusNegotiating, 0, 0},
		{"unclear", base, ports.Classification{Intent: ports.IntentUnclear, Confidence: 99}, false, repository.StatusNegotiating, 0, 0},
	}
	for _, tc := range cases {
		got := decideTransition(tc.n, tc.c)
		if got.Changed != tc.changed || got.To != tc.to {
			t.Fatalf("%s: got %+v", tc.name, got)
		}
		if tc.to == repository.StatusPendingApproval {
			if *got.NegotiatedAmount != tc.amount || *got.Discount != tc.discount {
				t.Fatalf("%s: expected %v at %v%%, got %v at %v%%", tc.name, tc.amount, tc.discount, *got.NegotiatedAmount, *got.Discount)
			}
		}
	}
}
