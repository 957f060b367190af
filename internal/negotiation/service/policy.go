package service

import (
	"math"

	"procurement_backend/internal/negotiation/ports"
	"procurement_backend/internal/negotiation/repository"
)

const (
	minTargetDiscount = 3.0
	maxTargetDiscount = 15.0

	// confidentThreshold is the confidence an accept or reject needs to move
	// the thread.
	confidentThreshold = 70
)

// ViabilityPolicy decides whether a set of proposals is worth negotiating.
// Potential is ((lowest - MeanFactor*mean) / lowest) * 100; a negotiation
// is viable when it exceeds ThresholdPercent. A negative potential means
// the lowest proposal is already below the discounted mean.
type ViabilityPolicy struct {
	MeanFactor       float64
	ThresholdPercent float64
}

// DefaultViabilityPolicy is the policy used by the service.
var DefaultViabilityPolicy = ViabilityPolicy{MeanFactor: 0.85, ThresholdPercent: 5}

// MarketStats summarizes the proposals of a quote.
type MarketStats struct {
	Lowest    float64
	Mean      float64
	Count     int
	Potential float64
	Viable    bool
}

// Evaluate computes the stats of amounts. An empty or non-positive lowest
// amount is never viable.
func (p ViabilityPolicy) Evaluate(amounts []float64) MarketStats {
	if len(amounts) == 0 {
		return MarketStats{}
	}
	lowest := amounts[0]
	var sum float64
	for _, a := range amounts {
		sum += a
		lowest = min(lowest, a)
	}
	stats := MarketStats{Lowest: lowest, Mean: sum / float64(len(amounts)), Count: len(amounts)}
	if lowest <= 0 {
		return stats
	}
	stats.Potential = round2((lowest - p.MeanFactor*stats.Mean) / lowest * 100)
	stats.Viable = stats.Potential > p.ThresholdPercent
	return stats
}

func clampDiscount(d float64) float64 {
	if math.IsNaN(d) {
		return minTargetDiscount
	}
	return min(max(d, minTargetDiscount), maxTargetDiscount)
}

// fallbackDiscount is used when the strategist is unavailable.
func fallbackDiscount(potential float64) float64 {
	return round2(clampDiscount(potential / 2))
}

// proposedAmount applies the target discount to the original amount.
func proposedAmount(original, discount float64) float64 {
	return round2(original * (1 - discount/100))
}

// discountFrom is the percentage amount is below original.
func discountFrom(original, amount float64) float64 {
	if original <= 0 {
		return 0
	}
	return round2((original - amount) / original * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Transition is the outcome of applying a classified reply.
type Transition struct {
	Changed          bool
	To               string
	NegotiatedAmount *float64
	Discount         *float64
	Note             string
}

// decideTransition maps a classification onto the state machine. Only
// threads in negotiating are eligible; the caller guarantees that.
func decideTransition(n repository.Negotiation, c ports.Classification) Transition {
	switch {
	case c.Intent == ports.IntentAccepted && c.Confidence > confidentThreshold:
		amount := n.OriginalAmount
		if n.NegotiatedAmount != nil {
			amount = *n.NegotiatedAmount
		}
		if c.Amount != nil {
			amount = *c.Amount
		}
		return settle(n, amount, "supplier accepted")

	case c.Intent == ports.IntentCounterOffer && c.Amount != nil:
		return settle(n, *c.Amount, "supplier countered")

	case c.Intent == ports.IntentRejected && c.Confidence > confidentThreshold:
		return Transition{Changed: true, To: repository.StatusFailed, Note: "supplier rejected"}

	case c.Intent == ports.IntentQuestion:
		return Transition{To: repository.StatusNegotiating, Note: "supplier asked a question"}

	default:
		return Transition{To: n.Status, Note: "not clear"}
	}
}

func settle(n repository.Negotiation, amount float64, note string) Transition {
	amount = round2(amount)
	discount := discountFrom(n.OriginalAmount, amount)
	return Transition{
		Changed:          true,
		To:               repository.StatusPendingApproval,
		NegotiatedAmount: &amount,
		Discount:         &discount,
		Note:             note,
	}
}
