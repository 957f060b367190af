package validator

import (
	"errors"
	"testing"
)

type awardInput struct {
	Approve  *bool   `json:"approve" validate:"required"`
	Comments string  `json:"comments" validate:"max=5"`
	Amount   float64 `json:"amount" validate:"gt=0"`
}

func TestDetailsUsesJSONNames(t *testing.T) {
	err := New().Struct(awardInput{Comments: "too long", Amount: 0})
	if err == nil {
		t.Fatal("expected validation error")
	}

	details, ok := Details(err).(map[string]string)
	if !ok {
		t.Fatalf("expected field map, got %T", Details(err))
	}
	want := map[string]string{"approve": "required", "comments": "max=5", "amount": "gt=0"}
	for field, rule := range want {
		if details[field] != rule {
			t.Fatalf("field %s: expected %q, got %q (all: %v)", field, rule, details[field], details)
		}
	}
}

func TestDetailsFallsBackToMessage(t *testing.T) {
	if got := Details(errors.New("boom")); got != "boom" {
		t.Fatalf("expected message, got %v", got)
	}
}

func TestValidStruct(t *testing.T) {
	yes := true
	if err := New().Struct(awardInput{Approve: &yes, Amount: 10}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
