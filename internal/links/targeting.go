package links

import (
	"context"

	"procurement_backend/internal/templates"
	"procurement_backend/platform/logger"

	"github.com/google/uuid"
)

// Shortener turns a long URL into a short one.
type Shortener interface {
	Shorten(ctx context.Context, longURL string) (string, error)
}

// Target is the link and message variant chosen for one supplier.
type Target struct {
	URL     string
	Long    string
	Purpose Purpose
	Variant templates.Purpose
}

// Targeter picks the message variant by registration status and issues
// the matching link.
type Targeter struct {
	issuer    *Issuer
	shortener Shortener
	log       *logger.Logger
}

// NewTargeter creates a Targeter. A nil shortener disables shortening.
func NewTargeter(issuer *Issuer, shortener Shortener, log *logger.Logger) *Targeter {
	return &Targeter{issuer: issuer, shortener: shortener, log: log}
}

// ForDispatch returns the first-contact target: a response link with the
// quote notification for registered suppliers, a registration link with
// the invitation otherwise.
func (t *Targeter) ForDispatch(ctx context.Context, quoteID, supplierID uuid.UUID, registered bool) (Target, error) {
	if registered {
		return t.build(ctx, quoteID, supplierID, PurposeRespond, templates.PurposeQuoteNotification)
	}
	return t.build(ctx, quoteID, supplierID, PurposeRegister, templates.PurposeRegistrationInvite)
}

// ForReminder returns a fresh response link with the reminder variant.
func (t *Targeter) ForReminder(ctx context.Context, quoteID, supplierID uuid.UUID, registered bool) (Target, error) {
	purpose := PurposeRespond
	if !registered {
		purpose = PurposeRegister
	}
	return t.build(ctx, quoteID, supplierID, purpose, templates.PurposeQuoteReminder)
}

func (t *Targeter) build(ctx context.Context, quoteID, supplierID uuid.UUID, purpose Purpose, variant templates.Purpose) (Target, error) {
	token, err := t.issuer.Issue(quoteID, supplierID, purpose)
	if err != nil {
		return Target{}, err
	}
	long := t.issuer.URL(purpose, token)
	target := Target{URL: long, Long: long, Purpose: purpose, Variant: variant}

	if t.shortener == nil {
		return target, nil
	}
	short, err := t.shortener.Shorten(ctx, long)
	if err != nil {
		t.log.WarnContext(ctx, "short link failed, using long url", "supplier_id", supplierID, "error", err)
		return target, nil
	}
	target.URL = short
	return target, nil
}
