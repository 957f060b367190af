package service

import (
	"context"
	"strings"
	"time"

	"procurement_backend/internal/events"
	"procurement_backend/internal/links"
	"procurement_backend/internal/quotes/repository"
	"procurement_backend/internal/quotes/transport"
	"procurement_backend/platform/apperr"
)

const (
	msgLinkNotForResponding = "this link does not allow responding"
	msgNotAcceptingInput    = "quote is no longer accepting proposals"
)

type linkContext struct {
	quote    *repository.Quote
	supplier *repository.Supplier
}

func (s *Service) resolveLink(ctx context.Context, token string) (*linkContext, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperr.BadRequest("token is required")
	}
	claims, err := s.linkParser.Parse(token)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != links.PurposeRespond {
		return nil, apperr.Forbidden(msgLinkNotForResponding)
	}

	quote, err := s.repo.GetQuoteByID(ctx, claims.QuoteID)
	if err != nil {
		return nil, err
	}
	supplier, err := s.repo.GetSupplier(ctx, claims.SupplierID)
	if err != nil {
		return nil, err
	}
	return &linkContext{quote: quote, supplier: supplier}, nil
}

func acceptsInput(q *repository.Quote, now time.Time) bool {
	if q.Status != repository.QuoteStatusSent {
		return false
	}
	return q.Deadline == nil || now.Before(*q.Deadline)
}

// GetPublicQuote returns the quote as the supplier behind token sees it.
func (s *Service) GetPublicQuote(ctx context.Context, token string) (*transport.PublicQuoteResponse, error) {
	lc, err := s.resolveLink(ctx, token)
	if err != nil {
		return nil, err
	}

	out := &transport.PublicQuoteResponse{
		QuoteID:        lc.quote.ID,
		Title:          lc.quote.Title,
		Company:        lc.quote.OrganizationName,
		SupplierName:   lc.supplier.Name,
		Deadline:       lc.quote.Deadline,
		SupplierStatus: repository.SupplierStatusPending,
		AcceptsInput:   acceptsInput(lc.quote, s.now()),
		Items:          make([]transport.PublicItem, 0, len(lc.quote.Items)),
	}
	for _, it := range lc.quote.Items {
		out.Items = append(out.Items, transport.PublicItem{Name: it.Name, Quantity: it.Quantity, Unit: it.Unit})
	}

	st, err := s.repo.GetSupplierStatus(ctx, lc.quote.ID, lc.supplier.ID)
	if err != nil {
		return nil, err
	}
	if st != nil {
		out.SupplierStatus = st.Status
	}

	resp, err := s.repo.GetResponse(ctx, lc.quote.ID, lc.supplier.ID)
	if err != nil {
		return nil, err
	}
	if resp != nil {
		out.Proposal = toPublicProposal(resp)
	}
	return out, nil
}

// SubmitProposal records the supplier's proposal and marks the pair responded.
func (s *Service) SubmitProposal(ctx context.Context, token string, req transport.SubmitProposalRequest) (*transport.PublicProposal, error) {
	lc, err := s.resolveLink(ctx, token)
	if err != nil {
		return nil, err
	}
	if !acceptsInput(lc.quote, s.now()) {
		return nil, apperr.Conflict(msgNotAcceptingInput)
	}

	resp, err := s.repo.SubmitResponse(ctx, repository.SubmitParams{
		QuoteID:      lc.quote.ID,
		SupplierID:   lc.supplier.ID,
		Amount:       req.Amount,
		DeliveryDays: req.DeliveryDays,
		Terms:        strings.TrimSpace(req.Terms),
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "proposal received", "quote_id", lc.quote.ID, "supplier_id", lc.supplier.ID, "amount", req.Amount)
	s.publish(ctx, events.QuoteResponseReceived{
		BaseEvent:  events.NewBaseEvent(),
		QuoteID:    lc.quote.ID,
		TenantID:   lc.quote.OrganizationID,
		SupplierID: lc.supplier.ID,
		Supplier:   lc.supplier.Name,
	})
	return toPublicProposal(resp), nil
}

// Decline marks the pair declined so no further reminders are sent.
func (s *Service) Decline(ctx context.Context, token string, req transport.DeclineRequest) error {
	lc, err := s.resolveLink(ctx, token)
	if err != nil {
		return err
	}
	if lc.quote.Status != repository.QuoteStatusSent {
		return apperr.Conflict(msgNotAcceptingInput)
	}
	if err := s.repo.Decline(ctx, lc.quote.ID, lc.supplier.ID); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "supplier declined quote",
		"quote_id", lc.quote.ID, "supplier_id", lc.supplier.ID, "reason", strings.TrimSpace(req.Reason))
	s.publish(ctx, events.QuoteResponseReceived{
		BaseEvent:  events.NewBaseEvent(),
		QuoteID:    lc.quote.ID,
		TenantID:   lc.quote.OrganizationID,
		SupplierID: lc.supplier.ID,
		Supplier:   lc.supplier.Name,
		Declined:   true,
	})
	return nil
}

func toPublicProposal(r *repository.Response) *transport.PublicProposal {
	return &transport.PublicProposal{
		ID:           r.ID,
		Amount:       r.Amount,
		DeliveryDays: r.DeliveryDays,
		Terms:        r.Terms,
		Status:       r.Status,
	}
}
