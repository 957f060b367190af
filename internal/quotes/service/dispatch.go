package service

import (
	"context"

	"procurement_backend/internal/events"
	"procurement_backend/internal/quotes/repository"
	"procurement_backend/internal/quotes/transport"
	"procurement_backend/platform/apperr"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Dispatch sends a quote to the selected suppliers. Every supplier is
// processed independently with bounded parallelism and gets its status row
// whatever the delivery result, so failed pairs stay visible and remindable.
// The quote is finalized once, after all sends complete.
func (s *Service) Dispatch(ctx context.Context, tenantID, quoteID uuid.UUID, req transport.DispatchRequest) (*transport.DispatchResponse, error) {
	if !req.SendChat && !req.SendEmail {
		return nil, apperr.Validation("select at least one channel")
	}

	quote, err := s.repo.GetQuote(ctx, tenantID, quoteID)
	if err != nil {
		return nil, err
	}
	if quote.Status != repository.QuoteStatusDraft && quote.Status != repository.QuoteStatusSent {
		return nil, apperr.Conflict("quote in status " + quote.Status + " cannot be dispatched")
	}

	ids := uniqueIDs(req.SupplierIDs)
	suppliers, err := s.repo.ListSuppliersForDispatch(ctx, tenantID, ids)
	if err != nil {
		return nil, err
	}
	if len(suppliers) == 0 {
		return nil, apperr.Validation("no active suppliers selected")
	}

	resp := &transport.DispatchResponse{QuoteID: quoteID, Errors: []string{}}
	resp.Errors = append(resp.Errors, missingSuppliers(ids, suppliers)...)

	outcomes := make([]transport.SupplierOutcome, len(suppliers))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, sup := range suppliers {
		g.Go(func() error {
			outcomes[i] = s.dispatchOne(ctx, quote, sup, req)
			return nil
		})
	}
	_ = g.Wait()

	resp.Outcomes = outcomes
	for _, o := range outcomes {
		if o.Success {
			resp.SentCount++
		}
		for _, e := range o.Errors {
			resp.Errors = append(resp.Errors, o.SupplierName+": "+e)
		}
	}

	if resp.SentCount == 0 {
		s.log.WarnContext(ctx, "dispatch reached no supplier", "quote_id", quoteID, "suppliers", len(suppliers))
	}

	total, err := s.repo.FinalizeDispatch(ctx, tenantID, quoteID, s.now())
	if err != nil {
		return resp, err
	}
	resp.TotalReached = total

	s.log.InfoContext(ctx, "quote dispatched", "quote_id", quoteID, "sent", resp.SentCount, "suppliers", len(suppliers))
	s.publish(ctx, events.QuoteDispatched{
		BaseEvent: events.NewBaseEvent(),
		QuoteID:   quoteID,
		TenantID:  tenantID,
		SentCount: resp.SentCount,
	})
	return resp, nil
}

func (s *Service) dispatchOne(ctx context.Context, quote *repository.Quote, sup repository.Supplier, req transport.DispatchRequest) transport.SupplierOutcome {
	out := transport.SupplierOutcome{SupplierID: sup.ID, SupplierName: sup.Name}

	if err := s.repo.UpsertSupplierStatus(ctx, quote.ID, sup.ID); err != nil {
		s.log.ErrorContext(ctx, "supplier status not recorded", "quote_id", quote.ID, "supplier_id", sup.ID, "error", err)
		out.Errors = append(out.Errors, "record status: "+err.Error())
	}

	target, err := s.targeter.ForDispatch(ctx, quote.ID, sup.ID, sup.Registered())
	if err != nil {
		out.Errors = append(out.Errors, "issue link: "+err.Error())
		return out
	}
	out.Variant = string(target.Variant)
	out.Link = target.URL

	msg, err := s.renderer.Render(ctx, quote.OrganizationID, target.Variant, messageVars(quote, sup, target.URL, req.CustomMessage))
	if err != nil {
		out.Errors = append(out.Errors, "render message: "+err.Error())
		return out
	}

	s.deliver(ctx, quote.OrganizationID, sup, msg, req.SendChat, req.SendEmail, &out)
	return out
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func missingSuppliers(requested []uuid.UUID, found []repository.Supplier) []string {
	if len(requested) == 0 {
		return nil
	}
	present := make(map[uuid.UUID]bool, len(found))
	for _, s := range found {
		present[s.ID] = true
	}
	var out []string
	for _, id := range requested {
		if !present[id] {
			out = append(out, "supplier "+id.String()+" not found or inactive")
		}
	}
	return out
}
