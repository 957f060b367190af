package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"procurement_backend/internal/quotes/repository"
	"procurement_backend/internal/quotes/transport"

	"golang.org/x/sync/errgroup"
)

// reminderEligible reports whether a pair may be reminded at now: still
// waiting, below the cap and outside the cooldown since the last reminder.
func reminderEligible(status string, count int, lastReminder *time.Time, now time.Time) bool {
	if status != repository.SupplierStatusPending && status != repository.SupplierStatusRemindedOnce {
		return false
	}
	if count >= repository.MaxReminders {
		return false
	}
	if lastReminder != nil && now.Sub(*lastReminder) < repository.ReminderCooldown {
		return false
	}
	return true
}

// SendReminders reminds suppliers that have not answered quotes sent at
// least hoursSinceSent ago. Zero uses the configured default. Each pair is
// claimed with a compare-and-set before anything is sent, so overlapping
// runs send at most one reminder per pair; a failed delivery gives the
// claim back.
func (s *Service) SendReminders(ctx context.Context, hoursSinceSent int) (*transport.ReminderResponse, error) {
	if hoursSinceSent <= 0 {
		hoursSinceSent = s.reminderAfterHours
	}
	now := s.now()
	cutoff := now.Add(-time.Duration(hoursSinceSent) * time.Hour)

	candidates, err := s.repo.ListReminderCandidates(ctx, cutoff, now)
	if err != nil {
		return nil, err
	}

	resp := &transport.ReminderResponse{Results: []transport.SupplierOutcome{}}
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for _, c := range candidates {
		if !reminderEligible(c.Status, c.ReminderCount, c.LastReminderAt, now) {
			resp.Skipped++
			continue
		}
		g.Go(func() error {
			out, counted := s.remindOne(ctx, c, now)
			mu.Lock()
			defer mu.Unlock()
			resp.Results = append(resp.Results, out)
			if counted {
				resp.RemindersSent++
			}
			return nil
		})
	}
	_ = g.Wait()

	s.log.InfoContext(ctx, "reminder run complete",
		"candidates", len(candidates), "sent", resp.RemindersSent, "skipped", resp.Skipped)
	return resp, nil
}

func (s *Service) remindOne(ctx context.Context, c repository.ReminderCandidate, now time.Time) (transport.SupplierOutcome, bool) {
	sup := c.Supplier
	out := transport.SupplierOutcome{SupplierID: sup.ID, SupplierName: sup.Name}

	chat := sup.ChatNumber() != ""
	mail := strings.TrimSpace(sup.Email) != ""
	if !chat && !mail {
		out.Errors = append(out.Errors, "supplier has no contact channel")
		return out, false
	}

	target, err := s.targeter.ForReminder(ctx, c.QuoteID, sup.ID, sup.Registered())
	if err != nil {
		out.Errors = append(out.Errors, "issue link: "+err.Error())
		return out, false
	}
	out.Variant = string(target.Variant)
	out.Link = target.URL

	msg, err := s.renderer.Render(ctx, c.Quote.OrganizationID, target.Variant, messageVars(&c.Quote, sup, target.URL, ""))
	if err != nil {
		out.Errors = append(out.Errors, "render message: "+err.Error())
		return out, false
	}

	claimed, err := s.repo.MarkReminded(ctx, c.ID, c.ReminderCount, now)
	if err != nil {
		out.Errors = append(out.Errors, "record reminder: "+err.Error())
		return out, false
	}
	if !claimed {
		s.log.WarnContext(ctx, "reminder already claimed by another run", "status_id", c.ID)
		out.Errors = append(out.Errors, "reminder already claimed by another run")
		return out, false
	}

	s.deliver(ctx, c.Quote.OrganizationID, sup, msg, chat, mail, &out)
	if !out.Success {
		if err := s.repo.ReleaseReminder(ctx, c.ID, c.ReminderCount+1, c.LastReminderAt); err != nil {
			s.log.ErrorContext(ctx, "reminder claim not released", "status_id", c.ID, "error", err)
		}
		return out, false
	}
	return out, true
}
