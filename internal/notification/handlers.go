package notification

import (
	"context"
	"fmt"
	"strings"

	"procurement_backend/internal/email"
	"procurement_backend/internal/events"
	"procurement_backend/internal/notification/inapp"
	"procurement_backend/internal/templates"

	"github.com/google/uuid"
)

const (
	resourceQuote       = "quote"
	resourceNegotiation = "negotiation"
	resourceApproval    = "approval"
)

func (m *Module) handleResponseReceived(ctx context.Context, e events.QuoteResponseReceived) error {
	title := "Nova proposta recebida"
	content := fmt.Sprintf("%s enviou uma proposta.", e.Supplier)
	category := inapp.CategoryInfo
	if e.Declined {
		title = "Fornecedor recusou a cotação"
		content = fmt.Sprintf("%s não vai participar desta cotação.", e.Supplier)
		category = inapp.CategoryWarning
	}
	return m.notifyTenant(ctx, e.TenantID, inapp.SendParams{
		Title:        title,
		Content:      content,
		ResourceID:   &e.QuoteID,
		ResourceType: resourceQuote,
		Category:     category,
	})
}

// negotiationTexts maps a target status to the in-app title and category.
var negotiationTexts = map[string]struct {
	title    string
	category string
}{
	"negotiating":       {"Negociação iniciada", inapp.CategoryInfo},
	"pending_approval":  {"Fornecedor respondeu à negociação", inapp.CategorySuccess},
	"awaiting_approval": {"Negociação aguarda revisão", inapp.CategoryWarning},
	"approved":          {"Negociação aprovada", inapp.CategorySuccess},
	"rejected":          {"Negociação rejeitada", inapp.CategoryWarning},
	"failed":            {"Negociação sem acordo", inapp.CategoryError},
}

func (m *Module) handleNegotiationStatusChanged(ctx context.Context, e events.NegotiationStatusChanged) error {
	text, ok := negotiationTexts[e.To]
	if !ok {
		text.title = "Negociação atualizada"
		text.category = inapp.CategoryInfo
	}
	return m.notifyTenant(ctx, e.TenantID, inapp.SendParams{
		Title:        text.title,
		Content:      fmt.Sprintf("%s: %s → %s", e.Supplier, e.From, e.To),
		ResourceID:   &e.NegotiationID,
		ResourceType: resourceNegotiation,
		Category:     text.category,
	})
}

func (m *Module) handleApprovalRequested(ctx context.Context, e events.ApprovalRequested) error {
	ids := make([]uuid.UUID, 0, len(e.Approvals))
	for _, a := range e.Approvals {
		ids = append(ids, a.ApproverID)
	}
	users, err := m.directory.Users(ctx, e.TenantID, ids)
	if err != nil {
		return err
	}
	byID := make(map[uuid.UUID]Recipient, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	amount := templates.Money(e.Amount)
	for _, a := range e.Approvals {
		approver, ok := byID[a.ApproverID]
		if !ok {
			m.log.WarnContext(ctx, "approver not found or inactive", "approval_id", a.ApprovalID, "approver_id", a.ApproverID)
			continue
		}

		approvalID := a.ApprovalID
		if m.inApp != nil {
			_ = m.inApp.Send(ctx, inapp.SendParams{
				OrgID:        e.TenantID,
				UserID:       approver.ID,
				Title:        "Aprovação pendente",
				Content:      fmt.Sprintf("%s: proposta de %s no valor de %s.", e.QuoteTitle, e.SupplierName, amount),
				ResourceID:   &approvalID,
				ResourceType: resourceApproval,
				Category:     inapp.CategoryWarning,
			})
		}

		if strings.TrimSpace(approver.Email) == "" {
			continue
		}
		msg, err := m.renderer.Render(ctx, e.TenantID, templates.PurposeApprovalRequest, map[string]any{
			"approver_name": approver.FullName,
			"supplier_name": e.SupplierName,
			"amount":        amount,
			"quote_title":   e.QuoteTitle,
			"link":          m.approvalLink(approvalID),
		})
		if err != nil {
			m.log.ErrorContext(ctx, "failed to render approval request", "error", err, "approval_id", approvalID)
			continue
		}
		res := m.messenger.SendEmail(ctx, e.TenantID, email.Message{
			To:      approver.Email,
			Subject: msg.Subject,
			Text:    msg.Body,
		})
		if !res.Success {
			m.log.WarnContext(ctx, "approval request email failed", "approval_id", approvalID, "error", res.Error)
		}
	}
	return nil
}

func (m *Module) handleProposalAwarded(ctx context.Context, e events.ProposalAwarded) error {
	summary, err := m.directory.QuoteSummary(ctx, e.QuoteID)
	if err != nil {
		return err
	}

	ids := append([]uuid.UUID{e.WinnerSupplierID}, e.RejectedIDs...)
	contacts, err := m.directory.Suppliers(ctx, ids)
	if err != nil {
		return err
	}
	byID := make(map[uuid.UUID]SupplierContact, len(contacts))
	for _, s := range contacts {
		byID[s.ID] = s
	}

	winner, ok := byID[e.WinnerSupplierID]
	if ok {
		m.sendSupplier(ctx, e.TenantID, winner, templates.PurposeProposalApproved, map[string]any{
			"supplier_name": winner.Name,
			"amount":        templates.Money(e.Amount),
			"quote_title":   summary.Title,
			"company_name":  summary.CompanyName,
		})
	} else {
		m.log.WarnContext(ctx, "winning supplier not found", "quote_id", e.QuoteID, "supplier_id", e.WinnerSupplierID)
	}

	if len(e.RejectedIDs) > 0 && m.notifyRejected(ctx, e.TenantID) {
		for _, id := range e.RejectedIDs {
			loser, ok := byID[id]
			if !ok {
				continue
			}
			m.sendSupplier(ctx, e.TenantID, loser, templates.PurposeProposalRejected, map[string]any{
				"supplier_name": loser.Name,
				"quote_title":   summary.Title,
				"company_name":  summary.CompanyName,
			})
		}
	}

	content := fmt.Sprintf("%s venceu com %s.", winner.Name, templates.Money(e.Amount))
	if e.AutoApproved {
		content += " Aprovada automaticamente: nenhum aprovador ativo."
	}
	return m.notifyTenant(ctx, e.TenantID, inapp.SendParams{
		Title:        "Cotação concluída: " + summary.Title,
		Content:      content,
		ResourceID:   &e.QuoteID,
		ResourceType: resourceQuote,
		Category:     inapp.CategorySuccess,
	})
}

// notifyRejected defaults to true when no tenant or global setting exists.
func (m *Module) notifyRejected(ctx context.Context, tenantID uuid.UUID) bool {
	value, found, err := m.directory.BoolSetting(ctx, tenantID, SettingNotifyRejected)
	if err != nil {
		m.log.WarnContext(ctx, "failed to read setting", "key", SettingNotifyRejected, "error", err)
		return true
	}
	if !found {
		return true
	}
	return value
}

// sendSupplier renders purpose and sends it over every channel the supplier
// has. It reports whether any channel delivered.
func (m *Module) sendSupplier(ctx context.Context, tenantID uuid.UUID, sup SupplierContact, purpose templates.Purpose, vars map[string]any) bool {
	msg, err := m.renderer.Render(ctx, tenantID, purpose, vars)
	if err != nil {
		m.log.ErrorContext(ctx, "failed to render supplier message", "error", err, "purpose", purpose, "supplier_id", sup.ID)
		return false
	}

	delivered := false
	if number := sup.ChatNumber(); number != "" {
		res := m.messenger.SendChat(ctx, tenantID, number, msg.Body)
		if res.Success {
			delivered = true
		} else {
			m.log.WarnContext(ctx, "supplier chat message failed", "purpose", purpose, "supplier_id", sup.ID, "error", res.Error)
		}
	}
	if strings.TrimSpace(sup.Email) != "" {
		res := m.messenger.SendEmail(ctx, tenantID, email.Message{
			To:      sup.Email,
			Subject: msg.Subject,
			Text:    msg.Body,
		})
		if res.Success {
			delivered = true
		} else {
			m.log.WarnContext(ctx, "supplier email failed", "purpose", purpose, "supplier_id", sup.ID, "error", res.Error)
		}
	}
	if !delivered {
		m.log.WarnContext(ctx, "supplier not reached", "purpose", purpose, "supplier_id", sup.ID)
	}
	return delivered
}

func (m *Module) notifyTenant(ctx context.Context, tenantID uuid.UUID, p inapp.SendParams) error {
	if m.inApp == nil {
		return nil
	}
	users, err := m.directory.ActiveUsers(ctx, tenantID)
	if err != nil {
		return err
	}
	ids := make([]uuid.UUID, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	p.OrgID = tenantID
	m.inApp.Broadcast(ctx, ids, p)
	return nil
}

func (m *Module) approvalLink(approvalID uuid.UUID) string {
	base := strings.TrimRight(m.baseURL, "/")
	if base == "" {
		return ""
	}
	return base + "/approvals/" + approvalID.String()
}
