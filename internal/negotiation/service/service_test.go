package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"procurement_backend/internal/audit"
	"procurement_backend/internal/channels"
	"procurement_backend/internal/negotiation/ports"
	"procurement_backend/internal/negotiation/repository"
	"procurement_backend/internal/negotiation/transport"
	"procurement_backend/internal/templates"
	"procurement_backend/internal/whatsapp"
	"procurement_backend/platform/apperr"
	"procurement_backend/platform/events"
	"procurement_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeRepo struct {
	quote       *repository.Quote
	proposals   []repository.Proposal
	negotiation *repository.Negotiation
	supplier    *repository.Supplier
	messages    []repository.Message
	initiated   int
	transitions []repository.TransitionParams
}

func (r *fakeRepo) GetQuote(_ context.Context, tenantID, quoteID uuid.UUID) (*repository.Quote, error) {
	if r.quote == nil || r.quote.ID != quoteID || r.quote.OrganizationID != tenantID {
		return nil, apperr.NotFound("quote not found")
	}
	return r.quote, nil
}

func (r *fakeRepo) ListProposals(context.Context, uuid.UUID) ([]repository.Proposal, error) {
	return r.proposals, nil
}

func (r *fakeRepo) UpsertAnalysis(_ context.Context, p repository.AnalysisParams) (*repository.Negotiation, error) {
	if r.negotiation != nil && r.negotiation.Status != repository.StatusAnalyzed {
		return nil, apperr.Conflict("negotiation already started for this quote")
	}
	if r.negotiation == nil {
		r.negotiation = &repository.Negotiation{ID: uuid.New()}
	}
	r.negotiation.QuoteID = p.QuoteID
	r.negotiation.OrganizationID = p.OrganizationID
	r.negotiation.SupplierID = p.SupplierID
	r.negotiation.ResponseID = &p.ResponseID
	r.negotiation.OriginalAmount = p.OriginalAmount
	r.negotiation.Status = repository.StatusAnalyzed
	r.negotiation.Strategy = p.Strategy
	r.negotiation.Analysis = p.Analysis
	return r.negotiation, nil
}

func (r *fakeRepo) Get(_ context.Context, tenantID, id uuid.UUID) (*repository.Negotiation, error) {
	if r.negotiation == nil || r.negotiation.ID != id || r.negotiation.OrganizationID != tenantID {
		return nil, apperr.NotFound("negotiation not found")
	}
	return r.negotiation, nil
}

func (r *fakeRepo) GetSupplier(context.Context, uuid.UUID) (*repository.Supplier, error) {
	return r.supplier, nil
}

func (r *fakeRepo) ListMessages(context.Context, uuid.UUID) ([]repository.Message, error) {
	return r.messages, nil
}

func (r *fakeRepo) AppendMessage(_ context.Context, _ uuid.UUID, role, text, channel string) (int, error) {
	seq := len(r.messages) + 1
	r.messages = append(r.messages, repository.Message{Seq: seq, Role: role, Message: text, Channel: channel})
	return seq, nil
}

func (r *fakeRepo) SetMessageParsed(_ context.Context, _ uuid.UUID, seq int, parsed any) error {
	data, _ := json.Marshal(parsed)
	r.messages[seq-1].Parsed = data
	return nil
}

func (r *fakeRepo) Initiate(_ context.Context, p repository.InitiationParams) (*repository.Negotiation, error) {
	r.initiated++
	r.negotiation.Status = repository.StatusNegotiating
	r.negotiation.NegotiatedAmount = &p.ProposedAmount
	r.messages = append(r.messages, repository.Message{Seq: len(r.messages) + 1, Role: repository.RoleAI, Message: p.Message, Scope: p.Scope})
	return r.negotiation, nil
}

func (r *fakeRepo) ListActive(context.Context) ([]repository.Active, error) {
	if r.negotiation == nil || r.negotiation.Status != repository.StatusNegotiating {
		return nil, nil
	}
	return []repository.Active{{Negotiation: *r.negotiation, Supplier: *r.supplier}}, nil
}

func (r *fakeRepo) Transition(_ context.Context, p repository.TransitionParams) (bool, error) {
	r.transitions = append(r.transitions, p)
	if r.negotiation.Status != repository.StatusNegotiating {
		return false, nil
	}
	r.negotiation.Status = p.To
	return true, nil
}

func (r *fakeRepo) SetStatus(_ context.Context, _, _ uuid.UUID, status string) (string, error) {
	prev := r.negotiation.Status
	r.negotiation.Status = status
	return prev, nil
}

type stubStrategist struct {
	draft ports.StrategyDraft
	err   error
}

func (s stubStrategist) DraftStrategy(context.Context, uuid.UUID, ports.StrategyInput) (ports.StrategyDraft, error) {
	return s.draft, s.err
}

type stubComposer struct{ err error }

func (c stubComposer) ComposeOpening(_ context.Context, _ uuid.UUID, in ports.OpeningInput) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	return "Podemos fechar por " + templates.Money(in.ProposedAmount) + "?", nil
}

type stubClassifier struct {
	c   ports.Classification
	err error
}

func (c stubClassifier) Classify(context.Context, uuid.UUID, string, float64) (ports.Classification, error) {
	return c.c, c.err
}

type stubChat struct {
	res    channels.DeliveryResult
	scopes []whatsapp.Scope
}

func (c *stubChat) SendChatWithScopes(_ context.Context, _ uuid.UUID, _, _ string, scopes ...whatsapp.Scope) channels.DeliveryResult {
	c.scopes = scopes
	return c.res
}

type stubRenderer struct{}

func (stubRenderer) Render(_ context.Context, _ uuid.UUID, purpose templates.Purpose, vars map[string]any) (templates.Message, error) {
	return templates.Message{Body: string(purpose) + ":" + vars["proposed_amount"].(string)}, nil
}

type memAuditor struct{ entries []audit.Entry }

func (a *memAuditor) Record(_ context.Context, e audit.Entry) error {
	a.entries = append(a.entries, e)
	return nil
}

type captureBus struct{ published []events.Event }

func (b *captureBus) Publish(_ context.Context, e events.Event) { b.published = append(b.published, e) }

func (b *captureBus) PublishSync(ctx context.Context, e events.Event) error {
	b.Publish(ctx, e)
	return nil
}

func (b *captureBus) Subscribe(string, events.Handler) {}

type fixture struct {
	svc      *Service
	repo     *fakeRepo
	chat     *stubChat
	auditor  *memAuditor
	bus      *captureBus
	tenantID uuid.UUID
}

func newFixture(t *testing.T, deps Deps) *fixture {
	t.Helper()
	tenantID := uuid.New()
	supplier := &repository.Supplier{ID: uuid.New(), Name: "Cimento SA", WhatsApp: "11988887777"}
	repo := &fakeRepo{
		quote:    &repository.Quote{ID: uuid.New(), OrganizationID: tenantID, OrganizationName: "Acme", Title: "Cement", Status: "sent"},
		supplier: supplier,
	}
	chat := &stubChat{res: channels.DeliveryResult{Success: true, Channel: channels.ChannelChat, Scope: "client"}}
	auditor := &memAuditor{}
	bus := &captureBus{}

	deps.Repo = repo
	deps.Chat = chat
	deps.Renderer = stubRenderer{}
	deps.Auditor = auditor
	deps.EventBus = bus
	deps.Log = logger.Discard()
	deps.DefaultCountryCode = "55"
	return &fixture{svc: New(deps), repo: repo, chat: chat, auditor: auditor, bus: bus, tenantID: tenantID}
}

func (f *fixture) negotiating(original float64) *repository.Negotiation {
	f.repo.negotiation = &repository.Negotiation{
		ID:             uuid.New(),
		QuoteID:        f.repo.quote.ID,
		OrganizationID: f.tenantID,
		SupplierID:     f.repo.supplier.ID,
		OriginalAmount: original,
		Status:         repository.StatusNegotiating,
	}
	return f.repo.negotiation
}

func TestAnalyzeNotViable(t *testing.T) {
	f := newFixture(t, Deps{Strategist: stubStrategist{err: errors.New("must not be called")}})
	f.repo.proposals = []repository.Proposal{
		{ID: uuid.New(), SupplierID: uuid.New(), Amount: 1000},
		{ID: uuid.New(), SupplierID: uuid.New(), Amount: 1100},
		{ID: uuid.New(), SupplierID: uuid.New(), Amount: 1300},
	}

	resp, err := f.svc.Analyze(context.Background(), f.tenantID, f.repo.quote.ID)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if resp.ShouldNegotiate || resp.Negotiation.Status != repository.StatusAnalyzed || resp.Negotiation.OriginalAmount != 1000 {
		t.Fatalf("unexpected analysis: %+v", resp)
	}
}

func TestAnalyzeFallsBackWhenStrategistFails(t *testing.T) {
	f := newFixture(t, Deps{Strategist: stubStrategist{err: errors.New("model down")}})
	f.repo.proposals = []repository.Proposal{{ID: uuid.New(), SupplierID: uuid.New(), SupplierName: "A", Amount: 1000}}

	resp, err := f.svc.Analyze(context.Background(), f.tenantID, f.repo.quote.ID)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	s := resp.Negotiation.Strategy
	if !resp.ShouldNegotiate || s.Source != strategySourceFallback || s.TargetDiscount != 7.5 {
		t.Fatalf("expected fallback discount of half the 15%% potential, got %+v", s)
	}
}

func TestAnalyzeClampsStrategistDiscount(t *testing.T) {
	f := newFixture(t, Deps{Strategist: stubStrategist{draft: ports.StrategyDraft{Analysis: "ok", TargetDiscount: 40}}})
	f.repo.proposals = []repository.Proposal{{ID: uuid.New(), SupplierID: uuid.New(), Amount: 1000}}

	resp, err := f.svc.Analyze(context.Background(), f.tenantID, f.repo.quote.ID)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if resp.Negotiation.Strategy.TargetDiscount != 15 || resp.Negotiation.Strategy.Source != strategySourceAI {
		t.Fatalf("expected clamped AI discount, got %+v", resp.Negotiation.Strategy)
	}
}

func TestAnalyzeWithoutProposals(t *testing.T) {
	f := newFixture(t, Deps{})
	_, err := f.svc.Analyze(context.Background(), f.tenantID, f.repo.quote.ID)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func analyzed(f *fixture, discount float64) *repository.Negotiation {
	f.repo.negotiation = &repository.Negotiation{
		ID:             uuid.New(),
		QuoteID:        f.repo.quote.ID,
		OrganizationID: f.tenantID,
		SupplierID:     f.repo.supplier.ID,
		OriginalAmount: 1000,
		Status:         repository.StatusAnalyzed,
		Strategy:       repository.Strategy{Viable: true, TargetDiscount: discount},
	}
	return f.repo.negotiation
}

func TestInitiateSendsAndAdvances(t *testing.T) {
	f := newFixture(t, Deps{Composer: stubComposer{}})
	n := analyzed(f, 10)

	resp, err := f.svc.Initiate(context.Background(), f.tenantID, n.ID)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if !resp.Success || resp.ProposedAmount != 900 || resp.Scope != "client" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if n.Status != repository.StatusNegotiating || f.repo.initiated != 1 {
		t.Fatalf("negotiation not advanced: %s", n.Status)
	}
	want := []whatsapp.Scope{whatsapp.ScopeClient, whatsapp.ScopeGlobal, whatsapp.ScopeEnv}
	for i, s := range want {
		if f.chat.scopes[i] != s {
			t.Fatalf("expected scope order %v, got %v", want, f.chat.scopes)
		}
	}
	if len(f.auditor.entries) != 1 || f.auditor.entries[0].Action != audit.ActionNegotiationInitiated {
		t.Fatalf("expected initiation audit, got %+v", f.auditor.entries)
	}
}

func TestInitiateDeliveryFailureIsRetryable(t *testing.T) {
	f := newFixture(t, Deps{Composer: stubComposer{err: errors.New("model down")}})
	n := analyzed(f, 10)
	f.chat.res = channels.DeliveryResult{Channel: channels.ChannelChat, Scope: "none", Error: "all scopes failed"}

	resp, err := f.svc.Initiate(context.Background(), f.tenantID, n.ID)
	if !apperr.Is(err, apperr.KindUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if resp == nil || resp.MessageSent != "negotiation_opening:R$ 900,00" {
		t.Fatalf("expected template fallback message, got %+v", resp)
	}
	if n.Status != repository.StatusAnalyzed || f.repo.initiated != 0 || len(f.repo.messages) != 0 {
		t.Fatal("failed delivery must leave the negotiation untouched")
	}
}

func TestInitiateRejectsNonViable(t *testing.T) {
	f := newFixture(t, Deps{})
	n := analyzed(f, 10)
	n.Strategy.Viable = false
	if _, err := f.svc.Initiate(context.Background(), f.tenantID, n.ID); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func webhook(phone, text string, fromMe bool) transport.EvolutionWebhook {
	data, _ := json.Marshal(map[string]any{
		"key":     map[string]any{"remoteJid": phone + "@s.whatsapp.net", "fromMe": fromMe, "id": "ABC"},
		"message": map[string]any{"conversation": text},
	})
	return transport.EvolutionWebhook{Event: "messages.upsert", Data: data}
}

func TestIngestCounterOfferMovesToPendingApproval(t *testing.T) {
	amount := 950.0
	f := newFixture(t, Deps{Classifier: stubClassifier{c: ports.Classification{Intent: ports.IntentCounterOffer, Amount: &amount, Confidence: 90}}})
	n := f.negotiating(1000)

	res := f.svc.Ingest(context.Background(), webhook("5511988887777", "aceito por R$ 950", false))
	if res.Status != transport.IngestProcessed || res.NewStatus != repository.StatusPendingApproval {
		t.Fatalf("unexpected result: %+v", res)
	}
	if *res.MatchedNegotiationID != n.ID {
		t.Fatal("wrong negotiation matched")
	}
	tr := f.repo.transitions[0]
	if *tr.NegotiatedAmount != 950 || *tr.Discount != 5 {
		t.Fatalf("expected 950 at 5%%, got %v at %v", *tr.NegotiatedAmount, *tr.Discount)
	}
	if len(f.repo.messages) != 1 || f.repo.messages[0].Parsed == nil {
		t.Fatalf("message must be logged with its classification: %+v", f.repo.messages)
	}
	if len(f.bus.published) != 1 || len(f.auditor.entries) != 1 {
		t.Fatalf("expected one event and one audit, got %d and %d", len(f.bus.published), len(f.auditor.entries))
	}
}

func TestIngestKeepsMessageWhenClassifierFails(t *testing.T) {
	f := newFixture(t, Deps{Classifier: stubClassifier{err: errors.New("model down")}})
	f.negotiating(1000)

	res := f.svc.Ingest(context.Background(), webhook("11988887777", "quanto fica o frete?", false))
	if res.Status != transport.IngestProcessed || res.NewStatus != repository.StatusNegotiating {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(f.repo.messages) != 1 || f.repo.messages[0].Parsed != nil {
		t.Fatalf("raw message must be kept without classification: %+v", f.repo.messages)
	}
	if len(f.repo.transitions) != 0 || len(f.bus.published) != 0 {
		t.Fatal("no transition expected")
	}
	if len(f.auditor.entries) != 1 {
		t.Fatal("every inbound event must be audited")
	}
}

func TestIngestIgnoresIrrelevantEvents(t *testing.T) {
	f := newFixture(t, Deps{})
	f.negotiating(1000)

	if res := f.svc.Ingest(context.Background(), webhook("5511988887777", "oi", true)); res.Reason != reasonSelfSent {
		t.Fatalf("expected self-sent to be ignored, got %+v", res)
	}
	if res := f.svc.Ingest(context.Background(), transport.EvolutionWebhook{Event: "connection.update"}); res.Reason != reasonNotMessage {
		t.Fatalf("expected non-message event to be ignored, got %+v", res)
	}
	res := f.svc.Ingest(context.Background(), webhook("5521911112222", "oi", false))
	if res.Status != transport.IngestIgnored || res.Reason != reasonUnmatched {
		t.Fatalf("expected unmatched sender to be ignored, got %+v", res)
	}
	if len(f.auditor.entries) != 1 || f.auditor.entries[0].OrganizationID != nil {
		t.Fatalf("unmatched message must still be audited: %+v", f.auditor.entries)
	}
	if len(f.repo.messages) != 0 {
		t.Fatal("nothing should be appended")
	}
}

func TestOverrideIsUnconditional(t *testing.T) {
	f := newFixture(t, Deps{})
	n := f.negotiating(1000)
	actor := uuid.New()

	resp, err := f.svc.Reject(context.Background(), f.tenantID, actor, n.ID, "too slow")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if resp.Status != repository.StatusRejected {
		t.Fatalf("expected rejected, got %s", resp.Status)
	}
	if f.auditor.entries[0].Severity != audit.SeverityWarning || *f.auditor.entries[0].ActorID != actor {
		t.Fatalf("override must be audited with the actor: %+v", f.auditor.entries[0])
	}
}
