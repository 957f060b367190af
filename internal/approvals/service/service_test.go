package service

import (
	"context"
	"testing"

	"procurement_backend/internal/approvals/repository"
	"procurement_backend/internal/audit"
	"procurement_backend/internal/events"
	"procurement_backend/platform/apperr"
	"procurement_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeRepo struct {
	candidate  repository.Candidate
	levels     []repository.Level
	active     map[uuid.UUID]bool
	approvals  map[uuid.UUID]*repository.Approval
	awarded    int
	rejectedBy int
	competing  []uuid.UUID
}

func (r *fakeRepo) ListActiveLevels(context.Context, uuid.UUID) ([]repository.Level, error) {
	return r.levels, nil
}

func (r *fakeRepo) GetCandidate(_ context.Context, tenantID, quoteID, responseID uuid.UUID) (*repository.Candidate, error) {
	if r.candidate.OrganizationID != tenantID || r.candidate.QuoteID != quoteID || r.candidate.ResponseID != responseID {
		return nil, apperr.NotFound("proposal not found for this quote")
	}
	c := r.candidate
	return &c, nil
}

func (r *fakeRepo) ActiveUsers(_ context.Context, _ uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, id := range ids {
		if r.active[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (r *fakeRepo) Award(context.Context, uuid.UUID, uuid.UUID) ([]uuid.UUID, error) {
	if r.candidate.ResponseStatus == repository.ResponseStatusApproved {
		return nil, apperr.Conflict("quote already has an approved proposal")
	}
	r.awarded++
	r.candidate.ResponseStatus = repository.ResponseStatusApproved
	r.candidate.QuoteStatus = repository.QuoteStatusApproved
	return r.competing, nil
}

func (r *fakeRepo) RequestApproval(_ context.Context, p repository.RequestParams) ([]repository.Approval, error) {
	r.candidate.ResponseStatus = repository.ResponseStatusSelected
	r.candidate.QuoteStatus = repository.QuoteStatusPendingApproval
	var out []repository.Approval
	for _, id := range p.ApproverIDs {
		a := &repository.Approval{
			ID:             uuid.New(),
			OrganizationID: p.OrganizationID,
			QuoteID:        p.QuoteID,
			ResponseID:     p.ResponseID,
			LevelID:        &p.LevelID,
			ApproverID:     id,
			Status:         repository.StatusPending,
		}
		r.approvals[a.ID] = a
		out = append(out, *a)
	}
	return out, nil
}

func (r *fakeRepo) GetApproval(_ context.Context, tenantID, approvalID uuid.UUID) (*repository.Approval, error) {
	a, ok := r.approvals[approvalID]
	if !ok || a.OrganizationID != tenantID {
		return nil, apperr.NotFound("approval not found")
	}
	cp := *a
	return &cp, nil
}

func (r *fakeRepo) Decide(_ context.Context, p repository.DecideParams) (*repository.Decision, error) {
	a := r.approvals[p.ApprovalID]
	if a.Status != repository.StatusPending {
		return nil, apperr.Conflict("approval already decided")
	}
	a.Status = p.Status
	a.Comments = p.Comments
	d := &repository.Decision{Approval: *a}
	for _, other := range r.approvals {
		if other.Status == repository.StatusPending {
			d.Remaining++
		}
	}
	return d, nil
}

func (r *fakeRepo) RejectProposal(context.Context, uuid.UUID, uuid.UUID) error {
	r.rejectedBy++
	r.candidate.ResponseStatus = repository.ResponseStatusRejected
	r.candidate.QuoteStatus = repository.QuoteStatusRejected
	for _, a := range r.approvals {
		if a.Status == repository.StatusPending {
			a.Status = repository.StatusRejected
		}
	}
	return nil
}

type memAuditor struct{ entries []audit.Entry }

func (a *memAuditor) Record(_ context.Context, e audit.Entry) error {
	a.entries = append(a.entries, e)
	return nil
}

func (a *memAuditor) actions() []string {
	out := make([]string, len(a.entries))
	for i, e := range a.entries {
		out[i] = e.Action
	}
	return out
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
	auditor  *memAuditor
	bus      *captureBus
	tenantID uuid.UUID
	actorID  uuid.UUID
}

func newFixture(t *testing.T, amount float64) *fixture {
	t.Helper()
	tenantID := uuid.New()
	repo := &fakeRepo{
		candidate: repository.Candidate{
			QuoteID:        uuid.New(),
			OrganizationID: tenantID,
			QuoteTitle:     "Cement",
			QuoteStatus:    repository.QuoteStatusSent,
			ResponseID:     uuid.New(),
			ResponseStatus: repository.ResponseStatusPending,
			SupplierID:     uuid.New(),
			SupplierName:   "Cimento SA",
			Amount:         amount,
		},
		active:    map[uuid.UUID]bool{},
		approvals: map[uuid.UUID]*repository.Approval{},
		competing: []uuid.UUID{uuid.New(), uuid.New()},
	}
	auditor := &memAuditor{}
	bus := &captureBus{}
	return &fixture{
		svc:      New(repo, nil, auditor, bus, logger.Discard()),
		repo:     repo,
		auditor:  auditor,
		bus:      bus,
		tenantID: tenantID,
		actorID:  uuid.New(),
	}
}

func (f *fixture) award(t *testing.T) error {
	t.Helper()
	_, err := f.svc.SelectProposalForAward(context.Background(), f.tenantID, f.actorID, f.repo.candidate.QuoteID, f.repo.candidate.ResponseID, "")
	return err
}

func maxAmount(v float64) *float64 { return &v }

func TestSelectLevel(t *testing.T) {
	levels := []repository.Level{
		{Name: "manager", MinAmount: 1000, MaxAmount: maxAmount(9999.99)},
		{Name: "director", MinAmount: 10000},
		{Name: "small purchases", MinAmount: 500, MaxAmount: maxAmount(800)},
	}
	cases := []struct {
		amount float64
		want   string
	}{
		{999, ""},
		{1000, "manager"},
		{9999.99, "manager"},
		{10000, "director"},
		{1_000_000, "director"},
		{600, "small purchases"},
	}
	for _, tc := range cases {
		got := selectLevel(levels, tc.amount)
		name := ""
		if got != nil {
			name = got.Name
		}
		if name != tc.want {
			t.Fatalf("amount %v: expected %q, got %q", tc.amount, tc.want, name)
		}
	}
}

func TestAwardWithoutLevelIsImmediate(t *testing.T) {
	f := newFixture(t, 500)
	res, err := f.svc.SelectProposalForAward(context.Background(), f.tenantID, f.actorID, f.repo.candidate.QuoteID, f.repo.candidate.ResponseID, " ok ")
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	if res.ApprovalRequired || res.AutoApproved || res.QuoteStatus != repository.QuoteStatusApproved {
		t.Fatalf("unexpected result: %+v", res)
	}
	if f.repo.awarded != 1 {
		t.Fatal("expected the proposal to be awarded")
	}
	awarded, ok := f.bus.published[0].(events.ProposalAwarded)
	if !ok || len(awarded.RejectedIDs) != 2 || awarded.WinnerSupplierID != f.repo.candidate.SupplierID {
		t.Fatalf("expected award event with the competing suppliers, got %+v", f.bus.published)
	}
}

func TestAwardWithInactiveApproverAutoApproves(t *testing.T) {
	f := newFixture(t, 5000)
	f.repo.levels = []repository.Level{{ID: uuid.New(), Name: "manager", MinAmount: 1000, ApproverIDs: []uuid.UUID{uuid.New()}}}

	res, err := f.svc.SelectProposalForAward(context.Background(), f.tenantID, f.actorID, f.repo.candidate.QuoteID, f.repo.candidate.ResponseID, "")
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	if !res.AutoApproved || res.Warning == "" || res.QuoteStatus != repository.QuoteStatusApproved {
		t.Fatalf("expected auto-approval with a warning, got %+v", res)
	}
	if f.repo.awarded != 1 || len(f.repo.approvals) != 0 {
		t.Fatal("expected a direct award and no approval rows")
	}
	if got := f.auditor.actions(); len(got) != 2 || got[0] != audit.ActionAutoApprovedNoApprovers || got[1] != audit.ActionProposalAwarded {
		t.Fatalf("unexpected audit trail: %v", got)
	}
	if f.auditor.entries[0].Severity != audit.SeverityCritical {
		t.Fatal("auto-approval audit must be critical")
	}
	if awarded := f.bus.published[0].(events.ProposalAwarded); !awarded.AutoApproved {
		t.Fatal("award event must be flagged as auto-approved")
	}
}

func TestAwardRoutesToActiveApprovers(t *testing.T) {
	f := newFixture(t, 5000)
	alice, bob, gone := uuid.New(), uuid.New(), uuid.New()
	f.repo.active[alice] = true
	f.repo.active[bob] = true
	f.repo.levels = []repository.Level{{ID: uuid.New(), Name: "manager", MinAmount: 1000, ApproverIDs: []uuid.UUID{alice, gone, bob, alice}}}

	res, err := f.svc.SelectProposalForAward(context.Background(), f.tenantID, f.actorID, f.repo.candidate.QuoteID, f.repo.candidate.ResponseID, "")
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	if !res.ApprovalRequired || res.ApproversNotified != 2 || res.QuoteStatus != repository.QuoteStatusPendingApproval {
		t.Fatalf("unexpected result: %+v", res)
	}
	if f.repo.awarded != 0 {
		t.Fatal("award must wait for approvers")
	}
	req, ok := f.bus.published[0].(events.ApprovalRequested)
	if !ok || len(req.Approvals) != 2 {
		t.Fatalf("expected approval request for two approvers, got %+v", f.bus.published)
	}
}

func TestAwardRejectsClosedQuotes(t *testing.T) {
	for _, status := range []string{repository.QuoteStatusApproved, repository.QuoteStatusPendingApproval, "draft"} {
		f := newFixture(t, 100)
		f.repo.candidate.QuoteStatus = status
		if err := f.award(t); !apperr.Is(err, apperr.KindConflict) {
			t.Fatalf("%s: expected conflict, got %v", status, err)
		}
	}
}

func routed(t *testing.T) (*fixture, uuid.UUID, uuid.UUID, map[uuid.UUID]uuid.UUID) {
	t.Helper()
	f := newFixture(t, 5000)
	alice, bob := uuid.New(), uuid.New()
	f.repo.active[alice] = true
	f.repo.active[bob] = true
	f.repo.levels = []repository.Level{{ID: uuid.New(), Name: "manager", MinAmount: 1000, ApproverIDs: []uuid.UUID{alice, bob}}}
	if err := f.award(t); err != nil {
		t.Fatalf("award: %v", err)
	}
	byApprover := map[uuid.UUID]uuid.UUID{}
	for id, a := range f.repo.approvals {
		byApprover[a.ApproverID] = id
	}
	return f, alice, bob, byApprover
}

func TestLastApprovalFinalizesAward(t *testing.T) {
	f, alice, bob, ids := routed(t)
	ctx := context.Background()

	res, err := f.svc.DecideApproval(ctx, f.tenantID, alice, ids[alice], true, "")
	if err != nil {
		t.Fatalf("first decision: %v", err)
	}
	if res.Finalized || res.Remaining != 1 || f.repo.awarded != 0 {
		t.Fatalf("first approval must not finalize: %+v", res)
	}

	res, err = f.svc.DecideApproval(ctx, f.tenantID, bob, ids[bob], true, "fine")
	if err != nil {
		t.Fatalf("second decision: %v", err)
	}
	if !res.Finalized || res.QuoteStatus != repository.QuoteStatusApproved || f.repo.awarded != 1 {
		t.Fatalf("last approval must finalize: %+v", res)
	}
}

func TestRejectionRejectsProposalAndQuote(t *testing.T) {
	f, alice, bob, ids := routed(t)
	ctx := context.Background()

	res, err := f.svc.DecideApproval(ctx, f.tenantID, alice, ids[alice], false, "too expensive")
	if err != nil {
		t.Fatalf("decision: %v", err)
	}
	if res.QuoteStatus != repository.QuoteStatusRejected || f.repo.rejectedBy != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if _, err := f.svc.DecideApproval(ctx, f.tenantID, bob, ids[bob], true, ""); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("votes after a rejection must conflict, got %v", err)
	}
	if f.repo.awarded != 0 {
		t.Fatal("rejected proposal must never be awarded")
	}
}

func TestOnlyAssignedApproverDecides(t *testing.T) {
	f, alice, _, ids := routed(t)
	_, err := f.svc.DecideApproval(context.Background(), f.tenantID, uuid.New(), ids[alice], true, "")
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}
