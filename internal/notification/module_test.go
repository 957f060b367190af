package notification

import (
	"context"
	"strings"
	"testing"
	"time"

	"procurement_backend/internal/channels"
	"procurement_backend/internal/email"
	"procurement_backend/internal/events"
	"procurement_backend/internal/notification/inapp"
	"procurement_backend/internal/templates"
	"procurement_backend/platform/logger"

	"github.com/google/uuid"
)

type testConfig struct{ base string }

func (c testConfig) GetAppBaseURL() string { return c.base }

type fakeDirectory struct {
	users     []Recipient
	suppliers []SupplierContact
	summary   QuoteSummary
	settings  map[string]bool
}

func (d *fakeDirectory) ActiveUsers(context.Context, uuid.UUID) ([]Recipient, error) {
	return d.users, nil
}

func (d *fakeDirectory) Users(_ context.Context, _ uuid.UUID, ids []uuid.UUID) ([]Recipient, error) {
	var out []Recipient
	for _, u := range d.users {
		for _, id := range ids {
			if u.ID == id {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

func (d *fakeDirectory) QuoteSummary(context.Context, uuid.UUID) (QuoteSummary, error) {
	return d.summary, nil
}

func (d *fakeDirectory) Suppliers(_ context.Context, ids []uuid.UUID) ([]SupplierContact, error) {
	var out []SupplierContact
	for _, s := range d.suppliers {
		for _, id := range ids {
			if s.ID == id {
				out = append(out, s)
			}
		}
	}
	return out, nil
}

func (d *fakeDirectory) BoolSetting(_ context.Context, _ uuid.UUID, key string) (bool, bool, error) {
	v, ok := d.settings[key]
	return v, ok, nil
}

type sentChat struct{ to, text string }

type fakeMessenger struct {
	chats  []sentChat
	emails []email.Message
	failTo string
}

func (m *fakeMessenger) SendChat(_ context.Context, _ uuid.UUID, phone, text string) channels.DeliveryResult {
	if phone == m.failTo {
		return channels.DeliveryResult{Channel: channels.ChannelChat, Error: "gateway down"}
	}
	m.chats = append(m.chats, sentChat{to: phone, text: text})
	return channels.DeliveryResult{Success: true, Channel: channels.ChannelChat}
}

func (m *fakeMessenger) SendEmail(_ context.Context, _ uuid.UUID, msg email.Message) channels.DeliveryResult {
	m.emails = append(m.emails, msg)
	return channels.DeliveryResult{Success: true, Channel: channels.ChannelEmail}
}

type fakeRenderer struct{}

func (fakeRenderer) Render(_ context.Context, _ uuid.UUID, purpose templates.Purpose, vars map[string]any) (templates.Message, error) {
	body := string(purpose) + ":" + vars["supplier_name"].(string)
	if link, ok := vars["link"].(string); ok && link != "" {
		body += ":" + link
	}
	return templates.Message{Subject: string(purpose), Body: body}, nil
}

type memStore struct {
	created []inapp.CreateParams
}

func (s *memStore) Create(_ context.Context, p inapp.CreateParams) (inapp.Notification, error) {
	s.created = append(s.created, p)
	return inapp.Notification{ID: uuid.New(), UserID: p.UserID, Title: p.Title, Content: p.Content, Category: p.Category, CreatedAt: time.Now()}, nil
}

func (s *memStore) List(context.Context, uuid.UUID, bool, int, int) ([]inapp.Notification, int, error) {
	return nil, 0, nil
}

func (s *memStore) CountUnread(context.Context, uuid.UUID) (int, error) { return 0, nil }

func (s *memStore) MarkRead(context.Context, uuid.UUID, uuid.UUID) (inapp.Notification, error) {
	return inapp.Notification{}, nil
}

func (s *memStore) MarkAllRead(context.Context, uuid.UUID) (int64, error) { return 0, nil }

type fixture struct {
	module    *Module
	directory *fakeDirectory
	messenger *fakeMessenger
	store     *memStore
	tenantID  uuid.UUID
	winner    SupplierContact
	loser     SupplierContact
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.Discard()
	f := &fixture{
		messenger: &fakeMessenger{},
		store:     &memStore{},
		tenantID:  uuid.New(),
		winner:    SupplierContact{ID: uuid.New(), Name: "Alfa", WhatsApp: "5511988887777", Email: "alfa@example.com"},
		loser:     SupplierContact{ID: uuid.New(), Name: "Beta", Phone: "5511977776666"},
	}
	f.directory = &fakeDirectory{
		users: []Recipient{
			{ID: uuid.New(), Email: "buyer@example.com", FullName: "Compradora"},
			{ID: uuid.New(), Email: "", FullName: "Gerente"},
		},
		suppliers: []SupplierContact{f.winner, f.loser},
		summary:   QuoteSummary{Title: "Cimento", CompanyName: "Construtora"},
		settings:  map[string]bool{},
	}
	f.module = NewWithDeps(Deps{
		Messenger: f.messenger,
		Renderer:  fakeRenderer{},
		Directory: f.directory,
		InApp:     inapp.NewService(f.store, nil, log),
	}, testConfig{base: "https://app.example.com/"}, log)
	return f
}

func (f *fixture) awarded() events.ProposalAwarded {
	return events.ProposalAwarded{
		BaseEvent:        events.NewBaseEvent(),
		QuoteID:          uuid.New(),
		ResponseID:       uuid.New(),
		TenantID:         f.tenantID,
		WinnerSupplierID: f.winner.ID,
		Amount:           900,
		RejectedIDs:      []uuid.UUID{f.loser.ID},
	}
}

func TestAwardNotifiesWinnerAndLosers(t *testing.T) {
	f := newFixture(t)

	if err := f.module.Handle(context.Background(), f.awarded()); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(f.messenger.chats) != 2 {
		t.Fatalf("expected 2 chat messages, got %d", len(f.messenger.chats))
	}
	if f.messenger.chats[0].to != f.winner.WhatsApp || f.messenger.chats[0].text != "proposal_approved:Alfa" {
		t.Fatalf("unexpected winner message %+v", f.messenger.chats[0])
	}
	if f.messenger.chats[1].to != f.loser.Phone || f.messenger.chats[1].text != "proposal_rejected:Beta" {
		t.Fatalf("unexpected loser message %+v", f.messenger.chats[1])
	}
	if len(f.messenger.emails) != 1 || f.messenger.emails[0].To != f.winner.Email {
		t.Fatalf("expected one email to the winner, got %+v", f.messenger.emails)
	}
	if len(f.store.created) != len(f.directory.users) {
		t.Fatalf("expected one in-app notification per user, got %d", len(f.store.created))
	}
	if f.store.created[0].Category != inapp.CategorySuccess || !strings.Contains(f.store.created[0].Title, "Cimento") {
		t.Fatalf("unexpected in-app notification %+v", f.store.created[0])
	}
}

func TestAwardSkipsLosersWhenDisabled(t *testing.T) {
	f := newFixture(t)
	f.directory.settings[SettingNotifyRejected] = false

	if err := f.module.Handle(context.Background(), f.awarded()); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(f.messenger.chats) != 1 || f.messenger.chats[0].to != f.winner.WhatsApp {
		t.Fatalf("expected only the winner to be messaged, got %+v", f.messenger.chats)
	}
}

func TestAwardContinuesWhenWinnerChatFails(t *testing.T) {
	f := newFixture(t)
	f.messenger.failTo = f.winner.WhatsApp

	if err := f.module.Handle(context.Background(), f.awarded()); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(f.messenger.emails) != 1 {
		t.Fatalf("expected the winner email to still go out, got %d", len(f.messenger.emails))
	}
	if len(f.messenger.chats) != 1 || f.messenger.chats[0].to != f.loser.Phone {
		t.Fatalf("expected the loser message to still go out, got %+v", f.messenger.chats)
	}
}

func TestApprovalRequestNotifiesEachApprover(t *testing.T) {
	f := newFixture(t)
	withEmail := f.directory.users[0]
	withoutEmail := f.directory.users[1]
	first, second, unknown := uuid.New(), uuid.New(), uuid.New()

	err := f.module.Handle(context.Background(), events.ApprovalRequested{
		BaseEvent:    events.NewBaseEvent(),
		QuoteID:      uuid.New(),
		ResponseID:   uuid.New(),
		TenantID:     f.tenantID,
		QuoteTitle:   "Cimento",
		SupplierName: "Alfa",
		Amount:       12000,
		Approvals: []events.PendingApproval{
			{ApprovalID: first, ApproverID: withEmail.ID},
			{ApprovalID: second, ApproverID: withoutEmail.ID},
			{ApprovalID: uuid.New(), ApproverID: unknown},
		},
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(f.store.created) != 2 {
		t.Fatalf("expected 2 in-app notifications, got %d", len(f.store.created))
	}
	if *f.store.created[0].ResourceID != first || *f.store.created[0].ResourceType != resourceApproval {
		t.Fatalf("expected notification to point at the approval, got %+v", f.store.created[0])
	}
	if len(f.messenger.emails) != 1 {
		t.Fatalf("expected 1 approval email, got %d", len(f.messenger.emails))
	}
	want := "approval_request:Alfa:https://app.example.com/approvals/" + first.String()
	if f.messenger.emails[0].To != withEmail.Email || f.messenger.emails[0].Text != want {
		t.Fatalf("unexpected approval email %+v", f.messenger.emails[0])
	}
}

func TestNegotiationStatusNotifiesTenant(t *testing.T) {
	f := newFixture(t)

	err := f.module.Handle(context.Background(), events.NegotiationStatusChanged{
		BaseEvent:     events.NewBaseEvent(),
		NegotiationID: uuid.New(),
		QuoteID:       uuid.New(),
		TenantID:      f.tenantID,
		Supplier:      "Alfa",
		From:          "negotiating",
		To:            "failed",
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(f.store.created) != 2 {
		t.Fatalf("expected 2 in-app notifications, got %d", len(f.store.created))
	}
	if f.store.created[0].Category != inapp.CategoryError {
		t.Fatalf("expected error category, got %q", f.store.created[0].Category)
	}
	if len(f.messenger.chats)+len(f.messenger.emails) != 0 {
		t.Fatal("expected no supplier messages")
	}
}

func TestDeclinedResponseIsAWarning(t *testing.T) {
	f := newFixture(t)

	err := f.module.Handle(context.Background(), events.QuoteResponseReceived{
		BaseEvent:  events.NewBaseEvent(),
		QuoteID:    uuid.New(),
		TenantID:   f.tenantID,
		SupplierID: f.loser.ID,
		Supplier:   "Beta",
		Declined:   true,
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(f.store.created) == 0 || f.store.created[0].Category != inapp.CategoryWarning {
		t.Fatalf("expected warning notifications, got %+v", f.store.created)
	}
}

func TestApprovalLinkWithoutBaseURL(t *testing.T) {
	m := NewWithDeps(Deps{}, testConfig{}, logger.Discard())
	if link := m.approvalLink(uuid.New()); link != "" {
		t.Fatalf("expected empty link, got %q", link)
	}
}
