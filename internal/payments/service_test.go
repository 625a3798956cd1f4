package payments

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/voicelane/backend/internal/users"
)

// --- noopTx satisfies pgx.Tx for test use; only Commit/Rollback are called. ---

type noopTx struct{}

func (noopTx) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }
func (noopTx) Commit(context.Context) error          { return nil }
func (noopTx) Rollback(context.Context) error        { return nil }
func (noopTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (noopTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (noopTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (noopTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (noopTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (noopTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (noopTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (noopTx) Conn() *pgx.Conn { return nil }

// ---------------------------------------------------------------------------
// In-memory mocks. The store reproduces the PENDING guard of FinishTx so
// duplicate confirmations are what gets tested.
// ---------------------------------------------------------------------------

type mockPayStore struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*Payment
}

func newMockPayStore() *mockPayStore {
	return &mockPayStore{payments: make(map[uuid.UUID]*Payment)}
}

func (m *mockPayStore) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }

func (m *mockPayStore) Create(_ context.Context, userID uuid.UUID, amount decimal.Decimal, method Method) (*Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &Payment{ID: uuid.New(), UserID: userID, Amount: amount, Method: method, Status: StatusPending}
	m.payments[p.ID] = p
	cp := *p
	return &cp, nil
}

func (m *mockPayStore) GetByID(_ context.Context, id uuid.UUID) (*Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockPayStore) SetExternal(_ context.Context, id uuid.UUID, externalID, paymentURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return ErrNotFound
	}
	p.ExternalPaymentID = &externalID
	p.PaymentURL = &paymentURL
	return nil
}

func (m *mockPayStore) FinishTx(_ context.Context, _ pgx.Tx, id uuid.UUID, status Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok || p.Status != StatusPending {
		return false, nil
	}
	p.Status = status
	return true, nil
}

func (m *mockPayStore) ListForUser(_ context.Context, userID uuid.UUID, _ int) ([]*Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Payment
	for _, p := range m.payments {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---

type creditEntry struct {
	amount decimal.Decimal
	method *string
}

type mockPayLedger struct {
	mu      sync.Mutex
	credits []creditEntry
}

func (m *mockPayLedger) CreditTx(_ context.Context, _ pgx.Tx, _ uuid.UUID, amount decimal.Decimal, _ string, paymentMethod *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credits = append(m.credits, creditEntry{amount: amount, method: paymentMethod})
	return nil
}

// ---

type mockPayUsers struct {
	user *users.User
}

func (m *mockPayUsers) GetOrCreate(context.Context, int64, users.Profile) (*users.User, error) {
	cp := *m.user
	return &cp, nil
}

// ---

type fakeProvider struct {
	externalID string
	paymentURL string
	initErr    error
	status     Status
	statusErr  error
}

func (p *fakeProvider) Initiate(_ context.Context, _ uuid.UUID, _ decimal.Decimal) (string, string, error) {
	if p.initErr != nil {
		return "", "", p.initErr
	}
	return p.externalID, p.paymentURL, nil
}

func (p *fakeProvider) CheckStatus(context.Context, string) (Status, error) {
	if p.statusErr != nil {
		return "", p.statusErr
	}
	return p.status, nil
}

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func newPaymentFixture(provider *fakeProvider) (*mockPayStore, *mockPayLedger, Service) {
	store := newMockPayStore()
	lgr := &mockPayLedger{}
	us := &mockPayUsers{user: &users.User{ID: uuid.New(), TelegramID: 555, IsActive: true}}
	svc := NewService(store, lgr, us, map[Method]Provider{
		MethodYooMoney:      provider,
		MethodTelegramStars: provider,
	})
	return store, lgr, svc
}

// ---------------------------------------------------------------------------
// 1. Create
// ---------------------------------------------------------------------------

func TestCreate_InitiatesWithProvider(t *testing.T) {
	_, lgr, svc := newPaymentFixture(&fakeProvider{
		externalID: "ext-1", paymentURL: "https://pay.example/1",
	})

	p, err := svc.Create(context.Background(), 555, decimal.RequireFromString("100.00"), MethodYooMoney)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Status != StatusPending {
		t.Errorf("status: got %s, want pending", p.Status)
	}
	if p.ExternalPaymentID == nil || *p.ExternalPaymentID != "ext-1" {
		t.Error("external payment id not recorded")
	}
	if p.PaymentURL == nil || *p.PaymentURL != "https://pay.example/1" {
		t.Error("payment url not recorded")
	}
	if len(lgr.credits) != 0 {
		t.Error("creating a payment must not credit the balance")
	}
}

func TestCreate_ProviderFailureClosesPayment(t *testing.T) {
	store, lgr, svc := newPaymentFixture(&fakeProvider{initErr: errors.New("gateway down")})

	_, err := svc.Create(context.Background(), 555, decimal.RequireFromString("50.00"), MethodYooMoney)
	if !errors.Is(err, ErrProvider) {
		t.Fatalf("got %v, want ErrProvider", err)
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.payments) != 1 {
		t.Fatalf("payments: got %d, want 1", len(store.payments))
	}
	for _, p := range store.payments {
		if p.Status != StatusFailed {
			t.Errorf("status: got %s, want failed", p.Status)
		}
	}
	if len(lgr.credits) != 0 {
		t.Error("failed initiation must not credit the balance")
	}
}

func TestCreate_UnknownMethod(t *testing.T) {
	_, _, svc := newPaymentFixture(&fakeProvider{})
	if _, err := svc.Create(context.Background(), 555, decimal.RequireFromString("50.00"), "paypal"); err == nil {
		t.Fatal("unknown method should be rejected")
	}
}

func TestCreate_NonPositiveAmount(t *testing.T) {
	_, _, svc := newPaymentFixture(&fakeProvider{})
	if _, err := svc.Create(context.Background(), 555, decimal.Zero, MethodYooMoney); err == nil {
		t.Fatal("zero amount should be rejected")
	}
}

// ---------------------------------------------------------------------------
// 2. Confirm
// ---------------------------------------------------------------------------

func TestConfirm_SuccessCreditsExactlyOnce(t *testing.T) {
	_, lgr, svc := newPaymentFixture(&fakeProvider{externalID: "ext-1", paymentURL: "u"})
	p, err := svc.Create(context.Background(), 555, decimal.RequireFromString("100.00"), MethodTelegramStars)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := svc.Confirm(context.Background(), p.ID, StatusSuccess)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if got.Status != StatusSuccess {
		t.Fatalf("status: got %s, want success", got.Status)
	}
	if len(lgr.credits) != 1 {
		t.Fatalf("credits: got %d, want 1", len(lgr.credits))
	}
	if !lgr.credits[0].amount.Equal(decimal.RequireFromString("100.00")) {
		t.Errorf("credit amount: got %s, want 100.00", lgr.credits[0].amount)
	}
	if lgr.credits[0].method == nil || *lgr.credits[0].method != string(MethodTelegramStars) {
		t.Error("credit should record the payment method")
	}

	// Duplicate confirmation: absorbed by the PENDING guard.
	again, err := svc.Confirm(context.Background(), p.ID, StatusSuccess)
	if err != nil {
		t.Fatalf("duplicate Confirm: %v", err)
	}
	if again.Status != StatusSuccess {
		t.Errorf("status after duplicate: got %s, want success", again.Status)
	}
	if len(lgr.credits) != 1 {
		t.Fatalf("credits after duplicate confirm: got %d, want 1", len(lgr.credits))
	}
}

func TestConfirm_FailureDoesNotCredit(t *testing.T) {
	_, lgr, svc := newPaymentFixture(&fakeProvider{externalID: "ext-1", paymentURL: "u"})
	p, err := svc.Create(context.Background(), 555, decimal.RequireFromString("100.00"), MethodYooMoney)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := svc.Confirm(context.Background(), p.ID, StatusFailed)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if got.Status != StatusFailed {
		t.Fatalf("status: got %s, want failed", got.Status)
	}
	if len(lgr.credits) != 0 {
		t.Errorf("failed payment must not credit, got %v", lgr.credits)
	}

	// A late SUCCESS cannot flip a terminal payment.
	late, err := svc.Confirm(context.Background(), p.ID, StatusSuccess)
	if err != nil {
		t.Fatalf("late Confirm: %v", err)
	}
	if late.Status != StatusFailed {
		t.Errorf("status after late success: got %s, want failed", late.Status)
	}
	if len(lgr.credits) != 0 {
		t.Error("late success on terminal payment must not credit")
	}
}

func TestConfirm_PendingStatusIsNoop(t *testing.T) {
	_, lgr, svc := newPaymentFixture(&fakeProvider{externalID: "ext-1", paymentURL: "u"})
	p, err := svc.Create(context.Background(), 555, decimal.RequireFromString("100.00"), MethodYooMoney)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := svc.Confirm(context.Background(), p.ID, StatusPending)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if got.Status != StatusPending {
		t.Errorf("status: got %s, want pending", got.Status)
	}
	if len(lgr.credits) != 0 {
		t.Error("pending confirmation must not credit")
	}
}

func TestConfirm_UnknownPayment(t *testing.T) {
	_, _, svc := newPaymentFixture(&fakeProvider{})
	if _, err := svc.Confirm(context.Background(), uuid.New(), StatusSuccess); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}
