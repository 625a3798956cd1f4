package users

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

type mockStore struct {
	user        *User
	deactivated []uuid.UUID
}

func (m *mockStore) GetByTelegramID(_ context.Context, telegramID int64) (*User, error) {
	if m.user == nil || m.user.TelegramID != telegramID {
		return nil, ErrNotFound
	}
	cp := *m.user
	return &cp, nil
}

func (m *mockStore) Deactivate(_ context.Context, id uuid.UUID) error {
	m.deactivated = append(m.deactivated, id)
	return nil
}

func TestDeactivateHandler(t *testing.T) {
	store := &mockStore{user: &User{ID: uuid.New(), TelegramID: 555, IsActive: true}}
	h := NewHandler(store, nil)

	do := func(telegramID string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/users/"+telegramID+"/deactivate", nil)
		req.SetPathValue("telegram_id", telegramID)
		rec := httptest.NewRecorder()
		h.Deactivate(rec, req)
		return rec.Code
	}

	if code := do("555"); code != http.StatusNoContent {
		t.Fatalf("status: got %d, want 204", code)
	}
	if len(store.deactivated) != 1 || store.deactivated[0] != store.user.ID {
		t.Errorf("deactivated: got %v, want [%s]", store.deactivated, store.user.ID)
	}

	if code := do("999"); code != http.StatusNotFound {
		t.Errorf("unknown user: got %d, want 404", code)
	}
	if code := do("-1"); code != http.StatusBadRequest {
		t.Errorf("invalid telegram id: got %d, want 400", code)
	}
	if len(store.deactivated) != 1 {
		t.Errorf("failed lookups must not deactivate, got %v", store.deactivated)
	}
}
