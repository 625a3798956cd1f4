package providers

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/voicelane/backend/internal/payments"
)

func TestStarsAmount_RoundsUp(t *testing.T) {
	tests := []struct {
		amount string
		want   int64
	}{
		{"1.30", 1},
		{"1.31", 2},
		{"13.00", 10},
		{"100.00", 77}, // 100 / 1.30 = 76.92…
		{"0.01", 1},
	}
	for _, tt := range tests {
		if got := StarsAmount(decimal.RequireFromString(tt.amount)); got != tt.want {
			t.Errorf("StarsAmount(%s): got %d, want %d", tt.amount, got, tt.want)
		}
	}
}

func TestTelegramStars_Initiate(t *testing.T) {
	s := NewTelegramStars()
	id := uuid.New()

	externalID, paymentURL, err := s.Initiate(context.Background(), id, decimal.RequireFromString("130.00"))
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if !strings.HasPrefix(externalID, "tg_stars_"+id.String()) {
		t.Errorf("external id %q should embed the payment id", externalID)
	}
	if !strings.Contains(paymentURL, "stars=100") {
		t.Errorf("payment url %q should carry the stars amount", paymentURL)
	}

	// External ids must be unique even for the same payment.
	other, _, err := s.Initiate(context.Background(), id, decimal.RequireFromString("130.00"))
	if err != nil {
		t.Fatalf("second Initiate: %v", err)
	}
	if other == externalID {
		t.Error("external ids should not repeat")
	}
}

func TestTelegramStars_CheckStatusAlwaysPending(t *testing.T) {
	s := NewTelegramStars()
	status, err := s.CheckStatus(context.Background(), "tg_stars_x")
	if err != nil {
		t.Fatalf("CheckStatus: %v", err)
	}
	if status != payments.StatusPending {
		t.Errorf("got %s, want pending; confirmation comes via webhook only", status)
	}
}
