package providers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/voicelane/backend/internal/payments"
)

// StarsToRubRate converts the integer Telegram Stars unit to rubles.
var StarsToRubRate = decimal.RequireFromString("1.30")

// StarsAmount returns the number of stars covering amount, rounded up so
// the user never underpays by a fractional star.
func StarsAmount(amount decimal.Decimal) int64 {
	return amount.Div(StarsToRubRate).Ceil().IntPart()
}

// TelegramStars issues Stars invoices. Payment runs entirely inside the
// chat transport; confirmation arrives as a successful_payment webhook,
// so CheckStatus always reports pending.
type TelegramStars struct{}

func NewTelegramStars() *TelegramStars {
	return &TelegramStars{}
}

var _ payments.Provider = (*TelegramStars)(nil)

func (s *TelegramStars) Initiate(_ context.Context, paymentID uuid.UUID, amount decimal.Decimal) (string, string, error) {
	nonce := make([]byte, 4)
	if _, err := rand.Read(nonce); err != nil {
		return "", "", err
	}
	externalID := fmt.Sprintf("tg_stars_%s_%s", paymentID, hex.EncodeToString(nonce))
	// The bot frontend renders the invoice from the stars amount; there
	// is no external payment page.
	paymentURL := fmt.Sprintf("tg://invoice?payload=%s&stars=%d", externalID, StarsAmount(amount))
	return externalID, paymentURL, nil
}

func (s *TelegramStars) CheckStatus(_ context.Context, _ string) (payments.Status, error) {
	return payments.StatusPending, nil
}
