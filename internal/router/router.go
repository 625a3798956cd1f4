// Package router wires the internal API surface consumed by the bot frontend.
package router

import (
	"net/http"

	"github.com/voicelane/backend/internal/ledger"
	"github.com/voicelane/backend/internal/payments"
	"github.com/voicelane/backend/internal/requests"
	"github.com/voicelane/backend/internal/users"
)

// New returns an http.Handler serving the API under /api/v1.
func New(requestsHandler *requests.Handler, paymentsHandler *payments.Handler, ledgerHandler *ledger.Handler, usersHandler *users.Handler) http.Handler {
	mux := http.NewServeMux()
	base := "/api/v1"

	mux.HandleFunc("POST "+base+"/requests", requestsHandler.Submit)
	mux.HandleFunc("GET "+base+"/requests/{id}", requestsHandler.Get)
	mux.HandleFunc("GET "+base+"/users/{telegram_id}/requests", requestsHandler.ListForUser)
	mux.HandleFunc("GET "+base+"/users/{telegram_id}/balance", ledgerHandler.GetBalance)
	mux.HandleFunc("GET "+base+"/users/{telegram_id}/payments", paymentsHandler.ListForUser)
	mux.HandleFunc("POST "+base+"/users/{telegram_id}/deactivate", usersHandler.Deactivate)

	mux.HandleFunc("POST "+base+"/payments", paymentsHandler.Create)
	mux.HandleFunc("GET "+base+"/payments/{id}", paymentsHandler.Get)
	mux.HandleFunc("POST "+base+"/payments/{id}/confirm", paymentsHandler.Confirm)

	return mux
}
