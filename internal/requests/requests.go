// Package requests owns ServiceRequest records, their forward-only state
// machine, and the submit path that gates them on the user's balance.
package requests

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/voicelane/backend/internal/catalog"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var (
	// ErrNotFound is returned when no request matches the id.
	ErrNotFound = errors.New("request not found")
	// ErrInvalidCategory is returned for a pair outside the catalog.
	ErrInvalidCategory = errors.New("invalid service category")
	// ErrInvalidTransition is returned when a status change violates
	// PENDING -> PROCESSING -> {COMPLETED|FAILED}.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrUserDeactivated is returned when a deactivated user submits.
	ErrUserDeactivated = errors.New("user is deactivated")
)

// DeniedError reports that neither funds nor the free allowance are
// available; Wait is the time until the free slot opens again.
type DeniedError struct {
	Wait time.Duration
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("service denied: free usage available in %s", e.Wait.Round(time.Minute))
}

// Request is one unit of work submitted by a user.
// Exactly one of {IsFree, Cost > 0} holds at creation.
type Request struct {
	ID                    uuid.UUID
	UserID                uuid.UUID
	Category              catalog.Category
	Subcategory           catalog.Subcategory
	VoiceFileID           string
	VoiceFileUniqueID     *string
	VoiceDuration         int
	VoiceFileSize         *int64
	ProcessedText         *string
	ResponseText          *string
	Status                Status
	Cost                  decimal.Decimal
	IsFree                bool
	ProcessingStartedAt   *time.Time
	ProcessingCompletedAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}
