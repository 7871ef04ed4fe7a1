package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type DecisionMaker string

const (
	DecisionMakerSystem DecisionMaker = "system"
	DecisionMakerAdmin  DecisionMaker = "admin"
)

type DecisionRecord struct {
	Decision         Decision      `json:"decision"`
	Maker            DecisionMaker `json:"decision_maker"`
	Actor            string        `json:"actor"`
	PreviousDecision Decision      `json:"previous_decision,omitempty"`
	OverrideReason   string        `json:"override_reason,omitempty"`
	DecidedAt        time.Time     `json:"decided_at"`
}

// OverrideDecision is the vocabulary accepted by the override API.
type OverrideDecision string

const (
	OverrideApproved    OverrideDecision = "approved"
	OverrideRejected    OverrideDecision = "rejected"
	OverrideUnderReview OverrideDecision = "under_review"
)

// Decision maps the override vocabulary onto the stored decision enum.
func (o OverrideDecision) Decision() (Decision, bool) {
	switch o {
	case OverrideApproved:
		return DecisionApproved, true
	case OverrideRejected:
		return DecisionRejected, true
	case OverrideUnderReview:
		return DecisionPending, true
	default:
		return "", false
	}
}

type OverrideRequest struct {
	ApplicationID string           `json:"application_id"`
	NewDecision   OverrideDecision `json:"new_decision"`
	Reason        string           `json:"reason"`
	Actor         string           `json:"-"`
	// ExpectedVersion, when non-zero, pins the application version the
	// operator looked at; a newer version fails the override with ErrConflict.
	ExpectedVersion int `json:"expected_version,omitempty"`
}

// Validate runs before any read or write of the application.
func (r OverrideRequest) Validate() error {
	if strings.TrimSpace(r.ApplicationID) == "" {
		return WrapError(ErrIntegrityViolation, "validate override", errors.New("application_id is required"))
	}
	if _, ok := r.NewDecision.Decision(); !ok {
		return WrapError(ErrIntegrityViolation, "validate override", fmt.Errorf("unknown decision value %q", r.NewDecision))
	}
	if strings.TrimSpace(r.Reason) == "" {
		return WrapError(ErrIntegrityViolation, "validate override", errors.New("reason is required"))
	}
	if strings.TrimSpace(r.Actor) == "" {
		return WrapError(ErrIntegrityViolation, "validate override", errors.New("actor is required"))
	}
	return nil
}
