package domain

import (
	"encoding/json"
	"time"
)

type AuditAction string

const (
	AuditApplicationCreated AuditAction = "application_created"
	AuditProfileResubmitted AuditAction = "profile_resubmitted"
	AuditDocumentUploaded   AuditAction = "document_uploaded"
	AuditDocumentVerified   AuditAction = "document_verified"
	AuditStageTransition    AuditAction = "stage_transition"
	AuditRiskScored         AuditAction = "risk_scored"
	AuditDecisionRecorded   AuditAction = "decision_recorded"
	AuditExplanation        AuditAction = "explanation_generated"
	AuditDecisionOverridden AuditAction = "decision_overridden"
	AuditApplicationDeleted AuditAction = "application_deleted"
)

type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailed  AuditStatus = "failed"
	AuditStatusPending AuditStatus = "pending"
)

const ActorSystem = "system"

// AuditLogEntry is append-only: stores expose no update or delete for it.
type AuditLogEntry struct {
	ID            string          `json:"id"`
	ApplicationID string          `json:"application_id"`
	Actor         string          `json:"actor"`
	Action        AuditAction     `json:"action"`
	Stage         Stage           `json:"stage,omitempty"`
	Input         json.RawMessage `json:"input,omitempty"`
	Output        json.RawMessage `json:"output,omitempty"`
	Status        AuditStatus     `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}
