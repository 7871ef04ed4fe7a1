package usecase

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/loan-decision-engine/internal/core/domain"
)

func newAuditEntry(
	applicationID, actor string,
	action domain.AuditAction,
	stage domain.Stage,
	status domain.AuditStatus,
	input, output any,
) domain.AuditLogEntry {
	if actor == "" {
		actor = domain.ActorSystem
	}
	return domain.AuditLogEntry{
		ID:            uuid.NewString(),
		ApplicationID: applicationID,
		Actor:         actor,
		Action:        action,
		Stage:         stage,
		Input:         snapshot(input),
		Output:        snapshot(output),
		Status:        status,
		CreatedAt:     time.Now().UTC(),
	}
}

// snapshot freezes a value as JSON at the moment the entry is built.
func snapshot(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}

func stageTransitionEntry(applicationID, actor string, from, to domain.Stage) domain.AuditLogEntry {
	return newAuditEntry(
		applicationID,
		actor,
		domain.AuditStageTransition,
		to,
		domain.AuditStatusSuccess,
		map[string]domain.Stage{"from": from},
		map[string]domain.Stage{"to": to},
	)
}
