package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/ptw_backend/config"
	"bitbucket.org/mmdatafocus/ptw_backend/utils"
	"gorm.io/gorm"
)

// Change actions recorded in the outbox.
const (
	ChangeActionCreate = "create"
	ChangeActionUpdate = "update"
	ChangeActionDelete = "delete"
	// ChangeActionUpload covers an upsert-mode spreadsheet ingest.
	ChangeActionUpload = "upload"
	// ChangeActionReload covers a replace-mode ingest; consumers should
	// re-fetch instead of applying row deltas.
	ChangeActionReload = "reload"
)

// Publish lifecycle of an outbox row. Rows are written inside the same
// transaction as the permit mutation; the changefeed dispatcher claims and
// publishes them afterwards.
const (
	ChangePublishPending    = "PENDING"
	ChangePublishProcessing = "PROCESSING"
	ChangePublishFailed     = "FAILED"
	ChangePublishSent       = "SENT"
	ChangePublishDead       = "DEAD"
)

type PermitChangeRecord struct {
	ID            int        `gorm:"primary_key" json:"id"`
	PermitId      int        `gorm:"index" json:"permit_id"`
	PermitNumber  string     `gorm:"size:100" json:"permit_number"`
	Action        string     `gorm:"size:20;not null" json:"action"`
	Payload       []byte     `gorm:"type:json" json:"payload"`
	OccurredAt    time.Time  `json:"occurred_at"`
	CorrelationId string     `gorm:"size:64" json:"correlation_id"`
	PublishStatus string     `gorm:"size:20;not null;default:PENDING;index" json:"publish_status"`
	Attempts      int        `gorm:"default:0" json:"attempts"`
	LastError     *string    `gorm:"size:500" json:"last_error"`
	NextAttemptAt *time.Time `gorm:"index" json:"next_attempt_at"`
	LockedAt      *time.Time `json:"locked_at"`
	LockedBy      *string    `gorm:"size:100" json:"locked_by"`
	PublishedAt   *time.Time `json:"published_at"`
	MessageId     *string    `gorm:"size:100" json:"message_id"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// AppendPermitChange writes one outbox row inside the caller's transaction so
// the change record commits or rolls back with the permit itself.
func AppendPermitChange(tx *gorm.DB, ctx context.Context, action string, permit *Permit) error {
	payload, err := json.Marshal(permit)
	if err != nil {
		return err
	}
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	record := PermitChangeRecord{
		PermitId:      permit.ID,
		PermitNumber:  permit.Number,
		Action:        action,
		Payload:       payload,
		OccurredAt:    time.Now().UTC(),
		CorrelationId: correlationId,
		PublishStatus: ChangePublishPending,
	}
	return tx.Create(&record).Error
}

// AppendBulkChange records a whole-dataset change (spreadsheet ingest). The
// payload carries only the affected row count; consumers refresh on receipt.
func AppendBulkChange(tx *gorm.DB, ctx context.Context, action string, affected int) error {
	payload, err := json.Marshal(map[string]int{"affected": affected})
	if err != nil {
		return err
	}
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	record := PermitChangeRecord{
		Action:        action,
		Payload:       payload,
		OccurredAt:    time.Now().UTC(),
		CorrelationId: correlationId,
		PublishStatus: ChangePublishPending,
	}
	return tx.Create(&record).Error
}

func (r *PermitChangeRecord) ConvertToChangeMessage() config.ChangeMessage {
	return config.ChangeMessage{
		ID:            r.ID,
		PermitID:      r.PermitId,
		PermitNumber:  r.PermitNumber,
		Action:        r.Action,
		OccurredAt:    r.OccurredAt,
		Payload:       r.Payload,
		CorrelationId: r.CorrelationId,
	}
}
