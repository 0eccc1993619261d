package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BankGenerationRun is one offline question-bank build for a single
// course/module/language triple. A new row is created when the build
// starts and updated with counts when it finishes.
type BankGenerationRun struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Course         string         `gorm:"column:course;not null;index:idx_bank_run_key" json:"course"`
	Module         string         `gorm:"column:module;not null;index:idx_bank_run_key" json:"module"`
	Language       string         `gorm:"column:language;not null;index:idx_bank_run_key" json:"language"`
	Status         string         `gorm:"column:status;not null;default:'running'" json:"status"`
	QuestionsTotal int            `gorm:"column:questions_total;not null;default:0" json:"questions_total"`
	DuplicatesSkipped int         `gorm:"column:duplicates_skipped;not null;default:0" json:"duplicates_skipped"`
	BlobPath       string         `gorm:"column:blob_path" json:"blob_path"`
	Error          string         `gorm:"column:error" json:"error,omitempty"`
	Metadata       datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata"`
	StartedAt      time.Time      `gorm:"not null;default:now()" json:"started_at"`
	FinishedAt     *time.Time     `gorm:"column:finished_at" json:"finished_at,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (BankGenerationRun) TableName() string { return "bank_generation_run" }

const (
	BankRunStatusRunning   = "running"
	BankRunStatusSucceeded = "succeeded"
	BankRunStatusFailed    = "failed"
)
