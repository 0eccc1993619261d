package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/courseloop/courseloop-backend/internal/platform/logger"
	"github.com/courseloop/courseloop-backend/internal/types"
)

// ErrDuplicateRun indicates a unique-constraint collision when creating a run.
var ErrDuplicateRun = errors.New("duplicate bank generation run")

type BankGenerationRunRepo interface {
	Create(ctx context.Context, tx *gorm.DB, run *types.BankGenerationRun) (*types.BankGenerationRun, error)
	GetLatestByKey(ctx context.Context, tx *gorm.DB, course, module, language string) (*types.BankGenerationRun, error)
	MarkSucceeded(ctx context.Context, tx *gorm.DB, id uuid.UUID, questionsTotal, duplicatesSkipped int, blobPath string) error
	MarkFailed(ctx context.Context, tx *gorm.DB, id uuid.UUID, runErr string) error
}

type bankGenerationRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBankGenerationRunRepo(db *gorm.DB, baseLog *logger.Logger) BankGenerationRunRepo {
	return &bankGenerationRunRepo{db: db, log: baseLog.With("repo", "BankGenerationRunRepo")}
}

func (r *bankGenerationRunRepo) Create(ctx context.Context, tx *gorm.DB, run *types.BankGenerationRun) (*types.BankGenerationRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(run).Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateRun
		}
		return nil, err
	}
	return run, nil
}

func (r *bankGenerationRunRepo) GetLatestByKey(ctx context.Context, tx *gorm.DB, course, module, language string) (*types.BankGenerationRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var run types.BankGenerationRun
	err := transaction.WithContext(ctx).
		Where("course = ? AND module = ? AND language = ?", course, module, language).
		Order("started_at DESC").
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *bankGenerationRunRepo) MarkSucceeded(ctx context.Context, tx *gorm.DB, id uuid.UUID, questionsTotal, duplicatesSkipped int, blobPath string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now().UTC()
	return transaction.WithContext(ctx).
		Model(&types.BankGenerationRun{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":             types.BankRunStatusSucceeded,
			"questions_total":    questionsTotal,
			"duplicates_skipped": duplicatesSkipped,
			"blob_path":          blobPath,
			"finished_at":        &now,
			"updated_at":         now,
		}).Error
}

func (r *bankGenerationRunRepo) MarkFailed(ctx context.Context, tx *gorm.DB, id uuid.UUID, runErr string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now().UTC()
	return transaction.WithContext(ctx).
		Model(&types.BankGenerationRun{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      types.BankRunStatusFailed,
			"error":       runErr,
			"finished_at": &now,
			"updated_at":  now,
		}).Error
}
