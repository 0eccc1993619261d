package repos

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/courseloop/courseloop-backend/internal/platform/logger"
	"github.com/courseloop/courseloop-backend/internal/types"
)

type CourseModuleRepo interface {
	Create(ctx context.Context, tx *gorm.DB, modules []*types.CourseModule) ([]*types.CourseModule, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.CourseModule, error)
	GetByCourseTitle(ctx context.Context, tx *gorm.DB, courseTitle string) ([]*types.CourseModule, error)
	// GetModuleTopics returns the topic list for one course/module pair,
	// decoded from the module's topics JSON column.
	GetModuleTopics(ctx context.Context, tx *gorm.DB, courseTitle, moduleTitle string) ([]string, error)
}

type courseModuleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCourseModuleRepo(db *gorm.DB, baseLog *logger.Logger) CourseModuleRepo {
	return &courseModuleRepo{db: db, log: baseLog.With("repo", "CourseModuleRepo")}
}

func (r *courseModuleRepo) Create(ctx context.Context, tx *gorm.DB, modules []*types.CourseModule) ([]*types.CourseModule, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(modules) == 0 {
		return []*types.CourseModule{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&modules).Error; err != nil {
		return nil, err
	}
	return modules, nil
}

func (r *courseModuleRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.CourseModule, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.CourseModule
	if len(ids) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *courseModuleRepo) GetByCourseTitle(ctx context.Context, tx *gorm.DB, courseTitle string) ([]*types.CourseModule, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.CourseModule
	if err := transaction.WithContext(ctx).
		Joins("JOIN course ON course.id = course_module.course_id").
		Where("course.title = ? AND course.deleted_at IS NULL", courseTitle).
		Order("course_module.index ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *courseModuleRepo) GetModuleTopics(ctx context.Context, tx *gorm.DB, courseTitle, moduleTitle string) ([]string, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var module types.CourseModule
	err := transaction.WithContext(ctx).
		Joins("JOIN course ON course.id = course_module.course_id").
		Where("course.title = ? AND course_module.title = ? AND course.deleted_at IS NULL", courseTitle, moduleTitle).
		First(&module).Error
	if err != nil {
		return nil, err
	}
	if len(module.Topics) == 0 {
		return []string{}, nil
	}
	var topics []string
	if err := json.Unmarshal(module.Topics, &topics); err != nil {
		return nil, fmt.Errorf("decode topics for %s/%s: %w", courseTitle, moduleTitle, err)
	}
	return topics, nil
}
