package repository

import (
	"context"
	"errors"

	"forumsync/internal/model"

	"gorm.io/gorm"
)

// ErrDuplicate is returned when a unique (target, reporter) row already exists.
var ErrDuplicate = errors.New("duplicate record")

type ReportRepository interface {
	Create(ctx context.Context, report *model.Report) error
	Exists(ctx context.Context, targetType string, targetID int64, reporter string) (bool, error)
}

type reportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

// Create stores a report. A second report by the same reporter on the same
// target fails with ErrDuplicate.
func (r *reportRepository) Create(ctx context.Context, report *model.Report) error {
	err := r.db.WithContext(ctx).Create(report).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func (r *reportRepository) Exists(ctx context.Context, targetType string, targetID int64, reporter string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Report{}).
		Where("target_type = ? AND target_id = ? AND reporter = ?", targetType, targetID, reporter).
		Count(&count).Error
	return count > 0, err
}
