package lifecycle

import (
	"context"
	"errors"
	"time"

	lifecycledomain "github.com/botio91514/gym-backend/internal/domain/lifecycle"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) LastSuccess(ctx context.Context, job string) (time.Time, bool, error) {
	var run lifecycledomain.SchedulerRun
	if err := r.db.WithContext(ctx).Where("job = ?", job).First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return run.LastSuccessAt, true, nil
}

// RecordSuccess upserts the run row. An older timestamp never replaces a newer one.
func (r *PostgresRepository) RecordSuccess(ctx context.Context, job string, at time.Time) error {
	run := lifecycledomain.SchedulerRun{Job: job, LastSuccessAt: at.UTC()}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "job"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_success_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "scheduler_runs.last_success_at < excluded.last_success_at"},
		}},
	}).Create(&run).Error
}
