package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/bidworks/internal/model"
)

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `
	id,
	customer_id,
	category,
	description,
	estimate_amount,
	timeline_days,
	status,
	lat,
	lon,
	accepted_bid_id,
	version,
	created_at
`

func (r *JobRepository) CreateJob(ctx context.Context, job model.Job) (*model.Job, error) {
	var saved model.Job
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO jobs (
			customer_id,
			category,
			description,
			estimate_amount,
			timeline_days,
			status,
			lat,
			lon
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+jobColumns,
		job.CustomerID,
		job.Category,
		job.Description,
		job.EstimateAmount,
		job.TimelineDays,
		model.JobStatusOpen,
		job.Lat,
		job.Lon,
	).Scan(&saved).Error
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (r *JobRepository) GetJob(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	var job model.Job
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+jobColumns+`
		FROM jobs
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&job).Error
	if err != nil {
		return nil, err
	}
	if job.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &job, nil
}

// UpdateOpenJob applies owner edits. The status guard keeps edits out of
// decided jobs; zero rows means the job is gone or no longer open.
func (r *JobRepository) UpdateOpenJob(ctx context.Context, job model.Job) (bool, error) {
	result := r.db.WithContext(ctx).Exec(`
		UPDATE jobs
		SET
			category = ?,
			description = ?,
			estimate_amount = ?,
			timeline_days = ?,
			lat = ?,
			lon = ?,
			version = version + 1
		WHERE id = ? AND status = ?
	`,
		job.Category,
		job.Description,
		job.EstimateAmount,
		job.TimelineDays,
		job.Lat,
		job.Lon,
		job.ID,
		model.JobStatusOpen,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *JobRepository) CancelOpenJob(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Exec(`
		UPDATE jobs
		SET status = ?, version = version + 1
		WHERE id = ? AND status = ?
	`, model.JobStatusCancelled, id, model.JobStatusOpen)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListOpenJobs returns one keyset page of open jobs created at or before
// visibleBefore, newest first. A zero cursor starts from the newest job.
func (r *JobRepository) ListOpenJobs(
	ctx context.Context,
	visibleBefore time.Time,
	cursor model.JobCursor,
	limit int,
) ([]model.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE status = ? AND created_at <= ?
	`
	args := []interface{}{model.JobStatusOpen, visibleBefore}
	if !cursor.IsZero() {
		query += ` AND (created_at, id) < (?, ?)`
		args = append(args, cursor.CreatedAt, cursor.ID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	var jobs []model.Job
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}
