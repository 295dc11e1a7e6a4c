package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-exam-grader/internal/models"
)

// ErrStaleSubmission indicates a conditional update matched no row because the submission
// left the expected state, usually because another worker claimed it.
var ErrStaleSubmission = errors.New("submission state changed")

// GradeCommit carries the fields written when a grading run completes.
type GradeCommit struct {
	TotalScore int
	MaxScore   int
	Details    models.GradeDetails
}

// ExamSubmissionRepository persists exam submissions and their grading state transitions.
type ExamSubmissionRepository interface {
	Create(ctx context.Context, submission *models.ExamSubmission) error
	GetByID(ctx context.Context, id uint) (models.ExamSubmission, error)
	// Claim moves a submission to processing if it is ungraded, failed, or processing but last
	// touched before staleBefore. The returned flag reports whether this caller won the claim.
	Claim(ctx context.Context, id uint, staleBefore time.Time) (models.ExamSubmission, bool, error)
	Commit(ctx context.Context, id uint, attempt int, commit GradeCommit) error
	MarkFailed(ctx context.Context, id uint, attempt int, reason string) error
	ListRegradeCandidates(ctx context.Context, limit int) ([]models.ExamSubmission, error)
	SaveOverride(ctx context.Context, id uint, details models.GradeDetails, override *models.GradeOverride) error
}

// NewExamSubmissionRepository constructs an exam submission repository.
func NewExamSubmissionRepository(db *gorm.DB) ExamSubmissionRepository {
	return &examSubmissionRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

type examSubmissionRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func (r *examSubmissionRepository) Create(ctx context.Context, submission *models.ExamSubmission) error {
	if submission.GradingStatus == "" {
		submission.GradingStatus = models.GradingStatusUngraded
	}
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = r.now()
	}
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(submission).Error
}

func (r *examSubmissionRepository) GetByID(ctx context.Context, id uint) (models.ExamSubmission, error) {
	var submission models.ExamSubmission
	err := r.db.WithContext(ctx).
		Preload("Exam").
		Preload("Student").
		First(&submission, id).Error
	if err != nil {
		return models.ExamSubmission{}, err
	}
	return submission, nil
}

func (r *examSubmissionRepository) Claim(ctx context.Context, id uint, staleBefore time.Time) (models.ExamSubmission, bool, error) {
	now := r.now()
	result := r.db.WithContext(ctx).
		Model(&models.ExamSubmission{}).
		Where("id = ?", id).
		Where("grading_status IN ? OR (grading_status = ? AND updated_at < ?)",
			statusValues(models.GradingStatusUngraded, models.GradingStatusFailed),
			string(models.GradingStatusProcessing),
			staleBefore.UTC(),
		).
		Updates(map[string]interface{}{
			"grading_status":   string(models.GradingStatusProcessing),
			"grading_attempts": gorm.Expr("grading_attempts + 1"),
			"updated_at":       now,
		})
	if result.Error != nil {
		return models.ExamSubmission{}, false, result.Error
	}

	submission, err := r.GetByID(ctx, id)
	if err != nil {
		return models.ExamSubmission{}, false, err
	}
	return submission, result.RowsAffected == 1, nil
}

func (r *examSubmissionRepository) Commit(ctx context.Context, id uint, attempt int, commit GradeCommit) error {
	now := r.now()
	result := r.db.WithContext(ctx).
		Model(&models.ExamSubmission{}).
		Where("id = ? AND grading_status = ? AND grading_attempts = ?", id, string(models.GradingStatusProcessing), attempt).
		Updates(map[string]interface{}{
			"grading_status": string(models.GradingStatusGraded),
			"total_score":    commit.TotalScore,
			"max_score":      commit.MaxScore,
			"grade_details":  datatypes.NewJSONType(commit.Details),
			"grading_error":  "",
			"graded_at":      now,
			"updated_at":     now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleSubmission
	}
	return nil
}

func (r *examSubmissionRepository) MarkFailed(ctx context.Context, id uint, attempt int, reason string) error {
	result := r.db.WithContext(ctx).
		Model(&models.ExamSubmission{}).
		Where("id = ? AND grading_status = ? AND grading_attempts = ?", id, string(models.GradingStatusProcessing), attempt).
		Updates(map[string]interface{}{
			"grading_status": string(models.GradingStatusFailed),
			"grading_error":  reason,
			"updated_at":     r.now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleSubmission
	}
	return nil
}

func (r *examSubmissionRepository) ListRegradeCandidates(ctx context.Context, limit int) ([]models.ExamSubmission, error) {
	query := r.db.WithContext(ctx).
		Where("grading_status IN ?", statusValues(models.RegradeStatuses...)).
		Order("submitted_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var submissions []models.ExamSubmission
	if err := query.Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *examSubmissionRepository) SaveOverride(ctx context.Context, id uint, details models.GradeDetails, override *models.GradeOverride) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.ExamSubmission{}).
			Where("id = ? AND grading_status = ?", id, string(models.GradingStatusGraded)).
			Updates(map[string]interface{}{
				"grade_details": datatypes.NewJSONType(details),
				"total_score":   details.Total(),
				"updated_at":    r.now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrStaleSubmission
		}
		return tx.Create(override).Error
	})
}

func statusValues(statuses ...models.GradingStatus) []string {
	values := make([]string, 0, len(statuses))
	for _, status := range statuses {
		values = append(values, string(status))
	}
	return values
}
