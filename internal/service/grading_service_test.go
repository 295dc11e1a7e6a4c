package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-exam-grader/internal/grading"
	"github.com/noah-isme/gema-exam-grader/internal/models"
)

type brokenScorer struct{}

func (brokenScorer) Score(_ context.Context, item grading.Item, _ interface{}) (grading.Result, error) {
	return grading.Result{MaxScore: item.Question.Marks}, errors.New("rubric service unreachable")
}

func TestGradingServiceGradesSubmission(t *testing.T) {
	fx := newGradingFixture(t)
	student, exam := seedExam(t, fx.db)
	submission := seedSubmission(t, fx.submissions, exam, student, fullAnswers(exam))

	outcome, err := fx.service.GradeSubmission(context.Background(), submission.ID)
	require.NoError(t, err)
	require.Equal(t, string(models.GradingStatusGraded), outcome.Status)
	require.Equal(t, 23, outcome.TotalScore)
	require.Equal(t, 30, outcome.MaxScore)
	require.Equal(t, 1, outcome.Attempt)
	require.NotNil(t, outcome.GradedAt)

	stored, err := fx.submissions.GetByID(context.Background(), submission.ID)
	require.NoError(t, err)
	require.Equal(t, models.GradingStatusGraded, stored.GradingStatus)
	require.NotNil(t, stored.TotalScore)
	require.NotNil(t, stored.MaxScore)
	require.Equal(t, 23, *stored.TotalScore)
	require.Equal(t, 30, *stored.MaxScore)
	require.NotNil(t, stored.GradedAt)
	require.Empty(t, stored.GradingError)

	details := stored.Details()
	require.Len(t, details, 3)
	require.Equal(t, *stored.TotalScore, details.Total())
	require.Equal(t, grading.FeedbackCorrect, details[exam.Questions[0].Key()].Feedback)
	require.Equal(t, 5, details[exam.Questions[1].Key()].Score)
	require.Equal(t, 8, details[exam.Questions[2].Key()].Score)

	require.Len(t, fx.notifier.notifications, 1)
	notification := fx.notifier.notifications[0]
	require.Equal(t, student.Email, notification.StudentEmail)
	require.Equal(t, exam.Title, notification.ExamTitle)
	require.Equal(t, 23, notification.TotalScore)
	require.NoError(t, ValidateGradeNotification(notification))
}

func TestGradingServiceIsolatesQuestionFailure(t *testing.T) {
	fx := newGradingFixture(t, grading.WithStrategy(models.QuestionTypeShortAnswer, brokenScorer{}))
	student, exam := seedExam(t, fx.db)
	submission := seedSubmission(t, fx.submissions, exam, student, fullAnswers(exam))

	outcome, err := fx.service.GradeSubmission(context.Background(), submission.ID)
	require.NoError(t, err)
	require.Equal(t, 18, outcome.TotalScore)
	require.Equal(t, 1, outcome.Failures)

	stored, err := fx.submissions.GetByID(context.Background(), submission.ID)
	require.NoError(t, err)
	require.Equal(t, models.GradingStatusGraded, stored.GradingStatus)
	broken := stored.Details()[exam.Questions[1].Key()]
	require.Zero(t, broken.Score)
	require.Equal(t, 10, broken.MaxScore)
	require.Contains(t, broken.Feedback, "rubric service unreachable")
}

func TestGradingServiceMissingAnswersScoreZero(t *testing.T) {
	fx := newGradingFixture(t)
	student, exam := seedExam(t, fx.db)
	submission := seedSubmission(t, fx.submissions, exam, student, nil)

	outcome, err := fx.service.GradeSubmission(context.Background(), submission.ID)
	require.NoError(t, err)
	require.Zero(t, outcome.TotalScore)
	require.Equal(t, 30, outcome.MaxScore)

	stored, err := fx.submissions.GetByID(context.Background(), submission.ID)
	require.NoError(t, err)
	for _, detail := range stored.Details() {
		require.Equal(t, grading.FeedbackNoAnswer, detail.Feedback)
	}
}

func TestGradingServiceRejectsGradedSubmission(t *testing.T) {
	fx := newGradingFixture(t)
	student, exam := seedExam(t, fx.db)
	submission := seedSubmission(t, fx.submissions, exam, student, fullAnswers(exam))

	_, err := fx.service.GradeSubmission(context.Background(), submission.ID)
	require.NoError(t, err)

	outcome, err := fx.service.GradeSubmission(context.Background(), submission.ID)
	require.ErrorIs(t, err, ErrSubmissionAlreadyGraded)
	require.ErrorIs(t, err, ErrGradingState)
	require.Equal(t, string(models.GradingStatusGraded), outcome.Status)

	stored, err := fx.submissions.GetByID(context.Background(), submission.ID)
	require.NoError(t, err)
	require.Equal(t, 1, stored.GradingAttempts)
	require.Len(t, fx.notifier.notifications, 1)
}

func TestGradingServiceRespectsInFlightClaim(t *testing.T) {
	fx := newGradingFixture(t)
	student, exam := seedExam(t, fx.db)
	submission := seedSubmission(t, fx.submissions, exam, student, fullAnswers(exam))

	require.NoError(t, fx.db.Model(&models.ExamSubmission{}).
		Where("id = ?", submission.ID).
		UpdateColumns(map[string]interface{}{
			"grading_status": string(models.GradingStatusProcessing),
			"updated_at":     time.Now().UTC(),
		}).Error)

	_, err := fx.service.GradeSubmission(context.Background(), submission.ID)
	require.ErrorIs(t, err, ErrGradingInProgress)

	require.NoError(t, fx.db.Model(&models.ExamSubmission{}).
		Where("id = ?", submission.ID).
		UpdateColumn("updated_at", time.Now().UTC().Add(-time.Hour)).Error)

	outcome, err := fx.service.GradeSubmission(context.Background(), submission.ID)
	require.NoError(t, err)
	require.Equal(t, string(models.GradingStatusGraded), outcome.Status)
}

func TestGradingServiceFailsWithoutQuestions(t *testing.T) {
	fx := newGradingFixture(t)
	student, _ := seedExam(t, fx.db)
	empty := models.Exam{Title: "Empty", Language: "python"}
	require.NoError(t, fx.db.Create(&empty).Error)
	submission := seedSubmission(t, fx.submissions, empty, student, map[string]interface{}{"1": "x"})

	outcome, err := fx.service.GradeSubmission(context.Background(), submission.ID)
	require.ErrorIs(t, err, ErrGradingFailed)
	require.Equal(t, string(models.GradingStatusFailed), outcome.Status)

	stored, err := fx.submissions.GetByID(context.Background(), submission.ID)
	require.NoError(t, err)
	require.Equal(t, models.GradingStatusFailed, stored.GradingStatus)
	require.Equal(t, "exam has no questions", stored.GradingError)
	require.Nil(t, stored.TotalScore)
	require.Empty(t, stored.Details())
	require.Empty(t, fx.notifier.notifications)
}

func TestGradingServiceFailsOnAbortiveCodeReview(t *testing.T) {
	heuristic := grading.NewHeuristicScorer(grading.DefaultPolicy())
	reviewer := grading.NewCodeQualityScorer(&scriptedCodeGrader{}, heuristic, grading.FallbackFail, testLogger())
	fx := newGradingFixture(t, grading.WithStrategy(models.QuestionTypeCoding, reviewer))
	student, exam := seedExam(t, fx.db)

	answers := fullAnswers(exam)
	answers[exam.Questions[2].Key()] = "slow code"
	submission := seedSubmission(t, fx.submissions, exam, student, answers)

	_, err := fx.service.GradeSubmission(context.Background(), submission.ID)
	require.ErrorIs(t, err, ErrGradingFailed)

	stored, err := fx.submissions.GetByID(context.Background(), submission.ID)
	require.NoError(t, err)
	require.Equal(t, models.GradingStatusFailed, stored.GradingStatus)
	require.Contains(t, stored.GradingError, "code review timed out")
	require.Nil(t, stored.TotalScore)
}

func TestGradingServiceNotifierFailureKeepsGrade(t *testing.T) {
	fx := newGradingFixture(t)
	fx.notifier.err = errors.New("broker down")
	student, exam := seedExam(t, fx.db)
	submission := seedSubmission(t, fx.submissions, exam, student, fullAnswers(exam))

	outcome, err := fx.service.GradeSubmission(context.Background(), submission.ID)
	require.NoError(t, err)
	require.Equal(t, string(models.GradingStatusGraded), outcome.Status)
}

func TestGradingServiceUnknownSubmission(t *testing.T) {
	fx := newGradingFixture(t)

	_, err := fx.service.GradeSubmission(context.Background(), 999)
	require.ErrorIs(t, err, ErrExamSubmissionNotFound)
}
