package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-exam-grader/internal/dto"
	"github.com/noah-isme/gema-exam-grader/internal/grading"
	"github.com/noah-isme/gema-exam-grader/internal/models"
	"github.com/noah-isme/gema-exam-grader/internal/repository"
	"github.com/noah-isme/gema-exam-grader/pkg/ai"
)

const fiveLineSnippet = "def total(xs):\n    s = 0\n    for x in xs:\n        s += x\n    return s"

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func answerKey(v string) *string {
	return &v
}

func setupGradingDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:grading_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Student{},
		&models.Exam{},
		&models.Question{},
		&models.ExamSubmission{},
		&models.GradeOverride{},
	))
	return db
}

// seedExam stores a student and a three question exam (multiple choice, short answer, coding).
func seedExam(t *testing.T, db *gorm.DB) (models.Student, models.Exam) {
	t.Helper()

	student := models.Student{Name: "Ada Lovelace", Email: fmt.Sprintf("ada-%d@example.com", time.Now().UnixNano())}
	require.NoError(t, db.Create(&student).Error)

	exam := models.Exam{
		Title:    "Loops and Lists",
		Language: "python",
		Questions: []models.Question{
			{Position: 1, Type: models.QuestionTypeMultipleChoice, Prompt: "Which keyword loops?", CorrectAnswer: answerKey("B"), Marks: 10},
			{Position: 2, Type: models.QuestionTypeShortAnswer, Prompt: "Explain a loop", Marks: 10},
			{Position: 3, Type: models.QuestionTypeCoding, Prompt: "Sum a list", Marks: 10},
		},
	}
	require.NoError(t, db.Create(&exam).Error)
	return student, exam
}

func fullAnswers(exam models.Exam) map[string]interface{} {
	return map[string]interface{}{
		exam.Questions[0].Key(): "b",
		exam.Questions[1].Key(): "a loop repeats a block code",
		exam.Questions[2].Key(): fiveLineSnippet,
	}
}

func seedSubmission(t *testing.T, repo repository.ExamSubmissionRepository, exam models.Exam, student models.Student, answers map[string]interface{}) models.ExamSubmission {
	t.Helper()

	submission := models.ExamSubmission{ExamID: exam.ID, StudentID: student.ID, Answers: answers}
	require.NoError(t, repo.Create(context.Background(), &submission))
	return submission
}

type recordingNotifier struct {
	mu            sync.Mutex
	notifications []dto.GradeNotification
	err           error
}

func (r *recordingNotifier) NotifyGraded(_ context.Context, n dto.GradeNotification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
	return r.err
}

type scriptedCodeGrader struct {
	mu    sync.Mutex
	calls int
}

// GradeCode times out for any answer mentioning "slow" and awards six marks otherwise.
func (s *scriptedCodeGrader) GradeCode(_ context.Context, input ai.CodeReviewInput) (ai.CodeReviewResult, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if strings.Contains(input.StudentCode, "slow") {
		return ai.CodeReviewResult{}, ai.ErrGraderTimeout
	}
	return ai.CodeReviewResult{Score: 6, Feedback: "Works"}, nil
}

type gradingFixture struct {
	db          *gorm.DB
	exams       repository.ExamRepository
	submissions repository.ExamSubmissionRepository
	notifier    *recordingNotifier
	service     GradingService
}

func newGradingFixture(t *testing.T, opts ...grading.Option) gradingFixture {
	t.Helper()

	db := setupGradingDB(t)
	exams := repository.NewExamRepository(db)
	submissions := repository.NewExamSubmissionRepository(db)
	notifier := &recordingNotifier{}
	engine := grading.NewEngine(grading.DefaultPolicy(), opts...)

	return gradingFixture{
		db:          db,
		exams:       exams,
		submissions: submissions,
		notifier:    notifier,
		service:     NewGradingService(submissions, exams, engine, notifier, time.Minute, testLogger()),
	}
}
