package grading

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-exam-grader/internal/models"
	"github.com/noah-isme/gema-exam-grader/pkg/ai"
)

type failingScorer struct {
	failOn uint
	inner  Scorer
}

func (f failingScorer) Score(ctx context.Context, item Item, answer interface{}) (Result, error) {
	if item.Question.ID == f.failOn {
		return Result{}, errors.New("scorer exploded")
	}
	return f.inner.Score(ctx, item, answer)
}

type panickingScorer struct{}

func (panickingScorer) Score(context.Context, Item, interface{}) (Result, error) {
	var seen map[string]int
	seen["boom"]++
	return Result{}, nil
}

type stubCodeGrader struct {
	result ai.CodeReviewResult
	err    error
	calls  int
	input  ai.CodeReviewInput
}

func (s *stubCodeGrader) GradeCode(_ context.Context, input ai.CodeReviewInput) (ai.CodeReviewResult, error) {
	s.calls++
	s.input = input
	return s.result, s.err
}

func examQuestions() []models.Question {
	mc := question(1, models.QuestionTypeMultipleChoice, 10)
	mc.CorrectAnswer = strPtr("B")
	return []models.Question{
		mc,
		question(2, models.QuestionTypeShortAnswer, 10),
		question(3, models.QuestionTypeCoding, 10),
	}
}

func TestEngineGradeAnswersAggregates(t *testing.T) {
	engine := NewEngine(DefaultPolicy())
	answers := map[string]interface{}{
		"1": "b",
		"2": "six words in this short answer",
		"3": "line one\nline two\nline three\nline four\nline five",
	}

	summary, err := engine.GradeAnswers(context.Background(), examQuestions(), "python", answers)
	require.NoError(t, err)
	require.Equal(t, 30, summary.MaxScore)
	require.Equal(t, 10+5+8, summary.TotalScore)
	require.Equal(t, summary.TotalScore, summary.Details.Total())
	require.Len(t, summary.Details, 3)
	require.Empty(t, summary.Failures)
}

func TestEngineIsolatesFailingQuestion(t *testing.T) {
	failing := failingScorer{failOn: 2, inner: NewHeuristicScorer(DefaultPolicy())}
	engine := NewEngine(DefaultPolicy(), WithStrategy(models.QuestionTypeShortAnswer, failing))

	questions := []models.Question{
		{ID: 1, Type: models.QuestionTypeMultipleChoice, Marks: 10, CorrectAnswer: strPtr("A")},
		{ID: 2, Type: models.QuestionTypeShortAnswer, Marks: 10},
		{ID: 3, Type: models.QuestionTypeFlowchart, Marks: 10},
	}
	answers := map[string]interface{}{
		"1": "a",
		"2": "anything",
		"3": map[string]interface{}{"nodes": 3},
	}

	summary, err := engine.GradeAnswers(context.Background(), questions, "", answers)
	require.NoError(t, err)
	require.Equal(t, 19, summary.TotalScore)
	require.Equal(t, 30, summary.MaxScore)
	require.Zero(t, summary.Details["2"].Score)
	require.Contains(t, summary.Details["2"].Feedback, "scorer exploded")
	require.Len(t, summary.Failures, 1)
	require.Equal(t, uint(2), summary.Failures[0].QuestionID)
}

func TestEngineContainsPanickingStrategy(t *testing.T) {
	engine := NewEngine(DefaultPolicy(), WithStrategy(models.QuestionTypeShortAnswer, panickingScorer{}))
	answers := map[string]interface{}{
		"1": "B",
		"2": "a loop repeats code",
		"3": "line one\nline two\nline three\nline four\nline five",
	}

	var summary Summary
	var err error
	require.NotPanics(t, func() {
		summary, err = engine.GradeAnswers(context.Background(), examQuestions(), "python", answers)
	})
	require.NoError(t, err)
	require.Equal(t, 10+8, summary.TotalScore)
	require.Equal(t, 30, summary.MaxScore)
	require.Zero(t, summary.Details["2"].Score)
	require.Contains(t, summary.Details["2"].Feedback, "scorer panic")
	require.Len(t, summary.Failures, 1)
	require.ErrorIs(t, summary.Failures[0].Err, ErrInput)
	require.False(t, IsAbortive(summary.Failures[0].Err))
}

func TestEngineRecordsUnsupportedTypeAsFailure(t *testing.T) {
	engine := NewEngine(DefaultPolicy())
	questions := []models.Question{{ID: 7, Type: "essay", Marks: 5}}

	summary, err := engine.GradeAnswers(context.Background(), questions, "", map[string]interface{}{"7": "text"})
	require.NoError(t, err)
	require.Zero(t, summary.TotalScore)
	require.Equal(t, 5, summary.MaxScore)
	require.Len(t, summary.Failures, 1)
	require.ErrorIs(t, summary.Failures[0].Err, ErrUnsupportedQuestionType)
}

func TestEngineCountsDuplicateQuestionOnce(t *testing.T) {
	engine := NewEngine(DefaultPolicy())
	q := question(4, models.QuestionTypeFlowchart, 10)

	summary, err := engine.GradeAnswers(context.Background(), []models.Question{q, q}, "", map[string]interface{}{"4": []interface{}{1}})
	require.NoError(t, err)
	require.Equal(t, 9, summary.TotalScore)
	require.Equal(t, 10, summary.MaxScore)
}

func TestCodeQualityScorerUsesReview(t *testing.T) {
	grader := &stubCodeGrader{result: ai.CodeReviewResult{
		Score:        7,
		Feedback:     "<b>Works</b> for the sample input",
		Strengths:    []string{"clear names"},
		Improvements: []string{"validate input"},
	}}
	heuristic := NewHeuristicScorer(DefaultPolicy())
	scorer := NewCodeQualityScorer(grader, heuristic, FallbackHeuristic, zerolog.Nop())

	q := question(3, models.QuestionTypeCoding, 10)
	q.Prompt = "Sum two numbers"
	q.SampleCode = "print(a + b)"
	result, err := scorer.Score(context.Background(), Item{Question: q, ExamLanguage: "Java"}, "System.out.println(a + b);")
	require.NoError(t, err)
	require.Equal(t, 7, result.Score)
	require.True(t, strings.HasPrefix(result.Feedback, "Works for the sample input"))
	require.Contains(t, result.Feedback, "Strengths: clear names")
	require.Contains(t, result.Feedback, "Improvements: validate input")
	require.Equal(t, "java", grader.input.Language)
	require.Equal(t, 10, grader.input.MaxMarks)
	require.Equal(t, "print(a + b)", grader.input.SampleCode)
}

func TestCodeQualityScorerFallbackModes(t *testing.T) {
	code := "a\nb\nc\nd\ne"
	q := question(3, models.QuestionTypeCoding, 10)
	heuristic := NewHeuristicScorer(DefaultPolicy())

	t.Run("heuristic", func(t *testing.T) {
		scorer := NewCodeQualityScorer(&stubCodeGrader{err: ai.ErrGraderTimeout}, heuristic, FallbackHeuristic, zerolog.Nop())
		result, err := scorer.Score(context.Background(), Item{Question: q}, code)
		require.NoError(t, err)
		require.Equal(t, 8, result.Score)
		require.Contains(t, result.Feedback, "heuristic grading applied")
	})

	t.Run("zero", func(t *testing.T) {
		scorer := NewCodeQualityScorer(&stubCodeGrader{err: ai.ErrMalformedReview}, heuristic, FallbackZero, zerolog.Nop())
		result, err := scorer.Score(context.Background(), Item{Question: q}, code)
		require.NoError(t, err)
		require.Zero(t, result.Score)
		require.Contains(t, result.Feedback, "malformed code review response")
	})

	t.Run("fail", func(t *testing.T) {
		scorer := NewCodeQualityScorer(&stubCodeGrader{err: ai.ErrGraderTimeout}, heuristic, FallbackFail, zerolog.Nop())
		_, err := scorer.Score(context.Background(), Item{Question: q}, code)
		require.True(t, IsAbortive(err))
		require.ErrorIs(t, err, ErrDependency)
		require.ErrorIs(t, err, ai.ErrGraderTimeout)

		engine := NewEngine(DefaultPolicy(), WithStrategy(models.QuestionTypeCoding, scorer))
		_, err = engine.GradeAnswers(context.Background(), []models.Question{q}, "", map[string]interface{}{"3": code})
		require.True(t, IsAbortive(err))
	})
}

func TestCodeQualityScorerSkipsReviewForMissingAnswer(t *testing.T) {
	grader := &stubCodeGrader{}
	scorer := NewCodeQualityScorer(grader, NewHeuristicScorer(DefaultPolicy()), FallbackHeuristic, zerolog.Nop())

	result, err := scorer.Score(context.Background(), Item{Question: question(3, models.QuestionTypeCoding, 10)}, nil)
	require.NoError(t, err)
	require.Zero(t, result.Score)
	require.Equal(t, FeedbackNoAnswer, result.Feedback)
	require.Zero(t, grader.calls)
}

func TestParseFallbackMode(t *testing.T) {
	mode, err := ParseFallbackMode("")
	require.NoError(t, err)
	require.Equal(t, FallbackHeuristic, mode)

	mode, err = ParseFallbackMode(" FAIL ")
	require.NoError(t, err)
	require.Equal(t, FallbackFail, mode)

	_, err = ParseFallbackMode("retry")
	require.Error(t, err)
}
