package grading

import (
	"context"
	"fmt"

	"github.com/noah-isme/gema-exam-grader/internal/models"
)

// Option customises an Engine.
type Option func(*Engine)

// WithStrategy replaces the scorer used for one question type.
func WithStrategy(questionType models.QuestionType, scorer Scorer) Option {
	return func(e *Engine) {
		if scorer != nil {
			e.strategies[questionType] = scorer
		}
	}
}

// Engine routes each question to the scorer registered for its type.
// The heuristic scorer is installed for every type unless replaced with WithStrategy.
type Engine struct {
	strategies map[models.QuestionType]Scorer
}

// NewEngine builds an engine backed by the heuristic scorer for the given policy.
func NewEngine(policy Policy, opts ...Option) *Engine {
	heuristic := NewHeuristicScorer(policy)
	engine := &Engine{strategies: make(map[models.QuestionType]Scorer, len(models.QuestionTypes))}
	for _, questionType := range models.QuestionTypes {
		engine.strategies[questionType] = heuristic
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// Score implements Scorer by delegating to the registered strategy.
// A panicking strategy is reported as an input error for that question.
func (e *Engine) Score(ctx context.Context, item Item, answer interface{}) (result Result, err error) {
	scorer, ok := e.strategies[item.Question.Type]
	if !ok {
		return Result{MaxScore: item.Question.Marks}, fmt.Errorf("%w: %q", ErrUnsupportedQuestionType, item.Question.Type)
	}

	defer func() {
		if r := recover(); r != nil {
			result = Result{MaxScore: item.Question.Marks}
			err = fmt.Errorf("%w: scorer panic: %v", ErrInput, r)
		}
	}()
	return scorer.Score(ctx, item, answer)
}

// QuestionFailure records a question whose scorer returned an error.
type QuestionFailure struct {
	QuestionID uint
	Err        error
}

// Summary is the aggregated grade of one answer set.
type Summary struct {
	TotalScore int
	MaxScore   int
	Details    models.GradeDetails
	Failures   []QuestionFailure
}

// GradeAnswers scores every question of the set exactly once against answers keyed by question key.
// Per-question errors are recorded as a zero score with the error as feedback. Only abortive errors
// stop grading, in which case no summary is returned.
func (e *Engine) GradeAnswers(ctx context.Context, questions []models.Question, examLanguage string, answers map[string]interface{}) (Summary, error) {
	summary := Summary{Details: make(models.GradeDetails, len(questions))}

	for _, question := range questions {
		key := question.Key()
		if _, seen := summary.Details[key]; seen {
			continue
		}
		if err := ctx.Err(); err != nil {
			return Summary{}, err
		}

		result, err := e.Score(ctx, Item{Question: question, ExamLanguage: examLanguage}, answers[key])
		if err != nil {
			if IsAbortive(err) {
				return Summary{}, fmt.Errorf("question %d: %w", question.ID, err)
			}
			summary.Failures = append(summary.Failures, QuestionFailure{QuestionID: question.ID, Err: err})
			result = Result{Feedback: gradingErrorFeedbackPrefix + err.Error()}
		}

		maxScore := question.Marks
		if maxScore < 0 {
			maxScore = 0
		}
		score := clamp(result.Score, maxScore)

		summary.Details[key] = models.QuestionGrade{
			Score:    score,
			MaxScore: maxScore,
			Feedback: result.Feedback,
		}
		summary.TotalScore += score
		summary.MaxScore += maxScore
	}

	return summary, nil
}
