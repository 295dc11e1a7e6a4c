package grading

import (
	"context"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-exam-grader/internal/models"
	"github.com/noah-isme/gema-exam-grader/internal/observability"
	"github.com/noah-isme/gema-exam-grader/pkg/ai"
)

// FallbackMode decides what happens to a coding answer when the code review service fails.
type FallbackMode string

const (
	// FallbackHeuristic grades the answer with the heuristic rule instead.
	FallbackHeuristic FallbackMode = "heuristic"
	// FallbackZero records zero marks with an explanation.
	FallbackZero FallbackMode = "zero"
	// FallbackFail fails the whole submission so it can be regraded later.
	FallbackFail FallbackMode = "fail"
)

// ParseFallbackMode normalises a configured mode, defaulting to FallbackHeuristic.
func ParseFallbackMode(value string) (FallbackMode, error) {
	switch mode := FallbackMode(strings.ToLower(strings.TrimSpace(value))); mode {
	case "", FallbackHeuristic:
		return FallbackHeuristic, nil
	case FallbackZero, FallbackFail:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown code review fallback mode %q", value)
	}
}

// CodeQualityScorer grades coding answers through an external ai.CodeGrader.
type CodeQualityScorer struct {
	grader    ai.CodeGrader
	fallback  Scorer
	mode      FallbackMode
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewCodeQualityScorer wraps grader; fallback scores answers the grader cannot handle.
func NewCodeQualityScorer(grader ai.CodeGrader, fallback Scorer, mode FallbackMode, logger zerolog.Logger) *CodeQualityScorer {
	if mode == "" {
		mode = FallbackHeuristic
	}
	return &CodeQualityScorer{
		grader:    grader,
		fallback:  fallback,
		mode:      mode,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "code_quality_scorer").Logger(),
	}
}

// Score implements Scorer.
func (s *CodeQualityScorer) Score(ctx context.Context, item Item, answer interface{}) (Result, error) {
	q := item.Question
	if q.Type != models.QuestionTypeCoding {
		return s.fallback.Score(ctx, item, answer)
	}
	if q.Marks <= 0 {
		return Result{}, fmt.Errorf("%w: question %d has non-positive marks", ErrInvalidQuestion, q.ID)
	}

	res := Result{MaxScore: q.Marks}
	if isMissing(answer) {
		res.Feedback = FeedbackNoAnswer
		return res, nil
	}
	code, ok := answer.(string)
	if !ok {
		return res, fmt.Errorf("%w: coding answer must be a string, got %T", ErrInvalidAnswer, answer)
	}

	review, err := s.grader.GradeCode(ctx, ai.CodeReviewInput{
		QuestionText: q.Prompt,
		SampleCode:   q.SampleCode,
		StudentCode:  code,
		MaxMarks:     q.Marks,
		Language:     q.EffectiveLanguage(item.ExamLanguage),
	})
	if err != nil {
		return s.degrade(ctx, item, answer, err)
	}

	res.Score = clamp(review.Score, q.Marks)
	res.Feedback = s.composeFeedback(review)
	return res, nil
}

func (s *CodeQualityScorer) degrade(ctx context.Context, item Item, answer interface{}, cause error) (Result, error) {
	observability.CodeReviewFallbacks().WithLabelValues(string(s.mode)).Inc()
	s.logger.Warn().Err(cause).Uint("question_id", item.Question.ID).Str("mode", string(s.mode)).Msg("code review unavailable")

	depErr := fmt.Errorf("%w: %w", ErrDependency, cause)
	switch s.mode {
	case FallbackFail:
		return Result{MaxScore: item.Question.Marks}, fmt.Errorf("%w: %w", ErrAbort, depErr)
	case FallbackZero:
		return Result{MaxScore: item.Question.Marks, Feedback: "Automated code review unavailable: " + cause.Error()}, nil
	default:
		res, err := s.fallback.Score(ctx, item, answer)
		if err != nil {
			return res, err
		}
		res.Feedback += " (automated code review unavailable; heuristic grading applied)"
		return res, nil
	}
}

func (s *CodeQualityScorer) composeFeedback(review ai.CodeReviewResult) string {
	builder := strings.Builder{}
	builder.WriteString(s.sanitizer.Sanitize(review.Feedback))
	if len(review.Strengths) > 0 {
		builder.WriteString("\nStrengths: ")
		builder.WriteString(s.sanitizeList(review.Strengths))
	}
	if len(review.Improvements) > 0 {
		builder.WriteString("\nImprovements: ")
		builder.WriteString(s.sanitizeList(review.Improvements))
	}
	return strings.TrimSpace(builder.String())
}

func (s *CodeQualityScorer) sanitizeList(items []string) string {
	clean := make([]string, 0, len(items))
	for _, item := range items {
		if text := strings.TrimSpace(s.sanitizer.Sanitize(item)); text != "" {
			clean = append(clean, text)
		}
	}
	return strings.Join(clean, "; ")
}
