package ai

import (
	"context"
	"errors"
)

var (
	// ErrGraderTimeout indicates the review request exceeded its deadline.
	ErrGraderTimeout = errors.New("code review timed out")
	// ErrMalformedReview indicates the model returned a payload that does not satisfy the review contract.
	ErrMalformedReview = errors.New("malformed code review response")
	// ErrEmptyReview indicates the provider returned no completion choices.
	ErrEmptyReview = errors.New("empty code review response")
)

// CodeReviewInput contains the artefacts needed to review one coding answer.
type CodeReviewInput struct {
	QuestionText string
	SampleCode   string
	StudentCode  string
	MaxMarks     int
	Language     string
}

// CodeReviewResult is the validated review returned by a CodeGrader.
type CodeReviewResult struct {
	Score        int                    `json:"score"`
	Feedback     string                 `json:"feedback"`
	Strengths    []string               `json:"strengths"`
	Improvements []string               `json:"improvements"`
	Raw          map[string]interface{} `json:"raw,omitempty"`
}

// CodeGrader describes an external model capable of scoring a coding answer.
type CodeGrader interface {
	GradeCode(ctx context.Context, input CodeReviewInput) (CodeReviewResult, error)
}
