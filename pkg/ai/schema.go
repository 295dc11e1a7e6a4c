package ai

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const reviewSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["score", "feedback", "strengths", "improvements"],
  "properties": {
    "score": {"type": "number", "minimum": 0},
    "feedback": {"type": "string", "minLength": 1},
    "strengths": {"type": "array", "items": {"type": "string"}},
    "improvements": {"type": "array", "items": {"type": "string"}}
  }
}`

var reviewSchema = jsonschema.MustCompileString("code_review.schema.json", reviewSchemaJSON)

// parseReviewResponse validates the raw completion content against the review contract.
func parseReviewResponse(content string, maxMarks int) (CodeReviewResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return CodeReviewResult{}, ErrEmptyReview
	}

	var document interface{}
	if err := json.Unmarshal([]byte(content), &document); err != nil {
		return CodeReviewResult{}, fmt.Errorf("%w: %v", ErrMalformedReview, err)
	}
	if err := reviewSchema.Validate(document); err != nil {
		return CodeReviewResult{}, fmt.Errorf("%w: %v", ErrMalformedReview, err)
	}

	var payload struct {
		Score        float64  `json:"score"`
		Feedback     string   `json:"feedback"`
		Strengths    []string `json:"strengths"`
		Improvements []string `json:"improvements"`
	}
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return CodeReviewResult{}, fmt.Errorf("%w: %v", ErrMalformedReview, err)
	}

	if payload.Score > float64(maxMarks) {
		return CodeReviewResult{}, fmt.Errorf("%w: score %.2f exceeds max marks %d", ErrMalformedReview, payload.Score, maxMarks)
	}

	return CodeReviewResult{
		Score:        int(math.Floor(payload.Score)),
		Feedback:     strings.TrimSpace(payload.Feedback),
		Strengths:    compact(payload.Strengths),
		Improvements: compact(payload.Improvements),
	}, nil
}

func compact(items []string) []string {
	result := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
