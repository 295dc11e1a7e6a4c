package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseReviewResponse(t *testing.T) {
	tests := []struct {
		name    string
		content string
		max     int
		score   int
		wantErr error
	}{
		{name: "valid integer score", content: `{"score":7,"feedback":"Solid","strengths":["naming"],"improvements":["tests"]}`, max: 10, score: 7},
		{name: "fractional score floored", content: `{"score":7.9,"feedback":"Solid","strengths":[],"improvements":[]}`, max: 10, score: 7},
		{name: "score above max", content: `{"score":12,"feedback":"Solid","strengths":[],"improvements":[]}`, max: 10, wantErr: ErrMalformedReview},
		{name: "negative score", content: `{"score":-1,"feedback":"Solid","strengths":[],"improvements":[]}`, max: 10, wantErr: ErrMalformedReview},
		{name: "missing strengths", content: `{"score":5,"feedback":"Solid","improvements":[]}`, max: 10, wantErr: ErrMalformedReview},
		{name: "score as string", content: `{"score":"5","feedback":"Solid","strengths":[],"improvements":[]}`, max: 10, wantErr: ErrMalformedReview},
		{name: "not json", content: `Score: 5/10`, max: 10, wantErr: ErrMalformedReview},
		{name: "blank content", content: "  ", max: 10, wantErr: ErrEmptyReview},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := parseReviewResponse(tc.content, tc.max)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.score, result.Score)
			require.Equal(t, "Solid", result.Feedback)
		})
	}
}

func TestGuidanceForFallsBackToDefault(t *testing.T) {
	require.Contains(t, guidanceFor("Python"), "PEP 8")
	require.Contains(t, guidanceFor("c"), "memory")
	require.Equal(t, defaultGuidance, guidanceFor("cobol"))
}

func TestBuildReviewPromptOmitsEmptyReference(t *testing.T) {
	prompt := buildReviewPrompt(CodeReviewInput{QuestionText: "Reverse a list", StudentCode: "x[::-1]", MaxMarks: 10, Language: "python"})
	require.NotContains(t, prompt, "Reference Solution")
	require.Contains(t, prompt, "## Maximum Marks\n10")

	prompt = buildReviewPrompt(CodeReviewInput{QuestionText: "Reverse a list", SampleCode: "list(reversed(x))", StudentCode: "x[::-1]", MaxMarks: 10, Language: "python"})
	require.Contains(t, prompt, "list(reversed(x))")
}

func completionServer(t *testing.T, content string, delay time.Duration) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		payload := map[string]interface{}{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": time.Now().Unix(),
			"model":   "gpt-4o-mini",
			"choices": []map[string]interface{}{
				{
					"index":         0,
					"finish_reason": "stop",
					"message": map[string]interface{}{
						"role":    "assistant",
						"content": content,
					},
				},
			},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(payload))
	}))
}

func TestOpenAIGraderGradeCode(t *testing.T) {
	server := completionServer(t, `{"score":8,"feedback":"Clear solution","strengths":["readable"],"improvements":["handle empty input"]}`, 0)
	defer server.Close()

	grader, err := NewOpenAIGrader(OpenAIConfig{APIKey: "test", BaseURL: server.URL + "/v1", Timeout: time.Second})
	require.NoError(t, err)

	result, err := grader.GradeCode(context.Background(), CodeReviewInput{QuestionText: "Sum", StudentCode: "print(1)", MaxMarks: 10, Language: "python"})
	require.NoError(t, err)
	require.Equal(t, 8, result.Score)
	require.Equal(t, []string{"readable"}, result.Strengths)
	require.Equal(t, []string{"handle empty input"}, result.Improvements)
}

func TestOpenAIGraderTimeout(t *testing.T) {
	server := completionServer(t, `{"score":8,"feedback":"late","strengths":[],"improvements":[]}`, 500*time.Millisecond)
	defer server.Close()

	grader, err := NewOpenAIGrader(OpenAIConfig{APIKey: "test", BaseURL: server.URL + "/v1", Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = grader.GradeCode(context.Background(), CodeReviewInput{QuestionText: "Sum", StudentCode: "print(1)", MaxMarks: 10})
	require.ErrorIs(t, err, ErrGraderTimeout)
}

func TestOpenAIGraderRejectsMalformedContent(t *testing.T) {
	server := completionServer(t, `{"verdict":"pass"}`, 0)
	defer server.Close()

	grader, err := NewOpenAIGrader(OpenAIConfig{APIKey: "test", BaseURL: server.URL + "/v1", Timeout: time.Second})
	require.NoError(t, err)

	_, err = grader.GradeCode(context.Background(), CodeReviewInput{QuestionText: "Sum", StudentCode: "print(1)", MaxMarks: 10})
	require.ErrorIs(t, err, ErrMalformedReview)
}

func TestNewOpenAIGraderRequiresKey(t *testing.T) {
	_, err := NewOpenAIGrader(OpenAIConfig{})
	require.Error(t, err)
}
