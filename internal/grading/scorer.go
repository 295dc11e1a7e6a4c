package grading

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/noah-isme/gema-exam-grader/internal/models"
)

// Feedback strings shown to learners.
const (
	FeedbackNoAnswer            = "No answer provided."
	FeedbackCorrect             = "Correct answer!"
	FeedbackCodingStructured    = "Good coding attempt with proper structure"
	FeedbackCodingBasic         = "Code needs more development and detail."
	FeedbackFlowchartStructured = "Flowchart created successfully"
	FeedbackFlowchartIncomplete = "Flowchart incomplete or missing."
	FeedbackShortAnswerDetailed = "Detailed answer with good explanation"
	FeedbackShortAnswerBrief    = "Answer is brief; add more explanation and detail."
	incorrectFeedbackPrefix     = "Incorrect. The correct answer is: "
	gradingErrorFeedbackPrefix  = "Grading error: "
)

// Item is a question together with the exam context a scorer may need.
type Item struct {
	Question     models.Question
	ExamLanguage string
}

// Result is the score awarded for one question.
type Result struct {
	Score    int
	MaxScore int
	Feedback string
}

// Scorer grades a single answer.
type Scorer interface {
	Score(ctx context.Context, item Item, answer interface{}) (Result, error)
}

// HeuristicScorer grades answers by surface features only. It performs no external calls.
type HeuristicScorer struct {
	policy Policy
}

// NewHeuristicScorer constructs a scorer with the given policy.
func NewHeuristicScorer(policy Policy) HeuristicScorer {
	return HeuristicScorer{policy: policy}
}

// Score implements Scorer.
func (h HeuristicScorer) Score(_ context.Context, item Item, answer interface{}) (Result, error) {
	q := item.Question
	if q.Marks <= 0 {
		return Result{}, fmt.Errorf("%w: question %d has non-positive marks", ErrInvalidQuestion, q.ID)
	}

	switch q.Type {
	case models.QuestionTypeMultipleChoice:
		return h.scoreMultipleChoice(q, answer)
	case models.QuestionTypeCoding:
		return h.scoreCoding(q, answer)
	case models.QuestionTypeFlowchart:
		return h.scoreFlowchart(q, answer)
	case models.QuestionTypeShortAnswer:
		return h.scoreShortAnswer(q, answer)
	default:
		return Result{MaxScore: q.Marks}, fmt.Errorf("%w: %q", ErrUnsupportedQuestionType, q.Type)
	}
}

func (h HeuristicScorer) scoreMultipleChoice(q models.Question, answer interface{}) (Result, error) {
	res := Result{MaxScore: q.Marks}
	if isMissing(answer) {
		res.Feedback = FeedbackNoAnswer
		return res, nil
	}
	if q.CorrectAnswer == nil || strings.TrimSpace(*q.CorrectAnswer) == "" {
		return res, fmt.Errorf("%w: question %d", ErrMissingCorrectAnswer, q.ID)
	}
	text, ok := choiceText(answer)
	if !ok {
		return res, fmt.Errorf("%w: multiple choice answer must be a scalar, got %T", ErrInvalidAnswer, answer)
	}

	correct := strings.TrimSpace(*q.CorrectAnswer)
	if strings.EqualFold(strings.TrimSpace(text), correct) {
		res.Score = q.Marks
		res.Feedback = FeedbackCorrect
		return res, nil
	}
	res.Feedback = incorrectFeedbackPrefix + correct
	return res, nil
}

func (h HeuristicScorer) scoreCoding(q models.Question, answer interface{}) (Result, error) {
	res := Result{MaxScore: q.Marks}
	if isMissing(answer) {
		res.Feedback = FeedbackNoAnswer
		return res, nil
	}
	code, ok := answer.(string)
	if !ok {
		return res, fmt.Errorf("%w: coding answer must be a string, got %T", ErrInvalidAnswer, answer)
	}

	if countNonBlankLines(code) > h.policy.CodingLineThreshold {
		res.Score = percentOf(q.Marks, h.policy.CodingStructuredPercent)
		res.Feedback = FeedbackCodingStructured
		return res, nil
	}
	res.Score = percentOf(q.Marks, h.policy.CodingBasicPercent)
	res.Feedback = FeedbackCodingBasic
	return res, nil
}

func (h HeuristicScorer) scoreFlowchart(q models.Question, answer interface{}) (Result, error) {
	res := Result{MaxScore: q.Marks}
	if isMissing(answer) {
		res.Feedback = FeedbackNoAnswer
		return res, nil
	}

	if isStructured(answer) {
		res.Score = percentOf(q.Marks, h.policy.FlowchartStructuredPercent)
		res.Feedback = FeedbackFlowchartStructured
		return res, nil
	}
	res.Score = percentOf(q.Marks, h.policy.FlowchartScalarPercent)
	res.Feedback = FeedbackFlowchartIncomplete
	return res, nil
}

func (h HeuristicScorer) scoreShortAnswer(q models.Question, answer interface{}) (Result, error) {
	res := Result{MaxScore: q.Marks}
	if isMissing(answer) {
		res.Feedback = FeedbackNoAnswer
		return res, nil
	}
	text, ok := answer.(string)
	if !ok {
		return res, fmt.Errorf("%w: short answer must be a string, got %T", ErrInvalidAnswer, answer)
	}

	if len(strings.Fields(text)) >= h.policy.ShortAnswerWordThreshold {
		res.Score = percentOf(q.Marks, h.policy.ShortAnswerDetailedPercent)
		res.Feedback = FeedbackShortAnswerDetailed
		return res, nil
	}
	res.Score = percentOf(q.Marks, h.policy.ShortAnswerBriefPercent)
	res.Feedback = FeedbackShortAnswerBrief
	return res, nil
}

// isMissing treats nil and blank strings as no answer.
func isMissing(answer interface{}) bool {
	switch v := answer.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case *string:
		return v == nil || strings.TrimSpace(*v) == ""
	}
	return false
}

// choiceText renders a scalar answer for comparison. JSON numbers decode as float64,
// so 2 and "2" compare equal.
func choiceText(answer interface{}) (string, bool) {
	switch v := answer.(type) {
	case string:
		return v, true
	case *string:
		return *v, true
	case json.Number:
		return v.String(), true
	case bool, float32, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(v), true
	}
	return "", false
}

func isStructured(answer interface{}) bool {
	value := reflect.ValueOf(answer)
	for value.Kind() == reflect.Pointer || value.Kind() == reflect.Interface {
		if value.IsNil() {
			return false
		}
		value = value.Elem()
	}
	switch value.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		return true
	}
	return false
}

func countNonBlankLines(code string) int {
	count := 0
	for _, line := range strings.Split(code, "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	return count
}
