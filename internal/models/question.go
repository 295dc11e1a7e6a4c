package models

import (
	"strconv"
	"strings"
	"time"
)

// QuestionType is the closed set of gradable question kinds.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeCoding         QuestionType = "coding"
	QuestionTypeFlowchart      QuestionType = "flowchart"
	QuestionTypeShortAnswer    QuestionType = "short_answer"
)

// QuestionTypes lists every supported type in display order.
var QuestionTypes = []QuestionType{
	QuestionTypeMultipleChoice,
	QuestionTypeCoding,
	QuestionTypeFlowchart,
	QuestionTypeShortAnswer,
}

// Valid reports whether t is one of the supported question types.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionTypeMultipleChoice, QuestionTypeCoding, QuestionTypeFlowchart, QuestionTypeShortAnswer:
		return true
	}
	return false
}

// Question is a single gradable item belonging to an exam.
type Question struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	ExamID        uint         `gorm:"not null;index" json:"exam_id"`
	Position      int          `gorm:"not null;default:0" json:"position"`
	Type          QuestionType `gorm:"size:32;not null" json:"type"`
	Prompt        string       `gorm:"type:text" json:"prompt"`
	CorrectAnswer *string      `gorm:"size:512" json:"correct_answer,omitempty"`
	Marks         int          `gorm:"not null" json:"marks"`
	SampleCode    string       `gorm:"type:text" json:"sample_code,omitempty"`
	Language      string       `gorm:"size:32" json:"language,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Key returns the identifier used for this question in answer and grade-detail maps.
func (q Question) Key() string {
	return strconv.FormatUint(uint64(q.ID), 10)
}

// EffectiveLanguage resolves the programming language a coding answer is reviewed against.
func (q Question) EffectiveLanguage(examLanguage string) string {
	if lang := strings.TrimSpace(q.Language); lang != "" {
		return strings.ToLower(lang)
	}
	if lang := strings.TrimSpace(examLanguage); lang != "" {
		return strings.ToLower(lang)
	}
	return DefaultExamLanguage
}
