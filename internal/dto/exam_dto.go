package dto

import (
	"time"

	"github.com/noah-isme/gema-exam-grader/internal/models"
)

// ExamQuestionRequest describes one question in an exam creation payload.
type ExamQuestionRequest struct {
	Position      int     `json:"position" validate:"gte=0"`
	Type          string  `json:"type" validate:"required,oneof=multiple_choice coding flowchart short_answer"`
	Prompt        string  `json:"prompt" validate:"required,max=10000"`
	CorrectAnswer *string `json:"correct_answer" validate:"omitempty,max=500"`
	Marks         int     `json:"marks" validate:"required,gt=0,lte=1000"`
	SampleCode    string  `json:"sample_code" validate:"omitempty,max=20000"`
	Language      string  `json:"language" validate:"omitempty,max=32"`
}

// ExamCreateRequest captures payloads for creating an exam with its question set.
type ExamCreateRequest struct {
	Title       string                `json:"title" validate:"required,min=3,max=200"`
	Description string                `json:"description" validate:"omitempty,max=5000"`
	Language    string                `json:"language" validate:"omitempty,max=32"`
	Questions   []ExamQuestionRequest `json:"questions" validate:"required,min=1,dive"`
}

// QuestionResponse serializes a question. CorrectAnswer is omitted for students.
type QuestionResponse struct {
	ID            uint    `json:"id"`
	Position      int     `json:"position"`
	Type          string  `json:"type"`
	Prompt        string  `json:"prompt"`
	CorrectAnswer *string `json:"correct_answer,omitempty"`
	Marks         int     `json:"marks"`
	SampleCode    string  `json:"sample_code,omitempty"`
	Language      string  `json:"language,omitempty"`
}

// ExamResponse is returned when viewing an exam.
type ExamResponse struct {
	ID          uint               `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Language    string             `json:"language"`
	MaxScore    int                `json:"max_score"`
	Questions   []QuestionResponse `json:"questions"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// NewExamResponse converts an exam including its answer key.
func NewExamResponse(model models.Exam) ExamResponse {
	response := ExamResponse{
		ID:          model.ID,
		Title:       model.Title,
		Description: model.Description,
		Language:    model.Language,
		MaxScore:    model.MaxScore(),
		Questions:   make([]QuestionResponse, 0, len(model.Questions)),
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
	for _, q := range model.Questions {
		response.Questions = append(response.Questions, QuestionResponse{
			ID:            q.ID,
			Position:      q.Position,
			Type:          string(q.Type),
			Prompt:        q.Prompt,
			CorrectAnswer: q.CorrectAnswer,
			Marks:         q.Marks,
			SampleCode:    q.SampleCode,
			Language:      q.Language,
		})
	}
	return response
}
