package models

import "time"

// DefaultExamLanguage is used for coding questions when neither the exam nor the question sets one.
const DefaultExamLanguage = "python"

// Exam groups an ordered question set.
type Exam struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Language    string     `gorm:"size:32" json:"language"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Questions   []Question `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"questions"`
}

// MaxScore sums the marks of the loaded question set.
func (e Exam) MaxScore() int {
	total := 0
	for _, q := range e.Questions {
		total += q.Marks
	}
	return total
}
