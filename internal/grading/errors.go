package grading

import (
	"errors"
	"fmt"
)

var (
	// ErrInput marks malformed question or answer data. Isolated to the affected question.
	ErrInput = errors.New("invalid grading input")
	// ErrUnsupportedQuestionType is returned for any type outside the closed question set.
	ErrUnsupportedQuestionType = fmt.Errorf("%w: unsupported question type", ErrInput)
	// ErrInvalidAnswer indicates the answer does not have the shape its question type requires.
	ErrInvalidAnswer = fmt.Errorf("%w: malformed answer", ErrInput)
	// ErrMissingCorrectAnswer indicates a multiple choice question without an answer key.
	ErrMissingCorrectAnswer = fmt.Errorf("%w: question has no correct answer", ErrInput)
	// ErrInvalidQuestion indicates a question that cannot be scored, such as non-positive marks.
	ErrInvalidQuestion = fmt.Errorf("%w: invalid question", ErrInput)

	// ErrDependency wraps failures of external collaborators such as the code review service.
	ErrDependency = errors.New("grading dependency failed")
	// ErrAbort marks a per-question failure that must fail the whole submission.
	ErrAbort = errors.New("grading aborted")
)

// IsAbortive reports whether err should end the submission in the failed state.
func IsAbortive(err error) bool {
	return errors.Is(err, ErrAbort)
}
