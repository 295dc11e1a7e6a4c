package grading

import "fmt"

// Policy holds the business-decided thresholds of the heuristic scorer.
// Percentages are whole numbers in [0, 100]; awarded marks are floored.
type Policy struct {
	CodingLineThreshold        int
	CodingStructuredPercent    int
	CodingBasicPercent         int
	FlowchartStructuredPercent int
	FlowchartScalarPercent     int
	ShortAnswerWordThreshold   int
	ShortAnswerDetailedPercent int
	ShortAnswerBriefPercent    int
}

// DefaultPolicy returns the lenient policy the portal ships with.
func DefaultPolicy() Policy {
	return Policy{
		CodingLineThreshold:        3,
		CodingStructuredPercent:    80,
		CodingBasicPercent:         40,
		FlowchartStructuredPercent: 90,
		FlowchartScalarPercent:     30,
		ShortAnswerWordThreshold:   10,
		ShortAnswerDetailedPercent: 85,
		ShortAnswerBriefPercent:    50,
	}
}

// Validate checks percentages and thresholds are within range.
func (p Policy) Validate() error {
	percents := map[string]int{
		"coding_structured_percent":     p.CodingStructuredPercent,
		"coding_basic_percent":          p.CodingBasicPercent,
		"flowchart_structured_percent":  p.FlowchartStructuredPercent,
		"flowchart_scalar_percent":      p.FlowchartScalarPercent,
		"short_answer_detailed_percent": p.ShortAnswerDetailedPercent,
		"short_answer_brief_percent":    p.ShortAnswerBriefPercent,
	}
	for name, value := range percents {
		if value < 0 || value > 100 {
			return fmt.Errorf("grading policy %s must be between 0 and 100, got %d", name, value)
		}
	}
	if p.CodingLineThreshold < 0 {
		return fmt.Errorf("grading policy coding_line_threshold must not be negative")
	}
	if p.ShortAnswerWordThreshold < 0 {
		return fmt.Errorf("grading policy short_answer_word_threshold must not be negative")
	}
	return nil
}

func percentOf(marks, percent int) int {
	if marks <= 0 || percent <= 0 {
		return 0
	}
	return clamp(marks*percent/100, marks)
}

func clamp(score, marks int) int {
	if score < 0 {
		return 0
	}
	if score > marks {
		return marks
	}
	return score
}
