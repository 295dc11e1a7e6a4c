package ai

import (
	"strconv"
	"strings"
)

var languageGuidance = map[string]string{
	"python":     "Check PEP 8 conventions, idiomatic use of built-ins and comprehensions, and clear function boundaries.",
	"java":       "Check Java naming conventions (camelCase members, PascalCase types), access modifiers, and exception handling.",
	"c":          "Check memory safety: bounds on arrays and buffers, matching malloc/free, and null pointer handling.",
	"cpp":        "Check RAII and ownership, const-correctness, and standard library usage over raw pointers.",
	"javascript": "Check strict equality, scoping with let/const, and handling of asynchronous code.",
	"go":         "Check explicit error handling, idiomatic naming, and that goroutines are not leaked.",
}

const defaultGuidance = "Check correctness, readability, naming, and handling of edge cases."

func guidanceFor(language string) string {
	if guidance, ok := languageGuidance[strings.ToLower(strings.TrimSpace(language))]; ok {
		return guidance
	}
	return defaultGuidance
}

func reviewerSystemPrompt() string {
	return "You are a strict but fair programming examiner. You must respond in JSON only, with the keys " +
		"score (number between 0 and the maximum marks), feedback (string), strengths (array of strings) and " +
		"improvements (array of strings). Do not include any other text."
}

func buildReviewPrompt(input CodeReviewInput) string {
	builder := strings.Builder{}
	builder.WriteString("# Question\n")
	builder.WriteString(input.QuestionText)
	builder.WriteString("\n\n## Language\n")
	builder.WriteString(input.Language)
	builder.WriteString("\n\n## Evaluation Guidance\n")
	builder.WriteString(guidanceFor(input.Language))
	if strings.TrimSpace(input.SampleCode) != "" {
		builder.WriteString("\n\n## Reference Solution\n")
		builder.WriteString(input.SampleCode)
	}
	builder.WriteString("\n\n## Student Answer\n")
	builder.WriteString(input.StudentCode)
	builder.WriteString("\n\n## Maximum Marks\n")
	builder.WriteString(strconv.Itoa(input.MaxMarks))
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}
