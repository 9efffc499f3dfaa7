package fraudflow

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// CalculateBackoff calculates the delay before a retry attempt.
//   - EXPONENTIAL: baseDelay * 2^(attempt-1)
//   - LINEAR: baseDelay * attempt
//   - NONE: fixed baseDelay
//
// Returns 0 for attempt 0.
func CalculateBackoff(baseDelayMs int, attempt int, strategy BackoffStrategy) time.Duration {
	if attempt <= 0 || baseDelayMs <= 0 {
		return 0
	}

	baseDelay := time.Duration(baseDelayMs) * time.Millisecond

	switch strategy {
	case BackoffExponential:
		multiplier := 1 << (attempt - 1)
		return baseDelay * time.Duration(multiplier)
	case BackoffLinear:
		return baseDelay * time.Duration(attempt)
	case BackoffNone:
		return baseDelay
	default:
		return baseDelay * time.Duration(attempt)
	}
}

// FunctionName derives the final function name from a pattern id:
// "FP-GD-001" becomes "detect_fp_gd_001".
func FunctionName(patternID string) string {
	var b strings.Builder
	b.WriteString("detect_")
	for _, r := range strings.ToLower(patternID) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// ToolID derives the tool identifier from a pattern id
func ToolID(patternID string) string {
	return "tool_" + patternID
}

// StepID names the step at a 0-based index
func StepID(index int) string {
	return fmt.Sprintf("step_%d", index+1)
}

// StripCodeFence removes a surrounding markdown code fence and its language tag
func StripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")

	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		if isFenceTag(strings.TrimSpace(s[:nl])) {
			s = s[nl+1:]
		}
	} else {
		s = strings.TrimPrefix(s, "sql")
	}

	if end := strings.Index(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

// Truncate shortens s to n runes, appending "..." when cut
func Truncate(s string, n int) string {
	if n < 0 {
		n = 0
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i] + "..."
		}
		count++
	}
	return s
}

// isFenceTag accepts an empty or lower-case info string such as "sql"
func isFenceTag(tag string) bool {
	for _, r := range tag {
		if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '-' && r != '_' {
			return false
		}
	}
	return true
}
