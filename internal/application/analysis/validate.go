package analysis

import (
	"strings"

	domain "github.com/securescript/securescript-api/internal/domain/analysis"
)

// MaxCodeSize is the payload ceiling for submitted code (50KB).
const MaxCodeSize = 50000

// ValidateCode checks the submitted code before it reaches the model.
func ValidateCode(code string) error {
	if strings.TrimSpace(code) == "" {
		return domain.ErrEmptyCode
	}
	if len(code) > MaxCodeSize {
		return domain.ErrCodeTooLarge
	}
	return nil
}

// SanitizeString strips null bytes and control characters from free-form input.
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}
