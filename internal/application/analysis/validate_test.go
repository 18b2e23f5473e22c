package analysis

import (
	"strings"
	"testing"

	domain "github.com/securescript/securescript-api/internal/domain/analysis"
)

func TestValidateCode(t *testing.T) {
	cases := []struct {
		name string
		code string
		want error
	}{
		{"valid", "def f(): pass", nil},
		{"empty", "", domain.ErrEmptyCode},
		{"whitespace only", "  \n\t  ", domain.ErrEmptyCode},
		{"at limit", strings.Repeat("a", MaxCodeSize), nil},
		{"over limit", strings.Repeat("a", MaxCodeSize+1), domain.ErrCodeTooLarge},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidateCode(tc.code); got != tc.want {
				t.Fatalf("ValidateCode() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSanitizeString(t *testing.T) {
	in := "hello\x00 world\x01\r"
	if got := SanitizeString(in); got != "hello world" {
		t.Fatalf("SanitizeString() = %q", got)
	}
}
