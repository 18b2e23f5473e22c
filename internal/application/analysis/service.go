package analysis

import (
	"context"

	domain "github.com/securescript/securescript-api/internal/domain/analysis"
)

// Service implements the analyze and fix use-cases.
// It validates payloads before any upstream call is made.
type Service struct {
	analyzer domain.Analyzer
}

func NewService(analyzer domain.Analyzer) *Service {
	return &Service{analyzer: analyzer}
}

// Analyze validates the code and runs the one-shot security analysis.
func (s *Service) Analyze(ctx context.Context, code string) (*domain.SecurityReport, error) {
	if err := ValidateCode(code); err != nil {
		return nil, err
	}
	return s.analyzer.Analyze(ctx, code)
}

// Fix validates the code and opens the streaming rewrite.
func (s *Service) Fix(ctx context.Context, code string, issues []domain.SecurityIssue) (domain.FixStream, error) {
	if err := ValidateCode(code); err != nil {
		return nil, err
	}
	return s.analyzer.Fix(ctx, code, issues)
}
