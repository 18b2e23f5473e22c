package analysis

import "context"

// Analyzer is the upstream model the analysis runs on.
type Analyzer interface {
	Analyze(ctx context.Context, code string) (*SecurityReport, error)
	Fix(ctx context.Context, code string, issues []SecurityIssue) (FixStream, error)
}

// FixStream yields the rewritten code incrementally, in upstream order.
// Recv returns io.EOF after the last fragment.
type FixStream interface {
	Recv() (string, error)
	Close() error
}
