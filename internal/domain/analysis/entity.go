package analysis

// Severity enum
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// SecurityIssue is one vulnerability reported by the model.
type SecurityIssue struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Code        string   `json:"code"`
	Fix         string   `json:"fix"`
	CVSSScore   float64  `json:"cvss_score"`
	Severity    Severity `json:"severity"`
}

// SecurityReport is the full analysis result for one code submission.
type SecurityReport struct {
	Summary string          `json:"summary"`
	Issues  []SecurityIssue `json:"issues"`
}
