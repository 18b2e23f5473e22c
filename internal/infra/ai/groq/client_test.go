package groq

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/securescript/securescript-api/internal/domain/analysis"
)

const sampleReport = `{
  "summary": "One injection issue found",
  "issues": [
    {
      "title": "SQL injection",
      "description": "User input concatenated into a query",
      "code": "cursor.execute('SELECT * FROM users WHERE id = ' + user_id)",
      "fix": "Use parameterized queries",
      "cvss_score": 8.2,
      "severity": "high"
    }
  ]
}`

func TestParseReportRawJSON(t *testing.T) {
	report, err := ParseReport(sampleReport)
	require.NoError(t, err)
	require.Equal(t, "One injection issue found", report.Summary)
	require.Len(t, report.Issues, 1)
	require.Equal(t, analysis.SeverityHigh, report.Issues[0].Severity)
	require.Equal(t, 8.2, report.Issues[0].CVSSScore)
}

func TestParseReportMarkdownFence(t *testing.T) {
	report, err := ParseReport("Here is the analysis:\n```json\n" + sampleReport + "\n```\nDone.")
	require.NoError(t, err)
	require.Len(t, report.Issues, 1)
	require.Equal(t, "SQL injection", report.Issues[0].Title)
}

func TestParseReportBareObject(t *testing.T) {
	report, err := ParseReport("The model says: " + sampleReport + " end of output")
	require.NoError(t, err)
	require.Len(t, report.Issues, 1)
}

func TestParseReportGarbage(t *testing.T) {
	_, err := ParseReport("sorry, I cannot analyze this code")
	require.ErrorIs(t, err, analysis.ErrMalformedOutput)
}

func TestParseReportBrokenJSONInFence(t *testing.T) {
	_, err := ParseReport("```json\n{\"summary\": \n```")
	require.ErrorIs(t, err, analysis.ErrMalformedOutput)
}
