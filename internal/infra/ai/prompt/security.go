package prompt

import (
	"fmt"
	"strings"

	"github.com/securescript/securescript-api/internal/domain/analysis"
)

// GetSystemPrompt provides the researcher instructions and JSON schema for analysis output.
func GetSystemPrompt() string {
	return `You are an expert cybersecurity researcher.

Analyze the provided Python code for security vulnerabilities.

For each vulnerability you find, provide:
- A clear title
- Detailed description of the security issue
- The vulnerable code snippet
- How to fix it
- CVSS score (0.0-10.0)
- Severity level (critical/high/medium/low)

Focus on common issues like:
- SQL injection
- Command injection
- Hardcoded secrets
- Insecure eval/exec usage
- Path traversal
- Deserialization issues
- Authentication/authorization flaws
- Cryptographic weaknesses

Return your analysis in JSON format:
{
  "summary": "Executive summary",
  "issues": [
    {
      "title": "Issue title",
      "description": "Detailed description",
      "code": "Vulnerable code",
      "fix": "How to fix",
      "cvss_score": 7.5,
      "severity": "high"
    }
  ]
}`
}

// GetAnalysisPrompt builds the user message around the submitted code.
func GetAnalysisPrompt(code string) string {
	return fmt.Sprintf("Analyze this Python code for security vulnerabilities:\n\n%s", code)
}

// GetFixPrompt builds the rewrite request for the streaming fix call.
func GetFixPrompt(code string, issues []analysis.SecurityIssue) string {
	var b strings.Builder
	for i, issue := range issues {
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, issue.Title, issue.Description)
	}

	return fmt.Sprintf(`Fix the following security issues in this Python code:

ISSUES TO FIX:
%s
ORIGINAL CODE:
%s

Return ONLY the fixed code with all security issues resolved. Maintain the original code structure and comments.`, b.String(), code)
}
