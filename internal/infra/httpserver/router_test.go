package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	appanalysis "github.com/securescript/securescript-api/internal/application/analysis"
	domain "github.com/securescript/securescript-api/internal/domain/analysis"
	quotamem "github.com/securescript/securescript-api/internal/infra/quota/memory"
	"github.com/securescript/securescript-api/internal/middleware"
)

type fakeAnalyzer struct {
	report       *domain.SecurityReport
	analyzeErr   error
	analyzeCalls int

	chunks    []string
	streamErr error
	fixErr    error
	fixCalls  int
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, code string) (*domain.SecurityReport, error) {
	f.analyzeCalls++
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	return f.report, nil
}

func (f *fakeAnalyzer) Fix(ctx context.Context, code string, issues []domain.SecurityIssue) (domain.FixStream, error) {
	f.fixCalls++
	if f.fixErr != nil {
		return nil, f.fixErr
	}
	return &scriptedStream{chunks: f.chunks, err: f.streamErr}, nil
}

type scriptedStream struct {
	chunks []string
	err    error
	pos    int
	closed bool
}

func (s *scriptedStream) Recv() (string, error) {
	if s.pos < len(s.chunks) {
		chunk := s.chunks[s.pos]
		s.pos++
		return chunk, nil
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func (s *scriptedStream) Close() error {
	s.closed = true
	return nil
}

func newTestRouter(analyzer domain.Analyzer, dailyLimit int) http.Handler {
	return NewRouter(appanalysis.NewService(analyzer), Options{
		Quota: quotamem.New(dailyLimit, 24*time.Hour, nil),
		Auth:  middleware.AuthConfig{RequireVerification: false},
		AllowedOrigins: []string{"*"},
		UpstreamAPIKey: "test-key",
		UpstreamWait:   5 * time.Second,
	})
}

func doJSON(t *testing.T, handler http.Handler, path, email string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if email != "" {
		req.Header.Set("X-User-Email", email)
	}
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

type sseEvent struct {
	Name string
	Data map[string]string
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	for _, block := range strings.Split(body, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		ev := sseEvent{Data: map[string]string{}}
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				ev.Name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				payload := strings.TrimPrefix(line, "data: ")
				if err := json.Unmarshal([]byte(payload), &ev.Data); err != nil {
					t.Fatalf("event %q carries invalid JSON: %q", ev.Name, payload)
				}
			default:
				t.Fatalf("unexpected SSE line: %q", line)
			}
		}
		events = append(events, ev)
	}
	return events
}

func TestAnalyzeReturnsReport(t *testing.T) {
	analyzer := &fakeAnalyzer{report: &domain.SecurityReport{
		Summary: "one issue",
		Issues: []domain.SecurityIssue{
			{Title: "eval usage", Severity: domain.SeverityCritical, CVSSScore: 9.1},
		},
	}}
	handler := newTestRouter(analyzer, 7)

	resp := doJSON(t, handler, "/api/analyze", "a@x.com", `{"code": "eval(input())"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", resp.Code, resp.Body.String())
	}

	var report domain.SecurityReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Summary != "one issue" || len(report.Issues) != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Issues[0].Severity != domain.SeverityCritical {
		t.Fatalf("unexpected severity: %s", report.Issues[0].Severity)
	}
}

func TestAnalyzeEmptyCodeRejectedBeforeUpstream(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	handler := newTestRouter(analyzer, 7)

	resp := doJSON(t, handler, "/api/analyze", "a@x.com", `{"code": "   "}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if analyzer.analyzeCalls != 0 {
		t.Fatalf("upstream must not be called for empty code")
	}
}

func TestAnalyzeUpstreamMalformedOutput(t *testing.T) {
	analyzer := &fakeAnalyzer{analyzeErr: domain.ErrMalformedOutput}
	handler := newTestRouter(analyzer, 7)

	resp := doJSON(t, handler, "/api/analyze", "a@x.com", `{"code": "print(1)"}`)
	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.Code)
	}
}

func TestAnalyzeRequiresIdentity(t *testing.T) {
	handler := newTestRouter(&fakeAnalyzer{}, 7)

	resp := doJSON(t, handler, "/api/analyze", "", `{"code": "print(1)"}`)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestQuotaSharedAcrossEndpoints(t *testing.T) {
	analyzer := &fakeAnalyzer{
		report: &domain.SecurityReport{Summary: "clean"},
		chunks: []string{"pass"},
	}
	handler := newTestRouter(analyzer, 2)

	if resp := doJSON(t, handler, "/api/analyze", "a@x.com", `{"code": "print(1)"}`); resp.Code != http.StatusOK {
		t.Fatalf("first analyze: expected 200, got %d", resp.Code)
	}
	if resp := doJSON(t, handler, "/api/fix", "a@x.com", `{"code": "print(1)", "issues": []}`); resp.Code != http.StatusOK {
		t.Fatalf("fix: expected 200, got %d", resp.Code)
	}

	resp := doJSON(t, handler, "/api/analyze", "a@x.com", `{"code": "print(1)"}`)
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: expected 429, got %d", resp.Code)
	}
	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode 429 body: %v", err)
	}
	if _, ok := payload["reset_after_seconds"]; !ok {
		t.Fatalf("expected reset_after_seconds in 429 body, got %v", payload)
	}

	// A different user is unaffected.
	if resp := doJSON(t, handler, "/api/analyze", "b@x.com", `{"code": "print(1)"}`); resp.Code != http.StatusOK {
		t.Fatalf("other user: expected 200, got %d", resp.Code)
	}
}

func TestQuotaSeventhOkEighthDenied(t *testing.T) {
	analyzer := &fakeAnalyzer{report: &domain.SecurityReport{Summary: "clean"}}
	handler := newTestRouter(analyzer, 7)

	for i := 0; i < 7; i++ {
		resp := doJSON(t, handler, "/api/analyze", "a@x.com", `{"code": "print(1)"}`)
		if resp.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, resp.Code)
		}
	}
	resp := doJSON(t, handler, "/api/analyze", "a@x.com", `{"code": "print(1)"}`)
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("8th request: expected 429, got %d", resp.Code)
	}
}

func TestFixStreamsChunksInOrder(t *testing.T) {
	analyzer := &fakeAnalyzer{chunks: []string{"def f(", "): pass"}}
	handler := newTestRouter(analyzer, 7)

	resp := doJSON(t, handler, "/api/fix", "a@x.com", `{"code": "def f(): eval(x)", "issues": [{"title": "eval", "severity": "high"}]}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", resp.Code, resp.Body.String())
	}
	if ct := resp.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected text/event-stream, got %q", ct)
	}

	events := parseSSE(t, resp.Body.String())
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d: %+v", len(events), events)
	}
	if events[0].Name != "start" {
		t.Fatalf("expected start first, got %q", events[0].Name)
	}

	var reassembled strings.Builder
	for _, ev := range events[1:3] {
		if ev.Name != "chunk" {
			t.Fatalf("expected chunk, got %q", ev.Name)
		}
		reassembled.WriteString(ev.Data["chunk"])
	}
	if reassembled.String() != "def f(): pass" {
		t.Fatalf("reassembled code = %q", reassembled.String())
	}

	last := events[len(events)-1]
	if last.Name != "complete" {
		t.Fatalf("expected complete terminal event, got %q", last.Name)
	}
	if last.Data["fixed_code"] != "def f(): pass" {
		t.Fatalf("fixed_code = %q", last.Data["fixed_code"])
	}
}

func TestFixStreamUpstreamFailureEmitsError(t *testing.T) {
	analyzer := &fakeAnalyzer{chunks: []string{"partial"}, streamErr: domain.ErrUpstream}
	handler := newTestRouter(analyzer, 7)

	resp := doJSON(t, handler, "/api/fix", "a@x.com", `{"code": "print(1)", "issues": []}`)
	events := parseSSE(t, resp.Body.String())

	last := events[len(events)-1]
	if last.Name != "error" {
		t.Fatalf("expected error terminal event, got %q", last.Name)
	}
	for _, ev := range events {
		if ev.Name == "complete" {
			t.Fatalf("stream must not emit complete after a failure")
		}
	}
}

func TestFixUpstreamOpenFailureIsPlainHTTPError(t *testing.T) {
	analyzer := &fakeAnalyzer{fixErr: domain.ErrUpstream}
	handler := newTestRouter(analyzer, 7)

	resp := doJSON(t, handler, "/api/fix", "a@x.com", `{"code": "print(1)", "issues": []}`)
	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.Code)
	}
}

func TestFixEmptyCodeRejected(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	handler := newTestRouter(analyzer, 7)

	resp := doJSON(t, handler, "/api/fix", "a@x.com", `{"code": "", "issues": []}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if analyzer.fixCalls != 0 {
		t.Fatalf("upstream must not be called for empty code")
	}
}

func TestHealthNoAuth(t *testing.T) {
	handler := newTestRouter(&fakeAnalyzer{}, 7)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var status map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if status["status"] != "ok" || status["service"] != "securescript-api" {
		t.Fatalf("unexpected health body: %v", status)
	}
}

func TestMetricsExposed(t *testing.T) {
	handler := newTestRouter(&fakeAnalyzer{}, 7)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var metrics map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&metrics); err != nil {
		t.Fatalf("decode metrics: %v", err)
	}
	if _, ok := metrics["requests_total"]; !ok {
		t.Fatalf("expected requests_total in metrics")
	}
}
