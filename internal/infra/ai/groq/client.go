package groq

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/sashabaranov/go-openai"

	"github.com/securescript/securescript-api/internal/domain/analysis"
	"github.com/securescript/securescript-api/internal/infra/ai/prompt"
)

const (
	analyzeTemperature = 0.1
	fixTemperature     = 0.2
)

// Client talks to Groq through its OpenAI-compatible endpoint.
type Client struct {
	*openai.Client
	Model     string
	MaxTokens int
}

func NewClient(apiKey, baseURL, model string, maxTokens int) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = "llama-3.3-70b-versatile"
	}
	if maxTokens <= 0 {
		maxTokens = 4000
	}
	return &Client{Client: openai.NewClientWithConfig(cfg), Model: model, MaxTokens: maxTokens}
}

// Analyze runs a single JSON-mode completion and parses it into a report.
func (c *Client) Analyze(ctx context.Context, code string) (*analysis.SecurityReport, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.Model,
		Temperature: analyzeTemperature,
		MaxTokens:   c.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.GetSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: prompt.GetAnalysisPrompt(code)},
		},
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", analysis.ErrUpstream, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty response", analysis.ErrMalformedOutput)
	}

	return ParseReport(resp.Choices[0].Message.Content)
}

// Fix opens a streaming completion that rewrites the code.
func (c *Client) Fix(ctx context.Context, code string, issues []analysis.SecurityIssue) (analysis.FixStream, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.Model,
		Temperature: fixTemperature,
		MaxTokens:   c.MaxTokens,
		Stream:      true,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt.GetFixPrompt(code, issues)},
		},
	}

	stream, err := c.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", analysis.ErrUpstream, err)
	}
	return &fixStream{stream: stream}, nil
}

type fixStream struct {
	stream *openai.ChatCompletionStream
}

// Recv returns the next non-empty content fragment, or io.EOF at end of stream.
func (s *fixStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if content := resp.Choices[0].Delta.Content; content != "" {
			return content, nil
		}
	}
}

func (s *fixStream) Close() error {
	return s.stream.Close()
}

var (
	fencedJSON = regexp.MustCompile("```json\\s*([\\s\\S]*?)\\s*```")
	bareJSON   = regexp.MustCompile(`\{[\s\S]*\}`)
)

// ParseReport decodes the model output into a SecurityReport. JSON mode
// usually returns a raw object, but some models still wrap it in a
// markdown fence, so try that before giving up. Unparseable output is an
// error; we never fabricate an empty report.
func ParseReport(output string) (*analysis.SecurityReport, error) {
	var report analysis.SecurityReport
	if err := json.Unmarshal([]byte(output), &report); err == nil {
		return &report, nil
	}

	candidate := ""
	if m := fencedJSON.FindStringSubmatch(output); m != nil {
		candidate = m[1]
	} else if m := bareJSON.FindString(output); m != "" {
		candidate = m
	}
	if candidate == "" {
		return nil, fmt.Errorf("%w: no JSON object in %q", analysis.ErrMalformedOutput, truncate(output, 200))
	}

	if err := json.Unmarshal([]byte(candidate), &report); err != nil {
		return nil, fmt.Errorf("%w: %v", analysis.ErrMalformedOutput, err)
	}
	return &report, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ analysis.Analyzer = (*Client)(nil)
