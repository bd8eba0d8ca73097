// Package llm talks to a chat model for the summarization tasks.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

var (
	ErrNoAPIKey    = errors.New("no API key configured")
	ErrNoJSON      = errors.New("model reply is not a JSON object")
	ErrUnknownTask = errors.New("unknown task")
	ErrEmptyReply  = errors.New("empty model reply")
)

// Markdown replies are longer than the configured per-call budget.
const textMaxTokens = 4096

type Request struct {
	Task      string
	System    string
	User      string
	MaxTokens int // 0 uses the completer's default
}

type Response struct {
	Content string
	Model   string
}

// Completer sends one system+user exchange to a model.
type Completer interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Client wraps a Completer with the task prompts and reply decoding.
type Client struct {
	c   Completer
	log zerolog.Logger
}

func New(c Completer, log zerolog.Logger) *Client {
	return &Client{c: c, log: log}
}

// JSON sends payload as JSON under the task's prompt and decodes the reply
// into out. The name of the model that answered is returned.
func (c *Client) JSON(ctx context.Context, task string, payload, out any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode %s payload: %w", task, err)
	}

	start := time.Now()
	resp, err := c.c.Complete(ctx, Request{
		Task:   task,
		System: Prompt(task),
		User:   string(body),
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", task, err)
	}

	raw, err := ExtractJSON(resp.Content)
	if err != nil {
		c.log.Warn().Str("task", task).Str("reply", truncate(resp.Content, 200)).Msg("non-JSON reply")
		return resp.Model, fmt.Errorf("%s: %w", task, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return resp.Model, fmt.Errorf("%s: decode reply: %w", task, err)
	}

	c.log.Debug().Str("task", task).Str("model", resp.Model).Dur("elapsed", time.Since(start)).Msg("llm call")
	return resp.Model, nil
}

// Text sends content under the task's prompt and returns the reply with any
// wrapping code fence removed.
func (c *Client) Text(ctx context.Context, task, content string) (string, error) {
	system, ok := prompts[task]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTask, task)
	}

	start := time.Now()
	resp, err := c.c.Complete(ctx, Request{
		Task:      task,
		System:    system,
		User:      content,
		MaxTokens: textMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", task, err)
	}

	text := StripFence(resp.Content)
	if text == "" {
		return "", fmt.Errorf("%s: %w", task, ErrEmptyReply)
	}
	c.log.Debug().Str("task", task).Dur("elapsed", time.Since(start)).Msg("llm text call")
	return text, nil
}

// ExtractJSON returns the JSON object in a model reply, looking inside a
// markdown fence when there is one.
func ExtractJSON(text string) (string, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return "", ErrNoJSON
	}

	if i := strings.Index(s, "```json"); i >= 0 {
		s = fenced(s, i+len("```json"))
	} else if i := strings.Index(s, "```"); i >= 0 {
		s = fenced(s, i+len("```"))
	}

	if !strings.HasPrefix(s, "{") || !json.Valid([]byte(s)) {
		return "", ErrNoJSON
	}
	return s, nil
}

func fenced(s string, from int) string {
	end := strings.Index(s[from:], "```")
	if end < 0 {
		return s
	}
	return strings.TrimSpace(s[from : from+end])
}

// StripFence removes a markdown fence wrapped around a whole reply.
func StripFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```markdown")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
