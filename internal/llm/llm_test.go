package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/Zuo-Peng/opencontext/internal/config"
)

type fakeCompleter struct {
	reply string
	err   error
	got   []Request
}

func (f *fakeCompleter) Complete(_ context.Context, req Request) (Response, error) {
	f.got = append(f.got, req)
	if f.err != nil {
		return Response{}, f.err
	}
	return Response{Content: f.reply, Model: "fake-1"}, nil
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare", `{"a":1}`, `{"a":1}`},
		{"padded", "  \n{\"a\":1}\n", `{"a":1}`},
		{"json fence", "Sure:\n```json\n{\"a\":1}\n```\nthanks", `{"a":1}`},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"unterminated fence", "```json", ""},
		{"prose", "I could not do that", ""},
		{"array", `[1,2]`, ""},
		{"broken", `{"a":`, ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.in)
			if tt.want == "" {
				assert.ErrorIs(t, err, ErrNoJSON)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStripFence(t *testing.T) {
	assert.Equal(t, "# Brief", StripFence("```markdown\n# Brief\n```"))
	assert.Equal(t, "# Brief", StripFence("```\n# Brief\n```\n"))
	assert.Equal(t, "# Brief", StripFence("# Brief"))
}

func TestPrompt(t *testing.T) {
	for _, task := range []string{TaskTurnSummary, TaskSessionSummary, TaskSessionExtract,
		TaskBriefSynthesize, TaskBriefUpdate, TaskEventSummary} {
		assert.NotEmpty(t, prompts[task], task)
		assert.Equal(t, prompts[task], Prompt(task))
	}
	assert.Equal(t, "Complete the 'other' task. Output STRICT JSON only.", Prompt("other"))
}

func TestClientJSON(t *testing.T) {
	fake := &fakeCompleter{reply: "```json\n{\"title\":\"Fix parser\",\"is_continuation\":true}\n```"}
	c := New(fake, zerolog.Nop())

	var out struct {
		Title          string `json:"title"`
		IsContinuation bool   `json:"is_continuation"`
	}
	model, err := c.JSON(context.Background(), TaskTurnSummary, map[string]string{"user_message": "fix it"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "fake-1", model)
	assert.Equal(t, "Fix parser", out.Title)
	assert.True(t, out.IsContinuation)

	require.Len(t, fake.got, 1)
	assert.Equal(t, prompts[TaskTurnSummary], fake.got[0].System)
	assert.JSONEq(t, `{"user_message":"fix it"}`, fake.got[0].User)
	assert.Zero(t, fake.got[0].MaxTokens)
}

func TestClientJSON_Errors(t *testing.T) {
	var out map[string]any

	c := New(&fakeCompleter{reply: "no idea"}, zerolog.Nop())
	model, err := c.JSON(context.Background(), TaskEventSummary, nil, &out)
	assert.ErrorIs(t, err, ErrNoJSON)
	assert.Equal(t, "fake-1", model)

	boom := errors.New("boom")
	c = New(&fakeCompleter{err: boom}, zerolog.Nop())
	_, err = c.JSON(context.Background(), TaskEventSummary, nil, &out)
	assert.ErrorIs(t, err, boom)
}

func TestClientText(t *testing.T) {
	fake := &fakeCompleter{reply: "```markdown\n# Project: app\n```"}
	c := New(fake, zerolog.Nop())

	got, err := c.Text(context.Background(), TaskBriefSynthesize, "input")
	require.NoError(t, err)
	assert.Equal(t, "# Project: app", got)
	assert.Equal(t, textMaxTokens, fake.got[0].MaxTokens)
	assert.Equal(t, "input", fake.got[0].User)

	_, err = c.Text(context.Background(), "nope", "input")
	assert.ErrorIs(t, err, ErrUnknownTask)

	c = New(&fakeCompleter{reply: "```\n```"}, zerolog.Nop())
	_, err = c.Text(context.Background(), TaskBriefUpdate, "input")
	assert.ErrorIs(t, err, ErrEmptyReply)
}

func TestNewOpenAI_NoKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := NewOpenAI(config.LLMConfig{Model: "anthropic/claude-haiku"})
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestOpenAIComplete(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"served-model",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"{\"ok\":true}"}}]}`)
	}))
	defer srv.Close()

	o, err := NewOpenAI(config.LLMConfig{
		Model:     "openai/gpt-4o-mini",
		APIKey:    "test-key",
		BaseURL:   srv.URL,
		MaxTokens: 512,
	})
	require.NoError(t, err)

	resp, err := o.Complete(context.Background(), Request{System: "sys", User: "hello"})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, resp.Content)
	assert.Equal(t, "served-model", resp.Model)

	req := gjson.ParseBytes(body)
	assert.Equal(t, "gpt-4o-mini", req.Get("model").String())
	assert.Equal(t, int64(512), req.Get("max_tokens").Int())
	assert.Equal(t, "system", req.Get("messages.0.role").String())
	assert.Equal(t, "hello", req.Get("messages.1.content").String())
}
