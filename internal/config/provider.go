package config

import (
	"fmt"
	"os"
	"strings"
)

// Provider describes an OpenAI-compatible endpoint selected by a keyword in
// the model name.
type Provider struct {
	Keyword string
	EnvKey  string
	BaseURL string
}

// providers is matched in order against the lower-cased model name.
var providers = []Provider{
	{"anthropic", "ANTHROPIC_API_KEY", "https://api.anthropic.com/v1/"},
	{"claude", "ANTHROPIC_API_KEY", "https://api.anthropic.com/v1/"},
	{"openai", "OPENAI_API_KEY", "https://api.openai.com/v1"},
	{"gpt", "OPENAI_API_KEY", "https://api.openai.com/v1"},
	{"deepseek", "DEEPSEEK_API_KEY", "https://api.deepseek.com/v1"},
	{"gemini", "GEMINI_API_KEY", "https://generativelanguage.googleapis.com/v1beta/openai/"},
	{"dashscope", "DASHSCOPE_API_KEY", "https://dashscope.aliyuncs.com/compatible-mode/v1"},
	{"qwen", "DASHSCOPE_API_KEY", "https://dashscope.aliyuncs.com/compatible-mode/v1"},
	{"moonshot", "MOONSHOT_API_KEY", "https://api.moonshot.cn/v1"},
	{"groq", "GROQ_API_KEY", "https://api.groq.com/openai/v1"},
	{"zhipu", "ZHIPUAI_API_KEY", "https://open.bigmodel.cn/api/paas/v4/"},
	{"glm", "ZHIPUAI_API_KEY", "https://open.bigmodel.cn/api/paas/v4/"},
}

func (l LLMConfig) Provider() (Provider, bool) {
	model := strings.ToLower(l.Model)
	for _, p := range providers {
		if strings.Contains(model, p.Keyword) {
			return p, true
		}
	}
	return Provider{}, false
}

// ModelName is the model id sent to the endpoint, without a provider/ prefix.
func (l LLMConfig) ModelName() string {
	if i := strings.Index(l.Model, "/"); i >= 0 {
		return l.Model[i+1:]
	}
	return l.Model
}

// Endpoint is the configured base URL, or the provider's default.
func (l LLMConfig) Endpoint() string {
	if l.BaseURL != "" {
		return l.BaseURL
	}
	p, _ := l.Provider()
	return p.BaseURL
}

// ResolveAPIKey prefers the configured key over the provider's env var.
func (l LLMConfig) ResolveAPIKey() string {
	if k := strings.TrimSpace(l.APIKey); k != "" {
		return k
	}
	if p, ok := l.Provider(); ok {
		return strings.TrimSpace(os.Getenv(p.EnvKey))
	}
	return ""
}

// CheckAPIKey returns nil when a key is available for the configured model.
func (l LLMConfig) CheckAPIKey() error {
	p, ok := l.Provider()
	if !ok && l.BaseURL == "" {
		return fmt.Errorf("unknown provider for model %q", l.Model)
	}
	if l.ResolveAPIKey() != "" {
		return nil
	}
	if !ok {
		return fmt.Errorf("missing API key: set llm.api_key in config.toml")
	}
	return fmt.Errorf("missing API key: set llm.api_key in config.toml or export %s", p.EnvKey)
}
