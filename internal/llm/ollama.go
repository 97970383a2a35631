package llm

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Ollama talks to a local Ollama server's /api/chat endpoint.
type Ollama struct {
	host   string
	model  string
	client *http.Client
}

// NewOllama creates an Ollama client.
func NewOllama(host, model string, timeout time.Duration) *Ollama {
	return &Ollama{
		host:   strings.TrimRight(host, "/"),
		model:  model,
		client: &http.Client{Timeout: timeout},
	}
}

type ollamaRequest struct {
	Model     string           `json:"model"`
	Messages  []Message        `json:"messages"`
	Tools     []ToolDefinition `json:"tools,omitempty"`
	Stream    bool             `json:"stream"`
	KeepAlive int              `json:"keep_alive"`
	Options   map[string]any   `json:"options"`
}

type ollamaResponse struct {
	Message Message `json:"message"`
}

// Name implements Gateway.
func (o *Ollama) Name() string { return "ollama" }

// Chat implements Gateway.
func (o *Ollama) Chat(ctx context.Context, messages []Message, tools []ToolDefinition) (Response, error) {
	req := ollamaRequest{
		Model:     o.model,
		Messages:  ollamaMessages(messages),
		Tools:     tools,
		KeepAlive: -1,
		Options:   map[string]any{"num_ctx": 4096},
	}

	var out ollamaResponse
	if err := postJSON(ctx, o.client, o.Name(), o.host+"/api/chat", nil, req, &out); err != nil {
		return Response{}, err
	}
	return Response{Content: out.Message.Content, ToolCalls: out.Message.ToolCalls}, nil
}

// Health implements Gateway.
func (o *Ollama) Health(ctx context.Context) bool {
	return probe(ctx, o.client, o.host+"/api/tags", nil)
}

// ollamaMessages re-encodes tool call arguments as JSON objects, the form
// Ollama expects.
func ollamaMessages(in []Message) []Message {
	out := make([]Message, len(in))
	for i, m := range in {
		out[i] = m
		if len(m.ToolCalls) == 0 {
			continue
		}
		calls := make([]ToolCall, len(m.ToolCalls))
		for j, c := range m.ToolCalls {
			calls[j] = c
			calls[j].Function.Arguments = encodeArgs(c.Args())
		}
		out[i].ToolCalls = calls
	}
	return out
}
