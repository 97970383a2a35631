package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OpenAICompat talks to any OpenAI-compatible /chat/completions endpoint.
// PatriotAI is served through it.
type OpenAICompat struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewOpenAICompat creates an OpenAI-compatible client reported under name.
func NewOpenAICompat(name, baseURL, apiKey, model string, timeout time.Duration) *OpenAICompat {
	return &OpenAICompat{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

type openAIRequest struct {
	Model    string           `json:"model"`
	Messages []openAIMessage  `json:"messages"`
	Tools    []ToolDefinition `json:"tools,omitempty"`
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAIToolCall struct {
	ID       string `json:"id,omitempty"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

// Name implements Gateway.
func (c *OpenAICompat) Name() string { return c.name }

// Chat implements Gateway.
func (c *OpenAICompat) Chat(ctx context.Context, messages []Message, tools []ToolDefinition) (Response, error) {
	req := openAIRequest{Model: c.model, Tools: tools}
	for _, m := range messages {
		req.Messages = append(req.Messages, toOpenAI(m))
	}

	var out openAIResponse
	if err := postJSON(ctx, c.client, c.name, c.baseURL+"/chat/completions", c.authHeader(), req, &out); err != nil {
		return Response{}, err
	}
	if len(out.Choices) == 0 {
		return Response{}, fmt.Errorf("%s: response has no choices", c.name)
	}

	msg := out.Choices[0].Message
	resp := Response{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		call := ToolCall{ID: tc.ID, Type: tc.Type}
		call.Function.Name = tc.Function.Name
		call.Function.Arguments = json.RawMessage(tc.Function.Arguments)
		call.Function.Arguments = encodeArgs(call.Args())
		resp.ToolCalls = append(resp.ToolCalls, call)
	}
	return resp, nil
}

// Health implements Gateway.
func (c *OpenAICompat) Health(ctx context.Context) bool {
	return probe(ctx, c.client, c.baseURL+"/models", c.authHeader())
}

func (c *OpenAICompat) authHeader() http.Header {
	h := http.Header{}
	if c.apiKey != "" {
		h.Set("Authorization", "Bearer "+c.apiKey)
	}
	return h
}

func toOpenAI(m Message) openAIMessage {
	out := openAIMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID}
	for _, c := range m.ToolCalls {
		tc := openAIToolCall{ID: c.ID, Type: "function"}
		tc.Function.Name = c.Function.Name
		tc.Function.Arguments = string(encodeArgs(c.Args()))
		out.ToolCalls = append(out.ToolCalls, tc)
	}
	return out
}

func encodeArgs(args map[string]any) json.RawMessage {
	data, err := json.Marshal(args)
	if err != nil {
		return json.RawMessage("{}")
	}
	return data
}
