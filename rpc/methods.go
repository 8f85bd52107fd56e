package rpc

import (
	"context"
	"encoding/json"
)

const (
	MethodListTools = "tools/list"
	MethodCallTool  = "tools/call"
	MethodChat      = "chat/completions"
)

// Tool describes a tool exposed by the gateway.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

// Content is one item of a tool result.
type Content struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

type callToolParams struct {
	Name      string `json:"name"`
	Arguments any    `json:"arguments"`
}

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatOptions are merged flat into the chat/completions params, e.g.
// {"model": "claude-3-sonnet", "temperature": 0.7}.
type ChatOptions map[string]any

type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type ChatResult struct {
	ID      string   `json:"id,omitempty"`
	Model   string   `json:"model,omitempty"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Reply returns the content of the first choice, or "" when there is none.
func (r *ChatResult) Reply() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// ListTools calls tools/list with no params.
func (c *Client) ListTools(ctx context.Context) (*ListToolsResult, error) {
	var result ListToolsResult
	if err := c.Call(ctx, MethodListTools, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CallTool calls tools/call with params {name, arguments}.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*CallToolResult, error) {
	if args == nil {
		args = map[string]any{}
	}
	var result CallToolResult
	if err := c.Call(ctx, MethodCallTool, callToolParams{Name: name, Arguments: args}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Chat calls chat/completions with params {messages, ...options}.
func (c *Client) Chat(ctx context.Context, messages []Message, options ChatOptions) (*ChatResult, error) {
	params := make(map[string]any, len(options)+1)
	for k, v := range options {
		params[k] = v
	}
	params["messages"] = messages

	var result ChatResult
	if err := c.Call(ctx, MethodChat, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
