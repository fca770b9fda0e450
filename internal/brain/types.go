// Package brain talks JSON-RPC to the assistant backend that turns a
// finished utterance into a spoken reply.
package brain

import "strings"

// JSONRPCRequest is a JSON-RPC 2.0 request envelope.
type JSONRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      int    `json:"id"`
}

// JSONRPCResponse is a JSON-RPC 2.0 response envelope.
type JSONRPCResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	Result  any       `json:"result,omitempty"`
	Error   *RPCError `json:"error,omitempty"`
	ID      any       `json:"id"`
}

// RPCError is a JSON-RPC error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// MessageSendParams are the params for message/send.
type MessageSendParams struct {
	Message *Message `json:"message"`
}

// Message is a conversational message with typed parts.
type Message struct {
	Role     string         `json:"role"`
	Parts    []Part         `json:"parts"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Part is one content part of a message.
type Part interface {
	PartKind() string
}

// TextPart carries plain text.
type TextPart struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

func (TextPart) PartKind() string { return "text" }

// DataPart carries structured data, such as an extracted task.
type DataPart struct {
	Kind string         `json:"kind"`
	Data map[string]any `json:"data"`
}

func (DataPart) PartKind() string { return "data" }

// NewTextMessage builds a single-part text message.
func NewTextMessage(role, text string, metadata map[string]any) *Message {
	return &Message{
		Role:     role,
		Parts:    []Part{TextPart{Kind: "text", Text: text}},
		Metadata: metadata,
	}
}

// ExtractText concatenates all text parts.
func (m *Message) ExtractText() string {
	var sb strings.Builder
	for _, p := range m.Parts {
		if tp, ok := p.(TextPart); ok {
			if sb.Len() > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString(tp.Text)
		}
	}
	return sb.String()
}
