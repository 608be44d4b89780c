package api

import (
	"github.com/samcharles93/trinity/internal/chat"
	"github.com/samcharles93/trinity/internal/inference"
)

type CreateSessionRequest struct {
	Name         string `json:"name,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	Format       string `json:"format,omitempty"`
}

type SessionResponse struct {
	ID           string         `json:"id"`
	Object       string         `json:"object"`
	Name         string         `json:"name"`
	SystemPrompt string         `json:"system_prompt"`
	Format       string         `json:"format"`
	CreatedAt    int64          `json:"created_at"`
	Messages     []chat.Message `json:"messages"`
}

// MessageRequest is the body of POST /v1/sessions/:id/messages. Sampling
// fields that are omitted keep the server defaults.
type MessageRequest struct {
	Content      string   `json:"content"`
	Role         string   `json:"role,omitempty"`
	Stream       *bool    `json:"stream,omitempty"`
	AddToHistory *bool    `json:"add_to_history,omitempty"`
	Stop         []string `json:"stop,omitempty"`
	Grammar      string   `json:"grammar,omitempty"`

	inference.SamplingOptions
}

type MessageResponse struct {
	Object        string `json:"object"`
	SessionID     string `json:"session_id"`
	Role          string `json:"role"`
	Content       string `json:"content"`
	HistoryLength int    `json:"history_length"`
}

type TruncateRequest struct {
	K int `json:"k"`
}

type TruncateResponse struct {
	Object        string `json:"object"`
	SessionID     string `json:"session_id"`
	Removed       int    `json:"removed"`
	HistoryLength int    `json:"history_length"`
}

type FormatInfo struct {
	Name          string   `json:"name"`
	StopSequences []string `json:"stop_sequences"`
}

type ListResponse[T any] struct {
	Object string `json:"object"`
	Data   []T    `json:"data"`
}

type DeleteResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

type ErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Param   string `json:"param,omitempty"`
}

type streamEvent struct {
	Type           string           `json:"type"`
	SequenceNumber int              `json:"sequence_number"`
	Delta          string           `json:"delta,omitempty"`
	Message        *MessageResponse `json:"message,omitempty"`
	Error          *ErrorBody       `json:"error,omitempty"`
}
