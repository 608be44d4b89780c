package api

import (
	"github.com/samcharles93/trinity/internal/chat"
	"github.com/samcharles93/trinity/internal/inference"
	"github.com/samcharles93/trinity/internal/session"
)

// newSessionResponse snapshots an entry. Callers hold entry.mu.
func newSessionResponse(entry *sessionEntry) SessionResponse {
	sess := entry.session
	msgs := sess.Messages()
	if msgs == nil {
		msgs = []chat.Message{}
	}
	return SessionResponse{
		ID:           sess.ID(),
		Object:       "session",
		Name:         sess.Name(),
		SystemPrompt: sess.SystemPrompt(),
		Format:       sess.Formatter().Name(),
		CreatedAt:    entry.createdAt.Unix(),
		Messages:     msgs,
	}
}

// sendOptions maps a message request onto session options. The server never
// prints; streaming goes through SendOptions.Fragments instead.
func sendOptions(req *MessageRequest, base inference.Sampling) (session.SendOptions, error) {
	opts := session.DefaultSendOptions()
	opts.Print = false
	opts.Stream = req.Stream != nil && *req.Stream
	if req.AddToHistory != nil {
		opts.AddToHistory = *req.AddToHistory
	}
	if req.Role != "" {
		role, err := chat.ParseRole(req.Role)
		if err != nil {
			return opts, newInvalidRequest(err.Error())
		}
		opts.Role = role
	}
	opts.Sampling = req.SamplingOptions.Resolve(base)
	opts.Stop = req.Stop
	opts.Grammar = inference.NewGrammar(req.Grammar)
	return opts, nil
}
