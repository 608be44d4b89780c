// Package api serves chat sessions over HTTP.
package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/trinity/internal/chat"
	"github.com/samcharles93/trinity/internal/chatfmt"
	"github.com/samcharles93/trinity/internal/inference"
	"github.com/samcharles93/trinity/internal/logger"
	"github.com/samcharles93/trinity/internal/session"
)

type ServerConfig struct {
	// Engine may be nil; message requests then fail with 503 no_model_loaded.
	Engine inference.Engine

	// Defaults for sessions created without explicit values.
	Name         string
	SystemPrompt string
	Format       string

	Sampling inference.Sampling
	// StripThinking sanitizes replies before they are stored in a history.
	StripThinking bool
	IdleTTL       time.Duration
	Logger        logger.Logger
}

type Server struct {
	cfg   ServerConfig
	store *SessionStore
	log   logger.Logger
	clock func() time.Time
}

func NewServer(cfg ServerConfig) *Server {
	log := cfg.Logger
	if log == nil {
		log = logger.Discard()
	}
	if cfg.Sampling == (inference.Sampling{}) {
		cfg.Sampling = inference.DefaultSampling()
	}
	return &Server{
		cfg:   cfg,
		store: NewSessionStore(cfg.IdleTTL, log),
		log:   log,
		clock: time.Now,
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)
	e.GET("/v1/formats", s.handleListFormats)

	e.POST("/v1/sessions", s.handleCreateSession)
	e.GET("/v1/sessions/:id", s.handleGetSession)
	e.DELETE("/v1/sessions/:id", s.handleDeleteSession)
	e.POST("/v1/sessions/:id/messages", s.handleSendMessage)
	e.POST("/v1/sessions/:id/truncate", s.handleTruncate)
}

// Close releases the session store.
func (s *Server) Close() {
	s.store.Close()
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":       "ok",
		"model_loaded": s.cfg.Engine != nil,
		"sessions":     s.store.Len(),
	})
}

func (s *Server) handleListFormats(c *echo.Context) error {
	names := chatfmt.Presets()
	out := make([]FormatInfo, 0, len(names))
	for _, name := range names {
		f, err := chatfmt.Lookup(name)
		if err != nil {
			return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
		}
		out = append(out, FormatInfo{Name: f.Name(), StopSequences: f.StopSequences()})
	}
	return c.JSON(http.StatusOK, ListResponse[FormatInfo]{Object: "list", Data: out})
}

func (s *Server) handleCreateSession(c *echo.Context) error {
	req, err := decodeJSON[CreateSessionRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}

	cfg := session.Config{
		Name:         firstNonEmpty(req.Name, s.cfg.Name),
		SystemPrompt: firstNonEmpty(req.SystemPrompt, s.cfg.SystemPrompt),
		Format:       firstNonEmpty(req.Format, s.cfg.Format),
		Output:       io.Discard,
		Logger:       s.log,
	}
	if s.cfg.StripThinking {
		cfg.Sanitize = inference.SanitizeResponse
	}
	sess, err := session.New(s.cfg.Engine, cfg)
	if err != nil {
		if errors.Is(err, chatfmt.ErrUnknownPreset) {
			return writeError(c, http.StatusBadRequest, "invalid_request_error", err.Error(), "format", "")
		}
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
	}

	entry := s.store.Put(sess, s.clock())
	s.log.Info("session created", "session_id", sess.ID(), "format", sess.Formatter().Name())
	return c.JSON(http.StatusCreated, newSessionResponse(entry))
}

func (s *Server) handleGetSession(c *echo.Context) error {
	entry, err := s.lookup(c)
	if err != nil {
		return s.writeLookupError(c, err)
	}
	entry.mu.Lock()
	resp := newSessionResponse(entry)
	entry.mu.Unlock()
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleDeleteSession(c *echo.Context) error {
	id, err := sessionIDParam(c)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if !s.store.Delete(id) {
		return writeNotFound(c, "session not found")
	}
	s.log.Info("session deleted", "session_id", id)
	return c.JSON(http.StatusOK, DeleteResponse{ID: id, Object: "session.deleted", Deleted: true})
}

func (s *Server) handleSendMessage(c *echo.Context) error {
	entry, err := s.lookup(c)
	if err != nil {
		return s.writeLookupError(c, err)
	}
	req, err := decodeJSON[MessageRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	opts, err := sendOptions(&req, s.cfg.Sampling)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}

	var writer *SSEStreamWriter
	if opts.Stream {
		w, err := NewSSEStreamWriter(c)
		if err != nil {
			return writeBadRequest(c, err.Error())
		}
		writer = w
		opts.Fragments = w.EmitToken
	}

	entry.mu.Lock()
	reply, err := entry.session.Reply(c.Request().Context(), req.Content, opts)
	resp := MessageResponse{
		Object:        "chat.message",
		SessionID:     entry.session.ID(),
		Role:          reply.Role.String(),
		Content:       reply.Content,
		HistoryLength: entry.session.Len(),
	}
	entry.mu.Unlock()

	if err != nil {
		status, errType := classifySendError(err)
		s.log.Warn("send failed", "session_id", resp.SessionID, "error", err)
		if writer != nil && writer.Started() {
			return writer.Failed(errType, err)
		}
		if errors.Is(err, session.ErrNoEngine) {
			return writeNoModel(c)
		}
		return writeError(c, status, errType, err.Error(), "", "")
	}

	if writer != nil {
		return writer.Complete(resp)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleTruncate(c *echo.Context) error {
	entry, err := s.lookup(c)
	if err != nil {
		return s.writeLookupError(c, err)
	}
	req, err := decodeJSON[TruncateRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}

	entry.mu.Lock()
	removed := entry.session.Truncate(req.K)
	resp := TruncateResponse{
		Object:        "session.truncated",
		SessionID:     entry.session.ID(),
		Removed:       removed,
		HistoryLength: entry.session.Len(),
	}
	entry.mu.Unlock()

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) lookup(c *echo.Context) (*sessionEntry, error) {
	id, err := sessionIDParam(c)
	if err != nil {
		return nil, err
	}
	entry, ok := s.store.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return entry, nil
}

func (s *Server) writeLookupError(c *echo.Context, err error) error {
	if errors.Is(err, ErrSessionNotFound) {
		return writeNotFound(c, "session not found")
	}
	return writeBadRequest(c, err.Error())
}

func classifySendError(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrNoEngine):
		return http.StatusServiceUnavailable, "no_model_loaded"
	case errors.Is(err, chat.ErrInvalidRole),
		errors.Is(err, chatfmt.ErrInvalidConversation),
		errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request_error"
	default:
		return http.StatusInternalServerError, "server_error"
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
