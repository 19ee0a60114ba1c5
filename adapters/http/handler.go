package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/satriahrh/cocoa-fruit/haggle/adapters/auth"
	"github.com/satriahrh/cocoa-fruit/haggle/domain"
	"github.com/satriahrh/cocoa-fruit/haggle/usecase"
	"github.com/satriahrh/cocoa-fruit/haggle/utils/log"
)

const (
	MaxMessageLength = 2000
	MaxAudioBytes    = 10 * 1024 * 1024
	VoiceTimeout     = 30 * time.Second
)

type NegotiationHandler struct {
	svc           *usecase.NegotiationService
	jwt           *auth.JWT
	transcriber   domain.Transcriber
	synthesizer   domain.Synthesizer
	maxConcurrent int
}

type Option func(*NegotiationHandler)

// WithVoice enables the audio and speech endpoints.
func WithVoice(t domain.Transcriber, s domain.Synthesizer) Option {
	return func(h *NegotiationHandler) {
		h.transcriber = t
		h.synthesizer = s
	}
}

func WithMaxConcurrent(n int) Option {
	return func(h *NegotiationHandler) { h.maxConcurrent = n }
}

type CreateSessionResponse struct {
	SessionID string         `json:"session_id"`
	Message   string         `json:"message"`
	Summary   domain.Summary `json:"summary"`
}

type SessionResponse struct {
	SessionID    string               `json:"session_id"`
	CustomerName string               `json:"customer_name"`
	Messages     []domain.ChatMessage `json:"messages"`
	Summary      domain.Summary       `json:"summary"`
}

type SubmitMessageRequest struct {
	Text string `json:"text"`
}

type SubmitAudioResponse struct {
	Transcript string            `json:"transcript"`
	Reply      usecase.TurnReply `json:"reply"`
}

type SpeechRequest struct {
	Text string `json:"text"`
}

func NewNegotiationHandler(svc *usecase.NegotiationService, jwt *auth.JWT, opts ...Option) *NegotiationHandler {
	h := &NegotiationHandler{svc: svc, jwt: jwt, maxConcurrent: 10}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes mounts the API on g.
func (h *NegotiationHandler) Routes(g *echo.Group) {
	// Public endpoints (no auth required)
	g.GET("/health", h.HealthCheck)
	g.POST("/auth/token", h.GenerateJWT)

	sessions := g.Group("/sessions", h.jwt.Middleware)
	sessions.POST("", h.CreateSession)
	sessions.GET("/:id", h.GetSession)
	sessions.DELETE("/:id", h.DeleteSession)

	// One semaphore shared by every endpoint that calls an external service.
	limit := ConcurrencyLimit(h.maxConcurrent)
	sessions.POST("/:id/messages", h.SubmitMessage, limit)
	if h.transcriber != nil {
		sessions.POST("/:id/audio", h.SubmitAudio, limit)
	}
	if h.synthesizer != nil {
		g.POST("/speech", h.Synthesize, h.jwt.Middleware, limit)
	}
}

// GenerateJWT creates a JWT token for a new buyer
func (h *NegotiationHandler) GenerateJWT(c echo.Context) error {
	key := c.Request().Header.Get("X-API-Key")
	secret := c.Request().Header.Get("X-API-Secret")
	if !h.jwt.CheckCredentials(key, secret) {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
	}

	buyerID := ulid.Make().String()
	token, err := h.jwt.Issue(buyerID)
	if err != nil {
		log.WithCtx(requestContext(c)).Error("Error signing JWT", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token")
	}

	return c.JSON(http.StatusOK, map[string]string{
		"token":    token,
		"type":     "Bearer",
		"buyer_id": buyerID,
	})
}

func (h *NegotiationHandler) CreateSession(c echo.Context) error {
	sess := h.svc.Open(requestContext(c), auth.BuyerID(c))
	return c.JSON(http.StatusCreated, CreateSessionResponse{
		SessionID: sess.ID,
		Message:   h.svc.Welcome(),
		Summary:   sess.Summary(),
	})
}

func (h *NegotiationHandler) GetSession(c echo.Context) error {
	sess, err := h.ownedSession(c)
	if err != nil {
		return err
	}
	messages, err := h.svc.Transcript(sess.ID)
	if err != nil {
		return sessionError(err)
	}
	summary, err := h.svc.Summary(sess.ID)
	if err != nil {
		return sessionError(err)
	}
	return c.JSON(http.StatusOK, SessionResponse{
		SessionID:    sess.ID,
		CustomerName: sess.CustomerName(),
		Messages:     messages,
		Summary:      summary,
	})
}

func (h *NegotiationHandler) DeleteSession(c echo.Context) error {
	sess, err := h.ownedSession(c)
	if err != nil {
		return err
	}
	if err := h.svc.Close(requestContext(c), sess.ID); err != nil {
		return sessionError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// SubmitMessage is the negotiation RPC: one buyer message in, one reply out.
func (h *NegotiationHandler) SubmitMessage(c echo.Context) error {
	sess, err := h.ownedSession(c)
	if err != nil {
		return err
	}

	var req SubmitMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if len(req.Text) > MaxMessageLength {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "Message too long")
	}

	reply, err := h.svc.Submit(requestContext(c), sess.ID, req.Text)
	if err != nil {
		return sessionError(err)
	}
	return c.JSON(http.StatusOK, reply)
}

// SubmitAudio transcribes a recorded message and negotiates on the transcript.
func (h *NegotiationHandler) SubmitAudio(c echo.Context) error {
	sess, err := h.ownedSession(c)
	if err != nil {
		return err
	}

	contentType := c.Request().Header.Get(echo.HeaderContentType)
	if !strings.HasPrefix(contentType, "audio/") && !strings.HasPrefix(contentType, echo.MIMEOctetStream) {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid content type. Expected audio/* or application/octet-stream")
	}

	audio, err := io.ReadAll(io.LimitReader(c.Request().Body, MaxAudioBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Failed to read audio")
	}
	if len(audio) > MaxAudioBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "Audio too large")
	}
	if len(audio) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "Empty audio")
	}

	ctx, cancel := context.WithTimeout(requestContext(c), VoiceTimeout)
	defer cancel()

	text, err := h.transcriber.Transcribe(ctx, audio)
	if err != nil {
		log.WithCtx(ctx).Error("Transcription failed", zap.String("session_id", sess.ID), zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "Failed to transcribe audio")
	}

	reply, err := h.svc.Submit(ctx, sess.ID, text)
	if err != nil {
		return sessionError(err)
	}
	return c.JSON(http.StatusOK, SubmitAudioResponse{Transcript: text, Reply: reply})
}

// Synthesize speaks a reply aloud as MP3.
func (h *NegotiationHandler) Synthesize(c echo.Context) error {
	var req SpeechRequest
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Text is required")
	}
	if len(req.Text) > MaxMessageLength {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "Text too long")
	}

	ctx, cancel := context.WithTimeout(requestContext(c), VoiceTimeout)
	defer cancel()

	audio, err := h.synthesizer.Synthesize(ctx, req.Text)
	if err != nil {
		log.WithCtx(ctx).Error("Synthesis failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "Failed to synthesize speech")
	}
	return c.Blob(http.StatusOK, "audio/mpeg", audio)
}

// Health check endpoint
func (h *NegotiationHandler) HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "haggle",
	})
}

// ownedSession loads the :id session; sessions of other buyers look missing.
func (h *NegotiationHandler) ownedSession(c echo.Context) (*usecase.Session, error) {
	sess, err := h.svc.Session(c.Param("id"))
	if err != nil {
		return nil, sessionError(err)
	}
	if sess.BuyerID != auth.BuyerID(c) {
		return nil, echo.NewHTTPError(http.StatusNotFound, "Session not found")
	}
	return sess, nil
}

func sessionError(err error) error {
	if errors.Is(err, usecase.ErrSessionNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Session not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func requestContext(c echo.Context) context.Context {
	ctx := c.Request().Context()
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		ctx = log.WithRequest(ctx, id)
	}
	return ctx
}

// ConcurrencyLimit rejects requests beyond max in flight.
func ConcurrencyLimit(max int) echo.MiddlewareFunc {
	semaphore := make(chan struct{}, max)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
				return next(c)
			default:
				return echo.NewHTTPError(http.StatusTooManyRequests, "Too many concurrent requests")
			}
		}
	}
}
