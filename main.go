package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/satriahrh/cocoa-fruit/haggle/adapters/auth"
	"github.com/satriahrh/cocoa-fruit/haggle/adapters/hasher"
	httpadapter "github.com/satriahrh/cocoa-fruit/haggle/adapters/http"
	"github.com/satriahrh/cocoa-fruit/haggle/adapters/llm"
	"github.com/satriahrh/cocoa-fruit/haggle/adapters/message_broker"
	"github.com/satriahrh/cocoa-fruit/haggle/adapters/sentiment"
	"github.com/satriahrh/cocoa-fruit/haggle/adapters/speech"
	"github.com/satriahrh/cocoa-fruit/haggle/adapters/tts"
	"github.com/satriahrh/cocoa-fruit/haggle/adapters/websocket"
	"github.com/satriahrh/cocoa-fruit/haggle/config"
	"github.com/satriahrh/cocoa-fruit/haggle/domain"
	"github.com/satriahrh/cocoa-fruit/haggle/usecase"
	"github.com/satriahrh/cocoa-fruit/haggle/utils/log"
)

func main() {
	defer log.Sync()
	logger := log.With()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gemini, err := llm.NewGeminiClient(ctx, cfg.GoogleAPIKey, cfg.GeminiModel)
	if err != nil {
		logger.Fatal("creating gemini client", zap.Error(err))
	}

	retry := llm.DefaultRetryPolicy()
	retry.Attempts = cfg.GeneratorRetries + 1
	retry.Timeout = cfg.GeneratorTimeout

	var scorer domain.SentimentScorer = sentiment.NewLexicon()
	if cfg.SentimentBackend == config.SentimentGemini {
		scorer = sentiment.NewGemini(gemini, retry)
	}
	generator := llm.NewNegotiator(gemini, hasher.New(), retry)

	broker := message_broker.NewChannelMessageBroker()
	defer broker.Close()

	svc := usecase.NewNegotiationService(
		usecase.NewSessionStore(),
		generator,
		scorer,
		usecase.Pricing{ListPrice: cfg.ListPrice, CostFloor: cfg.CostFloor},
		usecase.WithBroker(broker),
		usecase.WithProduct(cfg.Product),
	)
	go sweepSessions(ctx, svc, cfg.SessionIdleTTL)

	jwt := auth.NewJWT(cfg.JWTSecret, cfg.APIKey, cfg.APISecret)
	handlerOpts := []httpadapter.Option{httpadapter.WithMaxConcurrent(cfg.MaxConcurrent)}
	if cfg.VoiceEnabled {
		transcriber, err := speech.NewGoogleSpeech(ctx, cfg.VoiceLanguage)
		if err != nil {
			logger.Fatal("creating speech client", zap.Error(err))
		}
		defer transcriber.Close()
		synthesizer, err := tts.NewGoogleTTS(ctx, cfg.VoiceLanguage)
		if err != nil {
			logger.Fatal("creating tts client", zap.Error(err))
		}
		defer synthesizer.Close()
		handlerOpts = append(handlerOpts, httpadapter.WithVoice(transcriber, synthesizer))
	}
	handler := httpadapter.NewNegotiationHandler(svc, jwt, handlerOpts...)

	server := websocket.NewServer(svc, broker)
	go func() {
		if err := server.RunTurnListener(ctx); err != nil {
			logger.Error("turn listener stopped", zap.Error(err))
		}
	}()

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.Secure())
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.RateLimit))))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.POST, echo.DELETE, echo.OPTIONS},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			"X-API-Key",
			"X-API-Secret",
		},
		MaxAge: 86400,
	}))
	e.Use(middleware.BodyLimit("10M"))

	e.GET("/ws", server.Handler, jwt.Middleware)
	handler.Routes(e.Group("/api/v1"))

	go func() {
		logger.Info("Starting server", zap.String("addr", cfg.HTTPAddr))
		logger.Info("Available endpoints",
			zap.Strings("routes", []string{
				"GET    /api/v1/health",
				"POST   /api/v1/auth/token",
				"POST   /api/v1/sessions",
				"GET    /api/v1/sessions/:id",
				"DELETE /api/v1/sessions/:id",
				"POST   /api/v1/sessions/:id/messages",
				"POST   /api/v1/sessions/:id/audio (voice)",
				"POST   /api/v1/speech (voice)",
				"GET    /ws",
			}))
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}

func sweepSessions(ctx context.Context, svc *usecase.NegotiationService, ttl time.Duration) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			svc.Sweep(ctx, ttl)
		case <-ctx.Done():
			return
		}
	}
}
