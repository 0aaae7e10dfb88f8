package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/alexbleotu/ferrumfix/internal/auth"
	"github.com/alexbleotu/ferrumfix/internal/observability"
	"github.com/alexbleotu/ferrumfix/internal/protocol"
	"github.com/alexbleotu/ferrumfix/internal/protocol/frame"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// MaxRequestBytes caps /decode and /encode request bodies.
const MaxRequestBytes = 4 << 20

// Inspector is the HTTP surface over a dictionary registry: schema
// browsing, ad hoc decode and encode, health and metrics.
type Inspector struct {
	Name     string
	Addr     string
	Appeared time.Time

	dec    *protocol.RegistryDecoder
	router *gin.Engine
	guard  auth.Validator
	limits frame.Limits
}

type Option func(*Inspector)

// WithAuth requires a bearer token accepted by v on /decode, /encode and
// /stream.
func WithAuth(v auth.Validator) Option {
	return func(s *Inspector) { s.guard = v }
}

// WithLimits bounds the bytes a /stream connection may buffer.
func WithLimits(l frame.Limits) Option {
	return func(s *Inspector) { s.limits = l }
}

func New(name, addr string, dec *protocol.RegistryDecoder, corsOrigins []string, opts ...Option) *Inspector {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestID())
	r.Use(observability.RequestLogger(observability.Logger("http")))
	r.Use(observability.RequestMetricsMiddleware(name))
	r.Use(cors.New(cors.Config{
		AllowOrigins:  normalizeOrigins(corsOrigins),
		AllowMethods:  []string{"GET", "POST"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", observability.HeaderRequestID},
		ExposeHeaders: []string{observability.HeaderRequestID},
		MaxAge:        12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Inspector{
		Name:     name,
		Addr:     addr,
		Appeared: time.Now(),
		dec:      dec,
		router:   r,
		limits:   frame.DefaultLimits(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.RegisterRoutes()
	return s
}

func (s *Inspector) HTTPRouter() *gin.Engine {
	return s.router
}

// Serve listens on Addr until ctx is done, then drains in-flight requests.
func (s *Inspector) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	log := observability.Logger("http")
	log.Info().Str("addr", s.Addr).Str("name", s.Name).Msg("inspector listening")
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info().Msg("inspector stopped")
	return nil
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
