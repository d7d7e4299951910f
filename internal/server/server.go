package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/anirudhp26/quickpoll/internal/config"
	"github.com/anirudhp26/quickpoll/internal/domain"
	apperrors "github.com/anirudhp26/quickpoll/internal/errors"
	"github.com/anirudhp26/quickpoll/internal/hub"
	"github.com/anirudhp26/quickpoll/internal/identity"
	"github.com/anirudhp26/quickpoll/internal/redis"
	"github.com/anirudhp26/quickpoll/internal/tally"
)

type Server struct {
	echo        *echo.Echo
	config      *config.Config
	resolver    *identity.Resolver
	engine      *tally.Engine
	polls       domain.PollRepository
	ledger      domain.LedgerRepository
	hub         *hub.Hub
	rateLimiter *redis.RateLimiter
	db          *pgxpool.Pool
	redisClient *redis.Client
	clock       clockwork.Clock
	startTime   time.Time
}

func NewServer(
	cfg *config.Config,
	resolver *identity.Resolver,
	engine *tally.Engine,
	polls domain.PollRepository,
	ledger domain.LedgerRepository,
	liveHub *hub.Hub,
	rateLimiter *redis.RateLimiter,
	db *pgxpool.Pool,
	redisClient *redis.Client,
	clock clockwork.Clock,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(apperrors.Middleware())

	srv := &Server{
		echo:        e,
		config:      cfg,
		resolver:    resolver,
		engine:      engine,
		polls:       polls,
		ledger:      ledger,
		hub:         liveHub,
		rateLimiter: rateLimiter,
		db:          db,
		redisClient: redisClient,
		clock:       clock,
		startTime:   clock.Now(),
	}
	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
