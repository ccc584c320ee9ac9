package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"playmatch/lobby/internal/artifact"
	"playmatch/lobby/internal/config"
	"playmatch/lobby/internal/database"
	"playmatch/lobby/internal/handler"
	"playmatch/lobby/internal/hub"
	"playmatch/lobby/internal/lobby"
	"playmatch/lobby/internal/presence"
	"playmatch/lobby/internal/repository"
	"playmatch/lobby/internal/server"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	// Swagger docs
	_ "playmatch/lobby/docs"
)

func init() {
	config.LoadConfig()
}

// @title           Playmatch Lobby API
// @version         1.0
// @description     Read-only status API of the Playmatch lobby.
// @host            localhost:8080
// @BasePath        /api/v1
// @securityDefinitions.apiKey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.AppConfig
	logrus.SetLevel(cfg.Level())
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logrus.WithError(err).Fatal("Lobby exited")
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	var (
		db       *gorm.DB
		accounts repository.AccountRepository
		games    repository.ArtifactLog
	)
	if cfg.DatabaseDriver == "memory" {
		logrus.Warn("Using in-memory storage, accounts and games are lost on restart")
		accounts = repository.NewMemoryAccountRepository()
		games = repository.NewMemoryArtifactLog()
	} else {
		var err error
		db, err = database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		accounts = repository.NewGormAccountRepository(db)
		games = repository.NewGormArtifactLog(db)
	}

	h := hub.NewHub(cfg.OutboxSize, cfg.WriteTimeout)
	players := presence.NewStore(accounts, h)
	rooms := lobby.New(players, h, lobby.Options{RoomTTL: cfg.RoomTTL})
	artifacts, err := artifact.NewStore(ctx, afero.NewOsFs(), cfg.ArtifactDir, games, artifact.Options{
		MaxChunkBytes: cfg.MaxChunkBytes,
		MaxChunks:     cfg.MaxChunks,
	})
	if err != nil {
		return err
	}

	lobbyServer := server.New(h, players, rooms, artifacts, server.Options{
		JWTSecret:      cfg.JWTSecret,
		TokenTTL:       cfg.TokenTTL,
		RequestTimeout: cfg.RequestTimeout,
	})

	if cfg.Level() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.NewRouter(handler.New(players, rooms, artifacts, db), cfg.JWTSecret),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return lobbyServer.ListenAndServe(ctx, cfg.LobbyAddr)
	})

	g.Go(func() error {
		return rooms.RunJanitor(ctx, cfg.SweepInterval)
	})

	g.Go(func() error {
		logrus.WithField("addr", cfg.HTTPAddr).Info("Status API listening")
		logrus.Infof("Swagger UI is available at http://%s/swagger/index.html", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
