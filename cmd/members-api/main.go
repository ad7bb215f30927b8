package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/jacentio/members/account"
	"github.com/jacentio/members/config"
	"github.com/jacentio/members/internal/events"
	"github.com/jacentio/members/internal/httpapi"
	"github.com/jacentio/members/media"
	"github.com/jacentio/members/records"
	"github.com/jacentio/members/records/memstore"
)

func main() {
	props, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := props.RequireAuth(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: props.Level()}))
	slog.SetDefault(logger)

	ctx := context.Background()
	rs, err := newRecordStore(ctx, props, logger)
	if err != nil {
		logger.Error("Failed to initialize record store", "error", err)
		os.Exit(1)
	}

	assets, err := media.NewMinio(props.MinioConfig())
	if err != nil {
		logger.Error("Failed to initialize asset store", "error", err)
		os.Exit(1)
	}

	publisher, closePublisher := newPublisher(props, logger)
	defer closePublisher()

	svc := account.New(rs, assets,
		account.WithConfig(props.AccountConfig()),
		account.WithLogger(logger),
		account.WithPublisher(publisher),
	)

	gin.SetMode(gin.ReleaseMode)
	router := httpapi.NewRouter(svc, httpapi.Config{
		JWTSecret:      []byte(props.Auth.JWTSecret),
		AllowOrigins:   props.Server.AllowOrigins,
		MaxUploadBytes: props.Server.MaxUploadBytes,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:         props.Addr(),
		Handler:      router,
		ReadTimeout:  props.Server.ReadTimeout,
		WriteTimeout: props.Server.WriteTimeout,
	}

	done := setupSignalHandler(server, props, logger)

	logger.Info("Starting members server", "address", server.Addr, "store", props.Store.Driver)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Failed to start server", "error", err)
		os.Exit(1)
	}

	<-done
	logger.Info("Server shutdown complete")
}

func newRecordStore(ctx context.Context, props *config.Properties, logger *slog.Logger) (records.Store, error) {
	if props.Store.Driver == config.DriverMemory {
		logger.Warn("Using in-memory record store; data is lost on restart")
		return memstore.New(), nil
	}

	client, err := props.DynamoClient(ctx)
	if err != nil {
		return nil, err
	}
	if props.Store.AutoCreate {
		if err := records.CreateTables(ctx, client, props.StoreConfig()); err != nil {
			return nil, err
		}
		logger.Info("Tables ensured", "prefix", props.Store.TablePrefix)
	}
	return records.NewDynamoStore(client, props.StoreConfig()), nil
}

// newPublisher connects to RabbitMQ when configured. Without a URL events
// are dropped.
func newPublisher(props *config.Properties, logger *slog.Logger) (events.Publisher, func()) {
	if props.Events.URL == "" {
		return events.Nop{}, func() {}
	}
	p, err := events.NewAMQP(props.Events.URL, props.Events.Exchange)
	if err != nil {
		logger.Warn("Event publishing disabled", "error", err)
		return events.Nop{}, func() {}
	}
	return p, func() {
		if err := p.Close(); err != nil {
			logger.Warn("Error closing event publisher", "error", err)
		}
	}
}

func setupSignalHandler(server *http.Server, props *config.Properties, logger *slog.Logger) chan struct{} {
	done := make(chan struct{}, 1)

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-signalCh

		logger.Info("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), props.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Error during server shutdown", "error", err)
		}

		done <- struct{}{}
	}()

	return done
}
