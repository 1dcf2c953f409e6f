// Package serve runs the HTTP server exposing the detection pipeline.
package serve

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/deeptracer/deeptracer-go/internal/analytics"
	"github.com/deeptracer/deeptracer-go/internal/api"
	"github.com/deeptracer/deeptracer-go/internal/classifier"
	"github.com/deeptracer/deeptracer-go/internal/conf"
	"github.com/deeptracer/deeptracer-go/internal/datastore"
	"github.com/deeptracer/deeptracer-go/internal/feed"
	"github.com/deeptracer/deeptracer-go/internal/logging"
	"github.com/deeptracer/deeptracer-go/internal/observability"
)

const shutdownTimeout = 10 * time.Second

// Command returns the serve subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the detection pipeline server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(settings)
		},
	}

	cmd.Flags().StringVar(&settings.WebServer.Host, "host", settings.WebServer.Host, "Address to bind to")
	cmd.Flags().StringVar(&settings.WebServer.Port, "port", settings.WebServer.Port, "Port to listen on")

	return cmd
}

func run(settings *conf.Settings) error {
	logger := logging.ForService("server")

	metrics, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	var ds datastore.Interface
	if store := datastore.New(settings); store != nil {
		if err := store.Open(); err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Warn("closing datastore", "error", err)
			}
		}()
		ds = store
	} else {
		logger.Warn("no output database enabled, submissions will not be persisted")
	}

	coordinatorOpts := []classifier.Option{classifier.WithMetrics(metrics.Pipeline)}
	if ds != nil {
		coordinatorOpts = append(coordinatorOpts, classifier.WithSink(ds))
	}
	coordinator := classifier.New(&settings.Classifier, coordinatorOpts...)
	fetcher := feed.NewFetcher(&settings.Feed, feed.WithMetrics(metrics.Pipeline))
	engine := analytics.NewEngine(analytics.WithMetrics(metrics.Pipeline))

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status)
			return nil
		},
	}))

	api.New(e, ds, settings, coordinator, fetcher, engine, api.WithMetrics(metrics))

	addr := settings.WebServer.Host + ":" + settings.WebServer.Port

	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	logger.Info("server started", "addr", addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(ctx)
}
