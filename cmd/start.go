package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/jrwilson/substrate/internal/env"
	"github.com/jrwilson/substrate/internal/metrics"
	"github.com/jrwilson/substrate/session"
	"github.com/jrwilson/substrate/storage"
	"github.com/jrwilson/substrate/transport"
)

var (
	// The host to listen on
	host string

	// The port to listen for http requests on
	httpPort string

	// The port to listen for RFB clients on
	port int

	reuseport bool
	trace     bool
)

func init() {
	flags := StartCmd.PersistentFlags()

	flags.IntVarP(&port, "port", "p", 5900, "The port to listen for RFB connections on")
	flags.StringVar(&httpPort, "http-port", "5800", "The port to listen to HTTP and WebSocket requests on")
	flags.StringVarP(&host, "host", "a", "0.0.0.0", "The host to listen on")
	flags.BoolVar(&reuseport, "reuseport", true, "Start one listener per CPU with SO_REUSEPORT")
	flags.BoolVar(&trace, "trace", false, "Log every chunk read and written")
}

var StartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start up the RFB server",
	Long: `Start up the RFB server

Serves a synthetic desktop to RFB clients over TCP, and over WebSocket at /ws
on the HTTP port. Desktop size, name, protocol version and image source come
from RFB_ environment variables or .env.local.

Usage
	substrate start --port 5900 --http-port 5800

`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, signalStop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer signalStop()

		conf, err := env.LoadConfig(ctx)
		if err != nil {
			return err
		}

		log, err := env.MakeLogger(conf.LogLevel)
		if err != nil {
			return err
		}

		fileLimit, err := setFileLimit()
		if err != nil {
			return err
		}

		log.Info("Set file limit", zap.Uint64("fileLimit", fileLimit))

		version, err := conf.ProtocolVersion()
		if err != nil {
			return err
		}

		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		store := storage.NewInmemoryStore(log.Named("storage"))
		go logSessionUpdates(store, log.Named("sessions"))

		options := transport.Options{
			Host:      host,
			Port:      port,
			Reuseport: reuseport,
			Trace:     trace,
			Session: session.ServerOptions{
				Width:   conf.Width,
				Height:  conf.Height,
				Name:    conf.DesktopName,
				Version: version,
			},
			Source:         conf.Source,
			UpdateInterval: conf.UpdateInterval,
			Store:          store,
			Observer:       metrics.New(registry),
			Log:            log.Named("transport"),
		}

		ws := transport.NewWebSocket(ctx, options)

		router := setupRouter(conf.DebugHTTP, log)
		RegisterRoutes(router, store, registry, ws)

		s := &http.Server{
			Addr:    net.JoinHostPort(host, httpPort),
			Handler: router,
		}

		// Initializing the server in a goroutine so that
		// it won't block the graceful shutdown handling below
		go func() {
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Http server errored", zap.Error(err))
			}
		}()

		tcp := transport.NewTCP(options)
		if err := tcp.Start(ctx); err != nil {
			return multierr.Append(err, s.Close())
		}

		log.Info("Listening",
			zap.Any("config", conf),
			zap.Stringer("version", version),
			zap.String("host", host),
			zap.Int("port", port),
			zap.String("httpPort", httpPort))

		// Listen for the interrupt signal.
		<-ctx.Done()

		// Restore default behavior on the interrupt signal and notify user of shutdown.
		signalStop()
		log.Info("Shutting down gracefully, press Ctrl+C again to force")

		// The context is used to inform the server it has 5 seconds to finish
		// the request it is currently handling
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.SetKeepAlivesEnabled(false)

		if err := s.Shutdown(shutdownCtx); err != nil {
			log.Error("Http server forced to shutdown", zap.Error(err))
		}

		err = multierr.Combine(tcp.Close(), ws.Close(), store.Close())
		if err != nil {
			log.Error("Sessions forced to shutdown", zap.Error(err))
		}

		log.Info("Exiting")
		return nil
	},
}

func logSessionUpdates(store storage.Store, log *zap.Logger) {
	for update := range store.ListenToUpdates() {
		if ce := log.Check(zap.DebugLevel, "Session status"); ce != nil {
			ce.Write(zap.String("session", update.ID), zap.ByteString("status", update.Value))
		}
	}
}

func setupRouter(debugHTTP bool, log *zap.Logger) *gin.Engine {
	gin.DisableConsoleColor()
	if !debugHTTP {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Add a ginzap middleware, which:
	//   - Logs all requests, like a combined access and error log.
	//   - RFC3339 with UTC time format.
	//   - Skips the noisy scrape and health endpoints.
	r.Use(ginzap.GinzapWithConfig(log.Named("http"), &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/ping", "/metrics"},
	}))

	// Logs all panic to error log
	//   - stack means whether output the stack info.
	r.Use(ginzap.RecoveryWithZap(log, true))

	return r
}

func setFileLimit() (uint64, error) {
	var rLimit syscall.Rlimit

	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		return 0, err
	}

	rLimit.Cur = rLimit.Max
	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		return 0, err
	}

	return rLimit.Cur, nil
}
