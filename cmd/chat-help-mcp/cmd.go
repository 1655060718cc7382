package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"chat-help-mcp/internal/config"
	"chat-help-mcp/internal/dispatch"
	"chat-help-mcp/internal/metrics"
	"chat-help-mcp/internal/registry"
	"chat-help-mcp/internal/server"
	"chat-help-mcp/internal/stdio"
	"chat-help-mcp/internal/tools"
	"chat-help-mcp/internal/wiki"
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "chat-help-mcp",
		Short:         "Serve the chat-help student assistant tools over MCP (JSON-RPC 2.0 on HTTP or stdio)",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(viper.New(), cmd.Flags())
			if err != nil {
				return err
			}
			if err := config.ConfigureLogging(cfg); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func newDispatcher(cfg config.Config) (*dispatch.Dispatcher, error) {
	reg := registry.New()
	client := wiki.New(cfg.WikiBaseURL, &http.Client{Timeout: cfg.WikiTimeout}, wiki.NewCache(cfg.WikiCacheTTL))
	if err := tools.Register(reg, tools.Deps{Wiki: client}); err != nil {
		return nil, errors.Wrap(err, "registering tools")
	}

	return dispatch.New(reg, dispatch.Options{
		ServerName:      cfg.ServerName,
		ServerVersion:   cfg.ServerVersion,
		ProtocolVersion: cfg.ProtocolVersion,
		Strict:          cfg.StrictProtocol,
		ToolTimeout:     cfg.ToolTimeout,
	}, dispatch.WithLogger(log.StandardLogger()), dispatch.WithMetrics(metrics.New())), nil
}

func newHandler(cfg config.Config) (*server.Server, error) {
	d, err := newDispatcher(cfg)
	if err != nil {
		return nil, err
	}
	return server.New(d, server.Config{MaxBodyBytes: cfg.MaxBodyBytes, Logger: log.StandardLogger()}), nil
}

func run(ctx context.Context, cfg config.Config) error {
	if cfg.Stdio {
		return serveStdio(ctx, cfg, os.Stdin, os.Stdout)
	}
	srv, err := newHandler(cfg)
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fields := log.Fields{"addr": httpServer.Addr, "strict": cfg.StrictProtocol, "tls": cfg.TLSEnabled()}
		log.WithFields(fields).Info("starting MCP HTTP server")
		var err error
		if cfg.TLSEnabled() {
			err = httpServer.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			log.Warn("TLS_CERT_FILE and TLS_KEY_FILE not set; serving plain HTTP, run behind a TLS-terminating proxy")
			err = httpServer.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "http server")
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		srv.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func serveStdio(ctx context.Context, cfg config.Config, in io.Reader, out io.Writer) error {
	d, err := newDispatcher(cfg)
	if err != nil {
		return err
	}
	return stdio.New(d, in, out, stdio.WithMaxLineBytes(int(cfg.MaxBodyBytes))).Serve(ctx)
}
