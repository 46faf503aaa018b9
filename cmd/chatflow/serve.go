package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/chatflow"
	httpAdapter "github.com/aretw0/chatflow/pkg/adapters/http"
	"github.com/aretw0/chatflow/pkg/adapters/memory"
	redisAdapter "github.com/aretw0/chatflow/pkg/adapters/redis"
	"github.com/aretw0/chatflow/pkg/flowfile"
	"github.com/aretw0/chatflow/pkg/persistence/middleware"
	"github.com/aretw0/chatflow/pkg/ports"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout  = 5 * time.Second
	envEncryptionKey = "CHATFLOW_ENCRYPTION_KEY"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serves the flow editor and preview API over HTTP. Flows are opened from the
--dir library and saved back into it; preview sessions live in memory unless
--redis is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		port, _ := cmd.Flags().GetString("port")
		redisAddr, _ := cmd.Flags().GetString("redis")
		format, _ := cmd.Flags().GetString("format")

		logger, err := newLogger(cmd)
		if err != nil {
			return err
		}

		lib, err := openLibrary(cmd)
		if err != nil {
			return fmt.Errorf("error opening flow library: %w", err)
		}

		opts := []chatflow.Option{
			chatflow.WithLogger(logger),
			chatflow.WithLoader(lib),
			chatflow.WithSaver(flowfile.DirSaver(dir, flowfile.Format(format))),
		}

		var store ports.SessionStore = memory.NewStore()
		if redisAddr != "" {
			rs := redisAdapter.New(redisAddr, os.Getenv("CHATFLOW_REDIS_PASSWORD"), 0)
			defer rs.Close()
			if err := rs.Client().Ping(cmd.Context()).Err(); err != nil {
				return fmt.Errorf("redis unreachable at %s: %w", redisAddr, err)
			}
			store = rs
			opts = append(opts, chatflow.WithLocker(redisAdapter.NewLocker(rs.Client(), "chatflow:lock:")))
			logger.Info("Using Redis session store", "addr", redisAddr)
		}

		mws, err := storeMiddlewares(cmd)
		if err != nil {
			return err
		}
		opts = append(opts, chatflow.WithSessionStore(middleware.Chain(store, mws...)))

		studio := chatflow.New(opts...)
		defer studio.Close()

		api := httpAdapter.NewServer(studio, httpAdapter.WithLogger(logger))
		defer api.Close()

		srv := &http.Server{
			Addr:    ":" + port,
			Handler: api.Handler(),
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			logger.Info("Starting chatflow server", "addr", srv.Addr, "dir", dir)
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(shutdown)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			logger.Info("Start shutdown", "signal", sig)

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("Graceful shutdown did not complete", "timeout", shutdownTimeout, "error", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("error killing server: %w", err)
				}
			}
			logger.Info("chatflow server stopped gracefully")
			return nil
		}
	},
}

// storeMiddlewares selects snapshot protection from --mask-pii and
// CHATFLOW_ENCRYPTION_KEY (base64 of a 32 byte key).
func storeMiddlewares(cmd *cobra.Command) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if mask, _ := cmd.Flags().GetBool("mask-pii"); mask {
		mws = append(mws, middleware.NewPIIMiddleware(middleware.DefaultPIIPatterns))
	}
	if raw := os.Getenv(envEncryptionKey); raw != "" {
		key, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", envEncryptionKey, err)
		}
		enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", envEncryptionKey, err)
		}
		mws = append(mws, enc)
	}
	return mws, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("mask-pii", false, "Mask e-mails, card and phone numbers typed into previews before storing them")
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	serveCmd.Flags().String("redis", "", "Redis address for preview sessions (e.g. localhost:6379)")
	serveCmd.Flags().String("format", string(flowfile.FormatYAML), "Format of saved flows: yaml or json")
}
