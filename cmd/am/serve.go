package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/attention-matters/am/internal/logger"
	"github.com/attention-matters/am/internal/rpcserver"
	"github.com/attention-matters/am/internal/store"
)

// shutdownGrace bounds how long serve waits for the final WAL checkpoint
// on stdin EOF, SIGINT, SIGTERM, or SIGHUP before giving up and exiting
// non-zero rather than hang.
const shutdownGrace = 5 * time.Second

// errShutdownTimedOut is returned when the final WAL checkpoint doesn't
// complete within shutdownGrace; RunE propagates it so the process exits
// non-zero instead of hanging.
var errShutdownTimedOut = errors.New("shutdown: brain store close timed out")

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the line-delimited JSON-RPC tool server over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			initLogging()

			baseDir := store.DefaultBaseDir()
			brain, err := store.OpenBrainStore(baseDir)
			if err != nil {
				return err
			}

			srv, err := rpcserver.New(brain)
			if err != nil {
				if closeErr := closeWithTimeout(brain); closeErr != nil {
					return errors.Join(err, closeErr)
				}
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
			defer stop()

			serveErr := make(chan error, 1)
			go func() {
				serveErr <- srv.Serve(ctx, os.Stdin, os.Stdout)
			}()

			select {
			case err := <-serveErr:
				if closeErr := closeWithTimeout(brain); closeErr != nil {
					return closeErr
				}
				return err
			case <-ctx.Done():
				logger.Info("shutting down", "reason", ctx.Err())
				return closeWithTimeout(brain)
			}
		},
	}
}

// closeWithTimeout closes brain, bounded by shutdownGrace. Returns
// errShutdownTimedOut if the close (including its WAL checkpoint) doesn't
// finish in time.
func closeWithTimeout(brain *store.BrainStore) error {
	done := make(chan struct{})
	go func() {
		if err := brain.Close(); err != nil {
			logger.Warn("error closing brain store", "error", err)
		}
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(shutdownGrace):
		logger.Warn("brain store close timed out, exiting non-zero", "grace", shutdownGrace)
		return errShutdownTimedOut
	}
}
