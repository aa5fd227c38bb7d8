package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"artemis-core/internal/annotator"
	"artemis-core/internal/config"
	"artemis-core/internal/controlplane"
	"artemis-core/internal/detector"
	"artemis-core/internal/fabric"
	"artemis-core/internal/logging"
	"artemis-core/internal/registry"
)

var (
	serveRole  string
	serveDebug bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a data-worker role with its control plane HTTP surface",
	RunE:  runServeCmd,
}

func init() {
	serveCmd.Flags().StringVar(&serveRole, "role", "annotator", "data-worker role to run: annotator or detector")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "enable debug logging")
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	log := logging.New(serveDebug)
	settings := config.FromEnv()
	reg := registry.New()

	conn, err := fabric.Dial(settings.RabbitMQURI)
	if err != nil {
		return fmt.Errorf("failed to dial message fabric: %w", err)
	}
	defer conn.Close()

	var snapshot *controlplane.Snapshot
	if settings.SnapshotPath != "" {
		snapshot, err = controlplane.OpenSnapshot(settings.SnapshotPath)
		if err != nil {
			log.Warn("serve: configuration snapshot unavailable: %v", err)
		} else {
			defer snapshot.Close()
		}
	}

	worker, err := buildWorker(serveRole, conn, reg, log, settings)
	if err != nil {
		return err
	}

	cp := controlplane.New(reg, conn, log, settings, worker, snapshot)
	if err := cp.RestoreFromSnapshot(); err != nil {
		log.Warn("serve: failed to restore configuration snapshot: %v", err)
	}
	cp.Start()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", settings.RESTPort),
		Handler: cp.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("control plane HTTP server failed: %w", err)
	case <-sigCh:
		log.Info("serve: shutting down")
	}

	cp.Stop()
	return server.Shutdown(context.Background())
}

func buildWorker(role string, conn *fabric.Conn, reg *registry.Registry, log logging.Logger, settings config.Settings) (controlplane.DataWorker, error) {
	switch role {
	case "annotator":
		ann := annotator.New(reg, log)
		return annotator.NewWorker(conn, ann, log, settings.ModuleName), nil
	case "detector":
		det := detector.New(log)
		return detector.NewWorker(conn, det, log, settings.ModuleName), nil
	default:
		return nil, fmt.Errorf("unknown role %q: must be annotator or detector", role)
	}
}
