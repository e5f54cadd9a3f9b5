// Command relayer runs the inter-blockchain relayer supervisor.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/cdot-network/ibc-relayer-supervisor/internal/config"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/httpapi"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/registry"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/supervisor"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/telemetry"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/worker"
)

const httpShutdownTimeout = 5 * time.Second

func main() {
	if _, err := maxprocs.Set(); err != nil {
		logrus.WithError(err).Warn("failed to set GOMAXPROCS")
	}

	app := &cli.App{
		Name:  "relayer",
		Usage: "run the IBC relayer supervisor",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to the relayer config YAML", Required: true},
			&cli.BoolFlag{Name: "filter", Usage: "override the config's global channel filter flag"},
			&cli.BoolFlag{Name: "handshake-enabled", Usage: "override the config's handshake relaying flag"},
			&cli.StringFlag{Name: "listen", Usage: "introspection HTTP listen address", Value: ":7000"},
			&cli.BoolFlag{Name: "json-log", Usage: "force JSON log output"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("relayer exited with error")
	}
}

func run(c *cli.Context) error {
	// run_id ties every log line from this process together, useful
	// once supervisor/worker/registry logs interleave across goroutines.
	log := newLogger(c.Bool("json-log")).WithField("run_id", uuid.New().String())

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return errors.Wrap(err, "loading config")
	}
	if c.IsSet("filter") {
		cfg.Filter = c.Bool("filter")
	}
	if c.IsSet("handshake-enabled") {
		cfg.HandshakeEnabled = c.Bool("handshake-enabled")
	}
	guard := config.NewGuard(cfg)

	tel, err := telemetry.New()
	if err != nil {
		return errors.Wrap(err, "constructing telemetry")
	}

	reg := registry.New(guard, tel, log)
	workers := worker.NewMap(tel, log)
	clk := clock.New()
	super := supervisor.New(guard, reg, workers, tel, log, clk)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	spawnCtx := &worker.SpawnContext{Config: guard, Registry: reg, Workers: workers, Mode: worker.SpawnModeStartup, Log: log}
	if err := spawnCtx.SpawnWorkers(ctx); err != nil {
		log.WithError(err).Warn("errors while spawning initial workers")
	}

	httpServer := &http.Server{
		Addr:    c.String("listen"),
		Handler: httpapi.New(super, tel.Registry(), clk, log),
	}
	go func() {
		log.WithField("addr", httpServer.Addr).Info("starting introspection HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("introspection HTTP server failed")
		}
	}()

	log.Info("supervisor loop starting")
	runErr := super.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("error shutting down introspection HTTP server")
	}

	if runErr != nil {
		return fmt.Errorf("supervisor loop exited: %w", runErr)
	}
	return nil
}

func newLogger(forceJSON bool) *logrus.Entry {
	l := logrus.New()
	if forceJSON || !isTerminal(os.Stdout) {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logrus.NewEntry(l)
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
