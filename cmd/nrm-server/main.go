// Copyright 2025 Photonpath Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/photonpath/nrm/pkg/log"
	"github.com/photonpath/nrm/pkg/solver"
	"github.com/photonpath/nrm/pkg/topology"
	"github.com/photonpath/nrm/private/compile/pathfinder"
	"github.com/photonpath/nrm/private/config"
	"github.com/photonpath/nrm/private/nrm"
	"github.com/photonpath/nrm/private/nrm/server"
	"github.com/photonpath/nrm/private/storage"
)

// Exit codes.
const (
	exitUsage       = 1
	exitLoadFailure = 2
	exitNoSolver    = 3
	exitConsistency = 4
)

var errConsistency = errors.New("consistency violation")

func main() {
	var configFile string
	var useDB bool
	var logLevel string

	cmd := &cobra.Command{
		Use:           "nrm-server",
		Short:         "NRM reservation server",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configFile, useDB, logLevel)
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "config/param.json",
		"configuration file")
	cmd.Flags().BoolVar(&useDB, "db", false,
		"load the reservation database at startup")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "console log level")

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, solver.ErrNotFound):
		return exitNoSolver
	case errors.Is(err, errConsistency):
		return exitConsistency
	case errors.Is(err, errLoad):
		return exitLoadFailure
	default:
		return exitUsage
	}
}

var errLoad = errors.New("load failure")

func run(ctx context.Context, configFile string, useDB bool, logLevel string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return errors.Join(errLoad, err)
	}
	if err := cfg.Validate(); err != nil {
		return errors.Join(errLoad, err)
	}
	if cfg.LoggingEnabled() {
		if err := log.Setup(log.Config{
			Console: log.ConsoleConfig{Level: logLevel},
		}); err != nil {
			return err
		}
	}
	defer log.Flush()
	defer log.HandlePanic()

	driver := solver.NewDriver()
	if err := driver.Probe(); err != nil {
		return err
	}

	glpkDir := cfg.GLPKPath()
	topo, err := topology.Load(cfg.TopoPath(), pathfinder.ACDir(glpkDir))
	if err != nil {
		return errors.Join(errLoad, err)
	}
	store := storage.New(cfg.DBPath())
	registry, err := nrm.NewRegistry(topo, store, useDB)
	if err != nil {
		return errors.Join(errConsistency, err)
	}
	engine, err := nrm.NewEngine(topo, glpkDir, cfg.TopoXML, cfg.NumComps,
		driver, driver, registry)
	if err != nil {
		return errors.Join(errLoad, err)
	}
	handler := nrm.NewHandler(engine, nrm.NewMetrics())

	g, errCtx := errgroup.WithContext(ctx)
	srv := &server.Server{
		Addr:    net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler: handler,
	}
	g.Go(func() error {
		defer log.HandlePanic()
		return srv.Run(errCtx)
	})
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		log.Info("exposing metrics", "addr", cfg.MetricsAddr)
		g.Go(func() error {
			defer log.HandlePanic()
			err := metricsServer.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			defer log.HandlePanic()
			<-errCtx.Done()
			return metricsServer.Close()
		})
	}
	return g.Wait()
}
