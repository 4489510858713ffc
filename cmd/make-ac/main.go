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

// make-ac reads the topology and compiles the per-component available
// connections: ac/channels.data, ac/<model>.model and
// ac/<model>.conn.txt.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/photonpath/nrm/pkg/log"
	"github.com/photonpath/nrm/pkg/solver"
	"github.com/photonpath/nrm/pkg/topology"
	"github.com/photonpath/nrm/private/compile/ac"
	"github.com/photonpath/nrm/private/config"
)

func main() {
	var configFile string
	var logLevel string

	cmd := &cobra.Command{
		Use:           "make-ac",
		Short:         "Compile per-component available connections",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			if err := log.Setup(log.Config{
				Console: log.ConsoleConfig{Level: logLevel},
			}); err != nil {
				return err
			}
			defer log.Flush()
			driver := solver.NewDriver()
			if err := driver.Probe(); err != nil {
				return err
			}
			topo, err := topology.Load(cfg.TopoPath(), "")
			if err != nil {
				return err
			}
			glpkDir := cfg.GLPKPath()
			return ac.Make(cmd.Context(), topo, driver, ac.Params{
				GLPKDir:            glpkDir,
				SolvecTemplateFile: filepath.Join(glpkDir, cfg.SolvecTmpModel),
			})
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "config/param.json",
		"configuration file")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "console log level")
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		switch {
		case errors.Is(err, solver.ErrNotFound):
			os.Exit(3)
		default:
			os.Exit(2)
		}
	}
}
