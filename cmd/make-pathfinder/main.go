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

// make-pathfinder combines the topology, the compiled available
// connections and the port pairs into the global pathfinding problem:
// glpk/pf_<key>.model plus one skeleton data file per channel, and with
// --solvec the per-device decomposed problems.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/photonpath/nrm/pkg/log"
	"github.com/photonpath/nrm/pkg/topology"
	"github.com/photonpath/nrm/private/compile/pathfinder"
	"github.com/photonpath/nrm/private/config"
)

func main() {
	var configFile string
	var logLevel string
	var solvec bool
	var modelKey, dataKey string

	cmd := &cobra.Command{
		Use:           "make-pathfinder",
		Short:         "Compile the global pathfinding problem",
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
			glpkDir := cfg.GLPKPath()
			topo, err := topology.Load(cfg.TopoPath(), pathfinder.ACDir(glpkDir))
			if err != nil {
				return err
			}
			if modelKey == "" {
				modelKey = cfg.TopoXML
			}
			if dataKey == "" {
				dataKey = cfg.TopoXML
			}
			return pathfinder.Make(topo, pathfinder.Params{
				GLPKDir:            glpkDir,
				PFTemplateFile:     filepath.Join(glpkDir, cfg.PFTmpModel),
				SolvecTemplateFile: filepath.Join(glpkDir, cfg.SolvecTmpModel),
				ModelFileKey:       modelKey,
				DataFileKey:        dataKey,
				NumComps:           cfg.NumComps,
				Solvec:             solvec,
			})
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "config/param.json",
		"configuration file")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "console log level")
	cmd.Flags().BoolVar(&solvec, "solvec", false,
		"also emit the per-device decomposed problems")
	cmd.Flags().StringVar(&modelKey, "model", "", "model file key")
	cmd.Flags().StringVar(&dataKey, "data", "", "data file key")
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(2)
	}
}
