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

// Package config loads the param.json configuration file.
//
// A config struct is initialized by calling InitDefaults and checked by
// calling Validate. Fields that should not take their default value must
// be set before calling InitDefaults.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/photonpath/nrm/pkg/private/serrors"
)

// Default values used when param.json omits a key.
const (
	DefaultTopoXML        = "topo.xml"
	DefaultGLPKDir        = "glpk"
	DefaultDBDir          = "db"
	DefaultHost           = "localhost"
	DefaultPort           = 5002
	DefaultPFTmpModel     = "pf-template.model"
	DefaultSolvecTmpModel = "solvec-templae.model"
)

// Config mirrors the keys of param.json. All keys are optional.
type Config struct {
	Logger         string `json:"logger"`
	LogConfig      string `json:"log_config"`
	TopoXML        string `json:"topo_xml"`
	GLPKDir        string `json:"glpk_dir"`
	DBDir          string `json:"db_dir"`
	Host           string `json:"nrm_host"`
	Port           int    `json:"-"`
	PFTmpModel     string `json:"pf_tmp_model"`
	SolvecTmpModel string `json:"solvec_tmp_model"`
	NumComps       int    `json:"num_comps"`
	MetricsAddr    string `json:"metrics_addr"`

	// TopDir is the directory all relative paths resolve against. Load
	// sets it to the parent of the config file's directory.
	TopDir string `json:"-"`
}

// rawConfig exists to accept both documented casings of the port key.
type rawConfig struct {
	Config
	PortUpper *int `json:"nrm_Port"`
	PortLower *int `json:"nrm_port"`
}

// Load reads the configuration from file. A missing file yields the
// default configuration.
func Load(file string) (Config, error) {
	var cfg Config
	raw, err := os.ReadFile(file)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.InitDefaults()
			return cfg, nil
		}
		return cfg, serrors.Wrap("reading config", err, "file", file)
	}
	var rc rawConfig
	if err := json.Unmarshal(raw, &rc); err != nil {
		return cfg, serrors.Wrap("parsing config", err, "file", file)
	}
	cfg = rc.Config
	// The README documents nrm_Port; the lower-case spelling is accepted
	// as well, with the documented casing winning when both are present.
	switch {
	case rc.PortUpper != nil:
		cfg.Port = *rc.PortUpper
	case rc.PortLower != nil:
		cfg.Port = *rc.PortLower
	}
	if cfg.TopDir == "" {
		cfg.TopDir = filepath.Dir(filepath.Dir(file))
	}
	cfg.InitDefaults()
	return cfg, nil
}

// InitDefaults initializes all uninitialized fields.
func (cfg *Config) InitDefaults() {
	if cfg.TopoXML == "" {
		cfg.TopoXML = DefaultTopoXML
	}
	if cfg.GLPKDir == "" {
		cfg.GLPKDir = DefaultGLPKDir
	}
	if cfg.DBDir == "" {
		cfg.DBDir = DefaultDBDir
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.PFTmpModel == "" {
		cfg.PFTmpModel = DefaultPFTmpModel
	}
	if cfg.SolvecTmpModel == "" {
		// The template file ships under this exact name.
		cfg.SolvecTmpModel = DefaultSolvecTmpModel
	}
	if cfg.TopDir == "" {
		cfg.TopDir = "."
	}
}

// Validate checks that all fields contain usable values.
func (cfg *Config) Validate() error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return serrors.New("invalid nrm_Port", "port", cfg.Port)
	}
	if cfg.NumComps < 0 {
		return serrors.New("num_comps must not be negative", "num_comps", cfg.NumComps)
	}
	return nil
}

// Resolve returns path resolved against the top directory. Absolute paths
// pass through unchanged.
func (cfg *Config) Resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(cfg.TopDir, path)
}

// TopoPath returns the resolved topology file path (under topo/).
func (cfg *Config) TopoPath() string {
	return cfg.Resolve(filepath.Join("topo", cfg.TopoXML))
}

// GLPKPath returns the resolved glpk directory.
func (cfg *Config) GLPKPath() string {
	return cfg.Resolve(cfg.GLPKDir)
}

// DBPath returns the resolved db directory.
func (cfg *Config) DBPath() string {
	return cfg.Resolve(cfg.DBDir)
}

// LoggingEnabled reports whether the logger key enables logging.
func (cfg *Config) LoggingEnabled() bool {
	return cfg.Logger != "disable"
}
