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

// Package pathfinder compiles the topology, the per-component available
// connections and the port pairs into the global pathfinding ILP: one
// model file plus per-channel skeleton data files, and optionally the
// per-device decomposed problems used by solvec.
package pathfinder

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/photonpath/nrm/pkg/glpk"
	"github.com/photonpath/nrm/pkg/log"
	"github.com/photonpath/nrm/pkg/private/serrors"
	"github.com/photonpath/nrm/pkg/topology"
)

// Artifact directories under glpk_dir.
const (
	ACDirName     = "ac"
	ModelDataDir  = "glpk"
	TmpDirName    = "tmp"
	VarIdxFileExt = ".vt"
)

// ACDir returns the available-connections directory.
func ACDir(glpkDir string) string {
	return filepath.Join(glpkDir, ACDirName)
}

// DataDir returns the model/data file directory.
func DataDir(glpkDir string) string {
	return filepath.Join(glpkDir, ModelDataDir)
}

// TmpDir returns the per-request work area.
func TmpDir(glpkDir string) string {
	return filepath.Join(glpkDir, TmpDirName)
}

// PFModelFile returns the global model file path.
func PFModelFile(glpkDir, key string) string {
	return filepath.Join(DataDir(glpkDir), "pf_"+key+".model")
}

// PFDataBase returns the per-channel skeleton base path (without
// extension).
func PFDataBase(glpkDir, key, chFullNo string) string {
	return filepath.Join(DataDir(glpkDir), "pf_"+key+"_"+chFullNo)
}

// SolvecModelFile returns the per-device model file path.
func SolvecModelFile(glpkDir, key, modelName string) string {
	return filepath.Join(DataDir(glpkDir), "solvec_"+key+"_"+modelName+".model")
}

// SolvecDataBase returns the per-chunk skeleton base path (without
// extension).
func SolvecDataBase(glpkDir, key, modelName string, idx int) string {
	return filepath.Join(DataDir(glpkDir),
		fmt.Sprintf("solvec_%s_%s_%d", key, modelName, idx))
}

// Params collects the inputs of a compile run.
type Params struct {
	GLPKDir            string
	PFTemplateFile     string
	SolvecTemplateFile string
	ModelFileKey       string
	DataFileKey        string
	NumComps           int
	// Solvec additionally emits the per-device decomposed problems.
	Solvec bool
}

// Make reads the topology, the ac/<model>.model fragments and the
// ac/<model>.conn.txt connection sets, and writes the global model plus
// the per-channel skeleton data files (and the solvec files when
// requested).
func Make(topo *topology.Topology, params Params) error {
	models, err := LoadModels(topo, params.GLPKDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(DataDir(params.GLPKDir), 0o755); err != nil {
		return serrors.Wrap("creating data dir", err)
	}
	if err := makePF(topo, models, params); err != nil {
		return err
	}
	if !params.Solvec {
		return nil
	}
	return makeSolvec(topo, models, params)
}

func writeModelFile(file, head, tail string, constraints []string) error {
	var b strings.Builder
	b.WriteString(head)
	b.WriteString(glpk.RET)
	for _, c := range constraints {
		b.WriteString(c)
	}
	b.WriteString(tail)
	if err := os.WriteFile(file, []byte(b.String()), 0o644); err != nil {
		return serrors.Wrap("writing model file", err, "file", file)
	}
	log.Info("wrote model file", "file", file)
	return nil
}

func makePF(topo *topology.Topology, models map[string]*glpk.Model, params Params) error {
	head, tail, err := splitBaseModel(params.PFTemplateFile)
	if err != nil {
		return err
	}
	var constraints []string
	for _, name := range ModelNames(models) {
		constraints = append(constraints, emitModelConstraints(models[name], "c2"))
	}
	writeModel := true
	for _, ch := range topo.Channels() {
		if len(topo.SupportComps(ch.TableID)) == 0 {
			log.Info("channel has no support ports SKIP", "ch", ch.FullNo)
			continue
		}
		skel := MakePFSkeleton(topo, models, ch, writeModel)
		if writeModel {
			modelConstraints := append([]string{skel.Model}, constraints...)
			file := PFModelFile(params.GLPKDir, params.ModelFileKey)
			if err := writeModelFile(file, head, tail, modelConstraints); err != nil {
				return err
			}
			writeModel = false
		}
		base := PFDataBase(params.GLPKDir, params.DataFileKey, ch.FullNo)
		if err := os.WriteFile(base+".data", []byte(skel.Data), 0o644); err != nil {
			return serrors.Wrap("writing skeleton data", err, "file", base+".data")
		}
		if err := SaveVarIdxTable(base+VarIdxFileExt, skel.VT); err != nil {
			return err
		}
		log.Info("wrote skeleton data", "file", base+".data")
	}
	return nil
}

func makeSolvec(topo *topology.Topology, models map[string]*glpk.Model, params Params) error {
	head, tail, err := splitBaseModel(params.SolvecTemplateFile)
	if err != nil {
		return err
	}
	for _, targets := range SolvecTargets(models, params.NumComps) {
		writeModel := true
		for _, target := range targets {
			skel := MakeSolvecSkeleton(topo, &target, writeModel)
			if writeModel {
				constraints := []string{skel.Model,
					emitModelConstraints(target.Model, "c")}
				file := SolvecModelFile(params.GLPKDir, params.ModelFileKey,
					target.Model.Name)
				if err := writeModelFile(file, head, tail, constraints); err != nil {
					return err
				}
				writeModel = false
			}
			base := SolvecDataBase(params.GLPKDir, params.DataFileKey,
				target.Model.Name, target.Idx)
			if err := os.WriteFile(base+".data", []byte(skel.Data), 0o644); err != nil {
				return serrors.Wrap("writing solvec data", err, "file", base+".data")
			}
			if err := SaveVarIdxTable(base+VarIdxFileExt, skel.VT); err != nil {
				return err
			}
			log.Info("wrote solvec data", "file", base+".data")
		}
	}
	return nil
}
