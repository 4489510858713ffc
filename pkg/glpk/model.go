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

package glpk

import (
	"github.com/photonpath/nrm/pkg/log"
)

// Model groups the components sharing one model fragment.
type Model struct {
	Name       string
	Fragment   *Fragment
	Components []string
	// HasController is set when a member component carries an
	// intermediate controller; such models take part in the per-device
	// decomposition.
	HasController bool
}

// NewModel creates a model around a parsed fragment.
func NewModel(name string, frag *Fragment) *Model {
	return &Model{Name: name, Fragment: frag}
}

// AddComponent registers a component with the model. Components of one
// model must agree on controller presence; a mismatch is logged and the
// model keeps its controller flag.
func (m *Model) AddComponent(name string, hasController bool) {
	m.Components = append(m.Components, name)
	if hasController {
		m.HasController = true
	} else if m.HasController {
		log.Info("invalid Controller", "model", m.Name, "comp", name)
	}
}
