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

package solver

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCost(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		file := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(file, []byte(content), 0o644))
		return file
	}

	t.Run("optimal", func(t *testing.T) {
		file := write("ok.sol", `Problem:    pf
Rows:       10
Columns:    20
Status:     INTEGER OPTIMAL
Objective:  PATH_COST = 1.4003 (MINimum)
`)
		assert.Equal(t, 1.4003, ParseCost(file))
	})

	t.Run("zero cost means no solution", func(t *testing.T) {
		file := write("zero.sol", "Objective:  PATH_COST = 0 (MINimum)\n")
		assert.Equal(t, NotFoundCost, ParseCost(file))
	})

	t.Run("missing file", func(t *testing.T) {
		assert.Equal(t, NotFoundCost, ParseCost(filepath.Join(dir, "nope.sol")))
	})

	t.Run("cost line beyond the first lines is ignored", func(t *testing.T) {
		content := ""
		for i := 0; i < 12; i++ {
			content += "filler line\n"
		}
		content += "Objective:  PATH_COST = 2 (MINimum)\n"
		file := write("late.sol", content)
		assert.Equal(t, NotFoundCost, ParseCost(file))
	})
}

func TestInfeasible(t *testing.T) {
	assert.True(t, Infeasible("PROBLEM HAS NO PRIMAL FEASIBLE SOLUTION"))
	assert.True(t, Infeasible("LP HAS NO PRIMAL FEASIBLE SOLUTION"))
	assert.True(t, Infeasible("PROBLEM HAS NO INTEGER FEASIBLE SOLUTION"))
	assert.False(t, Infeasible("INTEGER OPTIMAL SOLUTION FOUND"))
}

func TestSolutionFound(t *testing.T) {
	assert.True(t, SolutionFound("INTEGER OPTIMAL SOLUTION FOUND"))
	assert.False(t, SolutionFound("PROBLEM HAS NO PRIMAL FEASIBLE SOLUTION"))
}

func TestProbeMissingBinary(t *testing.T) {
	d := NewDriver()
	d.BinaryPath = filepath.Join(t.TempDir(), "no-such-glpsol")
	err := d.Probe()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDriverToggles(t *testing.T) {
	d := NewDriver()
	assert.True(t, d.DelTmp())
	assert.False(t, d.DumpOutput())
	d.SetDelTmp(false)
	d.SetDumpOutput(true)
	assert.False(t, d.DelTmp())
	assert.True(t, d.DumpOutput())
}
