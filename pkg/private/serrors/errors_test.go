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

package serrors_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/photonpath/nrm/pkg/private/serrors"
)

func TestNew(t *testing.T) {
	err := serrors.New("boom", "key", "value", "answer", 42)
	assert.Equal(t, "boom {answer=42; key=value}", err.Error())
	assert.True(t, errors.Is(err, err))
}

func TestNewWithoutContext(t *testing.T) {
	err := serrors.New("boom")
	assert.Equal(t, "boom", err.Error())
}

func TestWrapKeepsCause(t *testing.T) {
	sentinel := errors.New("sentinel")
	err := serrors.Wrap("wrapping", sentinel, "key", "value")
	assert.True(t, errors.Is(err, sentinel))
	assert.Equal(t, "wrapping {key=value}: sentinel", err.Error())
}

func TestJoin(t *testing.T) {
	base := errors.New("base")
	cause := errors.New("cause")
	err := serrors.Join(base, cause, "k", 1)
	assert.True(t, errors.Is(err, base))
	assert.True(t, errors.Is(err, cause))
	assert.Nil(t, serrors.Join(nil, nil))
}

func TestJoinNilCause(t *testing.T) {
	base := errors.New("base")
	err := serrors.Join(base, nil, "k", 1)
	assert.True(t, errors.Is(err, base))
	assert.Equal(t, "base {k=1}", err.Error())
}

func TestList(t *testing.T) {
	var list serrors.List
	assert.NoError(t, list.ToError())
	list = append(list, errors.New("a"), errors.New("b"))
	assert.Equal(t, "[ a; b ]", list.ToError().Error())
}
