// Copyright 2024 The Xtract Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sapxtract/xtract/pkg/model"
)

func TestNextCarriesRequestDefaultsOntoUnit(t *testing.T) {
	table := model.NewTable(&model.TableRequest{
		RMax: 10, ChunkSize: 5, Destination: "csap_t", Keep: true, Where: "A = 1",
	})

	unit, ok := Next(table)
	require.True(t, ok)
	assert.Equal(t, int64(0), unit.RI)
	assert.Equal(t, int64(5), unit.N)
	assert.Equal(t, "csap_t", unit.Destination)
	assert.True(t, unit.Keep)
	assert.Equal(t, "A = 1", unit.Where)
	assert.Equal(t, model.StatusCreated, unit.Status)
	assert.Nil(t, unit.Chunks)
}

func TestNextReturnsFalseOnceExhausted(t *testing.T) {
	table := model.NewTable(&model.TableRequest{RMax: 5, ChunkSize: 5})

	_, ok := Next(table)
	require.True(t, ok)

	_, ok = Next(table)
	assert.False(t, ok)
}
