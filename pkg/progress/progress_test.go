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

package progress

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sapxtract/xtract/pkg/model"
)

func TestWaitReturnsOnceAllTablesComplete(t *testing.T) {
	t1 := model.NewTable(&model.TableRequest{RMax: 10, ChunkSize: 10})
	t2 := model.NewTable(&model.TableRequest{RMax: 10, ChunkSize: 10})

	mon := NewMonitor([]*model.Table{t1, t2})

	go func() {
		time.Sleep(20 * time.Millisecond)
		t1.Record(&model.Unit{N: 10, Count: 10, Status: model.StatusOk})
		time.Sleep(20 * time.Millisecond)
		t2.Record(&model.Unit{N: 10, Count: 10, Status: model.StatusOk})
	}()

	done := make(chan struct{})
	go func() {
		mon.Wait(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after all tables completed")
	}

	assert.True(t, t1.Complete())
	assert.True(t, t2.Complete())
}

func TestWaitReturnsImmediatelyWhenAlreadyComplete(t *testing.T) {
	table := model.NewTable(&model.TableRequest{RMax: 1, ChunkSize: 1})
	table.Record(&model.Unit{N: 1, Count: 1, Status: model.StatusOk})

	mon := NewMonitor([]*model.Table{table})

	done := make(chan struct{})
	go func() {
		mon.Wait(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return for an already-complete table set")
	}
}
