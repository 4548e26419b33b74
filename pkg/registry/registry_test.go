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

package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("UP"))
	}))
}

func wrongBodyServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not up"))
	}))
}

func TestProbeHealthyNode(t *testing.T) {
	srv := upServer(t)
	defer srv.Close()

	r := NewRegistry()
	require.NoError(t, r.Probe(context.Background(), srv.URL))
}

func TestProbeRejectsWrongBody(t *testing.T) {
	srv := wrongBodyServer(t)
	defer srv.Close()

	r := NewRegistry()
	assert.Error(t, r.Probe(context.Background(), srv.URL))
}

func TestProbeRejectsUnreachable(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Probe(context.Background(), "http://127.0.0.1:1"))
}

func TestDiscoverExcludesUnhealthyNodes(t *testing.T) {
	healthy := upServer(t)
	defer healthy.Close()
	unhealthy := wrongBodyServer(t)
	defer unhealthy.Close()

	r := NewRegistry()
	pool := r.Discover(context.Background(), []string{healthy.URL, unhealthy.URL, "http://127.0.0.1:1"})

	require.Len(t, pool, 1)
	assert.Equal(t, healthy.URL, pool[0].Addr)
	assert.True(t, pool[0].Healthy())
}

func TestNodeBreakerTripsAfterRepeatedFailures(t *testing.T) {
	srv := upServer(t)
	defer srv.Close()

	r := NewRegistry()
	pool := r.Discover(context.Background(), []string{srv.URL})
	require.Len(t, pool, 1)
	node := pool[0]

	assert.True(t, node.Healthy())
	for i := 0; i < 3; i++ {
		node.RecordFailure()
	}
	assert.False(t, node.Healthy())

	node.RecordSuccess()
}

func TestReprobeAllowedThrottlesAfterFirstCall(t *testing.T) {
	srv := upServer(t)
	defer srv.Close()

	r := NewRegistry()
	pool := r.Discover(context.Background(), []string{srv.URL})
	require.Len(t, pool, 1)
	node := pool[0]

	assert.True(t, node.ReprobeAllowed(), "the first reprobe attempt after discovery must be allowed")
	assert.False(t, node.ReprobeAllowed(), "a second immediate reprobe must be throttled")
}
