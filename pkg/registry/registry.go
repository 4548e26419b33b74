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

// Package registry implements NodeRegistry (spec §4.5): health-probing
// extraction nodes at startup and maintaining the pool of reachable ones,
// plus a per-node circuit breaker that stops routing new units to a node
// that starts failing mid-run (SPEC_FULL §11.1).
package registry

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	circuit "github.com/cockroachdb/circuitbreaker"
	"github.com/facebookgo/clock"
	"golang.org/x/time/rate"

	"github.com/sapxtract/xtract/internal/log"
	"github.com/sapxtract/xtract/pkg/xerrors"
)

// ProbeTimeout is the connect+read timeout used by the startup liveness
// probe (spec §4.5: "5s connect/read").
const ProbeTimeout = 5 * time.Second

// upBody is the literal liveness token a healthy node's GET / must return.
const upBody = "UP"

// Node is one reachable extraction node endpoint plus its mid-run circuit
// breaker state.
type Node struct {
	Addr string

	breaker *circuit.Breaker
	limiter *rate.Limiter
}

// Healthy reports whether unit work should still be routed to n: the
// breaker has not tripped after repeated UnitTransportFailures.
func (n *Node) Healthy() bool {
	return !n.breaker.Tripped()
}

// RecordSuccess resets the breaker's failure count after a unit lands
// successfully.
func (n *Node) RecordSuccess() {
	n.breaker.Success()
}

// RecordFailure counts a UnitTransportFailure against the node's breaker,
// tripping it after the configured threshold.
func (n *Node) RecordFailure() {
	n.breaker.Fail()
}

// Registry maintains the pool of healthy nodes discovered at startup.
type Registry struct {
	client *http.Client
}

// NewRegistry constructs a Registry with an HTTP client dialed with the
// spec's 5s connect/read timeouts (grounded in util/netutil's dial
// settings).
func NewRegistry() *Registry {
	dialer := &net.Dialer{Timeout: ProbeTimeout}
	return &Registry{
		client: &http.Client{
			Timeout: ProbeTimeout,
			Transport: &http.Transport{
				DialContext:           dialer.DialContext,
				ResponseHeaderTimeout: ProbeTimeout,
			},
		},
	}
}

// Probe performs the spec §4.5 liveness check: a root GET whose body must
// equal the literal string "UP". Nodes that are unreachable, time out, or
// respond with anything else are excluded from the pool and are not
// retried (ErrNodeUnreachable).
func (r *Registry) Probe(ctx context.Context, addr string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr+"/", nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return xerrors.ErrNodeUnreachable
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil || string(body) != upBody {
		return xerrors.ErrNodeUnreachable
	}
	return nil
}

// Discover probes every candidate address and returns the pool of healthy
// nodes, each with a fresh circuit breaker (spec end-to-end scenario 6:
// a node down at start is simply excluded and the run proceeds on the
// rest).
func (r *Registry) Discover(ctx context.Context, addrs []string) []*Node {
	var pool []*Node
	for _, addr := range addrs {
		if err := r.Probe(ctx, addr); err != nil {
			log.Warningf(ctx, "node %s excluded from pool: %v", addr, err)
			continue
		}
		pool = append(pool, newNode(addr))
		log.Infof(ctx, "node %s healthy, added to pool", addr)
	}
	return pool
}

func newNode(addr string) *Node {
	c := clock.New()
	return &Node{
		Addr: addr,
		breaker: circuit.NewBreakerWithOptions(&circuit.Options{
			Name:       addr,
			ShouldTrip: circuit.ThresholdTripFunc(3),
			Clock:      c,
		}),
		limiter: rate.NewLimiter(rate.Every(ProbeTimeout), 1),
	}
}

// ReprobeAllowed reports whether enough time has passed (throttled by
// x/time/rate) since the node's last re-probe to attempt another one. The
// Dispatcher calls it before re-probing a node whose breaker has tripped.
func (n *Node) ReprobeAllowed() bool {
	return n.limiter.Allow()
}
