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

//go:build integration

// Package docker launches disposable ExtractionNode containers for the
// end-to-end scenarios of the test suite, the way pkg/acceptance launches
// disposable cluster nodes. Only used from _test.go files built with the
// "integration" tag; never linked into non-test binaries.
package docker

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// nodeImage is the ExtractionNode image pulled for the integration suite.
// Iterating against a locally built image can be done by overriding it.
var nodeImage = "docker.io/sapxtract/xtract:latest"

// Node is one running ExtractionNode container reachable at Addr.
type Node struct {
	Addr string

	cli         *client.Client
	containerID string
}

// StartNode pulls nodeImage and starts it on the host network, serving on
// :8080 (matching util_docker.go's NetworkMode: "host" convention, which
// sidesteps the need for a port-publishing API).
func StartNode(ctx context.Context) (*Node, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}

	rc, err := cli.ImagePull(ctx, nodeImage, types.ImagePullOptions{})
	if err != nil {
		return nil, fmt.Errorf("pulling %s: %w", nodeImage, err)
	}
	_, _ = io.Copy(io.Discard, rc)
	_ = rc.Close()

	containerCfg := &container.Config{
		Image: nodeImage,
		Cmd:   []string{"serve", "--demo", "--addr", ":8080"},
	}
	hostCfg := &container.HostConfig{NetworkMode: "host"}

	resp, err := cli.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("creating container: %w", err)
	}
	if err := cli.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		return nil, fmt.Errorf("starting container: %w", err)
	}

	return &Node{
		Addr:        "http://127.0.0.1:8080",
		cli:         cli,
		containerID: resp.ID,
	}, nil
}

// Stop removes the container, giving it up to 10s to exit cleanly.
func (n *Node) Stop(ctx context.Context) error {
	timeout := 10 * time.Second
	if err := n.cli.ContainerStop(ctx, n.containerID, &timeout); err != nil {
		return err
	}
	return n.cli.ContainerRemove(ctx, n.containerID, types.ContainerRemoveOptions{Force: true})
}
