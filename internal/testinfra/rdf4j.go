// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// DefaultRDF4JImage bundles the RDF4J server and workbench.
	DefaultRDF4JImage = "eclipse/rdf4j-workbench:5.0.2-jetty"

	// DefaultRDF4JPort is the HTTP port of the server.
	DefaultRDF4JPort = "8080"

	rdf4jServerPath = "/rdf4j-server"
)

// memoryRepositoryConfig is a Turtle repository config for an in-memory store.
const memoryRepositoryConfig = `@prefix rep: <http://www.openrdf.org/config/repository#> .
@prefix sr: <http://www.openrdf.org/config/repository/sail#> .
@prefix sail: <http://www.openrdf.org/config/sail#> .

[] a rep:Repository ;
   rep:repositoryID "%s" ;
   rep:repositoryImpl [
      rep:repositoryType "openrdf:SailRepository" ;
      sr:sailImpl [ sail:sailType "openrdf:MemoryStore" ]
   ] .
`

// RDF4JContainer is a running RDF4J server.
type RDF4JContainer struct {
	testcontainers.Container

	// ServerURL is the REST API root, suitable as triplestore.ClientConfig.BaseURL.
	ServerURL string
}

// RDF4JOption configures the RDF4J container.
type RDF4JOption func(*rdf4jConfig)

type rdf4jConfig struct {
	image        string
	startTimeout time.Duration
}

// WithRDF4JImage sets a custom RDF4J Docker image.
func WithRDF4JImage(image string) RDF4JOption {
	return func(c *rdf4jConfig) {
		c.image = image
	}
}

// WithRDF4JStartTimeout sets the timeout for waiting for the server to start.
func WithRDF4JStartTimeout(timeout time.Duration) RDF4JOption {
	return func(c *rdf4jConfig) {
		c.startTimeout = timeout
	}
}

// NewRDF4JContainer creates and starts an RDF4J server.
func NewRDF4JContainer(ctx context.Context, opts ...RDF4JOption) (*RDF4JContainer, error) {
	cfg := &rdf4jConfig{
		image:        DefaultRDF4JImage,
		startTimeout: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	req := testcontainers.ContainerRequest{
		Image:        cfg.image,
		ExposedPorts: []string{DefaultRDF4JPort + "/tcp"},
		WaitingFor: wait.ForHTTP(rdf4jServerPath+"/protocol").
			WithPort(DefaultRDF4JPort + "/tcp").
			WithStartupTimeout(cfg.startTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("create rdf4j container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, DefaultRDF4JPort+"/tcp")
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get mapped port: %w", err)
	}

	return &RDF4JContainer{
		Container: container,
		ServerURL: fmt.Sprintf("http://%s:%s%s", host, port.Port(), rdf4jServerPath),
	}, nil
}

// CreateMemoryRepository creates an in-memory repository and waits until
// it answers queries.
func (c *RDF4JContainer) CreateMemoryRepository(ctx context.Context, id string) error {
	endpoint := c.ServerURL + "/repositories/" + id
	body := strings.NewReader(fmt.Sprintf(memoryRepositoryConfig, id))

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/turtle")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("create repository %s: %w", id, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Best effort cleanup
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("create repository %s: status %d: %s", id, resp.StatusCode, msg)
	}

	return WaitForReady(ctx, func(ctx context.Context) bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/size", nil)
		if err != nil {
			return false
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return false
		}
		resp.Body.Close() //nolint:errcheck // Best effort cleanup
		return resp.StatusCode == http.StatusOK
	}, 30*time.Second)
}
