package server

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/askdoc/askdoc-go/internal/llm"
)

// ModelPinger probes a model backend using the client's zero-cost
// availability check. It satisfies the Pinger interface and is used by
// GET /api/ready.
type ModelPinger struct {
	// client is the model client to probe.
	client llm.Client
	// name identifies the backend in readiness responses (e.g. "ollama").
	name string
}

// NewModelPinger constructs a ModelPinger for the given client and backend name.
func NewModelPinger(client llm.Client, name string) *ModelPinger {
	return &ModelPinger{client: client, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *ModelPinger) Name() string { return p.name }

// Ping checks whether the model backend is reachable. No tokens are consumed.
func (p *ModelPinger) Ping(ctx context.Context) error {
	if err := p.client.CheckAvailability(ctx); err != nil {
		return fmt.Errorf("%s availability check failed: %w", p.name, err)
	}
	return nil
}

// QdrantPinger probes a Qdrant instance using its native HealthCheck RPC.
// It satisfies the Pinger interface and is used by GET /api/ready.
type QdrantPinger struct {
	// client is the Qdrant gRPC client to probe.
	client *qdrant.Client
}

// NewQdrantPinger constructs a QdrantPinger for the given Qdrant client.
func NewQdrantPinger(client *qdrant.Client) *QdrantPinger {
	return &QdrantPinger{client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC.
// Returns nil if Qdrant is reachable, or a descriptive error otherwise.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	_, err := p.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}
