package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// RoutingMode selects which cluster members serve a session. On a single
// instance it has no effect.
type RoutingMode string

const (
	// RoutingRead routes to read replicas
	RoutingRead RoutingMode = "read"

	// RoutingWrite routes to the leader
	RoutingWrite RoutingMode = "write"
)

// SessionWithRouting opens a session against database with the given mode
func SessionWithRouting(ctx context.Context, driver neo4j.DriverWithContext, mode RoutingMode, database string) neo4j.SessionWithContext {
	cfg := neo4j.SessionConfig{DatabaseName: database}
	if mode == RoutingRead {
		cfg.AccessMode = neo4j.AccessModeRead
	} else {
		cfg.AccessMode = neo4j.AccessModeWrite
	}
	return driver.NewSession(ctx, cfg)
}
