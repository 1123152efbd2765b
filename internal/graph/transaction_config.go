package graph

import (
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Operation names used for transaction configs and metrics
const (
	OpSchema       = "schema"
	OpNodeUpsert   = "node_upsert"
	OpEdgeUpsert   = "edge_upsert"
	OpVectorSearch = "vector_search"
	OpCount        = "count"
	OpClear        = "clear"
	OpHealthCheck  = "health_check"
)

// TransactionConfig is the timeout and metadata for one kind of transaction.
// Metadata shows up in the server's query log.
type TransactionConfig struct {
	Timeout  time.Duration
	Metadata map[string]any
}

// DefaultTransactionConfigs returns the config per operation
func DefaultTransactionConfigs() map[string]TransactionConfig {
	return map[string]TransactionConfig{
		OpSchema: {
			Timeout:  5 * time.Minute, // index population can be slow on large graphs
			Metadata: map[string]any{"operation": OpSchema, "type": "schema"},
		},
		OpNodeUpsert: {
			Timeout:  3 * time.Minute,
			Metadata: map[string]any{"operation": OpNodeUpsert, "type": "write"},
		},
		OpEdgeUpsert: {
			Timeout:  3 * time.Minute,
			Metadata: map[string]any{"operation": OpEdgeUpsert, "type": "write"},
		},
		OpVectorSearch: {
			Timeout:  30 * time.Second,
			Metadata: map[string]any{"operation": OpVectorSearch, "type": "read"},
		},
		OpCount: {
			Timeout:  30 * time.Second,
			Metadata: map[string]any{"operation": OpCount, "type": "read"},
		},
		OpClear: {
			Timeout:  30 * time.Minute,
			Metadata: map[string]any{"operation": OpClear, "type": "write"},
		},
		OpHealthCheck: {
			Timeout:  5 * time.Second,
			Metadata: map[string]any{"operation": OpHealthCheck, "type": "read"},
		},
	}
}

// GetConfigForOperation returns the config for operation, or a 60s default
func GetConfigForOperation(operation string) TransactionConfig {
	if cfg, ok := DefaultTransactionConfigs()[operation]; ok {
		return cfg
	}
	return TransactionConfig{
		Timeout:  60 * time.Second,
		Metadata: map[string]any{"operation": operation, "type": "unknown"},
	}
}

// AsNeo4jConfig converts to transaction configurers for ExecuteRead/ExecuteWrite
func (tc TransactionConfig) AsNeo4jConfig() []func(*neo4j.TransactionConfig) {
	var configs []func(*neo4j.TransactionConfig)
	if tc.Timeout > 0 {
		configs = append(configs, neo4j.WithTxTimeout(tc.Timeout))
	}
	if len(tc.Metadata) > 0 {
		configs = append(configs, neo4j.WithTxMetadata(tc.Metadata))
	}
	return configs
}

// WithMetadata returns a copy with one more metadata entry
func (tc TransactionConfig) WithMetadata(key string, value any) TransactionConfig {
	out := TransactionConfig{
		Timeout:  tc.Timeout,
		Metadata: make(map[string]any, len(tc.Metadata)+1),
	}
	for k, v := range tc.Metadata {
		out.Metadata[k] = v
	}
	out.Metadata[key] = value
	return out
}
