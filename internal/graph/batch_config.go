package graph

import "github.com/rohankatakam/teamgraph/internal/models"

// BatchConfig holds UNWIND batch sizes. Nodes carrying long text and
// embedding vectors get smaller batches than edges.
type BatchConfig struct {
	NodeBatchSize         int
	EmbeddedNodeBatchSize int
	EdgeBatchSize         int
}

// DefaultBatchConfig suits batches of a few thousand entities
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		NodeBatchSize:         1000,
		EmbeddedNodeBatchSize: 200,
		EdgeBatchSize:         5000,
	}
}

// SizeFor returns the batch size for a node label
func (c BatchConfig) SizeFor(label models.Label) int {
	for _, l := range models.EmbeddedLabels {
		if l == label {
			return positive(c.EmbeddedNodeBatchSize, 200)
		}
	}
	return positive(c.NodeBatchSize, 1000)
}

// EdgeSize returns the edge batch size
func (c BatchConfig) EdgeSize() int {
	return positive(c.EdgeBatchSize, 5000)
}

func positive(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// chunk splits n items into [start, end) ranges of at most size
func chunk(n, size int) [][2]int {
	var out [][2]int
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}
