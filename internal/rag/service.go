// Package rag answers questions over the graph: route the question to a
// vector index, retrieve the closest nodes, and generate an answer from them.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/rohankatakam/teamgraph/internal/errors"
	"github.com/rohankatakam/teamgraph/internal/graph"
	"github.com/rohankatakam/teamgraph/internal/llm"
	"github.com/rohankatakam/teamgraph/internal/models"
	"github.com/rohankatakam/teamgraph/internal/router"
)

// DefaultTopK is the number of nodes retrieved per question
const DefaultTopK = 5

// NoDataAnswer is returned when nothing in the graph is embedded
const NoDataAnswer = "No data available in the knowledge graph to answer this question."

// SystemPrompt sets the answer format
const SystemPrompt = `You are a helpful assistant providing information based on the knowledge graph.

Format your responses according to these guidelines:
1. Begin with a direct and concise answer to the question.
2. Follow with 2-3 sentences of supporting details or context.
3. If providing technical information, highlight key technical terms.
4. If uncertain about any part of the answer, clearly indicate what's uncertain.
5. Keep your answer focused and avoid tangential information.

Your tone should be professional, clear, and factual.`

// Searcher is the read side of graph.Store
type Searcher interface {
	CountEmbedded(ctx context.Context, labels []models.Label) (map[models.Label]int, error)
	VectorSearch(ctx context.Context, label models.Label, vector []float32, k int) ([]graph.Hit, error)
}

// QueryEmbedder embeds the question text
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// Answer is the result of one question
type Answer struct {
	Question  string               `json:"question"`
	Answer    string               `json:"answer"`
	Decision  router.Decision      `json:"decision"`
	Available map[models.Label]int `json:"available"`
	Hits      []graph.Hit          `json:"hits"`
}

// Service runs the retrieval flow
type Service struct {
	store     Searcher
	embedder  QueryEmbedder
	generator llm.Generator
	topK      int
	logger    *slog.Logger
}

// NewService creates a service. generator may be nil, in which case Ask
// retrieves without generating.
func NewService(store Searcher, embedder QueryEmbedder, generator llm.Generator, topK int) *Service {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Service{
		store:     store,
		embedder:  embedder,
		generator: generator,
		topK:      topK,
		logger:    slog.Default().With("component", "rag"),
	}
}

// Route returns the routing decision for question using live embedded counts
func (s *Service) Route(ctx context.Context, question string) (router.Decision, map[models.Label]int, error) {
	available, err := s.store.CountEmbedded(ctx, models.EmbeddedLabels)
	if err != nil {
		return router.Decision{}, nil, err
	}
	return router.Route(question, available), available, nil
}

// Ask routes, retrieves the top-k nodes and generates an answer. A graph
// with nothing embedded yields NoDataAnswer, not an error.
func (s *Service) Ask(ctx context.Context, question string) (*Answer, error) {
	decision, available, err := s.Route(ctx, question)
	if err != nil {
		return nil, err
	}
	ans := &Answer{Question: question, Decision: decision, Available: available}

	s.logger.Info("query routed",
		"label", decision.Label,
		"index", decision.IndexName,
		"reason", decision.Reason)

	if !decision.Found {
		ans.Answer = NoDataAnswer
		return ans, nil
	}

	vector, err := s.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, err
	}
	hits, err := s.store.VectorSearch(ctx, decision.Label, vector, s.topK)
	if err != nil {
		return nil, err
	}
	ans.Hits = hits

	if s.generator == nil {
		return ans, nil
	}

	text, err := s.generator.Complete(ctx, SystemPrompt, BuildPrompt(question, hits))
	if err != nil {
		return nil, errors.ExternalErrorf(err, "generate answer with %s", s.generator.Provider())
	}
	ans.Answer = strings.TrimSpace(text)
	return ans, nil
}

const maxFieldLength = 1000

// BuildPrompt renders retrieved nodes as context followed by the question
func BuildPrompt(question string, hits []graph.Hit) string {
	var sb strings.Builder
	sb.WriteString("Context:\n")
	if len(hits) == 0 {
		sb.WriteString("(no matching records)\n")
	}
	for i, h := range hits {
		fmt.Fprintf(&sb, "%d. [%s %s] score=%.3f\n", i+1, h.Label, h.ID, h.Score)
		keys := make([]string, 0, len(h.Properties))
		for k := range h.Properties {
			if k == "id" || k == "embedding" {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v := fmt.Sprint(h.Properties[k])
			if v == "" {
				continue
			}
			if len(v) > maxFieldLength {
				v = v[:maxFieldLength] + "..."
			}
			fmt.Fprintf(&sb, "   %s: %s\n", k, v)
		}
	}
	fmt.Fprintf(&sb, "\nQuestion:\n%s\n\nAnswer:", question)
	return sb.String()
}
