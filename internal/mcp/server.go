package mcp

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rohankatakam/teamgraph/internal/graph"
	"github.com/rohankatakam/teamgraph/internal/metrics"
	"github.com/rohankatakam/teamgraph/internal/models"
	"github.com/rohankatakam/teamgraph/internal/rag"
	"github.com/rohankatakam/teamgraph/internal/router"
)

// Retriever is the retrieval surface exposed as tools; *rag.Service
// satisfies it.
type Retriever interface {
	Route(ctx context.Context, question string) (router.Decision, map[models.Label]int, error)
	Ask(ctx context.Context, question string) (*rag.Answer, error)
}

// Stats reports graph contents
type Stats interface {
	Totals(ctx context.Context) (graph.Totals, error)
}

type RouteArgs struct {
	Query string `json:"query" jsonschema:"natural-language question to route"`
}

type RouteResult struct {
	Label     string         `json:"label,omitempty"`
	IndexName string         `json:"indexName,omitempty"`
	Reason    string         `json:"reason"`
	Found     bool           `json:"found"`
	Available map[string]int `json:"available"`
}

type QueryArgs struct {
	Question string `json:"question" jsonschema:"question about the team's code and conversations"`
}

// HitView is one retrieved node without its properties
type HitView struct {
	Label string  `json:"label"`
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// AnswerView is the tool-facing form of a retrieval answer
type AnswerView struct {
	Answer string    `json:"answer"`
	Label  string    `json:"label,omitempty"`
	Reason string    `json:"reason"`
	Hits   []HitView `json:"hits"`
}

type StatsArgs struct{}

type StatsResult struct {
	Nodes         map[string]int `json:"nodes"`
	Relationships map[string]int `json:"relationships"`
}

// Server exposes routing, question answering and graph statistics as MCP
// tools.
type Server struct {
	server    *mcp.Server
	retriever Retriever
	stats     Stats
	logger    *slog.Logger
}

// NewServer registers the tools. stats may be nil, in which case the
// graph_stats tool is not offered.
func NewServer(retriever Retriever, stats Stats, version string) *Server {
	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "teamgraph",
			Version: version,
		}, nil),
		retriever: retriever,
		stats:     stats,
		logger:    slog.Default().With("component", "mcp"),
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	readOnly := &mcp.ToolAnnotations{ReadOnlyHint: true}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "route",
		Description: "Choose which entity type (CodeChange, Ticket, Message, TextChunk) a question should be searched in",
		Annotations: readOnly,
	}, s.handleRoute)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "query",
		Description: "Answer a question from the team graph: route, vector search and generate",
		Annotations: readOnly,
	}, s.handleQuery)

	if s.stats != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "graph_stats",
			Description: "Count nodes per label and relationships per type",
			Annotations: readOnly,
		}, s.handleStats)
	}
}

// Run serves over stdio until the client disconnects or ctx ends
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server starting on stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Connect serves one session over transport
func (s *Server) Connect(ctx context.Context, transport mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, transport, nil)
}

func (s *Server) handleRoute(ctx context.Context, _ *mcp.CallToolRequest, args RouteArgs) (*mcp.CallToolResult, RouteResult, error) {
	done := metrics.Time("tool_route")
	decision, available, err := s.retriever.Route(ctx, args.Query)
	if err != nil {
		done(false)
		return nil, RouteResult{}, err
	}
	done(true)

	out := RouteResult{
		Label:     string(decision.Label),
		IndexName: decision.IndexName,
		Reason:    decision.Reason,
		Found:     decision.Found,
		Available: make(map[string]int, len(available)),
	}
	for label, n := range available {
		out.Available[string(label)] = n
	}
	return nil, out, nil
}

func (s *Server) handleQuery(ctx context.Context, _ *mcp.CallToolRequest, args QueryArgs) (*mcp.CallToolResult, AnswerView, error) {
	done := metrics.Time("tool_query")
	ans, err := s.retriever.Ask(ctx, args.Question)
	if err != nil {
		done(false)
		s.logger.Warn("query failed", "error", err)
		return nil, AnswerView{}, err
	}
	done(true)

	out := AnswerView{
		Answer: ans.Answer,
		Label:  string(ans.Decision.Label),
		Reason: ans.Decision.Reason,
		Hits:   make([]HitView, 0, len(ans.Hits)),
	}
	for _, h := range ans.Hits {
		out.Hits = append(out.Hits, HitView{Label: string(h.Label), ID: h.ID, Score: h.Score})
	}
	return nil, out, nil
}

func (s *Server) handleStats(ctx context.Context, _ *mcp.CallToolRequest, _ StatsArgs) (*mcp.CallToolResult, StatsResult, error) {
	totals, err := s.stats.Totals(ctx)
	if err != nil {
		return nil, StatsResult{}, err
	}
	out := StatsResult{
		Nodes:         make(map[string]int, len(totals.Nodes)),
		Relationships: make(map[string]int, len(totals.Relationships)),
	}
	for label, n := range totals.Nodes {
		out.Nodes[string(label)] = n
	}
	for rel, n := range totals.Relationships {
		out.Relationships[string(rel)] = n
	}
	return nil, out, nil
}
