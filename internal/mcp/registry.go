package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/fyrsmithlabs/chroma-mcp/internal/logging"
	"github.com/fyrsmithlabs/chroma-mcp/internal/vectorstore"
)

const instrumentationName = "github.com/fyrsmithlabs/chroma-mcp/internal/mcp"

// ToolCategory groups tools for listing and search.
type ToolCategory string

const (
	// CategoryCollection is for tools that manage collections.
	CategoryCollection ToolCategory = "collection"
	// CategoryDocument is for tools that read or write records in a collection.
	CategoryDocument ToolCategory = "document"
)

// Tool is a named operation with a declared input schema and a typed handler.
type Tool struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Category    ToolCategory `json:"category"`
	// Keywords are additional searchable terms.
	Keywords []string `json:"keywords,omitempty"`

	// InputSchema is derived from the handler's input struct, with defaults set.
	InputSchema *jsonschema.Schema `json:"input_schema"`

	resolved *jsonschema.Resolved
	handle   func(ctx context.Context, args map[string]any) (string, error)
}

// newTool derives the input schema from In and binds fn as the handler.
// defaults maps property names to JSON default values. It panics on a schema
// that cannot be built, which is a programming error.
func newTool[In any](name, description string, category ToolCategory, keywords []string, defaults map[string]string, fn func(ctx context.Context, in In) (string, error)) *Tool {
	schema, err := jsonschema.For[In](nil)
	if err != nil {
		panic(fmt.Sprintf("tool %s: deriving input schema: %v", name, err))
	}
	for prop, raw := range defaults {
		p, ok := schema.Properties[prop]
		if !ok {
			panic(fmt.Sprintf("tool %s: default for unknown property %q", name, prop))
		}
		p.Default = json.RawMessage(raw)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		panic(fmt.Sprintf("tool %s: resolving input schema: %v", name, err))
	}

	return &Tool{
		Name:        name,
		Description: description,
		Category:    category,
		Keywords:    keywords,
		InputSchema: schema,
		resolved:    resolved,
		handle: func(ctx context.Context, args map[string]any) (string, error) {
			raw, err := json.Marshal(args)
			if err != nil {
				return "", invalidArgument("Invalid arguments: %v", err)
			}
			var in In
			if err := json.Unmarshal(raw, &in); err != nil {
				return "", invalidArgument("Invalid arguments: %v", err)
			}
			return fn(ctx, in)
		},
	}
}

// Registry maps tool names to tools and dispatches calls to them.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
	order []string

	store   *vectorstore.Handle
	logger  *logging.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the dispatch logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithMetrics sets the tool metrics recorder.
func WithMetrics(m *Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithTracer sets the tracer used for per-call spans.
func WithTracer(t trace.Tracer) Option {
	return func(r *Registry) { r.tracer = t }
}

// NewRegistry returns a registry holding every chroma tool, bound to store.
func NewRegistry(store *vectorstore.Handle, opts ...Option) *Registry {
	r := &Registry{
		tools: make(map[string]*Tool),
		store: store,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logging.NewNop()
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer(instrumentationName)
	}
	if r.metrics == nil {
		r.metrics = NewMetrics(r.logger)
	}
	r.logger = r.logger.Named("mcp")

	for _, t := range (&toolset{store: store}).tools() {
		r.Register(t)
	}
	return r
}

// Register adds a tool. An empty or duplicate name panics.
func (r *Registry) Register(tool *Tool) {
	if tool == nil || tool.Name == "" {
		panic("mcp: tool must have a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.tools[tool.Name]; dup {
		panic(fmt.Sprintf("mcp: tool %q already registered", tool.Name))
	}
	r.tools[tool.Name] = tool
	r.order = append(r.order, tool.Name)
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns tools in registration order.
func (r *Registry) List() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// ListByCategory returns the tools in category, in registration order.
func (r *Registry) ListByCategory(category ToolCategory) []*Tool {
	out := make([]*Tool, 0)
	for _, t := range r.List() {
		if t.Category == category {
			out = append(out, t)
		}
	}
	return out
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// SearchResult is a tool matched by Search.
type SearchResult struct {
	Tool *Tool `json:"tool"`

	// Score indicates match quality (higher is better).
	// 3 = exact name match
	// 2 = name contains or matches query
	// 1 = description or keyword match
	Score int `json:"score"`

	MatchReason string `json:"match_reason"`
}

// Search finds tools by case-insensitive substring or regex match against
// names, descriptions and keywords. Results are ordered by score, then name.
func (r *Registry) Search(query string) []*SearchResult {
	if query == "" {
		return nil
	}
	queryLower := strings.ToLower(query)

	// Fall back to literal matching if the query is not a valid pattern
	var re *regexp.Regexp
	if compiled, err := regexp.Compile("(?i)" + query); err == nil {
		re = compiled
	}
	matches := func(s string) bool {
		return strings.Contains(strings.ToLower(s), queryLower) || (re != nil && re.MatchString(s))
	}

	var results []*SearchResult
	for _, tool := range r.List() {
		switch {
		case strings.ToLower(tool.Name) == queryLower:
			results = append(results, &SearchResult{Tool: tool, Score: 3, MatchReason: "exact name match"})
		case matches(tool.Name):
			results = append(results, &SearchResult{Tool: tool, Score: 2, MatchReason: "name matches query"})
		case matches(tool.Description):
			results = append(results, &SearchResult{Tool: tool, Score: 1, MatchReason: "description matches query"})
		default:
			for _, kw := range tool.Keywords {
				if matches(kw) {
					results = append(results, &SearchResult{Tool: tool, Score: 1, MatchReason: "keyword matches query"})
					break
				}
			}
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Tool.Name < results[j].Tool.Name
	})
	return results
}
