package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/konecto/actuator-agent/core"
)

const (
	defaultK = 3
	minK     = 1
	maxK     = 10
)

// SemanticSearch is the slice of the retrieval gateway the semantic tool
// needs.
type SemanticSearch interface {
	Search(ctx context.Context, query string, k int) []core.SearchHit
}

// SemanticTool finds actuators by natural-language similarity.
type SemanticTool struct {
	index SemanticSearch
}

func NewSemanticTool(index SemanticSearch) *SemanticTool {
	return &SemanticTool{index: index}
}

func (t *SemanticTool) Spec() core.ToolSpec {
	return core.ToolSpec{
		Name: "semantic_search",
		Description: "Search for actuators using a natural language description of " +
			"requirements, such as '110V single phase' or 'high torque actuator with " +
			"fast operating speed'. Use for any query about voltage, phase, torque, " +
			"speed, or other technical characteristics without an exact part number.",
		InputSchema: ObjectSchema(map[string]any{
			"query": StringProperty("A natural language query describing the actuator requirements"),
			"k":     IntegerProperty("Number of results to return (default: 3, max: 10)"),
		}, "query"),
	}
}

type semanticArgs struct {
	Query string `json:"query"`
	K     *int   `json:"k"`
}

// Invoke runs the similarity search and renders each hit with its 1-based
// rank and relevance percentage.
func (t *SemanticTool) Invoke(ctx context.Context, args json.RawMessage) string {
	var in semanticArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return fmt.Sprintf("Error: invalid arguments for semantic_search: %v", err)
	}
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return "Error: query must be a non-empty string"
	}

	k := defaultK
	if in.K != nil {
		k = *in.K
	}
	k = clamp(k, minK, maxK)

	hits := t.index.Search(ctx, query, k)
	if len(hits) == 0 {
		return fmt.Sprintf("No actuators found matching: %s", query)
	}

	blocks := make([]string, 0, len(hits))
	for i, hit := range hits {
		blocks = append(blocks, formatHit(i+1, hit))
	}
	return strings.Join(blocks, "\n\n---\n\n")
}

func formatHit(rank int, hit core.SearchHit) string {
	partNumber := hit.Chunk.Metadata["base_part_number"]
	if partNumber == "" {
		partNumber = hit.Chunk.Metadata["identifier"]
	}
	if partNumber == "" {
		partNumber = "N/A"
	}
	contextType := hit.Chunk.Metadata["context_type"]
	if contextType == "" {
		contextType = "N/A"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Result %d (Relevance: %.1f%%):\n", rank, Relevance(hit.Distance))
	fmt.Fprintf(&b, "Base Part Number: %s\n", partNumber)
	fmt.Fprintf(&b, "Context Type: %s\n", contextType)
	fmt.Fprintf(&b, "\nSpecifications:\n%s", hit.Chunk.Text)
	return strings.TrimSpace(b.String())
}

// Relevance converts a distance into a 0-100 percentage. Distances are
// assumed roughly cosine-like in [0,1]; out-of-range values clamp rather
// than reject.
func Relevance(distance float64) float64 {
	return clampFloat((1-distance)*100, 0, 100)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
