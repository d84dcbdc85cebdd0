package store

import (
	"context"

	"github.com/konecto/actuator-agent/core"
)

// Search embeds the query and returns the k nearest chunks, ascending by
// distance. k must be positive; callers clamp it to their own policy before
// calling. An unavailable index, an empty collection, and an embedding
// failure all fail open to an empty result.
func (g *Gateway) Search(ctx context.Context, query string, k int) []core.SearchHit {
	g.mu.RLock()
	collection := g.collection
	g.mu.RUnlock()
	if collection == nil {
		g.logger.Warn("similarity index unavailable, returning empty result", "query", query)
		g.countQuery("chromem", "unavailable")
		return nil
	}
	if k < 1 {
		return nil
	}

	// chromem rejects nResults larger than the collection.
	if count := collection.Count(); count == 0 {
		return nil
	} else if k > count {
		k = count
	}

	embedding, err := g.cfg.Embedder.Embed(ctx, query)
	if err != nil {
		g.logger.Error("query embedding failed", "query", query, "err", err)
		g.countQuery("chromem", "error")
		return nil
	}

	results, err := collection.QueryEmbedding(ctx, embedding, k, nil, nil)
	if err != nil {
		g.logger.Error("similarity query failed", "query", query, "err", err)
		g.countQuery("chromem", "error")
		return nil
	}

	hits := make([]core.SearchHit, 0, len(results))
	for _, res := range results {
		metadata := make(map[string]string, len(res.Metadata))
		for key, val := range res.Metadata {
			metadata[key] = val
		}
		hits = append(hits, core.SearchHit{
			Chunk: core.EmbeddedChunk{
				Text:      res.Content,
				Metadata:  metadata,
				Embedding: res.Embedding,
			},
			// chromem reports cosine similarity; distance inverts it so
			// smaller still means more similar.
			Distance: 1 - float64(res.Similarity),
		})
	}
	g.countQuery("chromem", "ok")
	return hits
}
