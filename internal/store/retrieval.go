package store

import (
	"context"

	"github.com/yaccii-voc/kbcore/internal/model"
)

// ResolveSearchableChunks adapts ListSearchableChunks to the map shape the
// retriever needs for diversity-capped resolution.
func (s *JobStore) ResolveSearchableChunks(ctx context.Context, space string, chunkIDs []string) (map[string]model.Chunk, error) {
	rows, err := s.ListSearchableChunks(ctx, space, chunkIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]model.Chunk, len(rows))
	for _, c := range rows {
		out[c.ChunkID] = c
	}
	return out, nil
}
