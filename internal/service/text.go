package service

import (
	"github.com/duca-club/acucys-ctf/internal/chunk"
	"github.com/duca-club/acucys-ctf/internal/constants"
)

// ChunkText splits text on line boundaries into pieces of at most limit
// characters. A non-positive limit means the embed description limit.
func ChunkText(text string, limit int) []string {
	if limit <= 0 {
		limit = constants.MaxDescriptionLen
	}
	return chunk.Lines(text, limit)
}
