package world

import "github.com/pkg/errors"

var (
	// ErrNotResident is returned for edits to a chunk that is not loaded.
	ErrNotResident = errors.New("world: chunk not resident")

	// ErrChunkGenerating is returned for edits to a chunk whose block data is
	// not installed yet.
	ErrChunkGenerating = errors.New("world: chunk still generating")

	// ErrOutOfBounds is returned for coordinates outside the vertical range.
	ErrOutOfBounds = errors.New("world: coordinates out of bounds")
)
