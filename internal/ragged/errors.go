package ragged

import "github.com/pkg/errors"

// Errors of the batching and message passing packages. Failures are always wrapped (with
// errors.Wrapf) around one of these, so callers can test them with errors.Is.
//
// They are unrecoverable for the batch being processed: the forward pass is aborted, and nothing
// partial is returned.
var (
	// ErrShapeMismatch is returned when feature widths are incompatible with a declared transform or reshape.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrIndexOutOfRange is returned when a tuple references a node position outside its graph.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrPartitionMismatch is returned when fields sharing a partition disagree on their per-graph lengths,
	// or when a partition itself is malformed.
	ErrPartitionMismatch = errors.New("partition mismatch")

	// ErrUnmappedRelation is returned when an atomic number or element pair has no entry in a relation table.
	ErrUnmappedRelation = errors.New("unmapped relation")
)
