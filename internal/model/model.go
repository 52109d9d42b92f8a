// Package model defines the three-level data hierarchy — library, document,
// and chunk — shared by the store, lifecycle, and handler packages.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Metadata is a user-supplied string-to-string annotation map. Values are
// restricted to strings (rather than arbitrary JSON) to keep persistence and
// hashing well-defined.
type Metadata map[string]string

// Clone returns a deep copy so callers can't mutate a stored entity's map
// through a returned reference.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Chunk is the atomic unit of retrieval: a text fragment with an optional
// embedding and its owning document.
type Chunk struct {
	ID         uuid.UUID `json:"id"`
	DocumentID uuid.UUID `json:"document_id"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"embedding,omitempty"`
	Metadata   Metadata  `json:"metadata,omitempty"`
}

// Clone returns a deep copy of the chunk, including its embedding and
// metadata, safe to hand to callers outside the store's lock.
func (c *Chunk) Clone() *Chunk {
	if c == nil {
		return nil
	}
	out := *c
	if c.Embedding != nil {
		out.Embedding = append([]float32(nil), c.Embedding...)
	}
	out.Metadata = c.Metadata.Clone()
	return &out
}

// Document groups chunks within a library.
type Document struct {
	ID         uuid.UUID   `json:"id"`
	LibraryID  uuid.UUID   `json:"library_id"`
	Name       string      `json:"name"`
	Metadata   Metadata    `json:"metadata,omitempty"`
	ChunkIDs   []uuid.UUID `json:"chunk_ids"`
}

// Clone returns a deep copy of the document's scalar fields and chunk-id
// ordering, but not the chunks themselves.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	out.Metadata = d.Metadata.Clone()
	out.ChunkIDs = append([]uuid.UUID(nil), d.ChunkIDs...)
	return &out
}

// IndexKind identifies which nearest-neighbor indexer backs a library.
type IndexKind string

const (
	IndexKindExhaustive IndexKind = "BRUTE_FORCE"
	IndexKindBallTree   IndexKind = "BALL_TREE"
)

// IndexState is the library indexing lifecycle state (spec §4.6).
type IndexState string

const (
	IndexStateIdle     IndexState = "idle"
	IndexStateBuilding IndexState = "building"
	IndexStateReady    IndexState = "ready"
	IndexStateStale    IndexState = "stale"
	IndexStateFailed   IndexState = "failed"
)

// IndexStatus is the published observability/search-gate record of §4.6.
type IndexStatus struct {
	Indexed            bool       `json:"indexed"`
	IndexingInProgress bool       `json:"indexing_in_progress"`
	IndexerType        *IndexKind `json:"indexer_type,omitempty"`
	LastIndexed        *int64     `json:"last_indexed,omitempty"`
	Error              string     `json:"error,omitempty"`
	VectorCount        int        `json:"vector_count,omitempty"`
	Dimension          int        `json:"dimension,omitempty"`
}

// Library is the top-level container for a corpus searched together.
type Library struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Metadata    Metadata    `json:"metadata,omitempty"`
	DocumentIDs []uuid.UUID `json:"document_ids"`
	State       IndexState  `json:"-"`
}

// Clone returns a deep copy of the library's scalar fields and document-id
// ordering, but not its state-machine internals.
func (l *Library) Clone() *Library {
	if l == nil {
		return nil
	}
	out := *l
	out.Metadata = l.Metadata.Clone()
	out.DocumentIDs = append([]uuid.UUID(nil), l.DocumentIDs...)
	return &out
}

// NowMillis returns the current time as Unix epoch milliseconds, the unit
// used by IndexStatus.LastIndexed and index Stats.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
