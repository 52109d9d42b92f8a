// Package store implements the hierarchical library/document/chunk data
// store (spec §4.7): three entity tables, two reverse-lookup maps, and one
// lock per table acquired in a fixed library→document→chunk order so that
// concurrent CRUD across the hierarchy never deadlocks.
//
// Go's sync.RWMutex is not reentrant, unlike the reentrant per-table locks
// the spec describes (a carryover from the original's dynamically-locked
// runtime). Every exported method acquires each table lock at most once; the
// unexported "...Locked" helpers run under the caller's lock on the outer
// table and take the next inner table's lock themselves, so no goroutine
// ever attempts to re-acquire a mutex it already holds.
package store

import (
	"sync"

	"vectordb/internal/apperr"
	"vectordb/internal/model"

	"github.com/google/uuid"
)

// InvalidationSink receives a notification whenever a library's descendant
// data changes, so the lifecycle manager can move that library to stale
// (spec §4.6/§4.7). Embedding-fill writes bypass this sink entirely.
type InvalidationSink interface {
	Invalidate(libraryID uuid.UUID)
}

type noopSink struct{}

func (noopSink) Invalidate(uuid.UUID) {}

// ChunkInput is one element of a batch chunk-creation request.
type ChunkInput struct {
	DocumentID uuid.UUID
	Text       string
	Metadata   model.Metadata
}

// Store holds the three entity tables and their reverse-lookup maps.
type Store struct {
	libMu   sync.RWMutex
	docMu   sync.RWMutex
	chunkMu sync.RWMutex

	libraries map[uuid.UUID]*model.Library
	documents map[uuid.UUID]*model.Document
	chunks    map[uuid.UUID]*model.Chunk

	documentsByLibrary map[uuid.UUID][]uuid.UUID
	chunksByDocument   map[uuid.UUID][]uuid.UUID

	sinkMu sync.Mutex
	sink   InvalidationSink
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		libraries:          make(map[uuid.UUID]*model.Library),
		documents:          make(map[uuid.UUID]*model.Document),
		chunks:             make(map[uuid.UUID]*model.Chunk),
		documentsByLibrary: make(map[uuid.UUID][]uuid.UUID),
		chunksByDocument:   make(map[uuid.UUID][]uuid.UUID),
		sink:               noopSink{},
	}
}

// SetInvalidationSink wires the lifecycle manager in after construction,
// avoiding an import cycle between store and lifecycle.
func (s *Store) SetInvalidationSink(sink InvalidationSink) {
	s.sinkMu.Lock()
	defer s.sinkMu.Unlock()
	if sink == nil {
		sink = noopSink{}
	}
	s.sink = sink
}

func (s *Store) notify(libraryID uuid.UUID) {
	s.sinkMu.Lock()
	sink := s.sink
	s.sinkMu.Unlock()
	sink.Invalidate(libraryID)
}

// ---- Restore (startup load from persistence) ----

// RestoreLibrary inserts a library with a caller-supplied id, as read back
// from a persisted snapshot (spec §6). It does not notify the invalidation
// sink: a freshly loaded library starts idle, same as spec §8 scenario 6
// ("IndexState is stale" only applies once a library had been indexed
// before persisting; a cold process has no installed indexer either way).
func (s *Store) RestoreLibrary(id uuid.UUID, name string, metadata model.Metadata) {
	s.libMu.Lock()
	defer s.libMu.Unlock()
	s.libraries[id] = &model.Library{
		ID:       id,
		Name:     name,
		Metadata: metadata.Clone(),
		State:    model.IndexStateIdle,
	}
}

// RestoreDocument inserts a document with a caller-supplied id under an
// already-restored library.
func (s *Store) RestoreDocument(id, libraryID uuid.UUID, name string, metadata model.Metadata) {
	s.docMu.Lock()
	defer s.docMu.Unlock()
	s.documents[id] = &model.Document{
		ID:        id,
		LibraryID: libraryID,
		Name:      name,
		Metadata:  metadata.Clone(),
	}
	s.documentsByLibrary[libraryID] = append(s.documentsByLibrary[libraryID], id)
}

// RestoreChunk inserts a chunk with a caller-supplied id under an
// already-restored document. Embeddings are never persisted, so a restored
// chunk always starts with a nil Embedding (spec §6).
func (s *Store) RestoreChunk(id, documentID uuid.UUID, text string, metadata model.Metadata) {
	s.chunkMu.Lock()
	defer s.chunkMu.Unlock()
	s.chunks[id] = &model.Chunk{
		ID:         id,
		DocumentID: documentID,
		Text:       text,
		Metadata:   metadata.Clone(),
	}
	s.chunksByDocument[documentID] = append(s.chunksByDocument[documentID], id)
}

// ---- Library ----

// CreateLibrary adds a new, empty library.
func (s *Store) CreateLibrary(name string, metadata model.Metadata) *model.Library {
	s.libMu.Lock()
	lib := &model.Library{
		ID:       uuid.New(),
		Name:     name,
		Metadata: metadata.Clone(),
		State:    model.IndexStateIdle,
	}
	s.libraries[lib.ID] = lib
	out := lib.Clone()
	s.libMu.Unlock()
	return out
}

// GetLibrary returns a copy of the library, or NotFound.
func (s *Store) GetLibrary(id uuid.UUID) (*model.Library, error) {
	s.libMu.RLock()
	defer s.libMu.RUnlock()
	return s.getLibraryLocked(id)
}

func (s *Store) getLibraryLocked(id uuid.UUID) (*model.Library, error) {
	lib, ok := s.libraries[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "library %s not found", id)
	}
	return s.withDocumentIDsLocked(lib), nil
}

// withDocumentIDsLocked returns a clone of lib with DocumentIDs populated
// from the reverse map. Caller holds libMu; the helper takes docMu for
// reading itself.
func (s *Store) withDocumentIDsLocked(lib *model.Library) *model.Library {
	out := lib.Clone()
	s.docMu.RLock()
	out.DocumentIDs = append([]uuid.UUID(nil), s.documentsByLibrary[lib.ID]...)
	s.docMu.RUnlock()
	return out
}

// ListLibraries returns every library (no pagination: the spec sets no
// scale target beyond a single in-memory process).
func (s *Store) ListLibraries() []*model.Library {
	s.libMu.RLock()
	defer s.libMu.RUnlock()
	out := make([]*model.Library, 0, len(s.libraries))
	for _, lib := range s.libraries {
		out = append(out, s.withDocumentIDsLocked(lib))
	}
	return out
}

// PatchLibrary updates name and/or metadata. A nil name or metadata leaves
// that field unchanged; metadata replaces the whole map when provided.
func (s *Store) PatchLibrary(id uuid.UUID, name *string, metadata model.Metadata) (*model.Library, error) {
	s.libMu.Lock()
	lib, ok := s.libraries[id]
	if !ok {
		s.libMu.Unlock()
		return nil, apperr.New(apperr.NotFound, "library %s not found", id)
	}
	if name != nil {
		lib.Name = *name
	}
	if metadata != nil {
		lib.Metadata = metadata.Clone()
	}
	out := s.withDocumentIDsLocked(lib)
	s.libMu.Unlock()
	s.notify(id)
	return out, nil
}

// DeleteLibrary removes the library and cascades to all of its documents
// and their chunks (spec invariant 3).
func (s *Store) DeleteLibrary(id uuid.UUID) error {
	s.libMu.Lock()
	defer s.libMu.Unlock()
	if _, ok := s.libraries[id]; !ok {
		return apperr.New(apperr.NotFound, "library %s not found", id)
	}

	s.docMu.Lock()
	docIDs := s.documentsByLibrary[id]
	delete(s.documentsByLibrary, id)
	for _, docID := range docIDs {
		delete(s.documents, docID)
	}
	s.docMu.Unlock()

	s.chunkMu.Lock()
	for _, docID := range docIDs {
		for _, chunkID := range s.chunksByDocument[docID] {
			delete(s.chunks, chunkID)
		}
		delete(s.chunksByDocument, docID)
	}
	s.chunkMu.Unlock()

	delete(s.libraries, id)
	s.notify(id)
	return nil
}

// ---- Document ----

// CreateDocument adds a document to an existing library.
func (s *Store) CreateDocument(libraryID uuid.UUID, name string, metadata model.Metadata) (*model.Document, error) {
	s.libMu.RLock()
	_, ok := s.libraries[libraryID]
	s.libMu.RUnlock()
	if !ok {
		return nil, apperr.New(apperr.NotFound, "library %s not found", libraryID)
	}

	s.docMu.Lock()
	doc := &model.Document{
		ID:        uuid.New(),
		LibraryID: libraryID,
		Name:      name,
		Metadata:  metadata.Clone(),
	}
	s.documents[doc.ID] = doc
	s.documentsByLibrary[libraryID] = append(s.documentsByLibrary[libraryID], doc.ID)
	out := s.withChunkIDsLocked(doc)
	s.docMu.Unlock()

	s.notify(libraryID)
	return out, nil
}

func (s *Store) withChunkIDsLocked(doc *model.Document) *model.Document {
	out := doc.Clone()
	s.chunkMu.RLock()
	out.ChunkIDs = append([]uuid.UUID(nil), s.chunksByDocument[doc.ID]...)
	s.chunkMu.RUnlock()
	return out
}

// GetDocument returns a copy of the document, or NotFound.
func (s *Store) GetDocument(id uuid.UUID) (*model.Document, error) {
	s.docMu.RLock()
	defer s.docMu.RUnlock()
	return s.getDocumentLocked(id)
}

func (s *Store) getDocumentLocked(id uuid.UUID) (*model.Document, error) {
	doc, ok := s.documents[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "document %s not found", id)
	}
	return s.withChunkIDsLocked(doc), nil
}

// ListDocuments returns every document owned by libraryID.
func (s *Store) ListDocuments(libraryID uuid.UUID) ([]*model.Document, error) {
	s.libMu.RLock()
	_, ok := s.libraries[libraryID]
	s.libMu.RUnlock()
	if !ok {
		return nil, apperr.New(apperr.NotFound, "library %s not found", libraryID)
	}

	s.docMu.RLock()
	defer s.docMu.RUnlock()
	ids := s.documentsByLibrary[libraryID]
	out := make([]*model.Document, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.withChunkIDsLocked(s.documents[id]))
	}
	return out, nil
}

// PatchDocument updates name and/or metadata.
func (s *Store) PatchDocument(id uuid.UUID, name *string, metadata model.Metadata) (*model.Document, error) {
	s.docMu.Lock()
	doc, ok := s.documents[id]
	if !ok {
		s.docMu.Unlock()
		return nil, apperr.New(apperr.NotFound, "document %s not found", id)
	}
	if name != nil {
		doc.Name = *name
	}
	if metadata != nil {
		doc.Metadata = metadata.Clone()
	}
	libraryID := doc.LibraryID
	out := s.withChunkIDsLocked(doc)
	s.docMu.Unlock()

	s.notify(libraryID)
	return out, nil
}

// DeleteDocument removes the document and cascades to all of its chunks
// (spec invariant 3), leaving sibling documents untouched.
func (s *Store) DeleteDocument(id uuid.UUID) error {
	s.docMu.Lock()
	doc, ok := s.documents[id]
	if !ok {
		s.docMu.Unlock()
		return apperr.New(apperr.NotFound, "document %s not found", id)
	}
	libraryID := doc.LibraryID
	delete(s.documents, id)
	s.documentsByLibrary[libraryID] = removeID(s.documentsByLibrary[libraryID], id)
	s.docMu.Unlock()

	s.chunkMu.Lock()
	for _, chunkID := range s.chunksByDocument[id] {
		delete(s.chunks, chunkID)
	}
	delete(s.chunksByDocument, id)
	s.chunkMu.Unlock()

	s.notify(libraryID)
	return nil
}

// ---- Chunk ----

// CreateChunk adds a chunk to an existing document.
func (s *Store) CreateChunk(documentID uuid.UUID, text string, metadata model.Metadata) (*model.Chunk, error) {
	s.docMu.RLock()
	_, ok := s.documents[documentID]
	s.docMu.RUnlock()
	if !ok {
		return nil, apperr.New(apperr.NotFound, "document %s not found", documentID)
	}

	s.chunkMu.Lock()
	chunk := &model.Chunk{
		ID:         uuid.New(),
		DocumentID: documentID,
		Text:       text,
		Metadata:   metadata.Clone(),
	}
	s.chunks[chunk.ID] = chunk
	s.chunksByDocument[documentID] = append(s.chunksByDocument[documentID], chunk.ID)
	out := chunk.Clone()
	s.chunkMu.Unlock()

	s.notifyForDocument(documentID)
	return out, nil
}

// CreateChunksBatch creates every chunk in items, or none at all: all target
// documents are validated to exist before any chunk is created, so a single
// bad document_id fails the whole batch (SPEC_FULL.md §7).
func (s *Store) CreateChunksBatch(items []ChunkInput) ([]*model.Chunk, error) {
	docIDs := make(map[uuid.UUID]bool, len(items))
	for _, item := range items {
		docIDs[item.DocumentID] = true
	}

	s.docMu.RLock()
	for docID := range docIDs {
		if _, ok := s.documents[docID]; !ok {
			s.docMu.RUnlock()
			return nil, apperr.New(apperr.NotFound, "document %s not found", docID)
		}
	}
	s.docMu.RUnlock()

	s.chunkMu.Lock()
	out := make([]*model.Chunk, 0, len(items))
	affected := make(map[uuid.UUID]bool, len(items))
	for _, item := range items {
		chunk := &model.Chunk{
			ID:         uuid.New(),
			DocumentID: item.DocumentID,
			Text:       item.Text,
			Metadata:   item.Metadata.Clone(),
		}
		s.chunks[chunk.ID] = chunk
		s.chunksByDocument[item.DocumentID] = append(s.chunksByDocument[item.DocumentID], chunk.ID)
		out = append(out, chunk.Clone())
		affected[item.DocumentID] = true
	}
	s.chunkMu.Unlock()

	for docID := range affected {
		s.notifyForDocument(docID)
	}
	return out, nil
}

// GetChunk returns a copy of the chunk, or NotFound.
func (s *Store) GetChunk(id uuid.UUID) (*model.Chunk, error) {
	s.chunkMu.RLock()
	defer s.chunkMu.RUnlock()
	chunk, ok := s.chunks[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "chunk %s not found", id)
	}
	return chunk.Clone(), nil
}

// PatchChunk updates text and/or metadata. Changing the text clears the
// chunk's stored embedding, so the next index build re-embeds it as a
// missing one.
func (s *Store) PatchChunk(id uuid.UUID, text *string, metadata model.Metadata) (*model.Chunk, error) {
	s.chunkMu.Lock()
	chunk, ok := s.chunks[id]
	if !ok {
		s.chunkMu.Unlock()
		return nil, apperr.New(apperr.NotFound, "chunk %s not found", id)
	}
	if text != nil && *text != chunk.Text {
		chunk.Text = *text
		chunk.Embedding = nil
	}
	if metadata != nil {
		chunk.Metadata = metadata.Clone()
	}
	documentID := chunk.DocumentID
	out := chunk.Clone()
	s.chunkMu.Unlock()

	s.notifyForDocument(documentID)
	return out, nil
}

// DeleteChunk removes a single chunk, leaving its document and siblings
// intact.
func (s *Store) DeleteChunk(id uuid.UUID) error {
	s.chunkMu.Lock()
	chunk, ok := s.chunks[id]
	if !ok {
		s.chunkMu.Unlock()
		return apperr.New(apperr.NotFound, "chunk %s not found", id)
	}
	documentID := chunk.DocumentID
	delete(s.chunks, id)
	s.chunksByDocument[documentID] = removeID(s.chunksByDocument[documentID], id)
	s.chunkMu.Unlock()

	s.notifyForDocument(documentID)
	return nil
}

// SetChunkEmbeddingInternal writes an embedding produced during an index
// build. It is flagged internal (spec §4.6 step 2 / §4.7) and deliberately
// does not notify the invalidation sink — filling in a missing embedding is
// not a content mutation.
func (s *Store) SetChunkEmbeddingInternal(id uuid.UUID, embedding []float32) error {
	s.chunkMu.Lock()
	defer s.chunkMu.Unlock()
	chunk, ok := s.chunks[id]
	if !ok {
		return apperr.New(apperr.NotFound, "chunk %s not found", id)
	}
	chunk.Embedding = append([]float32(nil), embedding...)
	return nil
}

// notifyForDocument resolves documentID's owning library and notifies it.
// NotFound here would indicate an internal inconsistency, not a caller
// error, so it is swallowed rather than surfaced.
func (s *Store) notifyForDocument(documentID uuid.UUID) {
	s.docMu.RLock()
	doc, ok := s.documents[documentID]
	s.docMu.RUnlock()
	if ok {
		s.notify(doc.LibraryID)
	}
}

// LibraryChunkSnapshot returns a clone of every chunk currently owned by
// libraryID, used by the lifecycle manager to build an index (spec §4.6
// step 1). The snapshot is taken and returned without holding any lock
// across the caller's subsequent work.
func (s *Store) LibraryChunkSnapshot(libraryID uuid.UUID) ([]*model.Chunk, error) {
	s.libMu.RLock()
	_, ok := s.libraries[libraryID]
	s.libMu.RUnlock()
	if !ok {
		return nil, apperr.New(apperr.NotFound, "library %s not found", libraryID)
	}

	s.docMu.RLock()
	docIDs := append([]uuid.UUID(nil), s.documentsByLibrary[libraryID]...)
	s.docMu.RUnlock()

	s.chunkMu.RLock()
	defer s.chunkMu.RUnlock()
	var out []*model.Chunk
	for _, docID := range docIDs {
		for _, chunkID := range s.chunksByDocument[docID] {
			out = append(out, s.chunks[chunkID].Clone())
		}
	}
	return out, nil
}

// LibraryChunkCount returns the number of chunks currently owned by
// libraryID, used by the search gate's consistency check (spec §4.6).
func (s *Store) LibraryChunkCount(libraryID uuid.UUID) (int, error) {
	s.libMu.RLock()
	_, ok := s.libraries[libraryID]
	s.libMu.RUnlock()
	if !ok {
		return 0, apperr.New(apperr.NotFound, "library %s not found", libraryID)
	}
	s.docMu.RLock()
	docIDs := s.documentsByLibrary[libraryID]
	s.chunkMu.RLock()
	defer s.chunkMu.RUnlock()
	defer s.docMu.RUnlock()
	count := 0
	for _, docID := range docIDs {
		count += len(s.chunksByDocument[docID])
	}
	return count, nil
}

func removeID(ids []uuid.UUID, target uuid.UUID) []uuid.UUID {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}
