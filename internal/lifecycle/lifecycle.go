// Package lifecycle implements the per-library indexing state machine (spec
// §4.6): it drives embedding generation, index construction, and the
// idle/building/ready/stale/failed transitions, and is the InvalidationSink
// the store notifies on every mutation.
package lifecycle

import (
	"context"
	"sync"

	"vectordb/internal/apperr"
	"vectordb/internal/embedding"
	"vectordb/internal/index"
	"vectordb/internal/model"
	"vectordb/internal/store"

	"github.com/google/uuid"
)

// Store is the subset of store.Store the lifecycle manager depends on,
// narrowed to an interface so tests can stub it.
type Store interface {
	GetLibrary(id uuid.UUID) (*model.Library, error)
	LibraryChunkSnapshot(libraryID uuid.UUID) ([]*model.Chunk, error)
	SetChunkEmbeddingInternal(id uuid.UUID, embedding []float32) error
}

// libraryState is the mutable per-library lifecycle record.
type libraryState struct {
	mu          sync.Mutex
	state       model.IndexState
	indexerType *model.IndexKind
	lastIndexed *int64
	lastError   string
	installed   index.Indexer
	superseded  bool // set mid-build when a mutation arrives while building
}

// Manager owns the per-library state machines and coordinates index builds
// (spec §4.6). It satisfies store.InvalidationSink.
type Manager struct {
	st       Store
	embedder embedding.Client

	mu        sync.Mutex
	libraries map[uuid.UUID]*libraryState
}

var _ store.InvalidationSink = (*Manager)(nil)

// New creates a lifecycle Manager bound to st for chunk snapshots/embedding
// writes and embedder for batch embedding calls.
func New(st Store, embedder embedding.Client) *Manager {
	return &Manager{
		st:        st,
		embedder:  embedder,
		libraries: make(map[uuid.UUID]*libraryState),
	}
}

func (m *Manager) stateFor(libraryID uuid.UUID) *libraryState {
	m.mu.Lock()
	defer m.mu.Unlock()
	ls, ok := m.libraries[libraryID]
	if !ok {
		ls = &libraryState{state: model.IndexStateIdle}
		m.libraries[libraryID] = ls
	}
	return ls
}

// Invalidate implements store.InvalidationSink: ready libraries go stale,
// building libraries are marked superseded (spec §4.6 transition table).
// Idle/stale/failed libraries with no installed index are left alone — they
// have nothing to invalidate.
func (m *Manager) Invalidate(libraryID uuid.UUID) {
	ls := m.stateFor(libraryID)
	ls.mu.Lock()
	defer ls.mu.Unlock()
	switch ls.state {
	case model.IndexStateReady:
		ls.state = model.IndexStateStale
	case model.IndexStateBuilding:
		ls.superseded = true
	}
}

// Status returns the published observability/search-gate record (spec
// §4.6).
func (m *Manager) Status(libraryID uuid.UUID) model.IndexStatus {
	ls := m.stateFor(libraryID)
	ls.mu.Lock()
	defer ls.mu.Unlock()
	status := model.IndexStatus{
		Indexed:            ls.state == model.IndexStateReady,
		IndexingInProgress: ls.state == model.IndexStateBuilding,
		LastIndexed:        ls.lastIndexed,
		Error:              ls.lastError,
	}
	if ls.indexerType != nil {
		status.IndexerType = ls.indexerType
	}
	if ls.installed != nil {
		stats := ls.installed.Stats()
		status.VectorCount = stats.VectorCount
		status.Dimension = stats.Dimension
	}
	return status
}

// Indexer returns the library's currently installed indexer. NotIndexed is
// returned unless the library is ready (spec §6 search gate).
func (m *Manager) Indexer(libraryID uuid.UUID) (index.Indexer, error) {
	ls := m.stateFor(libraryID)
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.state != model.IndexStateReady || ls.installed == nil {
		return nil, apperr.New(apperr.NotIndexed, "library %s is not indexed", libraryID)
	}
	return ls.installed, nil
}

// beginBuild runs the synchronous legality check of spec §4.6 (library
// exists, not already building) and, if it passes, transitions the library
// to building. The caller is guaranteed that the returned error, if any, is
// the real outcome of the check — there is no race with a background
// goroutine still deciding whether to accept the build.
func (m *Manager) beginBuild(libraryID uuid.UUID) (*libraryState, error) {
	if _, err := m.st.GetLibrary(libraryID); err != nil {
		return nil, err
	}

	ls := m.stateFor(libraryID)
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.state == model.IndexStateBuilding {
		return nil, apperr.New(apperr.AlreadyIndexing, "library %s is already being indexed", libraryID)
	}
	ls.state = model.IndexStateBuilding
	ls.superseded = false
	ls.lastError = ""
	return ls, nil
}

// finishBuild applies the terminal state transition for a completed build
// (spec §4.6) and returns err unchanged for the caller to act on.
func (m *Manager) finishBuild(ls *libraryState, err error) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if err != nil {
		if apperr.KindOf(err) == apperr.Superseded {
			ls.state = model.IndexStateStale
		} else {
			ls.state = model.IndexStateFailed
			ls.lastError = err.Error()
		}
		return err
	}
	return nil
}

// StartIndex kicks off (or rejects) a build for libraryID (spec §4.6) and
// blocks until the build finishes. Callers that must not block the calling
// goroutine on the full build (e.g. an HTTP handler) should use
// StartIndexAsync instead.
func (m *Manager) StartIndex(ctx context.Context, libraryID uuid.UUID, kind model.IndexKind, leafSize int) error {
	ls, err := m.beginBuild(libraryID)
	if err != nil {
		return err
	}
	return m.finishBuild(ls, m.build(ctx, libraryID, ls, kind, leafSize))
}

// StartIndexAsync runs the legality check of spec §4.6 synchronously — so
// the returned error (including AlreadyIndexing) reflects the real,
// immediate outcome — then, if accepted, runs the build itself on a
// detached goroutine rooted in buildCtx rather than a request-scoped
// context, since the build must outlive the HTTP request that started it.
// onDone, if non-nil, is invoked with the build's terminal error (nil on
// success) once the goroutine finishes.
func (m *Manager) StartIndexAsync(buildCtx context.Context, libraryID uuid.UUID, kind model.IndexKind, leafSize int, onDone func(error)) error {
	ls, err := m.beginBuild(libraryID)
	if err != nil {
		return err
	}
	go func() {
		result := m.finishBuild(ls, m.build(buildCtx, libraryID, ls, kind, leafSize))
		if onDone != nil {
			onDone(result)
		}
	}()
	return nil
}

// build runs the four-step build procedure of spec §4.6. It does not touch
// ls.state directly except through the indexer install on success; the
// caller (StartIndex) applies the final state transition.
func (m *Manager) build(ctx context.Context, libraryID uuid.UUID, ls *libraryState, kind model.IndexKind, leafSize int) error {
	// Step 1: snapshot the chunk set under the store's lock.
	snapshot, err := m.st.LibraryChunkSnapshot(libraryID)
	if err != nil {
		return err
	}

	// Step 2: fill any missing embeddings. Written back as index-internal, so
	// the store does not emit an invalidation for these writes.
	var toEmbed []*model.Chunk
	for _, c := range snapshot {
		if c.Embedding == nil {
			toEmbed = append(toEmbed, c)
		}
	}
	if len(toEmbed) > 0 {
		texts := make([]string, len(toEmbed))
		for i, c := range toEmbed {
			texts[i] = c.Text
		}
		vecs, err := m.embedder.EmbedBatch(ctx, texts, embedding.RoleDocument)
		if err != nil {
			return err
		}
		for i, c := range toEmbed {
			if err := m.st.SetChunkEmbeddingInternal(c.ID, vecs[i]); err != nil {
				return err
			}
			c.Embedding = vecs[i]
		}
	}

	// Step 3: re-validate the snapshot against concurrent mutation.
	ls.mu.Lock()
	superseded := ls.superseded
	ls.mu.Unlock()
	if superseded {
		return apperr.New(apperr.Superseded, "library %s was mutated during index build", libraryID)
	}
	current, err := m.st.LibraryChunkSnapshot(libraryID)
	if err != nil {
		return err
	}
	if snapshotChanged(snapshot, current) {
		return apperr.New(apperr.Superseded, "library %s chunk set changed during index build", libraryID)
	}

	// Step 4: construct the indexer and atomically swap it in.
	points := make([]index.Point, len(snapshot))
	for i, c := range snapshot {
		points[i] = index.Point{ID: c.ID, Vector: c.Embedding}
	}
	idx, err := index.Build(kind, points, leafSize)
	if err != nil {
		return err
	}

	ls.mu.Lock()
	ls.installed = idx
	ls.indexerType = &kind
	now := model.NowMillis()
	ls.lastIndexed = &now
	ls.state = model.IndexStateReady
	ls.mu.Unlock()
	return nil
}

// snapshotChanged reports whether the set of chunk ids or any chunk's text
// differs between two snapshots taken at different times (spec §4.6 step 3).
func snapshotChanged(before, after []*model.Chunk) bool {
	if len(before) != len(after) {
		return true
	}
	beforeByID := make(map[uuid.UUID]string, len(before))
	for _, c := range before {
		beforeByID[c.ID] = c.Text
	}
	for _, c := range after {
		text, ok := beforeByID[c.ID]
		if !ok || text != c.Text {
			return true
		}
	}
	return false
}
