// Package persistence implements the library-scoped JSON persistence sink
// (spec §6): one file per library at {DATA_DIR}/library_{uuid}.json holding
// the library, its documents, and their chunks without embeddings. Writes
// are best-effort, following the teacher's errlog-on-failure pattern rather
// than surfacing disk errors to callers (spec §7).
package persistence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"vectordb/internal/errlog"
	"vectordb/internal/model"

	"github.com/google/uuid"
)

// snapshotChunk is the on-disk shape of a chunk: text and metadata only,
// embeddings are always rebuilt at index time from text (spec §6).
type snapshotChunk struct {
	ID         uuid.UUID      `json:"id"`
	DocumentID uuid.UUID      `json:"document_id"`
	Text       string         `json:"text"`
	Metadata   model.Metadata `json:"metadata,omitempty"`
}

type snapshotDocument struct {
	ID        uuid.UUID       `json:"id"`
	LibraryID uuid.UUID       `json:"library_id"`
	Name      string          `json:"name"`
	Metadata  model.Metadata  `json:"metadata,omitempty"`
	Chunks    []snapshotChunk `json:"chunks"`
}

// Snapshot is the full on-disk representation of one library.
type Snapshot struct {
	Library   snapshotLibrary    `json:"library"`
	Documents []snapshotDocument `json:"documents"`
}

type snapshotLibrary struct {
	ID       uuid.UUID      `json:"id"`
	Name     string         `json:"name"`
	Metadata model.Metadata `json:"metadata,omitempty"`
}

// LibrarySource is the subset of the store the sink reads from when saving.
type LibrarySource interface {
	GetLibrary(id uuid.UUID) (*model.Library, error)
	ListDocuments(libraryID uuid.UUID) ([]*model.Document, error)
	GetChunk(id uuid.UUID) (*model.Chunk, error)
}

// RestoreTarget is the subset of the store the sink writes to when loading
// a snapshot back in at startup, preserving the original identifiers.
type RestoreTarget interface {
	RestoreLibrary(id uuid.UUID, name string, metadata model.Metadata)
	RestoreDocument(id, libraryID uuid.UUID, name string, metadata model.Metadata)
	RestoreChunk(id, documentID uuid.UUID, text string, metadata model.Metadata)
}

// Restore applies a loaded Snapshot onto dst, recreating the library,
// documents, and chunks with their original ids.
func Restore(dst RestoreTarget, snapshot Snapshot) {
	dst.RestoreLibrary(snapshot.Library.ID, snapshot.Library.Name, snapshot.Library.Metadata)
	for _, doc := range snapshot.Documents {
		dst.RestoreDocument(doc.ID, doc.LibraryID, doc.Name, doc.Metadata)
		for _, chunk := range doc.Chunks {
			dst.RestoreChunk(chunk.ID, chunk.DocumentID, chunk.Text, chunk.Metadata)
		}
	}
}

// Sink reads and writes library snapshots under a data directory.
type Sink struct {
	dataDir string
}

// New creates a Sink rooted at dataDir, creating it if necessary.
func New(dataDir string) (*Sink, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	return &Sink{dataDir: dataDir}, nil
}

func (s *Sink) pathFor(libraryID uuid.UUID) string {
	return filepath.Join(s.dataDir, "library_"+libraryID.String()+".json")
}

// Save writes libraryID's current state to disk via the
// write-temp-then-rename pattern (spec §9). Every failure is logged to
// errlog here and also returned; the handler layer runs Save on its own
// goroutine and discards the returned error, so failures are logged but
// not surfaced (spec §7).
func (s *Sink) Save(src LibrarySource, libraryID uuid.UUID) error {
	lib, err := src.GetLibrary(libraryID)
	if err != nil {
		errlog.Logf("persistence save: library %s: %v", libraryID, err)
		return err
	}
	docs, err := src.ListDocuments(libraryID)
	if err != nil {
		errlog.Logf("persistence save: list documents for %s: %v", libraryID, err)
		return err
	}

	snapshot := Snapshot{
		Library: snapshotLibrary{ID: lib.ID, Name: lib.Name, Metadata: lib.Metadata},
	}
	for _, doc := range docs {
		sd := snapshotDocument{ID: doc.ID, LibraryID: doc.LibraryID, Name: doc.Name, Metadata: doc.Metadata}
		for _, chunkID := range doc.ChunkIDs {
			chunk, err := src.GetChunk(chunkID)
			if err != nil {
				errlog.Logf("persistence save: chunk %s: %v", chunkID, err)
				continue
			}
			sd.Chunks = append(sd.Chunks, snapshotChunk{
				ID:         chunk.ID,
				DocumentID: chunk.DocumentID,
				Text:       chunk.Text,
				Metadata:   chunk.Metadata,
			})
		}
		snapshot.Documents = append(snapshot.Documents, sd)
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		errlog.Logf("persistence save: marshal library %s: %v", libraryID, err)
		return err
	}

	path := s.pathFor(libraryID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		errlog.Logf("persistence save: write temp file for %s: %v", libraryID, err)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		errlog.Logf("persistence save: rename temp file for %s: %v", libraryID, err)
		os.Remove(tmp)
		return err
	}
	return nil
}

// Delete removes libraryID's persisted file, if any.
func (s *Sink) Delete(libraryID uuid.UUID) {
	if err := os.Remove(s.pathFor(libraryID)); err != nil && !os.IsNotExist(err) {
		errlog.Logf("persistence delete: library %s: %v", libraryID, err)
	}
}

// LoadAll reads every library_*.json file in the data directory and returns
// the parsed snapshots (spec §6's startup load). Unreadable or malformed
// files are logged and skipped rather than aborting startup.
func (s *Sink) LoadAll() ([]Snapshot, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []Snapshot
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "library_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dataDir, name))
		if err != nil {
			errlog.Logf("persistence load: %s: %v", name, err)
			continue
		}
		var snapshot Snapshot
		if err := json.Unmarshal(data, &snapshot); err != nil {
			errlog.Logf("persistence load: parse %s: %v", name, err)
			continue
		}
		out = append(out, snapshot)
	}
	return out, nil
}
