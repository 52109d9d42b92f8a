package persistence

import "github.com/google/uuid"

// Seed returns a small bundled demo library, loaded in addition to DATA_DIR
// when TESTING_DATA=true (spec §6). Its three chunks are the ones named in
// the spec's worked example: a cat, an unrelated astronomy fact, and a
// second feline sentence, so a query like "felines" exercises the indexers
// against a small but non-trivial corpus.
func Seed() Snapshot {
	libraryID := uuid.New()
	docID := uuid.New()
	return Snapshot{
		Library: snapshotLibrary{ID: libraryID, Name: "seed-library"},
		Documents: []snapshotDocument{
			{
				ID:        docID,
				LibraryID: libraryID,
				Name:      "seed-document",
				Chunks: []snapshotChunk{
					{ID: uuid.New(), DocumentID: docID, Text: "the cat sat"},
					{ID: uuid.New(), DocumentID: docID, Text: "astronomy telescope"},
					{ID: uuid.New(), DocumentID: docID, Text: "kittens are small cats"},
				},
			},
		},
	}
}
