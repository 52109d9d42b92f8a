package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"vectordb/internal/config"
	"vectordb/internal/embedding"
	"vectordb/internal/handler"
	"vectordb/internal/lifecycle"
	"vectordb/internal/persistence"
	"vectordb/internal/router"
	"vectordb/internal/store"

	"github.com/stretchr/testify/require"
)

// stubEmbedder assigns each distinct text a vector on a small fixed axis set
// so tests can reason about which chunks a query should rank first, the
// same stub-embedder idiom spec §8 scenario 1 calls for.
type stubEmbedder struct {
	dim int
	vec func(text string) []float32
}

func (e *stubEmbedder) EmbedBatch(ctx context.Context, texts []string, role embedding.Role) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if e.vec != nil {
			out[i] = e.vec(t)
			continue
		}
		v := make([]float32, e.dim)
		v[0] = 1
		out[i] = v
	}
	return out, nil
}

func newTestApp(t *testing.T, embedder embedding.Client) *handler.App {
	t.Helper()
	sink, err := persistence.New(t.TempDir())
	require.NoError(t, err)
	st := store.New()
	lm := lifecycle.New(st, embedder)
	st.SetInvalidationSink(lm)
	return handler.NewApp(st, lm, embedder, sink, config.Config{DefaultLeafSize: 40})
}

func doJSON(t *testing.T, mux http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHealthEndpoint(t *testing.T) {
	mux := router.New(newTestApp(t, &stubEmbedder{dim: 3}))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	decode(t, rec, &body)
	require.Equal(t, "ok", body["status"])
}

func TestLibraryCRUDLifecycle(t *testing.T) {
	mux := router.New(newTestApp(t, &stubEmbedder{dim: 3}))

	rec := doJSON(t, mux, http.MethodPost, "/api/libraries", map[string]interface{}{"name": "lib1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var lib map[string]interface{}
	decode(t, rec, &lib)
	id := lib["id"].(string)
	require.Equal(t, "lib1", lib["name"])

	rec = doJSON(t, mux, http.MethodGet, "/api/libraries/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, http.MethodPatch, "/api/libraries/"+id, map[string]interface{}{"name": "renamed"})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &lib)
	require.Equal(t, "renamed", lib["name"])

	rec = doJSON(t, mux, http.MethodDelete, "/api/libraries/"+id, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/libraries/"+id, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateChunkUnderMissingDocumentReturnsNotFound(t *testing.T) {
	mux := router.New(newTestApp(t, &stubEmbedder{dim: 3}))
	rec := doJSON(t, mux, http.MethodPost, "/api/documents/"+"00000000-0000-0000-0000-000000000000"+"/chunks",
		map[string]interface{}{"text": "hello"})
	require.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]string
	decode(t, rec, &body)
	require.Equal(t, "NotFound", body["error"])
}

// buildLibrary creates a library with one document and the given chunk
// texts, returning the library and document ids.
func buildLibrary(t *testing.T, mux http.Handler, texts []string) (libraryID, documentID string) {
	t.Helper()
	rec := doJSON(t, mux, http.MethodPost, "/api/libraries", map[string]interface{}{"name": "lib"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var lib map[string]interface{}
	decode(t, rec, &lib)
	libraryID = lib["id"].(string)

	rec = doJSON(t, mux, http.MethodPost, "/api/libraries/"+libraryID+"/documents", map[string]interface{}{"name": "doc"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var doc map[string]interface{}
	decode(t, rec, &doc)
	documentID = doc["id"].(string)

	for _, text := range texts {
		rec = doJSON(t, mux, http.MethodPost, "/api/documents/"+documentID+"/chunks", map[string]interface{}{"text": text})
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	return libraryID, documentID
}

// felineEmbedder maps "feline"-family tokens onto a shared axis and
// everything else onto an orthogonal one, the stub embedder spec §8
// scenario 1 calls for.
func felineEmbedder() *stubEmbedder {
	return &stubEmbedder{
		dim: 2,
		vec: func(text string) []float32 {
			for _, tok := range []string{"cat", "kitten", "feline"} {
				if strings.Contains(text, tok) {
					return []float32{1, 0}
				}
			}
			return []float32{0, 1}
		},
	}
}

func TestSearchBeforeIndexIsRejected(t *testing.T) {
	mux := router.New(newTestApp(t, felineEmbedder()))
	libraryID, _ := buildLibrary(t, mux, []string{"the cat sat"})

	rec := doJSON(t, mux, http.MethodPost, "/api/libraries/"+libraryID+"/search", map[string]interface{}{"query_text": "felines"})
	require.Equal(t, http.StatusConflict, rec.Code)
	var body map[string]string
	decode(t, rec, &body)
	require.Equal(t, "NotIndexed", body["error"])
}

func TestIndexThenSearchReturnsFelineChunksFirst(t *testing.T) {
	mux := router.New(newTestApp(t, felineEmbedder()))
	libraryID, _ := buildLibrary(t, mux, []string{
		"the cat sat", "astronomy telescope", "kittens are small cats",
	})

	rec := doJSON(t, mux, http.MethodPost, "/api/libraries/"+libraryID+"/index",
		map[string]interface{}{"indexer_type": "BALL_TREE", "leaf_size": 40})
	require.Equal(t, http.StatusAccepted, rec.Code)

	waitUntilIndexed(t, mux, libraryID)

	rec = doJSON(t, mux, http.MethodPost, "/api/libraries/"+libraryID+"/search",
		map[string]interface{}{"query_text": "felines", "top_k": 2})
	require.Equal(t, http.StatusOK, rec.Code)
	var results []map[string]interface{}
	decode(t, rec, &results)
	require.Len(t, results, 2)
	for _, r := range results {
		require.NotEqual(t, "astronomy telescope", r["text"])
	}
}

// blockingEmbedder holds EmbedBatch open until release is closed, so a test
// can reliably land a second request inside the building window instead of
// racing a build that completes before the assertion runs.
type blockingEmbedder struct {
	dim     int
	started chan struct{}
	release chan struct{}
}

func newBlockingEmbedder(dim int) *blockingEmbedder {
	return &blockingEmbedder{dim: dim, started: make(chan struct{}), release: make(chan struct{})}
}

func (e *blockingEmbedder) EmbedBatch(ctx context.Context, texts []string, role embedding.Role) ([][]float32, error) {
	close(e.started)
	<-e.release
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, e.dim)
		out[i][0] = 1
	}
	return out, nil
}

func TestStartIndexWhileBuildingReturnsAlreadyIndexing(t *testing.T) {
	embedder := newBlockingEmbedder(2)
	mux := router.New(newTestApp(t, embedder))
	libraryID, _ := buildLibrary(t, mux, []string{"the cat sat"})

	rec := doJSON(t, mux, http.MethodPost, "/api/libraries/"+libraryID+"/index",
		map[string]interface{}{"indexer_type": "BRUTE_FORCE"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	<-embedder.started // the build is now inside EmbedBatch, state is building

	rec = doJSON(t, mux, http.MethodPost, "/api/libraries/"+libraryID+"/index",
		map[string]interface{}{"indexer_type": "BRUTE_FORCE"})
	require.Equal(t, http.StatusConflict, rec.Code)
	var body map[string]string
	decode(t, rec, &body)
	require.Equal(t, "AlreadyIndexing", body["error"])

	close(embedder.release)
	waitUntilIndexed(t, mux, libraryID)
}

func TestDeleteDocumentRemovesOnlyItsChunks(t *testing.T) {
	mux := router.New(newTestApp(t, &stubEmbedder{dim: 2}))
	libraryID, doc1 := buildLibrary(t, mux, []string{"a"})

	rec := doJSON(t, mux, http.MethodPost, "/api/libraries/"+libraryID+"/documents", map[string]interface{}{"name": "doc2"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var doc2 map[string]interface{}
	decode(t, rec, &doc2)
	doc2ID := doc2["id"].(string)
	rec = doJSON(t, mux, http.MethodPost, "/api/documents/"+doc2ID+"/chunks", map[string]interface{}{"text": "b"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var chunkB map[string]interface{}
	decode(t, rec, &chunkB)

	rec = doJSON(t, mux, http.MethodDelete, "/api/documents/"+doc1, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/chunks/"+chunkB["id"].(string), nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateLibraryRejectsMissingName(t *testing.T) {
	mux := router.New(newTestApp(t, &stubEmbedder{dim: 2}))
	rec := doJSON(t, mux, http.MethodPost, "/api/libraries", map[string]interface{}{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatchChunkCreateAllOrNothing(t *testing.T) {
	mux := router.New(newTestApp(t, &stubEmbedder{dim: 2}))
	_, documentID := buildLibrary(t, mux, nil)

	rec := doJSON(t, mux, http.MethodPost, "/api/chunks/batch", map[string]interface{}{
		"chunks": []map[string]interface{}{
			{"document_id": documentID, "text": "ok"},
			{"document_id": "00000000-0000-0000-0000-000000000000", "text": "bad"},
		},
	})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/libraries/"+mustLibraryOf(t, mux, documentID)+"/documents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var docs []map[string]interface{}
	decode(t, rec, &docs)
	if ids, ok := docs[0]["chunk_ids"].([]interface{}); ok {
		require.Len(t, ids, 0)
	} else {
		require.Nil(t, docs[0]["chunk_ids"])
	}
}

func mustLibraryOf(t *testing.T, mux http.Handler, documentID string) string {
	t.Helper()
	rec := doJSON(t, mux, http.MethodGet, "/api/documents/"+documentID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var doc map[string]interface{}
	decode(t, rec, &doc)
	return doc["library_id"].(string)
}

// waitUntilIndexed polls the status endpoint until the library leaves
// building, since StartIndex runs the build off the request path.
func waitUntilIndexed(t *testing.T, mux http.Handler, libraryID string) {
	t.Helper()
	for i := 0; i < 200; i++ {
		rec := doJSON(t, mux, http.MethodGet, "/api/libraries/"+libraryID+"/index/status", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var status map[string]interface{}
		decode(t, rec, &status)
		if !status["indexing_in_progress"].(bool) {
			if status["indexed"].(bool) {
				return
			}
			t.Fatalf("index build did not succeed: %+v", status)
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for index build")
}
