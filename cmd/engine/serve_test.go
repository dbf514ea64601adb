package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/dreamware/ringdb/internal/engine"
	"github.com/dreamware/ringdb/internal/engineconfig"
	"github.com/dreamware/ringdb/internal/objectmodel"
	"github.com/dreamware/ringdb/internal/storage"
)

func testServer(t *testing.T) (*server, *httptest.Server, func()) {
	t.Helper()
	cfg := &engineconfig.Config{
		Rings: []engineconfig.RingConfig{
			{Name: "top", Store: engineconfig.StoreConfig{Kind: "memory"}},
		},
	}
	db, err := engineconfig.Build(cfg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	srv := &server{db: db}

	mux := http.NewServeMux()
	mux.HandleFunc("/objects", srv.handleObjects)
	mux.HandleFunc("/objects/", srv.handleObject)
	mux.HandleFunc("/scan", srv.handleScan)
	mux.HandleFunc("/admin/rebuild-indexes", srv.handleRebuildIndexes)
	mux.HandleFunc("/admin/create-index", srv.handleCreateIndex)
	mux.HandleFunc("/admin/reinsert", srv.handleReinsert)
	mux.HandleFunc("/admin/stats", srv.handleStats)

	ts := httptest.NewServer(mux)
	return srv, ts, ts.Close
}

func TestHandleObjectsInsertAndGet(t *testing.T) {
	_, ts, closeFn := testServer(t)
	defer closeFn()

	body, _ := json.Marshal(insertRequest{Data: map[string]any{"n": "hello"}})
	resp, err := http.Post(ts.URL+"/objects", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("got status %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var created map[string]int64
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	id := created["id"]

	getResp, err := http.Get(ts.URL + "/objects/" + itoa(id))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, want %d", getResp.StatusCode, http.StatusOK)
	}
	var obj objectResponse
	if err := json.NewDecoder(getResp.Body).Decode(&obj); err != nil {
		t.Fatalf("decode object: %v", err)
	}
	if obj.Data["n"] != "hello" {
		t.Fatalf("got %v, want %q", obj.Data["n"], "hello")
	}
}

func TestHandleObjectGetMissingReturns404(t *testing.T) {
	_, ts, closeFn := testServer(t)
	defer closeFn()

	resp, err := http.Get(ts.URL + "/objects/999")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("got status %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestHandleObjectPatchAndDelete(t *testing.T) {
	_, ts, closeFn := testServer(t)
	defer closeFn()

	body, _ := json.Marshal(insertRequest{Data: map[string]any{"n": "a"}})
	resp, _ := http.Post(ts.URL+"/objects", "application/json", bytes.NewReader(body))
	var created map[string]int64
	json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()
	id := created["id"]

	patchBody, _ := json.Marshal(updateRequest{Edits: []struct {
		Op    string `json:"op"`
		Path  string `json:"path"`
		Value any    `json:"value"`
	}{{Op: "set", Path: "n", Value: "b"}}})
	req, _ := http.NewRequest(http.MethodPatch, ts.URL+"/objects/"+itoa(id), bytes.NewReader(patchBody))
	patchResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	defer patchResp.Body.Close()
	if patchResp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, want %d", patchResp.StatusCode, http.StatusOK)
	}
	var updated objectResponse
	json.NewDecoder(patchResp.Body).Decode(&updated)
	if updated.Data["n"] != "b" {
		t.Fatalf("got %v, want %q after patch", updated.Data["n"], "b")
	}

	delReq, _ := http.NewRequest(http.MethodDelete, ts.URL+"/objects/"+itoa(id), nil)
	delResp, err := http.DefaultClient.Do(delReq)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	defer delResp.Body.Close()
	if delResp.StatusCode != http.StatusNoContent {
		t.Fatalf("got status %d, want %d", delResp.StatusCode, http.StatusNoContent)
	}

	getResp, _ := http.Get(ts.URL + "/objects/" + itoa(id))
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusNotFound {
		t.Fatalf("got status %d after delete, want %d", getResp.StatusCode, http.StatusNotFound)
	}
}

func TestHandleScanReturnsInsertedObjects(t *testing.T) {
	_, ts, closeFn := testServer(t)
	defer closeFn()

	for _, n := range []string{"a", "b", "c"} {
		body, _ := json.Marshal(insertRequest{Data: map[string]any{"n": n}})
		resp, err := http.Post(ts.URL+"/objects", "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		resp.Body.Close()
	}

	resp, err := http.Get(ts.URL + "/scan")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	defer resp.Body.Close()
	var out []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("got %d records, want 3", len(out))
	}
}

func TestHandleCreateIndexAndRebuild(t *testing.T) {
	_, ts, closeFn := testServer(t)
	defer closeFn()

	body, _ := json.Marshal(insertRequest{Data: map[string]any{"n": "a"}})
	resp, _ := http.Post(ts.URL+"/objects", "application/json", bytes.NewReader(body))
	resp.Body.Close()

	idxBody, _ := json.Marshal(createIndexRequest{Name: "by_n", Kind: "index", Key: []string{"id"}})
	idxResp, err := http.Post(ts.URL+"/admin/create-index", "application/json", bytes.NewReader(idxBody))
	if err != nil {
		t.Fatalf("create-index: %v", err)
	}
	defer idxResp.Body.Close()
	if idxResp.StatusCode != http.StatusNoContent {
		t.Fatalf("got status %d, want %d", idxResp.StatusCode, http.StatusNoContent)
	}

	rebuildResp, err := http.Post(ts.URL+"/admin/rebuild-indexes", "application/json", nil)
	if err != nil {
		t.Fatalf("rebuild-indexes: %v", err)
	}
	defer rebuildResp.Body.Close()
	if rebuildResp.StatusCode != http.StatusNoContent {
		t.Fatalf("got status %d, want %d", rebuildResp.StatusCode, http.StatusNoContent)
	}
}

func TestHandleReinsertMovesObject(t *testing.T) {
	srv, ts, closeFn := testServer(t)
	defer closeFn()

	// The reinsert target must be a ring on the same Database as "top",
	// so rebuild srv's database with both rings before exercising the
	// HTTP handlers.
	cfg := &engineconfig.Config{Rings: []engineconfig.RingConfig{
		{Name: "top", Store: engineconfig.StoreConfig{Kind: "memory"}},
		{Name: "archive", Store: engineconfig.StoreConfig{Kind: "memory"}},
	}}
	db, err := engineconfig.Build(cfg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	srv.db = db

	id, err := db.Insert(map[string]objectmodel.Value{"n": objectmodel.StringValue("x")}, engine.InsertOptions{Ring: "top"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	reqBody, _ := json.Marshal(reinsertRequest{IDs: []int64{id}, Target: "archive"})
	resp, err := http.Post(ts.URL+"/admin/reinsert", "application/json", bytes.NewReader(reqBody))
	if err != nil {
		t.Fatalf("reinsert: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, want %d", resp.StatusCode, http.StatusOK)
	}

	if _, err := db.Select(id, "top"); err == nil {
		t.Fatalf("expected id to be gone from top after reinsert")
	}
	if _, err := db.Select(id, "archive"); err != nil {
		t.Fatalf("expected id present in archive after reinsert: %v", err)
	}
}

func TestHandleStatsReportsKeyCount(t *testing.T) {
	_, ts, closeFn := testServer(t)
	defer closeFn()

	for _, n := range []string{"a", "b"} {
		body, _ := json.Marshal(insertRequest{Data: map[string]any{"n": n}})
		resp, err := http.Post(ts.URL+"/objects", "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		resp.Body.Close()
	}

	resp, err := http.Get(ts.URL + "/admin/stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var stats storage.StoreStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Keys != 2 {
		t.Fatalf("got %d keys, want 2", stats.Keys)
	}
	if stats.Bytes == 0 {
		t.Fatalf("got 0 bytes, want > 0")
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
