package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dreamware/ringdb/internal/block"
	"github.com/dreamware/ringdb/internal/engine"
	"github.com/dreamware/ringdb/internal/engineconfig"
	"github.com/dreamware/ringdb/internal/enginelog"
	"github.com/dreamware/ringdb/internal/engineerr"
	"github.com/dreamware/ringdb/internal/keycodec"
	"github.com/dreamware/ringdb/internal/objectmodel"
	"github.com/dreamware/ringdb/internal/operator"
	"github.com/dreamware/ringdb/internal/sequence"
	"github.com/dreamware/ringdb/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve <config.yaml>",
	Short: "Run the HTTP API over a configured ring stack",
	Args:  cobra.ExactArgs(1),
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := engineconfig.Load(args[0])
	if err != nil {
		return err
	}
	db, err := engineconfig.Build(cfg)
	if err != nil {
		return fmt.Errorf("building ring stack: %w", err)
	}

	addr := getenv("ENGINE_ADDR", cfg.Addr)

	srv := &server{db: db}
	mux := http.NewServeMux()
	mux.HandleFunc("/objects", srv.handleObjects)
	mux.HandleFunc("/objects/", srv.handleObject)
	mux.HandleFunc("/scan", srv.handleScan)
	mux.HandleFunc("/admin/rebuild-indexes", srv.handleRebuildIndexes)
	mux.HandleFunc("/admin/create-index", srv.handleCreateIndex)
	mux.HandleFunc("/admin/reinsert", srv.handleReinsert)
	mux.HandleFunc("/admin/stats", srv.handleStats)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		enginelog.Logger.Info().Str("addr", addr).Msg("engine listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			enginelog.Logger.Fatal().Err(err).Msg("listen")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		enginelog.Logger.Error().Err(err).Msg("http server shutdown error")
	}
	enginelog.Logger.Info().Msg("engine stopped")
	return nil
}

// server holds the HTTP handlers' shared state: one Database built from
// the config file named on the serve command line.
type server struct {
	db *engine.Database
}

// writeJSON encodes v as the response body, logging (not failing the
// request, since headers are already sent) if encoding itself fails.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		enginelog.Logger.Error().Err(err).Msg("encoding response")
	}
}

// writeEngineError translates the engine's error taxonomy into an HTTP
// status code, using the same http.Error-per-sentinel convention as the
// rest of this package's handlers.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engineerr.ErrObjectNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, engineerr.ErrDataAccess):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, engineerr.ErrDataConsistency):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, engineerr.ErrTimeout):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, engineerr.ErrNotImplemented):
		http.Error(w, err.Error(), http.StatusNotImplemented)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func idFromPath(prefix, path string) (int64, error) {
	return strconv.ParseInt(path[len(prefix):], 10, 64)
}

// insertRequest is the POST /objects body.
type insertRequest struct {
	Data       map[string]any `json:"data"`
	ID         *int64         `json:"id,omitempty"`
	CategoryID *int64         `json:"category_id,omitempty"`
}

// objectResponse is the wire shape of a selected or mutated object.
type objectResponse struct {
	ID         int64          `json:"id"`
	Version    int64          `json:"version"`
	Seal       string         `json:"seal,omitempty"`
	CategoryID *int64         `json:"category_id,omitempty"`
	Ring       string         `json:"ring,omitempty"`
	Data       map[string]any `json:"data"`
}

func toObjectResponse(obj *objectmodel.WebObject, ring string) (*objectResponse, error) {
	data, err := objectmodel.DataToJSON(obj.Data)
	if err != nil {
		return nil, err
	}
	resp := &objectResponse{ID: obj.ID, Version: obj.Version, Seal: obj.Seal, Ring: ring, Data: data}
	if obj.HasCat {
		resp.CategoryID = &obj.CategoryID
	}
	return resp, nil
}

// handleObjects serves POST /objects?ring=name (insert).
func (s *server) handleObjects(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req insertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	opts := engine.InsertOptions{Ring: r.URL.Query().Get("ring")}
	if req.ID != nil {
		opts.ExplicitID, opts.HasExplicitID = *req.ID, true
	}
	if req.CategoryID != nil {
		opts.CategoryID, opts.HasCategory = *req.CategoryID, true
	}

	id, err := s.db.Insert(objectmodel.DataFromJSON(req.Data), opts)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

// updateRequest is the PATCH /objects/{id} body: an edit list in the
// object system's vocabulary.
type updateRequest struct {
	Edits []struct {
		Op    string `json:"op"`
		Path  string `json:"path"`
		Value any    `json:"value"`
	} `json:"edits"`
}

// handleObject serves GET/PATCH/DELETE /objects/{id}?ring=name.
func (s *server) handleObject(w http.ResponseWriter, r *http.Request) {
	id, err := idFromPath("/objects/", r.URL.Path)
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}
	ring := r.URL.Query().Get("ring")

	switch r.Method {
	case http.MethodGet:
		res, err := s.db.Select(id, ring)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		resp, err := toObjectResponse(res.Object, res.Ring)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, resp)

	case http.MethodPatch:
		var req updateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		edits := make([]objectmodel.Edit, len(req.Edits))
		for i, e := range req.Edits {
			edits[i] = objectmodel.Edit{
				Op:    objectmodel.EditOp(e.Op),
				Path:  e.Path,
				Value: objectmodel.FromJSON(e.Value),
			}
		}
		next, err := s.db.Update(id, edits, ring)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		resp, err := toObjectResponse(next, ring)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, resp)

	case http.MethodDelete:
		found, err := s.db.Delete(id, ring)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		if !found {
			http.Error(w, engineerr.NewObjectNotFound(id).Error(), http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleScan serves GET /scan?start=&stop=&limit=&reverse=, returning the
// merged, deduplicated view across the whole ring stack.
func (s *server) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	opts := storage.ScanOptions{
		Start:   []byte(q.Get("start")),
		Stop:    []byte(q.Get("stop")),
		Reverse: q.Get("reverse") == "true",
	}
	if q.Get("start") == "" {
		opts.Start = nil
	}
	if q.Get("stop") == "" {
		opts.Stop = nil
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "bad limit", http.StatusBadRequest)
			return
		}
		opts.Limit = limit
	}

	it, err := s.db.Scan(opts)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	defer it.Close()

	var out []json.RawMessage
	for it.Next() {
		out = append(out, json.RawMessage(it.Record().Value))
	}
	if err := it.Err(); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleRebuildIndexes serves POST /admin/rebuild-indexes?ring=name.
func (s *server) handleRebuildIndexes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.db.RebuildIndexes(r.URL.Query().Get("ring")); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// createIndexRequest is the POST /admin/create-index body. Key fields
// default to an integer type: every index this engine bootstraps with
// keys on integer ids or category ids, so
// a richer per-field type vocabulary has no caller yet.
type createIndexRequest struct {
	Name string   `json:"name"`
	Ring string   `json:"ring,omitempty"`
	Kind string   `json:"kind"`
	Key  []string `json:"key"`
	Sum  []string `json:"sum,omitempty"`
}

// handleCreateIndex serves POST /admin/create-index.
func (s *server) handleCreateIndex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req createIndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	keyFields := make([]operator.FieldSpec, len(req.Key))
	for i, name := range req.Key {
		keyFields[i] = operator.FieldSpec{Name: name, Type: keycodec.IntType{}}
	}

	var op *operator.Operator
	switch req.Kind {
	case "aggregation":
		op = operator.NewAggregationOperator(keyFields, req.Sum)
	case "index", "":
		op = operator.NewIndexOperator(keyFields, nil)
	default:
		http.Error(w, fmt.Sprintf("unknown index kind %q", req.Kind), http.StatusBadRequest)
		return
	}

	seq := sequence.NewDerived(req.Name, op)
	blk := &block.DerivedBlock{Name: req.Name, Store: storage.NewMemoryStore()}
	seq.AddBlock(blk, nil)

	// Database.CreateIndex opens every block of seq itself before
	// rebuilding it from the ring's current data.
	if err := s.db.CreateIndex(req.Ring, seq); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleStats serves GET /admin/stats?ring=name: key count and total
// value bytes for the named ring (or the top ring).
func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stats, err := s.db.Stats(r.URL.Query().Get("ring"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// reinsertRequest is the POST /admin/reinsert body.
type reinsertRequest struct {
	IDs    []int64 `json:"ids"`
	Target string  `json:"target"`
}

// handleReinsert serves POST /admin/reinsert.
func (s *server) handleReinsert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req reinsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	ids, err := s.db.AdminReinsert(req.IDs, req.Target)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]int64{"ids": ids})
}
