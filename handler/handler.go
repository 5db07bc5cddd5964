// Package handler provides the HTTP handlers for the show tracker API.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stevemurr/show-tracker/logging"
	"github.com/stevemurr/show-tracker/metrics"
	"github.com/stevemurr/show-tracker/schema"
	"github.com/stevemurr/show-tracker/store"
)

// Shows is the collection every /shows route works on.
const Shows = "shows"

const (
	msgNoShow          = "No show with this id exists!"
	msgNoName          = "The name of the show is not provided."
	msgNoEpisodes      = "The number of episodes seen is not provided."
	msgBadID           = "Show id must be an integer."
	msgBadMinEpisodes  = "minEpisodes must be an integer."
	msgInternal        = "Internal server error"
	fieldName          = "name"
	fieldEpisodesSeen  = "episodes_seen"
	queryMinEpisodes   = "minEpisodes"
	maxRequestBodySize = 1 << 20
)

// Handler holds the server dependencies and registers routes.
type Handler struct {
	store store.Store
	mux   *http.ServeMux
	log   *slog.Logger
}

// New creates a Handler and wires up all routes.
func New(s store.Store) *Handler {
	h := &Handler{store: s, mux: http.NewServeMux(), log: logging.New("handler")}
	h.routes()
	h.refreshRecordGauge()
	return h
}

// ServeHTTP makes Handler an http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	h.mux.HandleFunc("GET /{$}", h.root)
	h.mux.HandleFunc("GET /mirror/{name}", h.mirror)
	h.mux.HandleFunc("GET /health", h.health)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	h.mux.HandleFunc("GET /shows", h.listShows)
	h.mux.HandleFunc("POST /shows", h.createShow)
	h.mux.HandleFunc("GET /shows/{id}", h.getShow)
	h.mux.HandleFunc("PUT /shows/{id}", h.updateShow)
	h.mux.HandleFunc("DELETE /shows/{id}", h.deleteShow)

	h.mux.HandleFunc("/", h.notFound)
}

// ---------- envelope ----------

// Envelope is the body of every API response.
type Envelope struct {
	Code    int            `json:"code"`
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Result  map[string]any `json:"result"`
}

// respond writes an Envelope. result, when non-nil, must hold a single key
// naming the payload type.
func respond(w http.ResponseWriter, status int, message string, result map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(Envelope{
		Code:    status,
		Success: status >= 200 && status < 300,
		Message: message,
		Result:  result,
	})
	if err != nil {
		// Status is already sent; the client most likely went away.
		logging.New("handler").Debug("write response failed", "status", status, "error", err)
	}
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	h.log.Error("store operation failed",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", RequestIDFrom(r.Context()),
		"error", err,
	)
	respond(w, http.StatusInternalServerError, msgInternal, nil)
}

// readBody decodes a JSON object body. Numbers keep their literal form so
// that integer checks are exact.
func readBody(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return nil, err
	}
	if body == nil {
		return nil, errors.New("body must be a JSON object")
	}
	if dec.More() {
		return nil, errors.New("body must hold a single JSON object")
	}
	return body, nil
}

// normalize converts json.Number values into int or float64 before they are
// stored.
func normalize(body map[string]any) store.Record {
	rec := make(store.Record, len(body))
	for k, v := range body {
		if n, ok := v.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				v = int(i)
			} else {
				f, _ := n.Float64()
				v = f
			}
		}
		rec[k] = v
	}
	return rec
}

func pathID(r *http.Request) (int, error) {
	return strconv.Atoi(r.PathValue("id"))
}

func (h *Handler) refreshRecordGauge() {
	recs, err := h.store.GetAll(Shows)
	if err != nil {
		h.log.Warn("could not count records", "collection", Shows, "error", err)
		return
	}
	metrics.Records.WithLabelValues(Shows).Set(float64(len(recs)))
}

// ---------- status endpoints ----------

func (h *Handler) root(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, "", map[string]any{"content": "hello world!"})
}

func (h *Handler) mirror(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, "", map[string]any{"name": r.PathValue("name")})
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, "", map[string]any{"status": "healthy"})
}

func (h *Handler) notFound(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusNotFound, "Not found", nil)
}

// ---------- shows ----------

func (h *Handler) listShows(w http.ResponseWriter, r *http.Request) {
	shows, err := h.store.GetAll(Shows)
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	if raw := r.URL.Query().Get(queryMinEpisodes); raw != "" {
		minSeen, err := strconv.Atoi(raw)
		if err != nil {
			respond(w, http.StatusBadRequest, msgBadMinEpisodes, nil)
			return
		}
		filtered := make([]store.Record, 0, len(shows))
		for _, s := range shows {
			if seen, ok := s.Int(fieldEpisodesSeen); ok && seen >= minSeen {
				filtered = append(filtered, s)
			}
		}
		shows = filtered
	}
	respond(w, http.StatusOK, "", map[string]any{Shows: shows})
}

func (h *Handler) getShow(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respond(w, http.StatusBadRequest, msgBadID, nil)
		return
	}
	show, err := h.store.GetByID(Shows, id)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if show == nil {
		respond(w, http.StatusNotFound, msgNoShow, nil)
		return
	}
	respond(w, http.StatusOK, "", map[string]any{Shows: show})
}

func (h *Handler) createShow(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		respond(w, http.StatusBadRequest, "Invalid JSON: "+err.Error(), nil)
		return
	}
	if body[fieldName] == nil {
		respond(w, http.StatusUnprocessableEntity, msgNoName, nil)
		return
	}
	if body[fieldEpisodesSeen] == nil {
		respond(w, http.StatusUnprocessableEntity, msgNoEpisodes, nil)
		return
	}
	if err := schema.Validate(schema.Shows, body); err != nil {
		respond(w, http.StatusUnprocessableEntity, validationMessage(err), nil)
		return
	}

	show, err := h.store.Create(Shows, normalize(body))
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	h.refreshRecordGauge()
	h.log.Debug("show created", "id", show[store.IDField], "name", show[fieldName])
	respond(w, http.StatusCreated, "Show added!", map[string]any{Shows: show})
}

func (h *Handler) updateShow(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respond(w, http.StatusBadRequest, msgBadID, nil)
		return
	}
	existing, err := h.store.GetByID(Shows, id)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if existing == nil {
		respond(w, http.StatusNotFound, msgNoShow, nil)
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		respond(w, http.StatusBadRequest, "Invalid JSON: "+err.Error(), nil)
		return
	}
	// Null or missing fields keep their current value.
	for _, k := range []string{fieldName, fieldEpisodesSeen} {
		if body[k] == nil {
			delete(body, k)
		}
	}
	if err := schema.Validate(schema.Shows, body); err != nil {
		respond(w, http.StatusUnprocessableEntity, validationMessage(err), nil)
		return
	}

	changes := store.Record{}
	for k, v := range normalize(body) {
		if k == fieldName || k == fieldEpisodesSeen {
			changes[k] = v
		}
	}
	show, err := h.store.Update(Shows, id, changes)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if show == nil {
		// Deleted between the lookup and the update.
		respond(w, http.StatusNotFound, msgNoShow, nil)
		return
	}
	respond(w, http.StatusCreated, "Show updated!", map[string]any{Shows: show})
}

func (h *Handler) deleteShow(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respond(w, http.StatusBadRequest, msgBadID, nil)
		return
	}
	existed, err := h.store.DeleteByID(Shows, id)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if !existed {
		respond(w, http.StatusNotFound, msgNoShow, nil)
		return
	}
	h.refreshRecordGauge()
	respond(w, http.StatusOK, "Show deleted", nil)
}

func validationMessage(err error) string {
	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		return fmt.Sprintf("Invalid show: %s", verr.Error())
	}
	return err.Error()
}
