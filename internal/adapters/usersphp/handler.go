// Package usersphp serves the users.php contract the front-end consumes,
// backed by a local member store. It exists for development and tests.
package usersphp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	memberStore "memberdesk/internal/adapters/storage/member"
	"memberdesk/internal/domain/member"
)

// maxBodyBytes caps request bodies for create and update.
const maxBodyBytes = 64 << 10

// Handler dispatches users.php requests on the function query parameter.
type Handler struct {
	store memberStore.Store
}

// NewHandler creates a users.php handler over store.
func NewHandler(store memberStore.Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch fn := r.URL.Query().Get("function"); fn {
	case "readall":
		if !allow(w, r, http.MethodGet) {
			return
		}
		h.readAll(w, r)
	case "read":
		if !allow(w, r, http.MethodGet) {
			return
		}
		h.read(w, r)
	case "create":
		if !allow(w, r, http.MethodPost) {
			return
		}
		h.create(w, r)
	case "update":
		if !allow(w, r, http.MethodPut) {
			return
		}
		h.update(w, r)
	case "delete":
		if !allow(w, r, http.MethodDelete) {
			return
		}
		h.delete(w, r)
	default:
		http.Error(w, "unknown function", http.StatusBadRequest)
	}
}

func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	w.WriteHeader(http.StatusMethodNotAllowed)
	return false
}

// userID parses the user query parameter.
// POST: Returns ok=false after writing 400 when the parameter is missing or not a positive integer
func userID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.URL.Query().Get("user"))
	if err != nil || id <= 0 {
		http.Error(w, "user must be a positive integer", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func decodeMember(w http.ResponseWriter, r *http.Request) (member.Member, bool) {
	var m member.Member
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		http.Error(w, "invalid member JSON", http.StatusBadRequest)
		return member.Member{}, false
	}
	if err := m.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return member.Member{}, false
	}
	return m, true
}

func (h *Handler) readAll(w http.ResponseWriter, r *http.Request) {
	members, err := h.store.List(r.Context())
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *Handler) read(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	m, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	m, ok := decodeMember(w, r)
	if !ok {
		return
	}
	if m.ID < 0 {
		http.Error(w, member.ErrInvalidID.Error(), http.StatusBadRequest)
		return
	}
	created, err := h.store.Insert(r.Context(), m)
	if err != nil {
		storeError(w, err)
		return
	}
	slog.Info("usersapi_member_created", "member_id", created.ID)
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	m, ok := decodeMember(w, r)
	if !ok {
		return
	}
	// The path id wins over any id in the body.
	m.ID = id
	if err := h.store.Update(r.Context(), m); err != nil {
		storeError(w, err)
		return
	}
	slog.Info("usersapi_member_updated", "member_id", id)
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	removed, err := h.store.Delete(r.Context(), id)
	if err != nil {
		storeError(w, err)
		return
	}
	slog.Info("usersapi_member_deleted", "member_id", id)
	writeJSON(w, http.StatusOK, removed)
}

// storeError maps store sentinels to statuses and hides anything else.
func storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, memberStore.ErrNotFound):
		http.Error(w, "member not found", http.StatusNotFound)
	case errors.Is(err, memberStore.ErrDuplicateID):
		http.Error(w, "member id already exists", http.StatusConflict)
	case errors.Is(err, context.Canceled):
		slog.Debug("usersapi_request_cancelled")
		http.Error(w, "request cancelled", http.StatusServiceUnavailable)
	default:
		slog.Error("internal_error", "error", err.Error())
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
