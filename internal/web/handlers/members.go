package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/logging"
	"github.com/kozaktomas/face-attendance/internal/store"
)

// MemberStore is the part of the member store the API needs.
type MemberStore interface {
	Get(ctx context.Context, key string) *store.Profile
	Add(ctx context.Context, key string, p store.Profile) error
	List(ctx context.Context) ([]store.Member, error)
	Find(ctx context.Context, name string) ([]store.Member, error)
}

// MembersHandler serves the member registry.
type MembersHandler struct {
	store MemberStore
	log   *zap.SugaredLogger
}

func NewMembersHandler(s MemberStore, log *zap.SugaredLogger) *MembersHandler {
	return &MembersHandler{store: s, log: logging.OrNop(log)}
}

// EnrollRequest is the body of POST /members. Key is optional and defaults to
// the last four digits of the phone number.
type EnrollRequest struct {
	Key string `json:"key,omitempty"`
	store.Profile
}

// List returns all members, or those whose name contains ?q=.
func (h *MembersHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		members []store.Member
		err     error
	)
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		members, err = h.store.Find(r.Context(), q)
	} else {
		members, err = h.store.List(r.Context())
	}
	if err != nil {
		h.log.Errorw("listing members failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list members")
		return
	}
	if members == nil {
		members = []store.Member{}
	}
	respondJSON(w, http.StatusOK, members)
}

func (h *MembersHandler) Get(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	p := h.store.Get(r.Context(), key)
	if p == nil {
		respondError(w, http.StatusNotFound, "member not found")
		return
	}
	respondJSON(w, http.StatusOK, store.Member{Key: key, Profile: *p})
}

// Enroll adds a member. Existing members are never overwritten.
func (h *MembersHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxEnrollBodyBytes)

	var req EnrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	key := strings.TrimSpace(req.Key)
	if key == "" {
		derived, err := store.KeyFromPhone(req.PhoneNumber)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		key = derived
	}

	err := h.store.Add(r.Context(), key, req.Profile)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrValidation):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, store.ErrAlreadyExists):
		respondError(w, http.StatusConflict, "member already exists")
		return
	default:
		h.log.Errorw("enrolling member failed", "key", sanitizeForLog(key), "error", err)
		respondError(w, http.StatusInternalServerError, "failed to add member")
		return
	}

	h.log.Infow("member enrolled", "key", sanitizeForLog(key))
	created := h.store.Get(r.Context(), key)
	if created == nil {
		created = &req.Profile
	}
	respondJSON(w, http.StatusCreated, store.Member{Key: key, Profile: *created})
}
