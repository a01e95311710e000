package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/utafrali/EcommerceGo/authgateway/pkg/errors"
	"github.com/utafrali/EcommerceGo/authgateway/pkg/httputil"
)

// PeerSyncer forwards a resource to the peer deployment.
type PeerSyncer interface {
	Sync(ctx context.Context, resource string, body json.RawMessage) (json.RawMessage, error)
}

// SyncHandler serves admin-triggered peer sync.
type SyncHandler struct {
	peer   PeerSyncer
	errors *httputil.ErrorWriter
}

// NewSyncHandler creates a SyncHandler. A nil peer answers 503.
func NewSyncHandler(peer PeerSyncer, ew *httputil.ErrorWriter) *SyncHandler {
	return &SyncHandler{peer: peer, errors: ew}
}

// Sync handles POST /api/v1/admin/sync/{resource}
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	if h.peer == nil {
		h.errors.WriteError(w, r, apperrors.Unavailable("peer sync is not configured", nil))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.errors.WriteError(w, r, apperrors.InvalidInput("request body too large"))
		return
	}

	out, err := h.peer.Sync(r.Context(), chi.URLParam(r, "resource"), body)
	if err != nil {
		h.errors.WriteError(w, r, err)
		return
	}

	httputil.WriteData(w, http.StatusOK, out)
}
