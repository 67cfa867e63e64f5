package handler

import (
	"net/http"

	"github.com/Buildathonzx/whisperrnote/internal/middleware"
	"github.com/Buildathonzx/whisperrnote/internal/service"
	"github.com/Buildathonzx/whisperrnote/pkg/response"

	"github.com/gorilla/mux"
)

type KeyShareHandler struct {
	service *service.KeyShareService
}

func NewKeyShareHandler(service *service.KeyShareService) *KeyShareHandler {
	return &KeyShareHandler{service: service}
}

// Lookup returns the caller's wrapped key material for a note, or 404 when
// no share exists for the caller. Key material is only ever returned to the
// recipient it was wrapped for.
func (h *KeyShareHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	noteID := mux.Vars(r)["id"]
	if noteID == "" {
		response.BadRequest(w, "Note ID is required")
		return
	}

	caller := middleware.CallerIdentity(r)

	share, err := h.service.Lookup(caller, noteID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if share == nil {
		response.NotFound(w, "No key share for this note")
		return
	}

	response.Success(w, share)
}

// Revoke always fails: distributed key material cannot be clawed back. The
// endpoint exists so clients get an explicit 501 instead of a silent no-op.
func (h *KeyShareHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	noteID := vars["id"]
	recipient := vars["recipient"]
	if noteID == "" || recipient == "" {
		response.BadRequest(w, "Note ID and recipient are required")
		return
	}

	caller := middleware.CallerIdentity(r)

	if err := h.service.Revoke(caller, noteID, recipient); err != nil {
		writeDomainError(w, err)
		return
	}

	response.Message(w, http.StatusOK, "Key share revoked")
}
