package handler

import (
	"log"
	"net/http"

	"github.com/Buildathonzx/whisperrnote/internal/migration"
	"github.com/Buildathonzx/whisperrnote/internal/repository"
	"github.com/Buildathonzx/whisperrnote/internal/syncer"
	"github.com/Buildathonzx/whisperrnote/pkg/response"

	"github.com/gorilla/mux"
)

type SyncHandler struct {
	tracker *syncer.Tracker
	store   *repository.Store
}

func NewSyncHandler(tracker *syncer.Tracker, store *repository.Store) *SyncHandler {
	return &SyncHandler{
		tracker: tracker,
		store:   store,
	}
}

func (h *SyncHandler) Vectors(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.tracker.Vectors())
}

func (h *SyncHandler) Vector(w http.ResponseWriter, r *http.Request) {
	noteID := mux.Vars(r)["id"]
	if noteID == "" {
		response.BadRequest(w, "Note ID is required")
		return
	}

	vector, exists := h.tracker.Vector(noteID)
	if !exists {
		response.NotFound(w, "No sync state for this note")
		return
	}

	response.Success(w, vector)
}

func (h *SyncHandler) Pending(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.tracker.Pending())
}

// Export streams a versioned snapshot of the process state.
func (h *SyncHandler) Export(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="whisperrnote-snapshot.json"`)

	if err := migration.Export(h.store, w); err != nil {
		// Headers are already out, so the status cannot change.
		log.Printf("snapshot export failed: %v", err)
	}
}

// Import restores a snapshot into the running process. Snapshots with an
// unknown version are rejected outright.
func (h *SyncHandler) Import(w http.ResponseWriter, r *http.Request) {
	if err := migration.Import(h.store, r.Body); err != nil {
		writeDomainError(w, err)
		return
	}

	response.Message(w, http.StatusOK, "Snapshot imported")
}
