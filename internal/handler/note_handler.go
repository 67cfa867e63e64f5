package handler

import (
	"encoding/json"
	"net/http"

	"github.com/Buildathonzx/whisperrnote/internal/domain"
	"github.com/Buildathonzx/whisperrnote/internal/middleware"
	"github.com/Buildathonzx/whisperrnote/internal/service"
	"github.com/Buildathonzx/whisperrnote/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

type NoteHandler struct {
	service  *service.NoteService
	validate *validator.Validate
}

func NewNoteHandler(service *service.NoteService) *NoteHandler {
	return &NoteHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	caller := middleware.CallerIdentity(r)

	note, err := h.service.Create(caller, &req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	response.Created(w, note)
}

func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerIdentity(r)

	notes, err := h.service.List(caller)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	response.Success(w, notes)
}

func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	noteID := mux.Vars(r)["id"]
	if noteID == "" {
		response.BadRequest(w, "Note ID is required")
		return
	}

	caller := middleware.CallerIdentity(r)

	note, err := h.service.Get(caller, noteID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	response.Success(w, note)
}

func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	noteID := mux.Vars(r)["id"]
	if noteID == "" {
		response.BadRequest(w, "Note ID is required")
		return
	}

	var req domain.UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	caller := middleware.CallerIdentity(r)

	note, err := h.service.Update(caller, noteID, &req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	response.Success(w, note)
}

func (h *NoteHandler) Share(w http.ResponseWriter, r *http.Request) {
	noteID := mux.Vars(r)["id"]
	if noteID == "" {
		response.BadRequest(w, "Note ID is required")
		return
	}

	var req domain.ShareNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	caller := middleware.CallerIdentity(r)

	record, err := h.service.Share(caller, noteID, req.Recipient)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	response.Success(w, record)
}

func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	noteID := mux.Vars(r)["id"]
	if noteID == "" {
		response.BadRequest(w, "Note ID is required")
		return
	}

	caller := middleware.CallerIdentity(r)

	if err := h.service.Delete(caller, noteID); err != nil {
		writeDomainError(w, err)
		return
	}

	response.Message(w, http.StatusOK, "Note deleted")
}

func (h *NoteHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	noteID := mux.Vars(r)["id"]
	if noteID == "" {
		response.BadRequest(w, "Note ID is required")
		return
	}

	caller := middleware.CallerIdentity(r)

	versions, err := h.service.ListVersions(caller, noteID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	response.Success(w, versions)
}
