package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Buildathonzx/whisperrnote/internal/domain"
	"github.com/Buildathonzx/whisperrnote/internal/middleware"
	"github.com/Buildathonzx/whisperrnote/internal/service"
	"github.com/Buildathonzx/whisperrnote/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

type ProposalHandler struct {
	service  *service.ProposalService
	validate *validator.Validate
}

func NewProposalHandler(service *service.ProposalService) *ProposalHandler {
	return &ProposalHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *ProposalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateProposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	author := middleware.CallerIdentity(r)

	proposal, err := h.service.Create(author, &req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	response.Created(w, proposal)
}

// Approve records the caller's approval. When the approval crosses the
// threshold and an action fails mid-execution, the response carries the
// failing action's index alongside the proposal so the caller can see how
// far execution got.
func (h *ProposalHandler) Approve(w http.ResponseWriter, r *http.Request) {
	proposalID := mux.Vars(r)["id"]
	if proposalID == "" {
		response.BadRequest(w, "Proposal ID is required")
		return
	}

	approver := middleware.CallerIdentity(r)

	proposal, err := h.service.Approve(r.Context(), approver, proposalID)
	if err != nil {
		var execErr *service.ProposalExecutionError
		if errors.As(err, &execErr) {
			response.JSON(w, http.StatusConflict, map[string]interface{}{
				"error":        execErr.Error(),
				"proposal_id":  execErr.ProposalID,
				"action_index": execErr.ActionIndex,
			})
			return
		}
		writeDomainError(w, err)
		return
	}

	response.Success(w, proposal)
}

func (h *ProposalHandler) Get(w http.ResponseWriter, r *http.Request) {
	proposalID := mux.Vars(r)["id"]
	if proposalID == "" {
		response.BadRequest(w, "Proposal ID is required")
		return
	}

	proposal, err := h.service.Get(proposalID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	response.Success(w, proposal)
}

func (h *ProposalHandler) List(w http.ResponseWriter, r *http.Request) {
	proposals, err := h.service.List()
	if err != nil {
		writeDomainError(w, err)
		return
	}

	response.Success(w, proposals)
}

func (h *ProposalHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	proposalID := mux.Vars(r)["id"]
	if proposalID == "" {
		response.BadRequest(w, "Proposal ID is required")
		return
	}

	var req domain.ProposalMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	author := middleware.CallerIdentity(r)

	message, err := h.service.SendMessage(author, proposalID, req.Text)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	response.Created(w, message)
}

func (h *ProposalHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	proposalID := mux.Vars(r)["id"]
	if proposalID == "" {
		response.BadRequest(w, "Proposal ID is required")
		return
	}

	messages, err := h.service.ListMessages(proposalID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	response.Success(w, messages)
}
