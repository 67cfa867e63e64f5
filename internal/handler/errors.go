package handler

import (
	"errors"
	"net/http"

	"github.com/Buildathonzx/whisperrnote/internal/domain"
	"github.com/Buildathonzx/whisperrnote/internal/service"
	"github.com/Buildathonzx/whisperrnote/pkg/response"
)

// writeDomainError maps sentinel errors onto HTTP statuses. Anything
// unrecognized is a 500 with the message withheld.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		response.Forbidden(w, err.Error())
	case errors.Is(err, domain.ErrAlreadyExists), errors.Is(err, domain.ErrAlreadyShared):
		response.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidAction), errors.Is(err, domain.ErrUnsupportedVersion):
		response.BadRequest(w, err.Error())
	case errors.Is(err, service.ErrRevocationUnsupported):
		response.Error(w, http.StatusNotImplemented, err.Error())
	case errors.Is(err, domain.ErrRemoteFailure):
		response.Error(w, http.StatusBadGateway, err.Error())
	default:
		response.InternalError(w, "internal error")
	}
}
