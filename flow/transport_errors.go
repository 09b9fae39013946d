package flow

import (
	"net/http"
	"strings"

	monitoring "github.com/adit-codes/vyuhathon-final-health-monitoring"
)

const codeInternal = "INTERNAL"

// TransportErrorMapping defines protocol-level mappings for runtime errors.
type TransportErrorMapping struct {
	Code       string
	HTTPStatus int
}

// ErrorEnvelope is the JSON error shape returned by the HTTP surface.
type ErrorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	FieldID string `json:"field_id,omitempty"`
	Status  int    `json:"status,omitempty"`
}

// MapRuntimeError maps domain error codes to transport categories.
func MapRuntimeError(err error) TransportErrorMapping {
	code := strings.TrimSpace(monitoring.Code(err))

	switch code {
	case monitoring.ErrCodeMissingField, monitoring.ErrCodeEmptyBinary, monitoring.ErrCodeInvalidValue:
		return TransportErrorMapping{Code: code, HTTPStatus: http.StatusUnprocessableEntity}
	case monitoring.ErrCodeInvalidTransition, monitoring.ErrCodeGuardRejected, monitoring.ErrCodeVersionConflict:
		return TransportErrorMapping{Code: code, HTTPStatus: http.StatusConflict}
	case monitoring.ErrCodeSessionNotFound:
		return TransportErrorMapping{Code: code, HTTPStatus: http.StatusNotFound}
	case ErrCodePreconditionFailed:
		return TransportErrorMapping{Code: code, HTTPStatus: http.StatusPreconditionFailed}
	case monitoring.ErrCodeSchemaMalformed, monitoring.ErrCodeSchemaEmpty,
		monitoring.ErrCodeNetwork, monitoring.ErrCodeHTTPStatus, monitoring.ErrCodeInvalidResponse:
		return TransportErrorMapping{Code: code, HTTPStatus: http.StatusBadGateway}
	default:
		return TransportErrorMapping{Code: codeInternal, HTTPStatus: http.StatusInternalServerError}
	}
}

// HTTPStatusForError returns the mapped HTTP status code for an engine error.
func HTTPStatusForError(err error) int {
	return MapRuntimeError(err).HTTPStatus
}

// ErrorEnvelopeFor renders err with its user-facing message.
func ErrorEnvelopeFor(err error) *ErrorEnvelope {
	if err == nil {
		return nil
	}
	mapping := MapRuntimeError(err)
	return &ErrorEnvelope{
		Code:    mapping.Code,
		Message: monitoring.UserMessage(err),
		FieldID: monitoring.FieldID(err),
		Status:  monitoring.StatusCode(err),
	}
}
