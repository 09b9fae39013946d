package monitoring

import (
	stderrors "errors"
	"fmt"
	"strings"

	apperrors "github.com/goliatone/go-errors"
)

const (
	ErrCodeMissingField      = "VALIDATION_MISSING_FIELD"
	ErrCodeEmptyBinary       = "VALIDATION_EMPTY_BINARY"
	ErrCodeInvalidValue      = "VALIDATION_INVALID_VALUE"
	ErrCodeSchemaMalformed   = "SCHEMA_MALFORMED"
	ErrCodeSchemaEmpty       = "SCHEMA_EMPTY"
	ErrCodeNetwork           = "SUBMISSION_NETWORK"
	ErrCodeHTTPStatus        = "SUBMISSION_HTTP"
	ErrCodeInvalidResponse   = "SUBMISSION_INVALID_RESPONSE"
	ErrCodeInvalidTransition = "STATE_INVALID_TRANSITION"
	ErrCodeGuardRejected     = "GUARD_REJECTED"
	ErrCodeVersionConflict   = "STATE_VERSION_CONFLICT"
	ErrCodeSessionNotFound   = "SESSION_NOT_FOUND"
)

// Metadata keys attached to domain errors.
const (
	MetaFieldID    = "field_id"
	MetaStatusCode = "status_code"
	MetaEndpoint   = "endpoint"
	MetaFrom       = "from"
	MetaEvent      = "event"
	MetaViolations = "violations"
)

var (
	ErrMissingField = apperrors.New("required field missing", apperrors.CategoryValidation).
			WithTextCode(ErrCodeMissingField)
	ErrEmptyBinary = apperrors.New("uploaded file is empty", apperrors.CategoryValidation).
			WithTextCode(ErrCodeEmptyBinary)
	ErrInvalidValue = apperrors.New("invalid value", apperrors.CategoryValidation).
			WithTextCode(ErrCodeInvalidValue)
	ErrSchemaMalformed = apperrors.New("malformed parameter schema", apperrors.CategoryBadInput).
				WithTextCode(ErrCodeSchemaMalformed)
	ErrSchemaEmpty = apperrors.New("parameter schema is empty", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeSchemaEmpty)
	ErrNetwork = apperrors.New("connection failed", apperrors.CategoryExternal).
			WithTextCode(ErrCodeNetwork)
	ErrHTTPStatus = apperrors.New("unexpected response status", apperrors.CategoryExternal).
			WithTextCode(ErrCodeHTTPStatus)
	ErrInvalidResponse = apperrors.New("invalid response body", apperrors.CategoryExternal).
				WithTextCode(ErrCodeInvalidResponse)
	ErrInvalidTransition = apperrors.New("invalid transition", apperrors.CategoryBadInput).
				WithTextCode(ErrCodeInvalidTransition)
	ErrGuardRejected = apperrors.New("guard rejected", apperrors.CategoryBadInput).
				WithTextCode(ErrCodeGuardRejected)
	ErrVersionConflict = apperrors.New("version conflict", apperrors.CategoryConflict).
				WithTextCode(ErrCodeVersionConflict)
	ErrSessionNotFound = apperrors.New("session not found", apperrors.CategoryBadInput).
				WithTextCode(ErrCodeSessionNotFound)
)

// CloneError copies base and overrides message, source and metadata when given.
func CloneError(base *apperrors.Error, message string, source error, metadata map[string]any) *apperrors.Error {
	if base == nil {
		base = ErrInvalidValue
	}
	err := base.Clone()
	if text := strings.TrimSpace(message); text != "" {
		err.Message = text
	}
	if source != nil {
		err.Source = source
	}
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

func MissingField(fieldID string) *apperrors.Error {
	return CloneError(ErrMissingField, fmt.Sprintf("required field %q missing", fieldID), nil, map[string]any{
		MetaFieldID: fieldID,
	})
}

func EmptyBinary(fieldID string) *apperrors.Error {
	return CloneError(ErrEmptyBinary, fmt.Sprintf("uploaded file for %q is empty", fieldID), nil, map[string]any{
		MetaFieldID: fieldID,
	})
}

func InvalidValue(fieldID, reason string) *apperrors.Error {
	msg := fmt.Sprintf("invalid value for %q", fieldID)
	if reason = strings.TrimSpace(reason); reason != "" {
		msg += ": " + reason
	}
	return CloneError(ErrInvalidValue, msg, nil, map[string]any{
		MetaFieldID: fieldID,
	})
}

func SchemaMalformed(reason string, source error) *apperrors.Error {
	return CloneError(ErrSchemaMalformed, "malformed parameter schema: "+reason, source, nil)
}

func SchemaEmpty() *apperrors.Error {
	return ErrSchemaEmpty.Clone()
}

func NetworkFailure(endpoint string, source error) *apperrors.Error {
	return CloneError(ErrNetwork, "", source, map[string]any{MetaEndpoint: endpoint})
}

func HTTPStatus(endpoint string, status int) *apperrors.Error {
	return CloneError(ErrHTTPStatus, fmt.Sprintf("received status code %d", status), nil, map[string]any{
		MetaEndpoint:   endpoint,
		MetaStatusCode: status,
	})
}

func InvalidResponse(endpoint string, source error) *apperrors.Error {
	return CloneError(ErrInvalidResponse, "", source, map[string]any{MetaEndpoint: endpoint})
}

func InvalidTransition(from, event string) *apperrors.Error {
	return CloneError(ErrInvalidTransition, fmt.Sprintf("no transition for state=%s event=%s", from, event), nil, map[string]any{
		MetaFrom:  from,
		MetaEvent: event,
	})
}

func SessionNotFound(id string) *apperrors.Error {
	return CloneError(ErrSessionNotFound, fmt.Sprintf("session %q not found", id), nil, map[string]any{
		"session_id": id,
	})
}

// Code returns the text code of the first go-errors error in the chain.
func Code(err error) string {
	var ge *apperrors.Error
	if stderrors.As(err, &ge) {
		return ge.TextCode
	}
	return ""
}

func HasCode(err error, code string) bool {
	return err != nil && Code(err) == code
}

func IsValidation(err error) bool {
	switch Code(err) {
	case ErrCodeMissingField, ErrCodeEmptyBinary, ErrCodeInvalidValue:
		return true
	}
	return false
}

func IsSubmission(err error) bool {
	switch Code(err) {
	case ErrCodeNetwork, ErrCodeHTTPStatus, ErrCodeInvalidResponse:
		return true
	}
	return false
}

func IsSchema(err error) bool {
	switch Code(err) {
	case ErrCodeSchemaMalformed, ErrCodeSchemaEmpty:
		return true
	}
	return false
}

// Meta reads one metadata value from the first go-errors error in the chain.
func Meta(err error, key string) (any, bool) {
	var ge *apperrors.Error
	if !stderrors.As(err, &ge) || ge.Metadata == nil {
		return nil, false
	}
	v, ok := ge.Metadata[key]
	return v, ok
}

func FieldID(err error) string {
	if v, ok := Meta(err, MetaFieldID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func StatusCode(err error) int {
	if v, ok := Meta(err, MetaStatusCode); ok {
		if n, ok := v.(int); ok {
			return n
		}
	}
	return 0
}

// UserMessage renders err as the single line shown to a doctor or patient.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ge *apperrors.Error
	if !stderrors.As(err, &ge) {
		return err.Error()
	}
	switch ge.TextCode {
	case ErrCodeNetwork:
		if ge.Source != nil {
			return fmt.Sprintf("Connection failed: %v", ge.Source)
		}
		return "Connection failed"
	case ErrCodeHTTPStatus:
		return fmt.Sprintf("Error: Received status code %d", StatusCode(err))
	case ErrCodeInvalidResponse:
		return "Error: Received an unexpected response from the server"
	case ErrCodeMissingField:
		return fmt.Sprintf("Please fill in %s", FieldID(err))
	case ErrCodeEmptyBinary:
		return fmt.Sprintf("The file uploaded for %s is empty", FieldID(err))
	case ErrCodeSchemaEmpty:
		return "No monitoring parameters are configured for this patient yet"
	case ErrCodeSchemaMalformed:
		return "Could not read the monitoring parameters for this patient"
	case ErrCodeInvalidTransition, ErrCodeGuardRejected:
		return "This action is not available right now"
	case ErrCodeVersionConflict:
		return "The session was changed elsewhere, please retry"
	case ErrCodeSessionNotFound:
		return "Session not found"
	}
	if msg := strings.TrimSpace(ge.Message); msg != "" {
		return msg
	}
	return err.Error()
}
