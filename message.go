package monitoring

import (
	"reflect"

	"github.com/goliatone/go-errors"
)

// Message is implemented by every workflow event.
type Message interface {
	Type() string
	Validate() error
}

// ValidateMessage rejects nil messages and runs msg.Validate. Errors that
// already carry a domain code are returned as is so field ids survive.
func ValidateMessage(msg Message) error {
	if msg == nil || (reflect.ValueOf(msg).Kind() == reflect.Pointer && reflect.ValueOf(msg).IsNil()) {
		return CloneError(ErrInvalidValue, "nil message", nil, nil)
	}
	err := msg.Validate()
	if err == nil || Code(err) != "" {
		return err
	}
	return errors.Wrap(err, errors.CategoryValidation, "invalid "+msg.Type()).
		WithTextCode(ErrCodeInvalidValue).
		WithMetadata(map[string]any{"message_type": msg.Type()})
}
