package codec

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrUnsupportedType is returned for kinds the codec cannot represent
	// (channels, funcs, complex numbers, unsafe pointers).
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrNoDefault is returned when a structural decode cannot construct a
	// default instance of the target type.
	ErrNoDefault = errors.New("cannot construct default instance")

	// ErrTokenMismatch is returned when a token's shape does not fit the target type.
	ErrTokenMismatch = errors.New("token does not match type")

	// ErrHandlerPanic wraps a panic raised inside a registered handler.
	ErrHandlerPanic = errors.New("handler panicked")
)

// SerializationError is the single failure type raised by Encode and Decode.
type SerializationError struct {
	Type reflect.Type
	Path string
	Err  error
}

func (e *SerializationError) Error() string {
	path := e.Path
	if path == "" {
		path = "<root>"
	}
	return fmt.Sprintf("codec: %s (%v): %v", path, e.Type, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

func fail(t reflect.Type, path string, err error) error {
	var se *SerializationError
	if errors.As(err, &se) {
		return err
	}
	return &SerializationError{Type: t, Path: path, Err: err}
}

func mismatch(t reflect.Type, path string, tok Token) error {
	return fail(t, path, fmt.Errorf("%w: got %T", ErrTokenMismatch, tok))
}
