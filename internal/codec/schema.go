package codec

import (
	"fmt"
	"reflect"
)

// FieldVisitor receives the members of a Schema. ptr must be a non-nil pointer
// to the member's storage.
type FieldVisitor interface {
	Field(name string, ptr any) error
}

// Schema is an explicit, reflection-free member list. A type implementing
// Schema (on its pointer receiver) is encoded and decoded through
// VisitFields instead of by enumerating its struct fields. On decode the
// visitor leaves members that are absent from the token untouched, so they
// keep the values set by SetDefaults.
type Schema interface {
	VisitFields(v FieldVisitor) error
}

type encodeVisitor struct {
	codec *Codec
	out   Object
	path  string
}

func (v *encodeVisitor) Field(name string, ptr any) error {
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("schema member %q: need a non-nil pointer, got %T", name, ptr)
	}
	tok, err := v.codec.encode(rv.Elem(), memberPath(v.path, name))
	if err != nil {
		return err
	}
	v.out[name] = tok
	return nil
}

type decodeVisitor struct {
	codec *Codec
	in    Object
	path  string
}

func (v *decodeVisitor) Field(name string, ptr any) error {
	tok, ok := v.in[name]
	if !ok {
		return nil
	}
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("schema member %q: need a non-nil pointer, got %T", name, ptr)
	}
	return v.codec.decode(tok, rv.Elem(), memberPath(v.path, name))
}
