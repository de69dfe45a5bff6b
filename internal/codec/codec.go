// Package codec converts Go values to portable tokens and back.
//
// Conversion priority, for both directions:
//  1. a handler registered for the exact type
//  2. nil
//  3. bool, numbers, strings and text-marshalled enums
//  4. fixed-size arrays, element by element
//  5. slices (and string-keyed maps)
//  6. structs, either through an explicit Schema visitor or by their
//     exported fields
//
// Structural decode starts from a default instance and assigns only the
// members present in the token, so fields missing from old saves keep their
// defaults.
package codec

import (
	"encoding"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"sync"
)

type handler struct {
	encode func(reflect.Value) (Token, error)
	decode func(Token) (reflect.Value, error)
}

func (h handler) safeEncode(rv reflect.Value, path string) (tok Token, err error) {
	defer func() {
		if r := recover(); r != nil {
			tok, err = nil, fail(rv.Type(), path, fmt.Errorf("%w: %v", ErrHandlerPanic, r))
		}
	}()
	tok, err = h.encode(rv)
	if err != nil {
		return nil, fail(rv.Type(), path, err)
	}
	return tok, nil
}

func (h handler) safeDecode(tok Token, t reflect.Type, path string) (v reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = reflect.Value{}, fail(t, path, fmt.Errorf("%w: %v", ErrHandlerPanic, r))
		}
	}()
	v, err = h.decode(tok)
	if err != nil {
		return reflect.Value{}, fail(t, path, err)
	}
	return v, nil
}

// Defaulter is implemented by types whose default instance is not their zero
// value. SetDefaults is called on a fresh value before a structural decode.
type Defaulter interface {
	SetDefaults()
}

var (
	textMarshalerType   = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
	schemaType          = reflect.TypeOf((*Schema)(nil)).Elem()
	defaulterType       = reflect.TypeOf((*Defaulter)(nil)).Elem()
)

// Codec holds the registered type handlers. It is safe for concurrent use.
type Codec struct {
	mu       sync.RWMutex
	handlers map[reflect.Type]handler
	fields   sync.Map // reflect.Type -> []fieldInfo
}

// New returns a codec with the built-in handlers for vectors, rotations,
// colors, timestamps and durations already registered.
func New() *Codec {
	c := NewEmpty()
	registerBuiltins(c)
	return c
}

// NewEmpty returns a codec without any registered handler.
func NewEmpty() *Codec {
	return &Codec{handlers: make(map[reflect.Type]handler)}
}

// Register installs a handler for exactly type T. Handlers must be symmetric:
// dec(enc(x)) must equal x.
func Register[T any](c *Codec, enc func(T) (Token, error), dec func(Token) (T, error)) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	h := handler{
		encode: func(rv reflect.Value) (Token, error) {
			return enc(rv.Interface().(T))
		},
		decode: func(tok Token) (reflect.Value, error) {
			v, err := dec(tok)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(&v).Elem(), nil
		},
	}
	c.mu.Lock()
	c.handlers[t] = h
	c.mu.Unlock()
}

// HasHandler reports whether a handler is registered for t.
func (c *Codec) HasHandler(t reflect.Type) bool {
	_, ok := c.lookup(t)
	return ok
}

func (c *Codec) lookup(t reflect.Type) (handler, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.handlers[t]
	return h, ok
}

// Encode converts v into a token.
func (c *Codec) Encode(v any) (tok Token, err error) {
	if v == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	defer func() {
		if r := recover(); r != nil {
			tok, err = nil, fail(rv.Type(), "", fmt.Errorf("%w: %v", ErrHandlerPanic, r))
		}
	}()
	return c.encode(rv, "")
}

// Decode converts tok into the value pointed to by out.
func (c *Codec) Decode(tok Token, out any) (err error) {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return &SerializationError{Type: reflect.TypeOf(out), Err: errors.New("decode target must be a non-nil pointer")}
	}
	defer func() {
		if r := recover(); r != nil {
			err = fail(rv.Type().Elem(), "", fmt.Errorf("%w: %v", ErrHandlerPanic, r))
		}
	}()
	return c.decode(tok, rv.Elem(), "")
}

// DecodeValue decodes tok into a new value of type t.
func (c *Codec) DecodeValue(tok Token, t reflect.Type) (reflect.Value, error) {
	ptr := reflect.New(t)
	if err := c.Decode(tok, ptr.Interface()); err != nil {
		return reflect.Value{}, err
	}
	return ptr.Elem(), nil
}

// DecodeAs decodes tok into a new T.
func DecodeAs[T any](c *Codec, tok Token) (T, error) {
	var v T
	err := c.Decode(tok, &v)
	return v, err
}

func (c *Codec) encode(rv reflect.Value, path string) (Token, error) {
	t := rv.Type()

	if h, ok := c.lookup(t); ok {
		return h.safeEncode(rv, path)
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return nil, nil
		}
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		return c.encode(rv.Elem(), path)
	}

	if rv.Kind() != reflect.Struct {
		if m, ok := asTextMarshaler(rv); ok {
			b, err := m.MarshalText()
			if err != nil {
				return nil, fail(t, path, err)
			}
			return string(b), nil
		}
	}

	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return intToken(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return uintToken(rv.Uint()), nil
	case reflect.Float32:
		return floatToken(rv.Float(), 32), nil
	case reflect.Float64:
		return floatToken(rv.Float(), 64), nil
	case reflect.String:
		return rv.String(), nil
	case reflect.Array, reflect.Slice:
		out := make(Array, rv.Len())
		for i := range out {
			tok, err := c.encode(rv.Index(i), indexPath(path, i))
			if err != nil {
				return nil, err
			}
			out[i] = tok
		}
		return out, nil
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return nil, fail(t, path, fmt.Errorf("%w: map key %v", ErrUnsupportedType, t.Key()))
		}
		out := make(Object, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := iter.Key().String()
			tok, err := c.encode(iter.Value(), memberPath(path, k))
			if err != nil {
				return nil, err
			}
			out[k] = tok
		}
		return out, nil
	case reflect.Struct:
		return c.encodeStruct(rv, path)
	}

	return nil, fail(t, path, ErrUnsupportedType)
}

func (c *Codec) encodeStruct(rv reflect.Value, path string) (Token, error) {
	t := rv.Type()
	out := make(Object)

	if reflect.PointerTo(t).Implements(schemaType) {
		ptr := reflect.New(t)
		ptr.Elem().Set(rv)
		v := &encodeVisitor{codec: c, out: out, path: path}
		if err := ptr.Interface().(Schema).VisitFields(v); err != nil {
			return nil, fail(t, path, err)
		}
		return out, nil
	}

	for _, f := range c.fieldsOf(t) {
		tok, err := c.encode(rv.FieldByIndex(f.index), memberPath(path, f.name))
		if err != nil {
			return nil, err
		}
		out[f.name] = tok
	}
	return out, nil
}

func (c *Codec) decode(tok Token, dst reflect.Value, path string) error {
	t := dst.Type()

	if h, ok := c.lookup(t); ok {
		v, err := h.safeDecode(tok, t, path)
		if err != nil {
			return err
		}
		dst.Set(v)
		return nil
	}

	if tok == nil {
		dst.Set(reflect.Zero(t))
		return nil
	}

	switch t.Kind() {
	case reflect.Pointer:
		elem := reflect.New(t.Elem())
		if err := c.decode(tok, elem.Elem(), path); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	case reflect.Interface:
		if t.NumMethod() != 0 {
			return fail(t, path, ErrNoDefault)
		}
		dst.Set(reflect.ValueOf(tok))
		return nil
	}

	if t.Kind() != reflect.Struct && reflect.PointerTo(t).Implements(textUnmarshalerType) {
		s, ok := tok.(string)
		if !ok {
			return mismatch(t, path, tok)
		}
		ptr := reflect.New(t)
		if err := ptr.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
			return fail(t, path, err)
		}
		dst.Set(ptr.Elem())
		return nil
	}

	switch t.Kind() {
	case reflect.Bool:
		b, ok := tok.(bool)
		if !ok {
			return mismatch(t, path, tok)
		}
		dst.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := tokenInt(tok)
		if !ok {
			return mismatch(t, path, tok)
		}
		if dst.OverflowInt(n) {
			return fail(t, path, fmt.Errorf("%w: %d overflows", ErrTokenMismatch, n))
		}
		dst.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, ok := tokenUint(tok)
		if !ok {
			return mismatch(t, path, tok)
		}
		if dst.OverflowUint(n) {
			return fail(t, path, fmt.Errorf("%w: %d overflows", ErrTokenMismatch, n))
		}
		dst.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, ok := tokenFloat(tok)
		if !ok {
			return mismatch(t, path, tok)
		}
		dst.SetFloat(f)
	case reflect.String:
		s, ok := tok.(string)
		if !ok {
			return mismatch(t, path, tok)
		}
		dst.SetString(s)
	case reflect.Array:
		arr, ok := tok.(Array)
		if !ok {
			return mismatch(t, path, tok)
		}
		if len(arr) != t.Len() {
			return fail(t, path, fmt.Errorf("%w: array length %d, want %d", ErrTokenMismatch, len(arr), t.Len()))
		}
		out := reflect.New(t).Elem()
		for i, el := range arr {
			if err := c.decode(el, out.Index(i), indexPath(path, i)); err != nil {
				return err
			}
		}
		dst.Set(out)
	case reflect.Slice:
		arr, ok := tok.(Array)
		if !ok {
			return mismatch(t, path, tok)
		}
		out := reflect.MakeSlice(t, len(arr), len(arr))
		for i, el := range arr {
			if err := c.decode(el, out.Index(i), indexPath(path, i)); err != nil {
				return err
			}
		}
		dst.Set(out)
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return fail(t, path, fmt.Errorf("%w: map key %v", ErrUnsupportedType, t.Key()))
		}
		obj, ok := tok.(Object)
		if !ok {
			return mismatch(t, path, tok)
		}
		out := reflect.MakeMapWithSize(t, len(obj))
		for k, el := range obj {
			v := reflect.New(t.Elem()).Elem()
			if err := c.decode(el, v, memberPath(path, k)); err != nil {
				return err
			}
			out.SetMapIndex(reflect.ValueOf(k).Convert(t.Key()), v)
		}
		dst.Set(out)
	case reflect.Struct:
		obj, ok := tok.(Object)
		if !ok {
			return mismatch(t, path, tok)
		}
		v, err := c.decodeStruct(obj, t, path)
		if err != nil {
			return err
		}
		dst.Set(v)
	default:
		return fail(t, path, ErrUnsupportedType)
	}
	return nil
}

func (c *Codec) decodeStruct(obj Object, t reflect.Type, path string) (reflect.Value, error) {
	ptr := newDefault(t)

	if reflect.PointerTo(t).Implements(schemaType) {
		v := &decodeVisitor{codec: c, in: obj, path: path}
		if err := ptr.Interface().(Schema).VisitFields(v); err != nil {
			return reflect.Value{}, fail(t, path, err)
		}
		return ptr.Elem(), nil
	}

	out := ptr.Elem()
	for _, f := range c.fieldsOf(t) {
		tok, ok := obj[f.name]
		if !ok {
			continue
		}
		if err := c.decode(tok, out.FieldByIndex(f.index), memberPath(path, f.name)); err != nil {
			return reflect.Value{}, err
		}
	}
	return out, nil
}

func newDefault(t reflect.Type) reflect.Value {
	ptr := reflect.New(t)
	if t.Implements(defaulterType) || reflect.PointerTo(t).Implements(defaulterType) {
		ptr.Interface().(Defaulter).SetDefaults()
	}
	return ptr
}

func asTextMarshaler(rv reflect.Value) (encoding.TextMarshaler, bool) {
	t := rv.Type()
	if t.Implements(textMarshalerType) {
		return rv.Interface().(encoding.TextMarshaler), true
	}
	if reflect.PointerTo(t).Implements(textMarshalerType) {
		ptr := reflect.New(t)
		ptr.Elem().Set(rv)
		return ptr.Interface().(encoding.TextMarshaler), true
	}
	return nil, false
}

type fieldInfo struct {
	name  string
	index []int
}

// fieldsOf lists the exported fields of t. A `persist:"name"` tag renames a
// field and `persist:"-"` skips it.
func (c *Codec) fieldsOf(t reflect.Type) []fieldInfo {
	if cached, ok := c.fields.Load(t); ok {
		return cached.([]fieldInfo)
	}
	var out []fieldInfo
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name := sf.Name
		if tag, ok := sf.Tag.Lookup("persist"); ok {
			if tag == "-" {
				continue
			}
			if tag != "" {
				name = tag
			}
		}
		out = append(out, fieldInfo{name: name, index: sf.Index})
	}
	c.fields.Store(t, out)
	return out
}

func memberPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func indexPath(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}
