// Package persistence describes an entity's saved state as named, ordered
// property sets and moves it to and from codec tokens.
package persistence

import (
	"reflect"
	"sync"
)

// Property is one persisted value, read and written through accessors.
// Properties are rebuilt with their block and never persisted themselves.
type Property struct {
	Name string
	Type reflect.Type

	get func() any
	set func(any)
}

// NewProperty binds a named property to typed accessors.
func NewProperty[T any](name string, get func() T, set func(T)) Property {
	return Property{
		Name: name,
		Type: reflect.TypeFor[T](),
		get:  func() any { return get() },
		set: func(v any) {
			tv, _ := v.(T)
			set(tv)
		},
	}
}

// Field binds a property directly to a variable.
func Field[T any](name string, ptr *T) Property {
	return NewProperty(name, func() T { return *ptr }, func(v T) { *ptr = v })
}

// Block is a named, ordered list of properties.
type Block struct {
	Name       string
	Properties []Property
}

// NewBlock creates a block from properties in declaration order.
func NewBlock(name string, props ...Property) Block {
	return Block{Name: name, Properties: props}
}

// Data is a named, ordered list of blocks. Its name doubles as the prefix of
// the document it is stored in.
type Data struct {
	Name   string
	Blocks []Block
}

// Persistable is implemented by anything that can describe its saved state.
type Persistable interface {
	PersistentData() Data
}

// Lazy builds a Data once, on first use, and returns the cached value after.
type Lazy struct {
	once  sync.Once
	build func() Data
	data  Data
}

// NewLazy defers build until Get is first called.
func NewLazy(build func() Data) *Lazy {
	return &Lazy{build: build}
}

// Get returns the cached Data, building it if needed.
func (l *Lazy) Get() Data {
	l.once.Do(func() {
		l.data = l.build()
	})
	return l.data
}
