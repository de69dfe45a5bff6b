package persistence

import (
	"fmt"
	"log/slog"
	"reflect"

	"github.com/IronFox/AVS-sub001/internal/codec"
	"github.com/IronFox/AVS-sub001/internal/integrity"
)

// Report counts what an import or export did with each property.
type Report struct {
	Applied int
	Failed  int
	Skipped int
}

// Add accumulates another report into r.
func (r *Report) Add(o Report) {
	r.Applied += o.Applied
	r.Failed += o.Failed
	r.Skipped += o.Skipped
}

// Complete reports whether nothing failed or was skipped.
func (r Report) Complete() bool {
	return r.Failed == 0 && r.Skipped == 0
}

func (r Report) String() string {
	return fmt.Sprintf("applied=%d failed=%d skipped=%d", r.Applied, r.Failed, r.Skipped)
}

// Store is the durable side of a Model.
type Store interface {
	Write(key integrity.Key, payload any) error
	Read(key integrity.Key) (codec.Token, bool)
}

// Model converts Data to and from tokens. Failures are contained per
// property: a property that cannot be read, encoded, decoded or applied is
// logged and counted, and its siblings still run.
type Model struct {
	codec  *codec.Codec
	logger *slog.Logger
}

// New creates a Model over c.
func New(c *codec.Codec, logger *slog.Logger) *Model {
	if logger == nil {
		logger = slog.Default()
	}
	return &Model{codec: c, logger: logger}
}

// Export captures every property's current value as a block-name to
// property-name to token map.
func (m *Model) Export(d Data) (codec.Object, Report) {
	var rep Report
	out := make(codec.Object, len(d.Blocks))
	for _, b := range d.Blocks {
		props := make(codec.Object, len(b.Properties))
		for _, p := range b.Properties {
			tok, err := m.exportProperty(p)
			if err != nil {
				m.logger.Warn("Property not exported", "data", d.Name, "block", b.Name, "property", p.Name, "error", err)
				rep.Failed++
				continue
			}
			props[p.Name] = tok
			rep.Applied++
		}
		out[b.Name] = props
	}
	return out, rep
}

func (m *Model) exportProperty(p Property) (tok codec.Token, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("getter panicked: %v", r)
		}
	}()
	return m.codec.Encode(p.get())
}

// Import applies the blocks and properties found in tok to d. Blocks or
// properties absent from tok are skipped. A decoded nil pointer, slice, map
// or interface is not applied, so a stored null never overwrites live state.
func (m *Model) Import(d Data, tok codec.Token) Report {
	var rep Report
	root, ok := tok.(codec.Object)
	if !ok {
		m.logger.Warn("Stored data is not an object", "data", d.Name, "type", fmt.Sprintf("%T", tok))
		for _, b := range d.Blocks {
			rep.Skipped += len(b.Properties)
		}
		return rep
	}
	for _, b := range d.Blocks {
		rep.Add(m.importBlock(d.Name, b, root))
	}
	return rep
}

func (m *Model) importBlock(dataName string, b Block, root codec.Object) Report {
	var rep Report
	raw, ok := root[b.Name]
	if !ok {
		m.logger.Info("Block missing from stored data", "data", dataName, "block", b.Name)
		rep.Skipped += len(b.Properties)
		return rep
	}
	props, ok := raw.(codec.Object)
	if !ok {
		m.logger.Warn("Stored block is not an object", "data", dataName, "block", b.Name)
		rep.Failed += len(b.Properties)
		return rep
	}
	for _, p := range b.Properties {
		ptok, ok := props[p.Name]
		if !ok {
			m.logger.Info("Property missing from stored data", "data", dataName, "block", b.Name, "property", p.Name)
			rep.Skipped++
			continue
		}
		v, err := m.codec.DecodeValue(ptok, p.Type)
		if err != nil {
			m.logger.Warn("Property not decoded", "data", dataName, "block", b.Name, "property", p.Name, "error", err)
			rep.Failed++
			continue
		}
		if nilReference(v) {
			m.logger.Warn("Stored value is null, keeping current", "data", dataName, "block", b.Name, "property", p.Name)
			rep.Skipped++
			continue
		}
		if err := apply(p, v); err != nil {
			m.logger.Warn("Property not applied", "data", dataName, "block", b.Name, "property", p.Name, "error", err)
			rep.Failed++
			continue
		}
		rep.Applied++
	}
	return rep
}

func apply(p Property, v reflect.Value) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("setter panicked: %v", r)
		}
	}()
	p.set(v.Interface())
	return nil
}

func nilReference(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// Save exports d and writes it under key. Properties that fail to export are
// left out of the document; the write itself fails only when the store
// rejects it.
func (m *Model) Save(s Store, key integrity.Key, d Data) (Report, error) {
	tok, rep := m.Export(d)
	if err := s.Write(key, tok); err != nil {
		return rep, fmt.Errorf("saving %s: %w", d.Name, err)
	}
	return rep, nil
}

// Load reads key and imports it into d. The second result is false when the
// store had no usable document, in which case d is untouched.
func (m *Model) Load(s Store, key integrity.Key, d Data) (Report, bool) {
	tok, ok := s.Read(key)
	if !ok {
		m.logger.Info("No stored data, keeping defaults", "data", d.Name, "key", key.String())
		return Report{}, false
	}
	return m.Import(d, tok), true
}
