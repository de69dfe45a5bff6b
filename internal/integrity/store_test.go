package integrity

import (
	"io"
	"log/slog"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IronFox/AVS-sub001/internal/codec"
	"github.com/IronFox/AVS-sub001/pkg/core"
)

type tanks struct {
	Oxygen  float64
	Ballast []int
	Label   string
}

func newTestStore(t *testing.T, fs afero.Fs, cfg Config) *Store {
	t.Helper()
	if cfg.Root == "" {
		cfg.Root = "/saves"
	}
	s, err := New(fs, cfg, codec.New(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return s
}

var testKey = Key{Slot: "slot0", Prefix: "Lifecycle", EntityID: 42}

func TestPaths(t *testing.T) {
	s := newTestStore(t, afero.NewMemMapFs(), Config{})
	assert.Equal(t, []string{
		"/saves/slot0/Lifecycle-42.json",
		"/saves/slot0/Lifecycle-42-fb.json",
	}, s.Paths(testKey))
}

func TestWriteRead_RoundTrip(t *testing.T) {
	s := newTestStore(t, afero.NewMemMapFs(), Config{})
	in := tanks{Oxygen: 0.75, Ballast: []int{1, 2, 3}, Label: "fore"}
	require.NoError(t, s.Write(testKey, in))

	var out tanks
	require.True(t, s.ReadValue(testKey, &out))
	assert.Equal(t, in, out)
}

func TestWrite_EnvelopeShape(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := newTestStore(t, fs, Config{})
	require.NoError(t, s.Write(testKey, map[string]any{"a": 1}))

	for _, path := range s.Paths(testKey) {
		env, err := afero.ReadFile(fs, path)
		require.NoError(t, err)
		data := []byte(`{"a":1}`)
		assert.JSONEq(t, `{"hash":"`+Digest(data)+`","data":{"a":1}}`, string(env), path)

		exists, err := afero.Exists(fs, path+".tmp")
		require.NoError(t, err)
		assert.False(t, exists, "temp file left behind at %s", path)
	}
}

func TestRead_NoData(t *testing.T) {
	s := newTestStore(t, afero.NewMemMapFs(), Config{})
	tok, ok := s.Read(testKey)
	assert.False(t, ok)
	assert.Nil(t, tok)
}

func TestRead_FallsBackWhenPrimaryRejected(t *testing.T) {
	tests := []struct {
		name    string
		primary string
	}{
		{"tampered data", `{"hash":"` + Digest([]byte(`{"Oxygen":1}`)) + `","data":{"Oxygen":2}}`},
		{"missing hash", `{"data":{"Oxygen":2}}`},
		{"missing data", `{"hash":"abc"}`},
		{"garbage", `not json at all`},
		{"empty", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			s := newTestStore(t, fs, Config{})
			require.NoError(t, s.Write(testKey, tanks{Oxygen: 0.5, Label: "fallback"}))

			paths := s.Paths(testKey)
			require.NoError(t, afero.WriteFile(fs, paths[0], []byte(tt.primary), 0o644))

			var out tanks
			require.True(t, s.ReadValue(testKey, &out))
			assert.Equal(t, "fallback", out.Label)
		})
	}
}

func TestRead_AllCandidatesRejected(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := newTestStore(t, fs, Config{})
	require.NoError(t, s.Write(testKey, tanks{Label: "x"}))
	for _, path := range s.Paths(testKey) {
		require.NoError(t, afero.WriteFile(fs, path, []byte(`{"hash":"00","data":{}}`), 0o644))
	}

	out := tanks{Label: "current"}
	assert.False(t, s.ReadValue(testKey, &out))
	assert.Equal(t, "current", out.Label, "state must be untouched on no data")
}

func TestRead_WhitespaceOutsideDataIsTolerated(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := newTestStore(t, fs, Config{})
	data := `{"Label":"spaced"}`
	env := "{\n  \"data\" :   " + data + " ,\n  \"hash\": \"" + Digest([]byte(data)) + "\"\n}\n"
	require.NoError(t, fs.MkdirAll("/saves/slot0", 0o755))
	require.NoError(t, afero.WriteFile(fs, s.Paths(testKey)[0], []byte(env), 0o644))

	var out tanks
	require.True(t, s.ReadValue(testKey, &out))
	assert.Equal(t, "spaced", out.Label)
}

func TestRead_ReformattedDataBreaksSeal(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := newTestStore(t, fs, Config{})
	data := `{"Label":"tight"}`
	env := `{"hash":"` + Digest([]byte(data)) + `","data":{ "Label" : "tight" }}`
	require.NoError(t, fs.MkdirAll("/saves/slot0", 0o755))
	require.NoError(t, afero.WriteFile(fs, s.Paths(testKey)[0], []byte(env), 0o644))

	_, ok := s.Read(testKey)
	assert.False(t, ok)
}

func TestWrite_PayloadTooLarge(t *testing.T) {
	s := newTestStore(t, afero.NewMemMapFs(), Config{MaxPayloadBytes: 16})
	err := s.Write(testKey, tanks{Label: "this label alone is longer than sixteen bytes"})
	require.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestRead_OversizedFileRejected(t *testing.T) {
	fs := afero.NewMemMapFs()
	big := newTestStore(t, fs, Config{})
	require.NoError(t, big.Write(testKey, tanks{Label: "some data that will not fit"}))

	small := newTestStore(t, fs, Config{MaxPayloadBytes: 8})
	_, ok := small.Read(testKey)
	assert.False(t, ok)
}

func TestWrite_ReadOnlyFilesystem(t *testing.T) {
	s := newTestStore(t, afero.NewReadOnlyFs(afero.NewMemMapFs()), Config{})
	err := s.Write(testKey, tanks{})
	require.ErrorIs(t, err, ErrNoCandidate)
}

func TestWrite_UnsupportedPayload(t *testing.T) {
	s := newTestStore(t, afero.NewMemMapFs(), Config{})
	err := s.Write(testKey, make(chan int))
	require.ErrorIs(t, err, codec.ErrUnsupportedType)
}

func TestKeysAreNamespaced(t *testing.T) {
	s := newTestStore(t, afero.NewMemMapFs(), Config{})
	a := Key{Slot: "slot0", Prefix: "Lifecycle", EntityID: 1}
	b := Key{Slot: "slot0", Prefix: "Lifecycle", EntityID: 2}
	c := Key{Slot: "slot1", Prefix: "Lifecycle", EntityID: 1}

	require.NoError(t, s.Write(a, tanks{Label: "a"}))
	require.NoError(t, s.Write(b, tanks{Label: "b"}))

	var out tanks
	require.True(t, s.ReadValue(a, &out))
	assert.Equal(t, "a", out.Label)
	require.True(t, s.ReadValue(b, &out))
	assert.Equal(t, "b", out.Label)
	assert.False(t, s.ReadValue(c, &out))
}

func TestKeyValidation(t *testing.T) {
	s := newTestStore(t, afero.NewMemMapFs(), Config{})
	for _, k := range []Key{
		{Slot: "", Prefix: "p", EntityID: 1},
		{Slot: "s", Prefix: " ", EntityID: 1},
		{Slot: "../etc", Prefix: "p", EntityID: 1},
		{Slot: "s", Prefix: "a/b", EntityID: 1},
	} {
		assert.Error(t, s.Write(k, tanks{}), "key %+v", k)
		_, ok := s.Read(k)
		assert.False(t, ok)
	}
}

func TestSealOpen(t *testing.T) {
	data := []byte(`[1,"two",{"three":3}]`)
	env, err := Seal(data)
	require.NoError(t, err)

	got, err := Open(env)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	_, err = Open([]byte(`{"hash":"` + Digest(data) + `","data":[1,"two",{"three":4}]}`))
	assert.ErrorIs(t, err, ErrHashMismatch)

	_, err = Open([]byte(`{"hash":5,"data":1}`))
	assert.ErrorIs(t, err, ErrMalformedEnvelope)
}

func TestDigest(t *testing.T) {
	// sha256("")
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Digest(nil))
	assert.Len(t, Digest([]byte("x")), 64)
	assert.Equal(t, core.EntityID(42).String(), "42")
}
