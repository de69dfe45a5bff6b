package codec

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/IronFox/AVS-sub001/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinHandlersAreSymmetric(t *testing.T) {
	c := New()

	tests := []struct {
		name string
		in   any
		out  any
	}{
		{"vec3", core.Vec3{X: -1.25, Y: 1e-9, Z: 123456.789}, new(core.Vec3)},
		{"quaternion", core.Identity, new(core.Quaternion)},
		{"duration", 1500 * time.Millisecond, new(time.Duration)},
		{"color", core.Color{R: 1, G: 204.0 / 255, B: 0, A: 1}, new(core.Color)},
		{"color off the byte grid", core.Color{R: 0.3, G: 0.6, B: 0.9, A: 0.5}, new(core.Color)},
		{"transparent color", core.Color{R: 0.123456789, A: 0}, new(core.Color)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := c.Encode(tt.in)
			require.NoError(t, err)
			require.NoError(t, c.Decode(tok, tt.out))

			switch out := tt.out.(type) {
			case *core.Vec3:
				assert.Equal(t, tt.in, *out)
			case *core.Quaternion:
				assert.Equal(t, tt.in, *out)
			case *time.Duration:
				assert.Equal(t, tt.in, *out)
			case *core.Color:
				assert.Equal(t, tt.in, *out)
			}
		})
	}
}

func TestTimeHandler(t *testing.T) {
	c := New()
	in := time.Date(2026, 10, 18, 12, 0, 0, 123, time.UTC)

	tok, err := c.Encode(in)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-18T12:00:00.000000123Z", tok)

	out, err := DecodeAs[time.Time](c, tok)
	require.NoError(t, err)
	assert.True(t, in.Equal(out))
}

func TestColorHandler_UsesSavedColorShape(t *testing.T) {
	c := New()
	tok, err := c.Encode(core.Color{R: 1, G: 0, B: 0, A: 1})
	require.NoError(t, err)

	obj := tok.(Object)
	assert.Equal(t, "#FF0000", obj["RGB"])
	assert.Equal(t, "0.0000,1.0000,1.0000", obj["HSB"])

	assert.Equal(t, Array{json.Number("1"), json.Number("0"), json.Number("0"), json.Number("1")}, obj["RGBA"])

	_, err = DecodeAs[core.Color](c, Object{"HSB": "0,0,0"})
	assert.Error(t, err)

	_, err = DecodeAs[core.Color](c, Object{"RGB": "#FF0000", "RGBA": Array{1, 0}})
	assert.ErrorIs(t, err, ErrTokenMismatch)
}

func TestColorHandler_HexOnlyDocuments(t *testing.T) {
	c := New()
	got, err := DecodeAs[core.Color](c, Object{"RGB": "#3399E6", "HSB": "0.5833,0.7778,0.9020"})
	require.NoError(t, err)
	assert.Equal(t, core.Color{R: 0x33 / 255.0, G: 0x99 / 255.0, B: 0xE6 / 255.0, A: 1}, got)
}

func TestVec3Handler_RejectsWrongArity(t *testing.T) {
	c := New()
	_, err := DecodeAs[core.Vec3](c, Array{1, 2})
	assert.ErrorIs(t, err, ErrTokenMismatch)
}
