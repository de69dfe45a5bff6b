package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/IronFox/AVS-sub001/pkg/core"
)

func registerBuiltins(c *Codec) {
	Register(c, encodeVec3, decodeVec3)
	Register(c, encodeQuaternion, decodeQuaternion)
	Register(c, encodeTime, decodeTime)
	Register(c, encodeDuration, decodeDuration)
	Register(c, encodeColor, decodeColor)
	Register(c, encodeNumber, decodeNumber)
}

// json.Number is already a token; without a handler it would encode as a
// plain string.
func encodeNumber(n json.Number) (Token, error) {
	return n, nil
}

func decodeNumber(tok Token) (json.Number, error) {
	if n, ok := tok.(json.Number); ok {
		return n, nil
	}
	f, ok := tokenFloat(tok)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("%w: want number, got %T", ErrTokenMismatch, tok)
	}
	return json.Number(strconv.FormatFloat(f, 'g', -1, 64)), nil
}

func floats(tok Token, n int) ([]float64, error) {
	arr, ok := tok.(Array)
	if !ok {
		return nil, fmt.Errorf("%w: want array of %d numbers, got %T", ErrTokenMismatch, n, tok)
	}
	if len(arr) != n {
		return nil, fmt.Errorf("%w: want %d components, got %d", ErrTokenMismatch, n, len(arr))
	}
	out := make([]float64, n)
	for i, el := range arr {
		f, ok := tokenFloat(el)
		if !ok {
			return nil, fmt.Errorf("%w: component %d is %T", ErrTokenMismatch, i, el)
		}
		out[i] = f
	}
	return out, nil
}

func encodeVec3(v core.Vec3) (Token, error) {
	return Array{floatToken(v.X, 64), floatToken(v.Y, 64), floatToken(v.Z, 64)}, nil
}

func decodeVec3(tok Token) (core.Vec3, error) {
	f, err := floats(tok, 3)
	if err != nil {
		return core.Vec3{}, err
	}
	return core.Vec3{X: f[0], Y: f[1], Z: f[2]}, nil
}

func encodeQuaternion(q core.Quaternion) (Token, error) {
	return Array{floatToken(q.X, 64), floatToken(q.Y, 64), floatToken(q.Z, 64), floatToken(q.W, 64)}, nil
}

func decodeQuaternion(tok Token) (core.Quaternion, error) {
	f, err := floats(tok, 4)
	if err != nil {
		return core.Quaternion{}, err
	}
	return core.Quaternion{X: f[0], Y: f[1], Z: f[2], W: f[3]}, nil
}

func encodeTime(t time.Time) (Token, error) {
	return t.Format(time.RFC3339Nano), nil
}

func decodeTime(tok Token) (time.Time, error) {
	s, ok := tok.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: want timestamp string, got %T", ErrTokenMismatch, tok)
	}
	return time.Parse(time.RFC3339Nano, s)
}

func encodeDuration(d time.Duration) (Token, error) {
	return d.String(), nil
}

func decodeDuration(tok Token) (time.Duration, error) {
	s, ok := tok.(string)
	if !ok {
		return 0, fmt.Errorf("%w: want duration string, got %T", ErrTokenMismatch, tok)
	}
	return time.ParseDuration(s)
}

// Colors travel as their SavedColor form so saves never depend on a
// rendering type. RGBA carries the exact channels and alpha; documents
// without it decode from the hex form with alpha 1.
func encodeColor(c core.Color) (Token, error) {
	sc := core.SaveColor(c)
	return Object{
		"RGB":  sc.RGB,
		"HSB":  sc.HSB,
		"RGBA": Array{floatToken(c.R, 64), floatToken(c.G, 64), floatToken(c.B, 64), floatToken(c.A, 64)},
	}, nil
}

func decodeColor(tok Token) (core.Color, error) {
	obj, ok := tok.(Object)
	if !ok {
		return core.Color{}, fmt.Errorf("%w: want color object, got %T", ErrTokenMismatch, tok)
	}
	if exact, ok := obj["RGBA"]; ok && exact != nil {
		f, err := floats(exact, 4)
		if err != nil {
			return core.Color{}, fmt.Errorf("color: %w", err)
		}
		return core.Color{R: f[0], G: f[1], B: f[2], A: f[3]}, nil
	}
	rgb, _ := obj["RGB"].(string)
	if rgb == "" {
		return core.Color{}, errors.New("color: missing RGB member")
	}
	return core.SavedColor{RGB: rgb}.Color()
}
