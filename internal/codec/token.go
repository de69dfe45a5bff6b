package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Token is the codec's portable intermediate value. A Token is always one of
// nil, bool, json.Number, string, []any (array) or map[string]any (object).
// Decoding also accepts Go numeric types so tokens can be built by hand.
type Token = any

// Object is the token form of a structural value.
type Object = map[string]any

// Array is the token form of arrays and lists.
type Array = []any

// MarshalJSON renders a token as JSON. Object keys are sorted, so equal tokens
// always produce identical bytes.
func MarshalJSON(tok Token) ([]byte, error) {
	return json.Marshal(tok)
}

// UnmarshalJSON parses JSON into a token, keeping numbers exact.
func UnmarshalJSON(data []byte) (Token, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var tok Token
	if err := dec.Decode(&tok); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after token")
	}
	return tok, nil
}

func intToken(v int64) Token {
	return json.Number(strconv.FormatInt(v, 10))
}

func uintToken(v uint64) Token {
	return json.Number(strconv.FormatUint(v, 10))
}

// floatToken uses the shortest representation that round-trips. JSON has no
// NaN or infinities, so those travel as strings.
func floatToken(v float64, bits int) Token {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	}
	return json.Number(strconv.FormatFloat(v, 'g', -1, bits))
}

func tokenFloat(tok Token) (float64, bool) {
	switch n := tok.(type) {
	case json.Number:
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		switch n {
		case "NaN":
			return math.NaN(), true
		case "+Inf":
			return math.Inf(1), true
		case "-Inf":
			return math.Inf(-1), true
		}
	}
	return 0, false
}

func tokenInt(tok Token) (int64, bool) {
	switch n := tok.(type) {
	case json.Number:
		if v, err := strconv.ParseInt(string(n), 10, 64); err == nil {
			return v, true
		}
		f, err := strconv.ParseFloat(string(n), 64)
		if err != nil || f != math.Trunc(f) {
			return 0, false
		}
		return int64(f), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

func tokenUint(tok Token) (uint64, bool) {
	switch n := tok.(type) {
	case json.Number:
		if v, err := strconv.ParseUint(string(n), 10, 64); err == nil {
			return v, true
		}
		f, err := strconv.ParseFloat(string(n), 64)
		if err != nil || f < 0 || f != math.Trunc(f) {
			return 0, false
		}
		return uint64(f), true
	case uint64:
		return n, true
	case int:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case float64:
		if n < 0 || n != math.Trunc(n) {
			return 0, false
		}
		return uint64(n), true
	}
	return 0, false
}
