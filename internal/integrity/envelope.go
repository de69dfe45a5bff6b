package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	// ErrMalformedEnvelope is returned when a file lacks a hash or data member.
	ErrMalformedEnvelope = errors.New("malformed envelope")

	// ErrHashMismatch is returned when the stored hash does not match the data.
	ErrHashMismatch = errors.New("hash mismatch")
)

const envelopeSkeleton = `{"hash":"","data":null}`

// Digest is the content hash stored in an envelope: lowercase hex SHA-256 of
// the exact data bytes.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Seal wraps serialized data as {"hash": <digest>, "data": <data>}.
func Seal(data []byte) ([]byte, error) {
	env, err := sjson.SetBytes([]byte(envelopeSkeleton), "hash", Digest(data))
	if err != nil {
		return nil, fmt.Errorf("setting hash: %w", err)
	}
	env, err = sjson.SetRawBytes(env, "data", data)
	if err != nil {
		return nil, fmt.Errorf("setting data: %w", err)
	}
	return env, nil
}

// Open extracts the data member of an envelope and checks it against the
// stored hash. The data is located by a lenient scan and hashed as the exact
// substring found in the file, so reformatting the data breaks the seal
// while whitespace around the members does not.
func Open(envelope []byte) ([]byte, error) {
	hash := gjson.GetBytes(envelope, "hash")
	data := gjson.GetBytes(envelope, "data")
	if !hash.Exists() || hash.Type != gjson.String {
		return nil, fmt.Errorf("%w: no hash", ErrMalformedEnvelope)
	}
	if !data.Exists() || data.Raw == "" {
		return nil, fmt.Errorf("%w: no data", ErrMalformedEnvelope)
	}
	raw := []byte(data.Raw)
	if got := Digest(raw); got != hash.String() {
		return nil, fmt.Errorf("%w: stored %.12s, computed %.12s", ErrHashMismatch, hash.String(), got)
	}
	return raw, nil
}
