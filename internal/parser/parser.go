// Package parser turns raw host command arguments into typed values.
// It has no dependencies beyond a logger.
package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/IronFox/AVS-sub001/internal/util"
	"github.com/IronFox/AVS-sub001/pkg/core"
)

// ErrArgCount is returned when a command carries fewer arguments than required.
var ErrArgCount = errors.New("wrong argument count")

// Parser converts []string arguments into command structs.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a parser.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// clean unescapes every argument and checks that at least min are present.
func clean(command string, args []string, min int) ([]string, error) {
	if len(args) < min {
		return nil, fmt.Errorf("%s: %w: want at least %d, got %d", command, ErrArgCount, min, len(args))
	}
	return util.CleanArgs(args), nil
}

// parseUintFromFloat parses a string that may be an integer ("32") or float ("32.00") into uint64.
// Scripting layers without an integer type serialize numbers as floats.
func parseUintFromFloat(s string) (uint64, error) {
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 || f != math.Trunc(f) || f > math.MaxUint64 {
		return 0, fmt.Errorf("parseUintFromFloat: %q is not a valid uint64", s)
	}
	return uint64(f), nil
}

// parseIntFromFloat parses a string that may be an integer or float into int64.
func parseIntFromFloat(s string) (int64, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt64 {
		return 0, fmt.Errorf("parseIntFromFloat: %q is not a valid int64", s)
	}
	return int64(f), nil
}

// parseEntityID parses a non-zero entity id.
func parseEntityID(s string) (core.EntityID, error) {
	v, err := parseUintFromFloat(s)
	if err != nil {
		return core.NoEntity, fmt.Errorf("entity id: %w", err)
	}
	if v == 0 || v > math.MaxUint32 {
		return core.NoEntity, fmt.Errorf("entity id: %q out of range", s)
	}
	return core.EntityID(v), nil
}

// parseBool accepts true/false in any case, and 1/0.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("parseBool: %q is not a boolean", s)
	}
}

// parseVec3 parses "[x,y,z]". A fourth element, if present, is ignored.
func parseVec3(s string) (core.Vec3, error) {
	parts, ok := util.SplitList(s)
	if !ok || len(parts) < 3 {
		return core.Vec3{}, fmt.Errorf("parseVec3: %q is not a [x,y,z] vector", s)
	}
	var xyz [3]float64
	for i := range xyz {
		v, err := strconv.ParseFloat(parts[i], 64)
		if err != nil {
			return core.Vec3{}, fmt.Errorf("parseVec3: component %d of %q: %w", i, s, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return core.Vec3{}, fmt.Errorf("parseVec3: component %d of %q is not finite", i, s)
		}
		xyz[i] = v
	}
	return core.Vec3{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}

// optionalVec3 parses args[i] when present and non-empty.
func optionalVec3(args []string, i int) (*core.Vec3, error) {
	if i >= len(args) || args[i] == "" || args[i] == "[]" {
		return nil, nil
	}
	v, err := parseVec3(args[i])
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// optionalBool parses args[i] when present, returning def otherwise.
func optionalBool(args []string, i int, def bool) (bool, error) {
	if i >= len(args) || args[i] == "" {
		return def, nil
	}
	return parseBool(args[i])
}
