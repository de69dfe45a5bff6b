package integrity

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/IronFox/AVS-sub001/pkg/core"
)

// Key names one persisted document: the data file prefix of one entity in
// one save slot. Distinct entities never share a key.
type Key struct {
	Slot     string
	Prefix   string
	EntityID core.EntityID
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s-%s", k.Slot, k.Prefix, k.EntityID)
}

func (k Key) validate() error {
	for name, part := range map[string]string{"slot": k.Slot, "prefix": k.Prefix} {
		if strings.TrimSpace(part) == "" {
			return fmt.Errorf("empty %s in key %s", name, k)
		}
		if strings.Contains(part, "..") || strings.ContainsAny(part, `/\`) {
			return fmt.Errorf("invalid %s %q in key %s", name, part, k)
		}
	}
	return nil
}

// candidatePaths returns <root>/<slot>/<prefix>-<id>.json followed by the
// fallback-suffixed name.
func candidatePaths(root, fallbackSuffix string, k Key) []string {
	dir := filepath.Join(root, k.Slot)
	base := fmt.Sprintf("%s-%s", k.Prefix, k.EntityID)
	return []string{
		filepath.Join(dir, base+".json"),
		filepath.Join(dir, base+fallbackSuffix+".json"),
	}
}
