package layout

import (
	"errors"
	"fmt"
	"strconv"

	"storefront/internal/domain"
)

var ErrInvalidLayout = errors.New("invalid layout")

// Validate is the strict counterpart of Decode, used when importing layouts
// from outside. It requires keys "0".."N-1", known layout types and unique
// stable ids.
func Validate(m domain.LayoutMap) error {
	var problems []error
	for i := 0; i < len(m); i++ {
		if _, ok := m[strconv.Itoa(i)]; !ok {
			problems = append(problems, fmt.Errorf("missing key %q", strconv.Itoa(i)))
		}
	}
	seen := make(map[string]string, len(m))
	for k, e := range m {
		n, err := strconv.Atoi(k)
		if err != nil || n < 0 || n >= len(m) || strconv.Itoa(n) != k {
			problems = append(problems, fmt.Errorf("unexpected key %q", k))
		}
		if !domain.BlockType(e.LayoutType).Valid() {
			problems = append(problems, fmt.Errorf("key %q: %w %q", k, ErrUnknownType, e.LayoutType))
		}
		if e.StableID == "" {
			continue
		}
		if other, dup := seen[e.StableID]; dup {
			problems = append(problems, fmt.Errorf("keys %q and %q share stableId %q", other, k, e.StableID))
		}
		seen[e.StableID] = k
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidLayout, errors.Join(problems...))
}
