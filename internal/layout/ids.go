package layout

import (
	"strconv"

	"github.com/google/uuid"
)

// IDMode selects how missing stable ids are synthesized.
type IDMode string

const (
	// Interactive ids are random and unique per call. Use them for blocks
	// created from scratch.
	Interactive IDMode = "interactive"
	// Static ids are derived from position and layout type, so two decodes
	// of the same map agree. Use them when loading a stored map, so ids seen
	// by a reader still address the blocks once an editor takes over.
	Static IDMode = "static"
)

// IDSource produces a stable id for a block that lacks one.
type IDSource interface {
	StableID(position int, layoutType string) string
}

// IDSourceFunc adapts a function to IDSource.
type IDSourceFunc func(position int, layoutType string) string

func (f IDSourceFunc) StableID(position int, layoutType string) string {
	return f(position, layoutType)
}

// StaticNamespace seeds the name-based uuids of the static mode.
var StaticNamespace = uuid.MustParse("5d3b3c1e-8f0a-4f6c-9a41-7a9e1f0b2c44")

var (
	randomIDs = IDSourceFunc(func(int, string) string { return uuid.NewString() })
	staticIDs = IDSourceFunc(func(position int, layoutType string) string {
		return uuid.NewSHA1(StaticNamespace, []byte(layoutType+":"+strconv.Itoa(position))).String()
	})
)

// IDsFor returns the id source for mode. Unknown modes fall back to static.
func IDsFor(mode IDMode) IDSource {
	if mode == Interactive {
		return randomIDs
	}
	return staticIDs
}
