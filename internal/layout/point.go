package layout

import (
	"fmt"
	"strconv"
	"strings"
)

type PointMode int

const (
	AtEnd PointMode = iota
	AtStart
	BeforeIndex
	AfterIndex
)

// Point is an insertion point relative to the current sequence.
type Point struct {
	Mode  PointMode
	Index int
}

func Start() *Point          { return &Point{Mode: AtStart} }
func End() *Point            { return &Point{Mode: AtEnd} }
func Before(k int) *Point    { return &Point{Mode: BeforeIndex, Index: k} }
func After(k int) *Point     { return &Point{Mode: AfterIndex, Index: k} }
func At(position int) *Point { return Before(position) }

// Resolve converts the point to an index in a sequence of n blocks. Indexes
// outside the sequence clamp to its ends.
func (p Point) Resolve(n int) int {
	var at int
	switch p.Mode {
	case AtStart:
		at = 0
	case BeforeIndex:
		at = p.Index
	case AfterIndex:
		at = p.Index + 1
	default:
		at = n
	}
	if at < 0 {
		return 0
	}
	if at > n {
		return n
	}
	return at
}

func (p Point) String() string {
	switch p.Mode {
	case AtStart:
		return "start"
	case BeforeIndex:
		return "before:" + strconv.Itoa(p.Index)
	case AfterIndex:
		return "after:" + strconv.Itoa(p.Index)
	}
	return "end"
}

// ParsePoint reads "start", "end", "before:<k>", "after:<k>" or a bare
// index, which means before that index. An empty string is nil (append).
func ParsePoint(s string) (*Point, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "":
		return nil, nil
	case "start":
		return Start(), nil
	case "end":
		return End(), nil
	}
	mode, arg, found := strings.Cut(s, ":")
	if !found {
		arg, mode = mode, "before"
	}
	k, err := strconv.Atoi(arg)
	if err != nil || k < 0 {
		return nil, fmt.Errorf("invalid insertion point %q", s)
	}
	switch mode {
	case "before":
		return Before(k), nil
	case "after":
		return After(k), nil
	}
	return nil, fmt.Errorf("invalid insertion point %q", s)
}
