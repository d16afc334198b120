package domain

import (
	"encoding/json"
	"reflect"
	"strings"
)

// LayoutMap is the persisted form of a page's block sequence, keyed by the
// stringified row index "0".."N-1".
type LayoutMap map[string]LayoutEntry

// LayoutEntry is one persisted block. Variant fields that do not apply to
// LayoutType are left empty.
type LayoutEntry struct {
	LayoutType string `json:"layoutType" yaml:"layoutType" toml:"layoutType"`
	StableID   string `json:"stableId,omitempty" yaml:"stableId,omitempty" toml:"stableId,omitempty"`
	Position   int    `json:"position" yaml:"position" toml:"position"`

	Spacing       string `json:"spacing,omitempty" yaml:"spacing,omitempty" toml:"spacing,omitempty"`
	TextAlignment string `json:"textAlignment,omitempty" yaml:"textAlignment,omitempty" toml:"textAlignment,omitempty"`
	AlignmentSet  bool   `json:"alignmentSet,omitempty" yaml:"alignmentSet,omitempty" toml:"alignmentSet,omitempty"`
	BlockWidth    string `json:"blockWidth,omitempty" yaml:"blockWidth,omitempty" toml:"blockWidth,omitempty"`
	Height        *int   `json:"height,omitempty" yaml:"height,omitempty" toml:"height,omitempty"`
	MinHeight     *int   `json:"minHeight,omitempty" yaml:"minHeight,omitempty" toml:"minHeight,omitempty"`
	MaxHeight     *int   `json:"maxHeight,omitempty" yaml:"maxHeight,omitempty" toml:"maxHeight,omitempty"`
	HeightUnit    string `json:"heightUnit,omitempty" yaml:"heightUnit,omitempty" toml:"heightUnit,omitempty"`

	// text
	Content    string `json:"content,omitempty" yaml:"content,omitempty" toml:"content,omitempty"`
	FontSize   string `json:"fontSize,omitempty" yaml:"fontSize,omitempty" toml:"fontSize,omitempty"`
	FontWeight string `json:"fontWeight,omitempty" yaml:"fontWeight,omitempty" toml:"fontWeight,omitempty"`
	FontFamily string `json:"fontFamily,omitempty" yaml:"fontFamily,omitempty" toml:"fontFamily,omitempty"`
	TextColor  string `json:"textColor,omitempty" yaml:"textColor,omitempty" toml:"textColor,omitempty"`

	// product collections and showcases
	Title        string   `json:"title,omitempty" yaml:"title,omitempty" toml:"title,omitempty"`
	Subtitle     string   `json:"subtitle,omitempty" yaml:"subtitle,omitempty" toml:"subtitle,omitempty"`
	ProductCount int      `json:"productCount,omitempty" yaml:"productCount,omitempty" toml:"productCount,omitempty"`
	Columns      int      `json:"columns,omitempty" yaml:"columns,omitempty" toml:"columns,omitempty"`
	ListStyle    string   `json:"listStyle,omitempty" yaml:"listStyle,omitempty" toml:"listStyle,omitempty"`
	ProductIDs   []string `json:"productIds,omitempty" yaml:"productIds,omitempty" toml:"productIds,omitempty"`
	ImageURL     string   `json:"imageUrl,omitempty" yaml:"imageUrl,omitempty" toml:"imageUrl,omitempty"`
	ProductID    string   `json:"productId,omitempty" yaml:"productId,omitempty" toml:"productId,omitempty"`
	CTAText      string   `json:"ctaText,omitempty" yaml:"ctaText,omitempty" toml:"ctaText,omitempty"`

	ShowStoreHeader bool `json:"showStoreHeader,omitempty" yaml:"showStoreHeader,omitempty" toml:"showStoreHeader,omitempty"`

	// Extra keeps JSON keys this build does not know so that entries written
	// by a newer builder survive a load/save cycle.
	Extra map[string]json.RawMessage `json:"-" yaml:"-" toml:"-"`
}

type layoutEntryFields LayoutEntry

var entryKeys = func() map[string]bool {
	keys := make(map[string]bool)
	t := reflect.TypeOf(layoutEntryFields{})
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name != "" && name != "-" {
			keys[name] = true
		}
	}
	return keys
}()

func (e LayoutEntry) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(layoutEntryFields(e))
	if err != nil || len(e.Extra) == 0 {
		return raw, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	for k, v := range e.Extra {
		if entryKeys[k] {
			continue
		}
		fields[k] = v
	}
	return json.Marshal(fields)
}

func (e *LayoutEntry) UnmarshalJSON(data []byte) error {
	var f layoutEntryFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for k := range all {
		if entryKeys[k] {
			delete(all, k)
		}
	}
	f.Extra = nil
	if len(all) > 0 {
		f.Extra = all
	}
	*e = LayoutEntry(f)
	return nil
}

// Clone returns a deep copy of e.
func (e LayoutEntry) Clone() LayoutEntry {
	e.Height = cloneInt(e.Height)
	e.MinHeight = cloneInt(e.MinHeight)
	e.MaxHeight = cloneInt(e.MaxHeight)
	e.ProductIDs = cloneStrings(e.ProductIDs)
	if e.Extra != nil {
		extra := make(map[string]json.RawMessage, len(e.Extra))
		for k, v := range e.Extra {
			extra[k] = append(json.RawMessage(nil), v...)
		}
		e.Extra = extra
	}
	return e
}
