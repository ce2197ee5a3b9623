// Package reference holds the static instrument tables: the ordered universe,
// issued shares and name/sector classification.
package reference

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"TWHeatmap/internal/model"
)

// UnclassifiedSector is used when an instrument has no classification entry.
const UnclassifiedSector = "未分類"

// Table is an immutable instrument lookup with an ordered universe.
type Table struct {
	codes       []string
	instruments map[string]model.Instrument
}

// NewTable builds a table. codes is the universe in display order; duplicates
// are dropped. Instruments may cover codes outside the universe.
func NewTable(codes []string, instruments []model.Instrument) *Table {
	t := &Table{instruments: make(map[string]model.Instrument, len(instruments))}
	seen := make(map[string]bool, len(codes))
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		t.codes = append(t.codes, c)
	}
	for _, inst := range instruments {
		t.instruments[inst.Code] = inst
	}
	return t
}

// Default returns the compiled-in Taiwan 50 table.
func Default() *Table {
	instruments := make([]model.Instrument, 0, len(issuedShares))
	for code, shares := range issuedShares {
		instruments = append(instruments, classify(code, shares))
	}
	return NewTable(defaultCodes, instruments)
}

func classify(code string, shares float64) model.Instrument {
	inst := model.Instrument{Code: code, Name: code, Sector: UnclassifiedSector, SizeProxy: shares}
	if c, ok := classifications[code]; ok {
		inst.Name = c.Name
		inst.Sector = c.Sector
	}
	return inst
}

// Codes returns a copy of the universe in display order.
func (t *Table) Codes() []string {
	out := make([]string, len(t.codes))
	copy(out, t.codes)
	return out
}

// Len returns the size of the universe.
func (t *Table) Len() int { return len(t.codes) }

// Lookup returns the instrument for code. ok is false when the table has no
// size-proxy entry for it.
func (t *Table) Lookup(code string) (model.Instrument, bool) {
	inst, ok := t.instruments[code]
	return inst, ok
}

// Override is one manual adjustment read from an overrides file. Zero fields
// keep the existing value.
type Override struct {
	Code   string  `yaml:"code"`
	Name   string  `yaml:"name"`
	Sector string  `yaml:"sector"`
	Shares float64 `yaml:"shares"`
}

type overridesFile struct {
	Instruments []Override `yaml:"instruments"`
}

// LoadOverrides reads manual overrides from a YAML file. An empty path yields
// no overrides.
func LoadOverrides(path string) ([]Override, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read overrides: %w", err)
	}
	var f overridesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse overrides: %w", err)
	}
	for i, o := range f.Instruments {
		if strings.TrimSpace(o.Code) == "" {
			return nil, fmt.Errorf("override %d: code is required", i)
		}
		if o.Shares < 0 {
			return nil, fmt.Errorf("override %s: shares must not be negative", o.Code)
		}
	}
	return f.Instruments, nil
}

// WithOverrides returns a new table with the overrides applied. Codes not yet
// in the universe are appended to it.
func (t *Table) WithOverrides(overrides []Override) *Table {
	codes := t.Codes()
	instruments := make(map[string]model.Instrument, len(t.instruments))
	for c, inst := range t.instruments {
		instruments[c] = inst
	}
	inUniverse := make(map[string]bool, len(codes))
	for _, c := range codes {
		inUniverse[c] = true
	}

	for _, o := range overrides {
		code := strings.TrimSpace(o.Code)
		inst, ok := instruments[code]
		if !ok {
			inst = model.Instrument{Code: code, Name: code, Sector: UnclassifiedSector}
			if c, found := classifications[code]; found {
				inst.Name, inst.Sector = c.Name, c.Sector
			}
		}
		if o.Name != "" {
			inst.Name = o.Name
		}
		if o.Sector != "" {
			inst.Sector = o.Sector
		}
		if o.Shares > 0 {
			inst.SizeProxy = o.Shares
		}
		// Without a size proxy the instrument stays a lookup miss.
		if inst.SizeProxy > 0 {
			instruments[code] = inst
		}
		if !inUniverse[code] {
			inUniverse[code] = true
			codes = append(codes, code)
		}
	}

	list := make([]model.Instrument, 0, len(instruments))
	for _, inst := range instruments {
		list = append(list, inst)
	}
	return NewTable(codes, list)
}
