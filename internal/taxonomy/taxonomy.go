// Package taxonomy holds the organism, order and abbreviation tables used to
// label datasets, route hierarchical predictions and annotate figures.
//
// A Catalog is immutable once built. Every accessor returns a copy so callers
// cannot mutate the shared tables.
package taxonomy

import (
	"fmt"
	"sort"
)

// Spec is the serialisable description of a catalog. It is the shape of the
// optional taxonomy override block in experiment files.
type Spec struct {
	Organisms      []string            `yaml:"organisms" json:"organisms"`
	Blank          string              `yaml:"blank" json:"blank"`
	Abbreviations  map[string]string   `yaml:"abbreviations" json:"abbreviations"`
	Concentrations []string            `yaml:"concentrations" json:"concentrations"`
	Orders         []string            `yaml:"orders" json:"orders"`
	Families       map[string][]string `yaml:"families" json:"families"`
}

// Catalog is the validated, read-only form of a Spec.
type Catalog struct {
	organisms      []string
	blank          string
	abbr           map[string]string
	concentrations []string
	orders         []string
	families       map[string][]string
	speciesIndex   map[string]int
}

// AllConcentrations is the sentinel concentration that disables filtering.
const AllConcentrations = "all"

// DefaultSpec returns the tables of the nine-organism AuNP study.
func DefaultSpec() Spec {
	return Spec{
		Organisms: []string{
			"B.licheniformis", "E.cloacae", "E.coli", "E.faecalis", "L.monocytogenes",
			"S.aureus", "S.cerevisiae", "S.enterica", "S.marcescens",
		},
		Blank: "xBlank",
		Abbreviations: map[string]string{
			"B.licheniformis": "BLI",
			"E.cloacae":       "ECL",
			"E.coli":          "ECO",
			"E.faecalis":      "EFA",
			"L.monocytogenes": "LMO",
			"S.aureus":        "SAU",
			"S.cerevisiae":    "SCE",
			"S.enterica":      "SEN",
			"S.marcescens":    "SMA",
			"xBlank":          "Control",
			"xxothers":        "Others",
		},
		Concentrations: []string{"10^4", "10^5", "10^6", AllConcentrations},
		Orders:         []string{"Bacillales", "Enterobacteriales", "E.faecalis", "S.cerevisiae", "xBlank"},
		Families: map[string][]string{
			"Bacillales":        {"B.licheniformis", "L.monocytogenes", "S.aureus"},
			"Enterobacteriales": {"E.cloacae", "E.coli", "S.enterica", "S.marcescens"},
		},
	}
}

// Default returns the catalog built from DefaultSpec. It cannot fail.
func Default() *Catalog {
	c, err := New(DefaultSpec())
	if err != nil {
		panic(fmt.Sprintf("taxonomy: default spec invalid: %v", err))
	}
	return c
}

// New validates spec and builds a catalog.
//
// Family member lists are stored with the blank class appended, matching the
// per-order training folders which always carry a blank directory.
func New(spec Spec) (*Catalog, error) {
	if len(spec.Organisms) == 0 {
		return nil, fmt.Errorf("taxonomy: no organisms")
	}
	if spec.Blank == "" {
		return nil, fmt.Errorf("taxonomy: blank class name is empty")
	}

	c := &Catalog{
		organisms:      append([]string(nil), spec.Organisms...),
		blank:          spec.Blank,
		abbr:           make(map[string]string, len(spec.Abbreviations)),
		concentrations: append([]string(nil), spec.Concentrations...),
		orders:         append([]string(nil), spec.Orders...),
		families:       make(map[string][]string, len(spec.Families)),
		speciesIndex:   make(map[string]int, len(spec.Organisms)+1),
	}
	if len(c.concentrations) == 0 {
		c.concentrations = []string{AllConcentrations}
	}

	for i, name := range c.WithBlank() {
		if _, dup := c.speciesIndex[name]; dup {
			return nil, fmt.Errorf("taxonomy: duplicate organism %q", name)
		}
		c.speciesIndex[name] = i
	}
	for k, v := range spec.Abbreviations {
		c.abbr[k] = v
	}

	seen := make(map[string]bool, len(c.orders))
	for _, order := range c.orders {
		if seen[order] {
			return nil, fmt.Errorf("taxonomy: duplicate order %q", order)
		}
		seen[order] = true

		members, composite := spec.Families[order]
		if !composite {
			// A leaf order is already a final label.
			if _, ok := c.speciesIndex[order]; !ok {
				return nil, fmt.Errorf("taxonomy: order %q has no family table and is not a species", order)
			}
			continue
		}
		if len(members) == 0 {
			return nil, fmt.Errorf("taxonomy: family %q has no members", order)
		}
		for _, m := range members {
			if _, ok := c.speciesIndex[m]; !ok {
				return nil, fmt.Errorf("taxonomy: family %q member %q is not a known species", order, m)
			}
		}
		c.families[order] = append(append([]string(nil), members...), c.blank)
	}
	for order := range spec.Families {
		if !seen[order] {
			return nil, fmt.Errorf("taxonomy: family %q is not listed in orders", order)
		}
	}

	return c, nil
}

// Organisms returns the species names without the blank class.
func (c *Catalog) Organisms() []string {
	return append([]string(nil), c.organisms...)
}

// Blank returns the blank/control class name.
func (c *Catalog) Blank() string {
	return c.blank
}

// WithBlank returns the species names followed by the blank class. The
// position of a name in this list is its global species index.
func (c *Catalog) WithBlank() []string {
	out := make([]string, 0, len(c.organisms)+1)
	out = append(out, c.organisms...)
	return append(out, c.blank)
}

// SpeciesIndex returns the global index of name within WithBlank.
func (c *Catalog) SpeciesIndex(name string) (int, bool) {
	i, ok := c.speciesIndex[name]
	return i, ok
}

// Abbr returns the short display name for name, or name itself.
func (c *Catalog) Abbr(name string) string {
	if a, ok := c.abbr[name]; ok {
		return a
	}
	return name
}

// Abbrs maps Abbr over names.
func (c *Catalog) Abbrs(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = c.Abbr(n)
	}
	return out
}

// Concentrations returns the concentration filters in run order.
func (c *Catalog) Concentrations() []string {
	return append([]string(nil), c.concentrations...)
}

// Orders returns the order-model output names, aligned with its class indices.
func (c *Catalog) Orders() []string {
	return append([]string(nil), c.orders...)
}

// Composite returns the orders that need a family sub-model, sorted.
func (c *Catalog) Composite() []string {
	out := make([]string, 0, len(c.families))
	for order := range c.families {
		out = append(out, order)
	}
	sort.Strings(out)
	return out
}

// IsComposite reports whether order is routed to a family sub-model.
func (c *Catalog) IsComposite(order string) bool {
	_, ok := c.families[order]
	return ok
}

// Members returns the family member names of a composite order with the blank
// class appended, aligned with the family sub-model's class indices.
func (c *Catalog) Members(order string) []string {
	return append([]string(nil), c.families[order]...)
}

// ClassNames returns the display labels for a dataset pass. When the
// concentration filter is active the blank class is absent from the folders
// and is dropped here too.
func (c *Catalog) ClassNames(classes []string, concentration string) []string {
	out := make([]string, 0, len(classes))
	for _, name := range classes {
		if name == c.blank && concentration != AllConcentrations && concentration != "" {
			continue
		}
		out = append(out, c.Abbr(name))
	}
	return out
}
