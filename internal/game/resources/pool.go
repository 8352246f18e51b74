package resources

import (
	"fmt"
	"sort"
)

// Name identifies a resource within a role's pool (e.g. "energy", "rapport").
type Name string

const (
	Energy      Name = "energy"
	Rapport     Name = "rapport"
	Confidence  Name = "confidence"
	Cooperation Name = "cooperation"
	Deflection  Name = "deflection"
	Emotional   Name = "emotional"
	Complexity  Name = "complexity"
)

// Range is the inclusive [Min, Max] interval a resource may occupy.
type Range struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Clamp forces value into the range.
func (r Range) Clamp(value int) int {
	if value < r.Min {
		return r.Min
	}
	if value > r.Max {
		return r.Max
	}
	return value
}

// Pool holds the named integer resources of one role.
// Every write goes through Set, which clamps against the declared range.
type Pool struct {
	Values map[Name]int   `json:"values"`
	Ranges map[Name]Range `json:"ranges"`
}

// NewPool creates a pool with the given ranges and starting values.
// Resources without a start value begin at their minimum.
func NewPool(ranges map[Name]Range, start map[Name]int) (*Pool, error) {
	p := &Pool{
		Values: make(map[Name]int, len(ranges)),
		Ranges: make(map[Name]Range, len(ranges)),
	}
	for name, r := range ranges {
		if r.Min > r.Max {
			return nil, fmt.Errorf("resource %s: min %d exceeds max %d", name, r.Min, r.Max)
		}
		p.Ranges[name] = r
		p.Values[name] = r.Min
	}
	for name, value := range start {
		if _, ok := p.Ranges[name]; !ok {
			return nil, fmt.Errorf("resource %s: start value without range", name)
		}
		p.Set(name, value)
	}
	return p, nil
}

// Has reports whether the pool declares the resource. A nil pool declares nothing.
func (p *Pool) Has(name Name) bool {
	if p == nil {
		return false
	}
	_, ok := p.Ranges[name]
	return ok
}

// Get returns the current value of a resource, or 0 when undeclared.
func (p *Pool) Get(name Name) int {
	if p == nil {
		return 0
	}
	return p.Values[name]
}

// Set stores value clamped to the resource's range. Undeclared resources are ignored.
func (p *Pool) Set(name Name, value int) {
	if p == nil {
		return
	}
	r, ok := p.Ranges[name]
	if !ok {
		return
	}
	p.Values[name] = r.Clamp(value)
}

// Add applies delta and returns the change actually applied after clamping.
func (p *Pool) Add(name Name, delta int) int {
	if !p.Has(name) {
		return 0
	}
	before := p.Values[name]
	p.Set(name, before+delta)
	return p.Values[name] - before
}

// Range returns the declared range of a resource.
func (p *Pool) Range(name Name) (Range, bool) {
	if p == nil {
		return Range{}, false
	}
	r, ok := p.Ranges[name]
	return r, ok
}

// AtFloor reports whether the resource sits at its minimum.
func (p *Pool) AtFloor(name Name) bool {
	if p == nil {
		return false
	}
	r, ok := p.Ranges[name]
	return ok && p.Values[name] <= r.Min
}

// Names returns the declared resource names in sorted order.
func (p *Pool) Names() []Name {
	names := make([]Name, 0, len(p.Ranges))
	for name := range p.Ranges {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Snapshot returns a copy of the current values.
func (p *Pool) Snapshot() map[Name]int {
	out := make(map[Name]int, len(p.Values))
	for name, value := range p.Values {
		out[name] = value
	}
	return out
}

// Copy creates a deep copy of the pool.
func (p *Pool) Copy() *Pool {
	if p == nil {
		return nil
	}
	cp := &Pool{
		Values: make(map[Name]int, len(p.Values)),
		Ranges: make(map[Name]Range, len(p.Ranges)),
	}
	for name, value := range p.Values {
		cp.Values[name] = value
	}
	for name, r := range p.Ranges {
		cp.Ranges[name] = r
	}
	return cp
}
