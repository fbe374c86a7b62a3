package cost

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gosimple/slug"
)

// Preset is a named, versioned price table. Games keep their own copy, so
// editing a registry never reprices a game already in flight.
type Preset struct {
	Name         string `json:"name"`
	Version      int    `json:"version"`
	Pawn         int64  `json:"pawn"`
	Knight       int64  `json:"knight"`
	Bishop       int64  `json:"bishop"`
	Rook         int64  `json:"rook"`
	Queen        int64  `json:"queen"`
	King         int64  `json:"king"`
	DistanceCost int64  `json:"distanceCost"`
}

// BaseCost returns the per-piece base cost. Unknown kinds are a programming
// error.
func (p Preset) BaseCost(kind PieceKind) int64 {
	switch kind {
	case Pawn:
		return p.Pawn
	case Knight:
		return p.Knight
	case Bishop:
		return p.Bishop
	case Rook:
		return p.Rook
	case Queen:
		return p.Queen
	case King:
		return p.King
	}
	panic(fmt.Sprintf("cost: unknown piece kind %q", kind))
}

// DefaultPresets returns the built-in preset catalogue.
func DefaultPresets() []Preset {
	return []Preset{
		{Name: "quick", Version: 1, Pawn: 1, Knight: 3, Bishop: 3, Rook: 5, Queen: 9, King: 2, DistanceCost: 1},
		{Name: "balanced", Version: 1, Pawn: 10, Knight: 30, Bishop: 30, Rook: 50, Queen: 90, King: 20, DistanceCost: 10},
		{Name: "marathon", Version: 1, Pawn: 50, Knight: 150, Bishop: 150, Rook: 250, Queen: 450, King: 100, DistanceCost: 50},
	}
}

// Registry resolves presets by slug-normalised name.
type Registry struct {
	presets map[string]Preset
}

// NewRegistry indexes the given presets. Later entries win on name clashes.
func NewRegistry(presets ...Preset) *Registry {
	r := &Registry{presets: make(map[string]Preset, len(presets))}
	for _, p := range presets {
		r.presets[slug.Make(p.Name)] = p
	}
	return r
}

// Lookup returns a copy of the named preset.
func (r *Registry) Lookup(name string) (Preset, bool) {
	key := slug.Make(strings.TrimSpace(name))
	if key == "" {
		return Preset{}, false
	}
	p, ok := r.presets[key]
	return p, ok
}

// All lists presets sorted by name.
func (r *Registry) All() []Preset {
	out := make([]Preset, 0, len(r.presets))
	for _, p := range r.presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
