package crs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrUnknownCRS   = errors.New("unknown coordinate reference system")
	ErrDuplicateCRS = errors.New("coordinate reference system already registered")
)

const (
	WGS84    = "EPSG:4326"
	NZTM2000 = "EPSG:2193"
	NZGD2000 = "EPSG:4167"
	NZGD1949 = "EPSG:4272"
)

// Builtin returns the systems every registry starts with. Identifiers are
// stable: saved workflows refer to them.
func Builtin() []Definition {
	nzgd2000 := Datum{Name: "New Zealand Geodetic Datum 2000", Ellipsoid: GRS80Ellipsoid}

	return []Definition{
		{
			Name:  "Lat/Lon (WGS84)",
			Code:  WGS84,
			Short: "WGS84",
			Axes:  LonLat,
			Datum: Datum{Name: "World Geodetic System 1984", Ellipsoid: WGS84Ellipsoid},
		},
		{
			Name:  "NZTM (NZTM2000)",
			Code:  NZTM2000,
			Short: "NZTM",
			Axes:  EastNorth,
			Datum: nzgd2000,
			Projection: &TransverseMercator{
				CentralMeridian: 173,
				LatitudeOrigin:  0,
				ScaleFactor:     0.9996,
				FalseEasting:    1600000,
				FalseNorthing:   10000000,
			},
			AreaOfUse: Bounds{West: 166.37, South: -47.33, East: 178.63, North: -34.1},
		},
		{
			Name:      "NZGD2000",
			Code:      NZGD2000,
			Short:     "NZGD2000",
			Axes:      LonLat,
			Datum:     nzgd2000,
			AreaOfUse: Bounds{West: 160.6, South: -55.95, East: -171.2, North: -25.88},
		},
		{
			Name:  "NZGD1949",
			Code:  NZGD1949,
			Short: "NZGD1949",
			Axes:  LonLat,
			Datum: Datum{
				Name:      "New Zealand Geodetic Datum 1949",
				Ellipsoid: Intl1924,
				ToWGS84:   Helmert{TX: 59.47, TY: -5.04, TZ: 187.44, RX: 0.47, RY: -0.1, RZ: 1.024, DS: -4.5993},
			},
			AreaOfUse: Bounds{West: 165.87, South: -47.65, East: 179.27, North: -33.89},
		},
	}
}

// Registry maps names, short names and identifiers to definitions.
// Lookups are case-insensitive. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	defs  []*Definition
	index map[string]*Definition
}

// NewRegistry returns a registry preloaded with Builtin.
func NewRegistry() *Registry {
	r := &Registry{index: make(map[string]*Definition)}
	for _, def := range Builtin() {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds def. None of its keys may already be taken.
func (r *Registry) Register(def Definition) error {
	if strings.TrimSpace(def.Code) == "" || strings.TrimSpace(def.Name) == "" {
		return fmt.Errorf("register crs: name and code are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	keys := lookupKeys(&def)
	for _, k := range keys {
		if existing, ok := r.index[k]; ok {
			return fmt.Errorf("register %s: key %q used by %s: %w", def.Code, k, existing.Code, ErrDuplicateCRS)
		}
	}

	d := def
	r.defs = append(r.defs, &d)
	for _, k := range keys {
		r.index[k] = &d
	}
	return nil
}

// Lookup resolves a display name, short name, identifier ("EPSG:2193") or
// bare EPSG number ("2193").
func (r *Registry) Lookup(key string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if def, ok := r.index[normalizeKey(key)]; ok {
		return def, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCRS, key)
}

// All returns the definitions in registration order.
func (r *Registry) All() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]*Definition(nil), r.defs...)
}

// Keys returns every accepted lookup key, sorted.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.index))
	for k := range r.index {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func lookupKeys(def *Definition) []string {
	seen := make(map[string]bool)
	var keys []string
	add := func(s string) {
		k := normalizeKey(s)
		if k != "" && !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}

	add(def.Name)
	add(def.Code)
	add(def.Short)
	if authority, number, ok := strings.Cut(def.Code, ":"); ok && strings.EqualFold(authority, "epsg") {
		add(number)
	}
	return keys
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
