// Package geodesy adapts registry definitions to the wgs84 transformation
// library and guards every point against the domain of its systems.
package geodesy

import (
	"errors"
	"fmt"
	"math"

	"github.com/wroge/wgs84"

	"github.com/nconklindev/geoshift/internal/crs"
)

var (
	// ErrOutOfDomain is returned for a point the source or target system
	// cannot represent.
	ErrOutOfDomain = errors.New("coordinate outside the valid domain")
	ErrInvalidCRS  = errors.New("invalid coordinate reference system definition")
)

// Point is a coordinate pair in (X, Y) order: easting-like first,
// northing-like second. For geographic systems X is longitude and Y is
// latitude, never the other way round.
type Point struct {
	X, Y float64
}

type Option func(*options)

type options struct {
	strict bool
}

// WithStrictArea rejects points outside the area of use of either system
// instead of only those outside the mathematical domain.
func WithStrictArea(strict bool) Option {
	return func(o *options) { o.strict = strict }
}

// Transformer converts points from one system to another. It holds no
// mutable state and may be shared between goroutines.
type Transformer struct {
	src, dst *crs.Definition
	fn       wgs84.SafeFunc
	identity bool
}

func NewTransformer(src, dst *crs.Definition, opts ...Option) (*Transformer, error) {
	if src == nil || dst == nil {
		return nil, fmt.Errorf("new transformer: %w: missing system", ErrInvalidCRS)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	from, err := system(src, o.strict)
	if err != nil {
		return nil, fmt.Errorf("new transformer: source %s: %w", src.Code, err)
	}
	to, err := system(dst, o.strict)
	if err != nil {
		return nil, fmt.Errorf("new transformer: target %s: %w", dst.Code, err)
	}

	return &Transformer{
		src:      src,
		dst:      dst,
		fn:       wgs84.SafeTransform(from, to),
		// Strict runs always go through the library so the area of use is
		// checked even when source and target are the same system.
		identity: src.Code == dst.Code && !o.strict,
	}, nil
}

func (t *Transformer) Source() *crs.Definition { return t.src }
func (t *Transformer) Target() *crs.Definition { return t.dst }

// Transform converts one point. Errors wrap ErrOutOfDomain.
func (t *Transformer) Transform(p Point) (Point, error) {
	if !finite(p.X) || !finite(p.Y) {
		return Point{}, fmt.Errorf("%w: non-finite input (%v, %v)", ErrOutOfDomain, p.X, p.Y)
	}
	if t.src.Geographic() && (math.Abs(p.X) > 180 || math.Abs(p.Y) > 90) {
		return Point{}, fmt.Errorf("%w: longitude %v latitude %v", ErrOutOfDomain, p.X, p.Y)
	}
	if t.identity {
		return p, nil
	}

	x, y, _, err := t.fn(p.X, p.Y, 0)
	if err != nil {
		return Point{}, fmt.Errorf("%w: (%v, %v) from %s to %s: %v", ErrOutOfDomain, p.X, p.Y, t.src.Code, t.dst.Code, err)
	}
	if !finite(x) || !finite(y) {
		return Point{}, fmt.Errorf("%w: (%v, %v) has no image in %s", ErrOutOfDomain, p.X, p.Y, t.dst.Code)
	}
	return Point{X: x, Y: y}, nil
}

// system builds the wgs84 reference system for def.
func system(def *crs.Definition, strict bool) (wgs84.CoordinateReferenceSystem, error) {
	ell := def.Datum.Ellipsoid
	if ell.SemiMajor <= 0 || ell.InvFlatten <= 0 {
		return nil, fmt.Errorf("%w: ellipsoid %q", ErrInvalidCRS, ell.Name)
	}

	datum := wgs84.Datum{
		Spheroid: spheroid(ell),
		Area: wgs84.AreaFunc(func(lon, lat float64) bool {
			return !strict || def.AreaOfUse.Contains(lon, lat)
		}),
	}
	if !def.Datum.ToWGS84.IsZero() {
		h := newHelmert(def.Datum.ToWGS84)
		if !h.valid {
			return nil, fmt.Errorf("%w: singular datum shift for %s", ErrInvalidCRS, def.Datum.Name)
		}
		datum.Transformation = h
	}

	if def.Geographic() {
		return datum.LonLat(), nil
	}

	tm := *def.Projection
	if tm.ScaleFactor <= 0 {
		return nil, fmt.Errorf("%w: scale factor %v", ErrInvalidCRS, tm.ScaleFactor)
	}
	return wgs84.ProjectedReferenceSystem{
		Datum:      datum,
		Projection: transverseMercator{params: tm},
		Area: wgs84.AreaFunc(func(lon, lat float64) bool {
			return math.Abs(normalizeLongitude(lon-tm.CentralMeridian)) < 90
		}),
	}, nil
}

type spheroid crs.Ellipsoid

func (s spheroid) A() float64  { return s.SemiMajor }
func (s spheroid) Fi() float64 { return s.InvFlatten }

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
