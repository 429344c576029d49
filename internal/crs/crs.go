// Package crs holds the registry of coordinate reference systems that the
// converter can read from and write to.
//
// A Definition is static configuration: datum, optional projection and area
// of use. The geodesy package turns a Definition into something that can
// transform points.
package crs

import "fmt"

// AxisOrder pins which physical quantity sits in the X and Y slot of a
// coordinate pair for a given system. X always comes first.
type AxisOrder int

const (
	// LonLat puts longitude in X and latitude in Y, in decimal degrees.
	LonLat AxisOrder = iota
	// EastNorth puts easting in X and northing in Y, in metres.
	EastNorth
)

// Labels returns the names of the X and Y components.
func (o AxisOrder) Labels() (x, y string) {
	if o == EastNorth {
		return "Easting", "Northing"
	}
	return "Longitude", "Latitude"
}

func (o AxisOrder) String() string {
	x, y := o.Labels()
	return x + "/" + y
}

// Ellipsoid is given by its semi-major axis in metres and inverse flattening.
type Ellipsoid struct {
	Name       string  `yaml:"name" json:"name"`
	SemiMajor  float64 `yaml:"semi_major" json:"semi_major" validate:"gt=0"`
	InvFlatten float64 `yaml:"inv_flattening" json:"inv_flattening" validate:"gt=0"`
}

var (
	WGS84Ellipsoid = Ellipsoid{Name: "WGS 84", SemiMajor: 6378137, InvFlatten: 298.257223563}
	GRS80Ellipsoid = Ellipsoid{Name: "GRS 1980", SemiMajor: 6378137, InvFlatten: 298.257222101}
	Intl1924       = Ellipsoid{Name: "International 1924", SemiMajor: 6378388, InvFlatten: 297}
)

// Helmert holds the seven parameters of a position-vector transformation
// to WGS84: translations in metres, rotations in arc-seconds, scale in ppm.
type Helmert struct {
	TX float64 `yaml:"tx" json:"tx"`
	TY float64 `yaml:"ty" json:"ty"`
	TZ float64 `yaml:"tz" json:"tz"`
	RX float64 `yaml:"rx" json:"rx"`
	RY float64 `yaml:"ry" json:"ry"`
	RZ float64 `yaml:"rz" json:"rz"`
	DS float64 `yaml:"ds" json:"ds"`
}

// IsZero reports whether the datum coincides with WGS84.
func (h Helmert) IsZero() bool {
	return h == Helmert{}
}

type Datum struct {
	Name      string    `yaml:"name" json:"name"`
	Ellipsoid Ellipsoid `yaml:"ellipsoid" json:"ellipsoid"`
	ToWGS84   Helmert   `yaml:"to_wgs84" json:"to_wgs84"`
}

// TransverseMercator parameters; angles in decimal degrees, offsets in metres.
type TransverseMercator struct {
	CentralMeridian float64 `yaml:"central_meridian" json:"central_meridian" validate:"gte=-180,lte=180"`
	LatitudeOrigin  float64 `yaml:"latitude_of_origin" json:"latitude_of_origin" validate:"gte=-90,lte=90"`
	ScaleFactor     float64 `yaml:"scale_factor" json:"scale_factor" validate:"gt=0"`
	FalseEasting    float64 `yaml:"false_easting" json:"false_easting"`
	FalseNorthing   float64 `yaml:"false_northing" json:"false_northing"`
}

// Bounds is a geographic bounding box in WGS84 degrees.
type Bounds struct {
	West  float64 `yaml:"west" json:"west"`
	South float64 `yaml:"south" json:"south"`
	East  float64 `yaml:"east" json:"east"`
	North float64 `yaml:"north" json:"north"`
}

// Contains reports whether lon/lat falls inside the box. A zero box contains
// everything; West greater than East means the box crosses the antimeridian.
func (b Bounds) Contains(lon, lat float64) bool {
	if b == (Bounds{}) {
		return true
	}
	if lat < b.South || lat > b.North {
		return false
	}
	if b.West > b.East {
		return lon >= b.West || lon <= b.East
	}
	return lon >= b.West && lon <= b.East
}

type Definition struct {
	Name       string              `json:"name"`
	Code       string              `json:"code"`
	Short      string              `json:"short"`
	Axes       AxisOrder           `json:"-"`
	Datum      Datum               `json:"datum"`
	Projection *TransverseMercator `json:"projection,omitempty"`
	AreaOfUse  Bounds              `json:"area_of_use"`
}

// Geographic reports whether the system has no projection.
func (d *Definition) Geographic() bool {
	return d.Projection == nil
}

func (d *Definition) String() string {
	return fmt.Sprintf("%s (%s)", d.Name, d.Code)
}
