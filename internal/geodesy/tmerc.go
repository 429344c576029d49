package geodesy

import (
	"math"

	"github.com/wroge/wgs84"

	"github.com/nconklindev/geoshift/internal/crs"
)

// transverseMercator implements wgs84.Projection with Krüger's n-series to
// fourth order, which keeps sub-millimetre accuracy across a national grid.
// The Snyder series shipped with wgs84 loses metres on the inverse.
type transverseMercator struct {
	params crs.TransverseMercator
}

var _ wgs84.Projection = transverseMercator{}

// kruger holds the series coefficients for one ellipsoid.
type kruger struct {
	e     float64
	scale float64 // rectifying radius times k0
	alpha [4]float64
	beta  [4]float64
	delta [4]float64
}

func newKruger(s wgs84.Spheroid, k0 float64) kruger {
	f := 1 / s.Fi()
	n := f / (2 - f)
	n2, n3, n4 := n*n, n*n*n, n*n*n*n

	return kruger{
		e:     math.Sqrt(f * (2 - f)),
		scale: k0 * s.A() / (1 + n) * (1 + n2/4 + n4/64),
		alpha: [4]float64{
			n/2 - 2*n2/3 + 5*n3/16 + 41*n4/180,
			13*n2/48 - 3*n3/5 + 557*n4/1440,
			61*n3/240 - 103*n4/140,
			49561 * n4 / 161280,
		},
		beta: [4]float64{
			n/2 - 2*n2/3 + 37*n3/96 - n4/360,
			n2/48 + n3/15 - 437*n4/1440,
			17*n3/480 - 37*n4/840,
			4397 * n4 / 161280,
		},
		delta: [4]float64{
			2*n - 2*n2/3 - 2*n3 + 116*n4/45,
			7*n2/3 - 8*n3/5 - 227*n4/45,
			56*n3/15 - 136*n4/35,
			4279 * n4 / 630,
		},
	}
}

// project maps geodetic latitude and longitude offset (radians) to
// normalised Gauss-Krüger coordinates.
func (k kruger) project(phi, lambda float64) (x, y float64) {
	t := math.Sinh(math.Atanh(math.Sin(phi)) - k.e*math.Atanh(k.e*math.Sin(phi)))
	xi := math.Atan2(t, math.Cos(lambda))
	eta := math.Atanh(math.Sin(lambda) / math.Sqrt(1+t*t))

	x, y = eta, xi
	for j, a := range k.alpha {
		m := float64(2 * (j + 1))
		x += a * math.Cos(m*xi) * math.Sinh(m*eta)
		y += a * math.Sin(m*xi) * math.Cosh(m*eta)
	}
	return x, y
}

func (p transverseMercator) FromLonLat(lon, lat float64, s wgs84.Spheroid) (east, north float64) {
	lambda := normalizeLongitude(lon - p.params.CentralMeridian)
	if math.Abs(lambda) >= 90 {
		return math.NaN(), math.NaN()
	}

	k := newKruger(s, p.params.ScaleFactor)
	x, y := k.project(radians(lat), radians(lambda))
	_, y0 := k.project(radians(p.params.LatitudeOrigin), 0)

	return p.params.FalseEasting + k.scale*x, p.params.FalseNorthing + k.scale*(y-y0)
}

func (p transverseMercator) ToLonLat(east, north float64, s wgs84.Spheroid) (lon, lat float64) {
	k := newKruger(s, p.params.ScaleFactor)
	_, y0 := k.project(radians(p.params.LatitudeOrigin), 0)

	eta := (east - p.params.FalseEasting) / k.scale
	xi := (north-p.params.FalseNorthing)/k.scale + y0

	xiP, etaP := xi, eta
	for j, b := range k.beta {
		m := float64(2 * (j + 1))
		xiP -= b * math.Sin(m*xi) * math.Cosh(m*eta)
		etaP -= b * math.Cos(m*xi) * math.Sinh(m*eta)
	}

	chi := math.Asin(math.Sin(xiP) / math.Cosh(etaP))
	phi := chi
	for j, d := range k.delta {
		phi += d * math.Sin(float64(2*(j+1))*chi)
	}
	lambda := math.Atan2(math.Sinh(etaP), math.Cos(xiP))

	return normalizeLongitude(p.params.CentralMeridian + degrees(lambda)), degrees(phi)
}

func normalizeLongitude(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

func radians(d float64) float64 { return d * math.Pi / 180 }
func degrees(r float64) float64 { return r * 180 / math.Pi }
