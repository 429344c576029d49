package geodesy

import (
	"math"

	"github.com/wroge/wgs84"

	"github.com/nconklindev/geoshift/internal/crs"
)

const (
	arcSecond = math.Pi / 648000
	ppm       = 1e-6
)

// helmert is a position-vector seven-parameter transformation to WGS84.
// Unlike the one in wgs84, Inverse solves the linear system exactly, so a
// forward/inverse round trip returns the input to floating point precision.
type helmert struct {
	t     [3]float64
	m     [3][3]float64 // (1+s)·R
	inv   [3][3]float64 // m⁻¹
	valid bool
}

var _ wgs84.Transformation = (*helmert)(nil)

func newHelmert(p crs.Helmert) *helmert {
	rx, ry, rz := p.RX*arcSecond, p.RY*arcSecond, p.RZ*arcSecond
	s := 1 + p.DS*ppm

	h := &helmert{
		t: [3]float64{p.TX, p.TY, p.TZ},
		m: [3][3]float64{
			{s, -s * rz, s * ry},
			{s * rz, s, -s * rx},
			{-s * ry, s * rx, s},
		},
	}
	h.inv, h.valid = invert3(h.m)
	return h
}

func (h *helmert) Forward(x, y, z float64) (x0, y0, z0 float64) {
	v := mul3(h.m, [3]float64{x, y, z})
	return v[0] + h.t[0], v[1] + h.t[1], v[2] + h.t[2]
}

func (h *helmert) Inverse(x0, y0, z0 float64) (x, y, z float64) {
	if !h.valid {
		return math.NaN(), math.NaN(), math.NaN()
	}
	v := mul3(h.inv, [3]float64{x0 - h.t[0], y0 - h.t[1], z0 - h.t[2]})
	return v[0], v[1], v[2]
}

func mul3(m [3][3]float64, v [3]float64) [3]float64 {
	return [3]float64{
		m[0][0]*v[0] + m[0][1]*v[1] + m[0][2]*v[2],
		m[1][0]*v[0] + m[1][1]*v[1] + m[1][2]*v[2],
		m[2][0]*v[0] + m[2][1]*v[1] + m[2][2]*v[2],
	}
}

func invert3(m [3][3]float64) ([3][3]float64, bool) {
	c00 := m[1][1]*m[2][2] - m[1][2]*m[2][1]
	c01 := m[1][2]*m[2][0] - m[1][0]*m[2][2]
	c02 := m[1][0]*m[2][1] - m[1][1]*m[2][0]

	det := m[0][0]*c00 + m[0][1]*c01 + m[0][2]*c02
	if det == 0 {
		return [3][3]float64{}, false
	}

	return [3][3]float64{
		{c00 / det, (m[0][2]*m[2][1] - m[0][1]*m[2][2]) / det, (m[0][1]*m[1][2] - m[0][2]*m[1][1]) / det},
		{c01 / det, (m[0][0]*m[2][2] - m[0][2]*m[2][0]) / det, (m[0][2]*m[1][0] - m[0][0]*m[1][2]) / det},
		{c02 / det, (m[0][1]*m[2][0] - m[0][0]*m[2][1]) / det, (m[0][0]*m[1][1] - m[0][1]*m[1][0]) / det},
	}, true
}
