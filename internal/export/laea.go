package export

import "math"

// ETRS89-LAEA Europe (EPSG:3035): Lambert azimuthal equal-area on the GRS80
// ellipsoid, centred on 52N 10E.
const (
	grs80A    = 6378137.0
	grs80InvF = 298.257222101

	laeaLat0 = 52.0
	laeaLon0 = 10.0
	laeaFE   = 4321000.0
	laeaFN   = 3210000.0
)

type laea struct {
	e, qp, rq, d        float64
	sinBeta0, cosBeta0 float64
}

var epsg3035 = newLAEA()

func newLAEA() laea {
	f := 1 / grs80InvF
	e := math.Sqrt(2*f - f*f)
	l := laea{e: e}
	l.qp = l.q(math.Pi / 2)
	q0 := l.q(laeaLat0 * math.Pi / 180)
	beta0 := math.Asin(q0 / l.qp)
	l.sinBeta0, l.cosBeta0 = math.Sincos(beta0)
	l.rq = grs80A * math.Sqrt(l.qp/2)
	phi0 := laeaLat0 * math.Pi / 180
	sinPhi0 := math.Sin(phi0)
	l.d = grs80A * (math.Cos(phi0) / math.Sqrt(1-e*e*sinPhi0*sinPhi0)) / (l.rq * l.cosBeta0)
	return l
}

// q is the authalic function of the geodetic latitude phi.
func (l laea) q(phi float64) float64 {
	e := l.e
	s := math.Sin(phi)
	es := e * s
	return (1 - e*e) * (s/(1-es*es) - (1/(2*e))*math.Log((1-es)/(1+es)))
}

// ProjectLAEA projects WGS84 longitude and latitude in degrees to EPSG:3035
// easting and northing in metres.
func ProjectLAEA(lon, lat float64) (x, y float64) {
	l := epsg3035
	phi := lat * math.Pi / 180
	dLambda := (lon - laeaLon0) * math.Pi / 180

	beta := math.Asin(l.q(phi) / l.qp)
	sinBeta, cosBeta := math.Sincos(beta)
	sinDL, cosDL := math.Sincos(dLambda)

	b := l.rq * math.Sqrt(2/(1+l.sinBeta0*sinBeta+l.cosBeta0*cosBeta*cosDL))
	x = laeaFE + b*l.d*cosBeta*sinDL
	y = laeaFN + (b/l.d)*(l.cosBeta0*sinBeta-l.sinBeta0*cosBeta*cosDL)
	return x, y
}
