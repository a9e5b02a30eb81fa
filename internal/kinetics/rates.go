package kinetics

import (
	"math"

	"github.com/san-kum/chembox/internal/mechanism"
)

const (
	// DefaultLatitude and DefaultDeclination place the box at 50N in
	// early summer.
	DefaultLatitude    = 50.0
	DefaultDeclination = 23.79

	secondsPerHalfDay = 4.32e4
)

// CosZenith returns the cosine of the solar zenith angle at the given
// time of day (seconds since local midnight). Latitude and declination
// are in degrees.
func CosZenith(timeOfDay, latitude, declination float64) float64 {
	lat := latitude * math.Pi / 180
	dec := declination * math.Pi / 180
	lha := (1 + timeOfDay/secondsPerHalfDay) * math.Pi
	return math.Cos(lha)*math.Cos(dec)*math.Cos(lat) + math.Sin(dec)*math.Sin(lat)
}

// Coefficient evaluates a rate law without its multiplier.
func Coefficient(r mechanism.Rate, temp, cosZenith float64) float64 {
	switch r.Kind {
	case mechanism.Arrhenius:
		k := r.A
		if r.B != 0 {
			k *= math.Pow(temp/300, r.B)
		}
		if r.C != 0 {
			k *= math.Exp(r.C / temp)
		}
		return k
	case mechanism.Photolysis:
		if cosZenith <= 0 {
			return 0
		}
		return r.L * math.Pow(cosZenith, r.M) * math.Exp(-r.N/cosZenith)
	default:
		return r.A
	}
}

func multiplier(r mechanism.Rate, ro2, h2o float64) float64 {
	switch r.Multiplier {
	case mechanism.MultiplyRO2:
		return ro2
	case mechanism.MultiplyH2O:
		return h2o
	}
	return 1
}
