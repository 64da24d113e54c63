// Package solar estimates photovoltaic production from sun geometry. The
// forecast is a clear-sky shape scaled by installed peak power and derated
// by cloud coverage, intended to feed a power_limit segment capping a solar
// source in the optimization network.
package solar

import (
	"math"
	"time"

	"github.com/sixdouglas/suncalc"

	"github.com/hass-energy/haeo/utils"
)

// Plant describes a PV installation.
type Plant struct {
	Latitude  float64
	Longitude float64
	PeakPower float64 // kW at full sun
}

// PowerAt estimates production at a single instant. Output is zero outside
// the sunrise-to-sunset window; inside it, the sine of the solar altitude
// scales the peak power, and cloudCoverage (percent, 0-100) derates the
// result down to a 15% diffuse floor under full overcast.
func (p Plant) PowerAt(at time.Time, cloudCoverage float64) float64 {
	times := suncalc.GetTimes(at, p.Latitude, p.Longitude)
	sunrise := times["sunrise"].Value
	sunset := times["sunset"].Value
	if at.Before(sunrise) || at.After(sunset) {
		return 0
	}

	pos := suncalc.GetPosition(at, p.Latitude, p.Longitude)
	altitudeFactor := math.Sin(pos.Altitude)
	if altitudeFactor <= 0 {
		return 0
	}

	cloudFactor := 1.0
	if cloudCoverage > 0 {
		if cloudCoverage > 100 {
			cloudCoverage = 100
		}
		// Heavy overcast still passes diffuse light.
		cloudFactor = 1 - 0.85*(cloudCoverage/100)
	}

	return p.PeakPower * altitudeFactor * cloudFactor
}

// Forecast samples PowerAt at the midpoint of each period, in kW. The
// cloud series may be nil (clear sky), a single value broadcast across the
// horizon, or one value per period.
func (p Plant) Forecast(start time.Time, periods []float64, cloud []float64) []float64 {
	mids := utils.PeriodMidpoints(start, periods)
	out := make([]float64, len(periods))
	for i, at := range mids {
		coverage := 0.0
		switch {
		case len(cloud) == 1:
			coverage = cloud[0]
		case len(cloud) > i:
			coverage = cloud[i]
		}
		out[i] = p.PowerAt(at, coverage)
	}
	return out
}
