package solar

import (
	"testing"
	"time"
)

var riga = Plant{Latitude: 56.9496, Longitude: 24.1052, PeakPower: 10}

func TestPowerAtNight(t *testing.T) {
	midnight := time.Date(2026, 6, 21, 0, 30, 0, 0, time.UTC)
	if got := riga.PowerAt(midnight, 0); got != 0 {
		t.Errorf("midnight power = %v, want 0", got)
	}
}

func TestPowerAtNoon(t *testing.T) {
	noon := time.Date(2026, 6, 21, 11, 0, 0, 0, time.UTC)
	got := riga.PowerAt(noon, 0)
	if got <= 0 {
		t.Fatalf("midsummer noon power = %v, want positive", got)
	}
	if got > riga.PeakPower {
		t.Errorf("power %v exceeds peak %v", got, riga.PeakPower)
	}
}

func TestPowerAtCloudDerating(t *testing.T) {
	noon := time.Date(2026, 6, 21, 11, 0, 0, 0, time.UTC)
	clear := riga.PowerAt(noon, 0)
	half := riga.PowerAt(noon, 50)
	overcast := riga.PowerAt(noon, 100)

	if !(clear > half && half > overcast) {
		t.Errorf("derating not monotonic: %v, %v, %v", clear, half, overcast)
	}
	if overcast <= 0 {
		t.Errorf("overcast power = %v, want diffuse floor above 0", overcast)
	}
}

func TestForecastShape(t *testing.T) {
	start := time.Date(2026, 6, 21, 0, 0, 0, 0, time.UTC)
	periods := make([]float64, 24)
	for i := range periods {
		periods[i] = 1
	}

	forecast := riga.Forecast(start, periods, nil)
	if len(forecast) != 24 {
		t.Fatalf("forecast length %d, want 24", len(forecast))
	}
	if forecast[0] != 0 {
		t.Errorf("power at 00:30 = %v, want 0", forecast[0])
	}
	if forecast[11] <= 0 {
		t.Errorf("power at 11:30 = %v, want positive", forecast[11])
	}
	// Morning ramps up toward midday.
	if !(forecast[11] > forecast[7]) {
		t.Errorf("no midday ramp: 11:30=%v, 07:30=%v", forecast[11], forecast[7])
	}
}

func TestForecastBroadcastCloud(t *testing.T) {
	start := time.Date(2026, 6, 21, 10, 0, 0, 0, time.UTC)
	clear := riga.Forecast(start, []float64{1, 1}, nil)
	cloudy := riga.Forecast(start, []float64{1, 1}, []float64{80})
	for i := range clear {
		if cloudy[i] >= clear[i] {
			t.Errorf("period %d: cloudy %v not below clear %v", i, cloudy[i], clear[i])
		}
	}
}
