package collab

import (
	"fmt"
	"sync"
	"time"
)

// Board holds the latest collaborator state. A failed refresh replaces the
// previous value with the unavailable state.
type Board struct {
	mu         sync.RWMutex
	weather    Weather
	weatherErr error
	outages    OutageReport
	outageErr  error
}

// NewBoard returns a board where everything is unavailable until refreshed.
func NewBoard() *Board {
	return &Board{weatherErr: ErrUnavailable, outageErr: ErrUnavailable}
}

func (b *Board) SetWeather(w Weather, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.weather, b.weatherErr = w, err
}

// Weather returns the last weather reading or ErrUnavailable.
func (b *Board) Weather() (Weather, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.weatherErr != nil {
		return Weather{}, ErrUnavailable
	}
	return b.weather, nil
}

func (b *Board) SetOutages(r OutageReport, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.outages, b.outageErr = r, err
}

// Outages returns the last outage report or ErrUnavailable.
func (b *Board) Outages() (OutageReport, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.outageErr != nil {
		return OutageReport{}, ErrUnavailable
	}
	return b.outages, nil
}

// WeatherLine renders the weather widget text.
func (b *Board) WeatherLine() string {
	w, err := b.Weather()
	if err != nil {
		return "Clima: " + Unavailable
	}
	return "Clima: " + w.String()
}

// OutageLine renders the outage widget text at t.
func (b *Board) OutageLine(t time.Time) string {
	r, err := b.Outages()
	switch {
	case err != nil:
		return "Cortes programados: " + Unavailable
	case r.NoData:
		return "Cortes programados: sin datos, consultar " + r.Source
	}
	up := r.Upcoming(t)
	if len(up) == 0 {
		return "Cortes programados: ninguno"
	}
	return fmt.Sprintf("Cortes programados: %d (próximo %s, %s)", len(up), up[0].Zone, up[0].Start.Format("02/01 15:04"))
}
