package model

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/golang/geo/s2"
)

const (
	// AnonymousReporter is stored when no submitter name is given or the
	// report type mandates anonymity.
	AnonymousReporter = "Anónimo"

	// MaxPhotos is the upper bound of photos attached to one report.
	MaxPhotos = 5
)

var ErrInvalidPosition = errors.New("position out of range")

// Position is a WGS84 coordinate in degrees.
type Position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks that both coordinates are finite and inside the valid range.
func (p Position) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return fmt.Errorf("%w: non-finite coordinate (%v, %v)", ErrInvalidPosition, p.Lat, p.Lng)
	}
	if !p.LatLng().IsValid() {
		return fmt.Errorf("%w: (%v, %v)", ErrInvalidPosition, p.Lat, p.Lng)
	}
	return nil
}

// LatLng converts the position to an s2 coordinate.
func (p Position) LatLng() s2.LatLng {
	return s2.LatLngFromDegrees(p.Lat, p.Lng)
}

// CellToken returns the s2 cell token containing p at the given level. Nearby
// positions share a token, which makes it a stable cache key.
func (p Position) CellToken(level int) string {
	return s2.CellIDFromLatLng(p.LatLng()).Parent(level).ToToken()
}

// Report is a single citizen-submitted issue.
type Report struct {
	ID            string     `json:"id"`
	Position      Position   `json:"position"`
	Address       string     `json:"address,omitempty"`
	Description   string     `json:"description,omitempty"`
	ReportedBy    string     `json:"reported_by"`
	CreatedAt     time.Time  `json:"created_at"` // zero when missing or unparseable
	Status        Status     `json:"status"`
	Type          ReportType `json:"report_type"`
	Photos        []string   `json:"photos"`
	PhotoState    PhotoState `json:"photo_state"`
	PhotoAttempts int        `json:"photo_attempts"`
}

// HasCreatedAt reports whether the report carries a usable creation time.
func (r Report) HasCreatedAt() bool {
	return !r.CreatedAt.IsZero()
}

// IsActive reports whether the report is still open.
func (r Report) IsActive() bool {
	return r.Status == StatusActive
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Status        *Status
	Photos        []string // nil = unchanged; empty non-nil slice clears
	PhotoState    *PhotoState
	PhotoAttempts *int
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Status == nil && p.Photos == nil && p.PhotoState == nil && p.PhotoAttempts == nil
}

// Apply returns r with the patch applied.
func (p Patch) Apply(r Report) Report {
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.Photos != nil {
		r.Photos = append([]string(nil), p.Photos...)
	}
	if p.PhotoState != nil {
		r.PhotoState = *p.PhotoState
	}
	if p.PhotoAttempts != nil {
		r.PhotoAttempts = *p.PhotoAttempts
	}
	return r
}

// SetStatus builds a patch that only changes the status.
func SetStatus(s Status) Patch {
	return Patch{Status: &s}
}

// Filter selects reports. Empty fields match everything.
type Filter struct {
	Status     Status
	Type       ReportType
	PhotoState PhotoState
}

// Match reports whether r passes the filter.
func (f Filter) Match(r Report) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Type != "" && r.Type != f.Type {
		return false
	}
	if f.PhotoState != "" && r.PhotoState != f.PhotoState {
		return false
	}
	return true
}
