package model

import "time"

// Legacy is a stored record as it may look before the schema migration:
// optional columns are nil when the row predates them.
type Legacy struct {
	ID            string
	Lat           float64
	Lng           float64
	Address       *string
	Description   *string
	ReportedBy    *string
	CreatedAt     *time.Time
	Status        *string
	Type          *string
	Photos        []string
	PhotoState    *string
	PhotoAttempts *int
}

// NeedsBackfill reports whether any defaulted column is missing.
func (l Legacy) NeedsBackfill() bool {
	return l.Type == nil || l.ReportedBy == nil || l.Status == nil || l.PhotoState == nil || l.Photos == nil
}

// Backfill converts a stored record into a Report. It is the only place the
// legacy defaults live: type agua, anonymous reporter, active status, and a
// photo state derived from the photo list.
func Backfill(l Legacy) Report {
	r := Report{
		ID:       l.ID,
		Position: Position{Lat: l.Lat, Lng: l.Lng},
		Status:   StatusActive,
		Type:     TypeWater,
		Photos:   []string{},
	}
	if l.Address != nil {
		r.Address = *l.Address
	}
	if l.Description != nil {
		r.Description = *l.Description
	}
	r.ReportedBy = AnonymousReporter
	if l.ReportedBy != nil && *l.ReportedBy != "" {
		r.ReportedBy = *l.ReportedBy
	}
	if l.CreatedAt != nil {
		r.CreatedAt = *l.CreatedAt
	}
	if l.Status != nil {
		if s, err := ParseStatus(*l.Status); err == nil {
			r.Status = s
		}
	}
	if l.Type != nil {
		if t, err := ParseReportType(*l.Type); err == nil {
			r.Type = t
		}
	}
	if r.Type.MandatesAnonymity() {
		r.ReportedBy = AnonymousReporter
	}
	if l.Photos != nil {
		r.Photos = append(r.Photos, l.Photos...)
	}
	r.PhotoState = PhotoNone
	if len(r.Photos) > 0 {
		r.PhotoState = PhotoAttached
	}
	if l.PhotoState != nil {
		if ps, err := ParsePhotoState(*l.PhotoState); err == nil {
			r.PhotoState = ps
		}
	}
	if l.PhotoAttempts != nil {
		r.PhotoAttempts = *l.PhotoAttempts
	}
	return r
}
