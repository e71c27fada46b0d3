package model

import (
	"fmt"
	"strings"
)

// ValidationError rejects a submission before any store call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Draft is the user input of a new report, before it is stored.
type Draft struct {
	Position    Position
	Address     string
	Description string
	ReportedBy  string
	Type        ReportType
}

// Normalize trims free text and applies the reporter rules: an empty name or
// an anonymous-complaint type stores the anonymous sentinel.
func (d Draft) Normalize() Draft {
	d.Address = strings.TrimSpace(d.Address)
	d.Description = strings.TrimSpace(d.Description)
	d.ReportedBy = strings.TrimSpace(d.ReportedBy)
	if d.ReportedBy == "" || d.Type.MandatesAnonymity() {
		d.ReportedBy = AnonymousReporter
	}
	return d
}

// Validate checks the draft and the number of attached photos.
func (d Draft) Validate(photos int) error {
	if err := d.Position.Validate(); err != nil {
		return &ValidationError{Field: "position", Reason: err.Error()}
	}
	if strings.TrimSpace(d.Address) == "" {
		return &ValidationError{Field: "address", Reason: "must not be empty"}
	}
	if d.Type.Index() < 0 {
		return &ValidationError{Field: "report_type", Reason: fmt.Sprintf("unknown type %q", d.Type)}
	}
	if photos > MaxPhotos {
		return &ValidationError{Field: "photos", Reason: fmt.Sprintf("at most %d photos, got %d", MaxPhotos, photos)}
	}
	return nil
}

// Report builds the base record stored in the first phase of a submission.
// Photos are always empty here; pending marks that some are still to attach.
func (d Draft) Report(pending bool) Report {
	d = d.Normalize()
	state := PhotoNone
	if pending {
		state = PhotoPending
	}
	return Report{
		Position:    d.Position,
		Address:     d.Address,
		Description: d.Description,
		ReportedBy:  d.ReportedBy,
		Status:      StatusActive,
		Type:        d.Type,
		Photos:      []string{},
		PhotoState:  state,
	}
}
