package model

import "fmt"

// Status is the lifecycle state of a report.
type Status string

const (
	StatusActive   Status = "active"
	StatusResolved Status = "resolved"
)

// Label returns the Spanish display label used in listings and exports.
func (s Status) Label() string {
	if s == StatusResolved {
		return "Resuelto"
	}
	return "Activo"
}

// ParseStatus validates a stored or user-supplied status value.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusActive, StatusResolved:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// ReportType is the closed set of issue categories. The string value is the
// code stored in the report_type column.
type ReportType string

const (
	TypeWater     ReportType = "agua"
	TypePower     ReportType = "luz"
	TypeRoads     ReportType = "calles"
	TypeWaste     ReportType = "residuos"
	TypeAnonymous ReportType = "denuncia_anonima"
)

// ReportTypes lists every type in declaration order. Aggregations and
// exports iterate this slice so their output order never depends on counts.
var ReportTypes = []ReportType{TypeWater, TypePower, TypeRoads, TypeWaste, TypeAnonymous}

var typeLabels = map[ReportType]string{
	TypeWater:     "Agua",
	TypePower:     "Luz",
	TypeRoads:     "Calles",
	TypeWaste:     "Residuos",
	TypeAnonymous: "Denuncia anónima",
}

// Label returns the Spanish display label for t.
func (t ReportType) Label() string {
	if l, ok := typeLabels[t]; ok {
		return l
	}
	return string(t)
}

// Index returns the declaration position of t, or -1 for unknown values.
func (t ReportType) Index() int {
	for i, rt := range ReportTypes {
		if rt == t {
			return i
		}
	}
	return -1
}

// MandatesAnonymity reports whether reports of this type never carry a
// submitter name.
func (t ReportType) MandatesAnonymity() bool {
	return t == TypeAnonymous
}

// ParseReportType accepts a stored code ("agua") or an English alias
// ("water", "anonymous-complaint").
func ParseReportType(s string) (ReportType, error) {
	switch s {
	case "water":
		return TypeWater, nil
	case "power":
		return TypePower, nil
	case "roads":
		return TypeRoads, nil
	case "waste":
		return TypeWaste, nil
	case "anonymous-complaint", "anonymous":
		return TypeAnonymous, nil
	}
	if ReportType(s).Index() >= 0 {
		return ReportType(s), nil
	}
	return "", fmt.Errorf("unknown report type %q", s)
}

// PhotoState tracks the deferred photo-attach step of a report.
type PhotoState string

const (
	PhotoNone      PhotoState = "none"      // submitted without photos
	PhotoPending   PhotoState = "pending"   // base record saved, photos not attached yet
	PhotoAttached  PhotoState = "attached"  // photos uploaded and patched onto the record
	PhotoAbandoned PhotoState = "abandoned" // reconciliation gave up
)

// ParsePhotoState validates a stored photo state.
func ParsePhotoState(s string) (PhotoState, error) {
	switch PhotoState(s) {
	case PhotoNone, PhotoPending, PhotoAttached, PhotoAbandoned:
		return PhotoState(s), nil
	}
	return "", fmt.Errorf("unknown photo state %q", s)
}
