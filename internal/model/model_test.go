package model

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestPosition_Validate(t *testing.T) {
	tests := []struct {
		name    string
		p       Position
		wantErr bool
	}{
		{"sarmiento", Position{-31.9742, -68.4231}, false},
		{"poles and antimeridian", Position{90, -180}, false},
		{"lat too high", Position{90.5, 0}, true},
		{"lng too low", Position{0, -180.1}, true},
		{"nan", Position{math.NaN(), 0}, true},
		{"inf", Position{0, math.Inf(1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidPosition) {
				t.Errorf("expected ErrInvalidPosition, got %v", err)
			}
		})
	}
}

func TestPosition_CellToken(t *testing.T) {
	a := Position{-31.974200, -68.423100}
	b := Position{-31.974201, -68.423101}
	far := Position{-31.5375, -68.5364}

	if a.CellToken(20) != b.CellToken(20) {
		t.Error("positions a few centimetres apart should share a level-20 cell")
	}
	if a.CellToken(20) == far.CellToken(20) {
		t.Error("distant positions should not share a cell")
	}
	if a.CellToken(20) == "" {
		t.Error("expected a non-empty token")
	}
}

func TestParseReportType(t *testing.T) {
	tests := []struct {
		in      string
		want    ReportType
		wantErr bool
	}{
		{"agua", TypeWater, false},
		{"water", TypeWater, false},
		{"luz", TypePower, false},
		{"roads", TypeRoads, false},
		{"residuos", TypeWaste, false},
		{"anonymous-complaint", TypeAnonymous, false},
		{"denuncia_anonima", TypeAnonymous, false},
		{"gas", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseReportType(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseReportType(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReportTypes_OrderAndLabels(t *testing.T) {
	want := []string{"Agua", "Luz", "Calles", "Residuos", "Denuncia anónima"}
	if len(ReportTypes) != len(want) {
		t.Fatalf("got %d types, want %d", len(ReportTypes), len(want))
	}
	for i, rt := range ReportTypes {
		if rt.Label() != want[i] {
			t.Errorf("type %d label = %q, want %q", i, rt.Label(), want[i])
		}
		if rt.Index() != i {
			t.Errorf("%s.Index() = %d, want %d", rt, rt.Index(), i)
		}
	}
}

func TestStatus_Label(t *testing.T) {
	if StatusActive.Label() != "Activo" {
		t.Errorf("active label = %q", StatusActive.Label())
	}
	if StatusResolved.Label() != "Resuelto" {
		t.Errorf("resolved label = %q", StatusResolved.Label())
	}
	if _, err := ParseStatus("closed"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestDraft_Normalize(t *testing.T) {
	tests := []struct {
		name string
		d    Draft
		want string
	}{
		{"named", Draft{ReportedBy: " Ana ", Type: TypeWater}, "Ana"},
		{"empty name", Draft{ReportedBy: "  ", Type: TypeRoads}, AnonymousReporter},
		{"anonymous type forces sentinel", Draft{ReportedBy: "Ana", Type: TypeAnonymous}, AnonymousReporter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.d.Normalize().ReportedBy; got != tt.want {
				t.Errorf("ReportedBy = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDraft_Validate(t *testing.T) {
	valid := Draft{Position: Position{-31.97, -68.42}, Address: "Calle 1", Type: TypeWater}

	tests := []struct {
		name      string
		mutate    func(*Draft)
		photos    int
		wantField string
	}{
		{"valid", func(*Draft) {}, 5, ""},
		{"bad position", func(d *Draft) { d.Position.Lat = 100 }, 0, "position"},
		{"blank address", func(d *Draft) { d.Address = "   " }, 0, "address"},
		{"unknown type", func(d *Draft) { d.Type = "gas" }, 0, "report_type"},
		{"too many photos", func(*Draft) {}, 6, "photos"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid
			tt.mutate(&d)
			err := d.Validate(tt.photos)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if ve.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", ve.Field, tt.wantField)
			}
		})
	}
}

func TestDraft_Report(t *testing.T) {
	d := Draft{Position: Position{-31.97, -68.42}, Address: " Calle 1 ", Type: TypePower}

	r := d.Report(true)
	if r.Status != StatusActive {
		t.Errorf("Status = %q, want active", r.Status)
	}
	if r.PhotoState != PhotoPending {
		t.Errorf("PhotoState = %q, want pending", r.PhotoState)
	}
	if r.Photos == nil || len(r.Photos) != 0 {
		t.Errorf("Photos = %v, want empty non-nil", r.Photos)
	}
	if r.Address != "Calle 1" {
		t.Errorf("Address = %q", r.Address)
	}
	if d.Report(false).PhotoState != PhotoNone {
		t.Error("expected photo state none without photos")
	}
}

func TestPatch_Apply(t *testing.T) {
	r := Report{Status: StatusActive, Photos: []string{}, PhotoState: PhotoPending}
	attached := PhotoAttached
	attempts := 2
	p := Patch{Photos: []string{"u1", "u2"}, PhotoState: &attached, PhotoAttempts: &attempts}

	got := p.Apply(r)
	if len(got.Photos) != 2 || got.PhotoState != PhotoAttached || got.PhotoAttempts != 2 {
		t.Errorf("unexpected result: %+v", got)
	}
	if got.Status != StatusActive {
		t.Error("status should be unchanged")
	}
	if !(Patch{}).IsEmpty() {
		t.Error("zero patch should be empty")
	}
	if SetStatus(StatusResolved).Apply(r).Status != StatusResolved {
		t.Error("SetStatus patch not applied")
	}
}

func TestFilter_Match(t *testing.T) {
	r := Report{Status: StatusResolved, Type: TypeWaste, PhotoState: PhotoNone}

	tests := []struct {
		name string
		f    Filter
		want bool
	}{
		{"empty", Filter{}, true},
		{"status match", Filter{Status: StatusResolved}, true},
		{"status mismatch", Filter{Status: StatusActive}, false},
		{"type mismatch", Filter{Type: TypeWater}, false},
		{"all match", Filter{Status: StatusResolved, Type: TypeWaste, PhotoState: PhotoNone}, true},
		{"photo state mismatch", Filter{PhotoState: PhotoPending}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.f.Match(r); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBackfill(t *testing.T) {
	str := func(s string) *string { return &s }
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("pre-migration row", func(t *testing.T) {
		r := Backfill(Legacy{ID: "a", Lat: 1, Lng: 2})
		if r.Type != TypeWater {
			t.Errorf("Type = %q, want agua", r.Type)
		}
		if r.ReportedBy != AnonymousReporter {
			t.Errorf("ReportedBy = %q", r.ReportedBy)
		}
		if r.Status != StatusActive {
			t.Errorf("Status = %q", r.Status)
		}
		if r.PhotoState != PhotoNone || r.Photos == nil {
			t.Errorf("photos = %v state = %q", r.Photos, r.PhotoState)
		}
		if r.HasCreatedAt() {
			t.Error("missing created_at should stay zero")
		}
	})

	t.Run("full row", func(t *testing.T) {
		r := Backfill(Legacy{
			ID: "b", ReportedBy: str("Luis"), CreatedAt: &created,
			Status: str("resolved"), Type: str("calles"), Photos: []string{"u"},
		})
		if r.Type != TypeRoads || r.Status != StatusResolved || r.ReportedBy != "Luis" {
			t.Errorf("unexpected report: %+v", r)
		}
		if r.PhotoState != PhotoAttached {
			t.Errorf("PhotoState = %q, want attached", r.PhotoState)
		}
		if !r.CreatedAt.Equal(created) {
			t.Errorf("CreatedAt = %v", r.CreatedAt)
		}
	})

	t.Run("anonymous type drops stored name", func(t *testing.T) {
		r := Backfill(Legacy{ReportedBy: str("Luis"), Type: str("denuncia_anonima")})
		if r.ReportedBy != AnonymousReporter {
			t.Errorf("ReportedBy = %q", r.ReportedBy)
		}
	})

	t.Run("needs backfill", func(t *testing.T) {
		if !(Legacy{}).NeedsBackfill() {
			t.Error("empty legacy row should need backfill")
		}
	})
}
