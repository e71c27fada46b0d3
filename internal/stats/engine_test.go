package stats

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/sarmiento-reclamos/reclamos/internal/model"
)

var sanJuan = time.FixedZone("ART", -3*60*60)

func fixedEngine(now time.Time) *Engine {
	return &Engine{
		Now:       func() time.Time { return now },
		Location:  sanJuan,
		ZoneLimit: DefaultZoneLimit,
	}
}

func makeReport(id string, rt model.ReportType, st model.Status, created time.Time, address string) model.Report {
	return model.Report{
		ID:         id,
		Type:       rt,
		Status:     st,
		CreatedAt:  created,
		Address:    address,
		Photos:     []string{},
		ReportedBy: model.AnonymousReporter,
	}
}

func TestEngine_Empty(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, sanJuan)
	s := fixedEngine(now).Aggregate(nil)

	if s.Total != 0 || s.Active != 0 || s.Resolved != 0 || s.Today != 0 {
		t.Errorf("expected zero counts, got %+v", s)
	}
	if len(s.ByType) != len(model.ReportTypes) {
		t.Errorf("expected %d type rows, got %d", len(model.ReportTypes), len(s.ByType))
	}
	if len(s.Zones) != 0 {
		t.Errorf("expected no zones, got %d", len(s.Zones))
	}
	if s.PeakHour != 0 || s.PeakHourCount != 0 {
		t.Errorf("peak = %d/%d, want 0/0", s.PeakHour, s.PeakHourCount)
	}
}

func TestEngine_Scenario(t *testing.T) {
	now := time.Date(2024, 5, 10, 18, 0, 0, 0, sanJuan)
	day := func(back int, hour int) time.Time {
		return time.Date(2024, 5, 10-back, hour, 0, 0, 0, sanJuan)
	}

	var reports []model.Report
	for i := 0; i < 6; i++ {
		reports = append(reports, makeReport(fmt.Sprintf("w%d", i), model.TypeWater, model.StatusActive, day(0, 9), "100 San Martín, Sarmiento"))
	}
	reports = append(reports,
		makeReport("p0", model.TypePower, model.StatusResolved, day(1, 9), "Rivadavia 50"),
		makeReport("p1", model.TypePower, model.StatusResolved, day(1, 14), "Rivadavia 50"),
		makeReport("r0", model.TypeRoads, model.StatusActive, day(2, 14), "Laprida, Media Agua"),
		makeReport("r1", model.TypeRoads, model.StatusActive, day(2, 20), ""),
	)

	s := fixedEngine(now).Aggregate(reports)

	if s.Total != 10 || s.Active != 8 || s.Resolved != 2 {
		t.Errorf("status counts = %d/%d/%d, want 10/8/2", s.Total, s.Active, s.Resolved)
	}
	if s.Today != 6 {
		t.Errorf("Today = %d, want 6", s.Today)
	}
	if s.Last7Days != 10 || s.Last30Days != 10 {
		t.Errorf("windows = %d/%d, want 10/10", s.Last7Days, s.Last30Days)
	}

	unknown := -1
	for _, z := range s.Zones {
		if z.Name == UnknownZone {
			unknown = z.Total
		}
	}
	if unknown != 1 {
		t.Errorf("unknown zone count = %d, want 1", unknown)
	}

	sum, nonzero := 0, 0
	for _, d := range s.Weekdays {
		sum += d.Total
		if d.Total > 0 {
			nonzero++
		}
	}
	if sum != 10 || nonzero > 3 {
		t.Errorf("weekday histogram sum=%d nonzero=%d", sum, nonzero)
	}

	water := s.ForType(model.TypeWater)
	if water.Total != 6 || water.Active != 6 {
		t.Errorf("water = %+v", water)
	}
	power := s.ForType(model.TypePower)
	if power.Resolved != 2 || power.Active != 0 {
		t.Errorf("power = %+v", power)
	}
	if s.PeakHour != 9 || s.PeakHourCount != 7 {
		t.Errorf("peak = %d (%d), want 9 (7)", s.PeakHour, s.PeakHourCount)
	}
}

func TestEngine_StatusPartition(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, sanJuan)
	var reports []model.Report
	for i := 0; i < 25; i++ {
		st := model.StatusActive
		if i%3 == 0 {
			st = model.StatusResolved
		}
		rt := model.ReportTypes[i%len(model.ReportTypes)]
		reports = append(reports, makeReport(fmt.Sprint(i), rt, st, now.Add(-time.Duration(i)*time.Hour), fmt.Sprintf("Calle %d", i%4)))
	}

	s := fixedEngine(now).Aggregate(reports)
	if s.Active+s.Resolved != s.Total {
		t.Errorf("active+resolved = %d, total = %d", s.Active+s.Resolved, s.Total)
	}
	typeSum := 0
	for i, tc := range s.ByType {
		if tc.Type != model.ReportTypes[i] {
			t.Errorf("row %d type = %s, want %s", i, tc.Type, model.ReportTypes[i])
		}
		if tc.Active+tc.Resolved != tc.Total {
			t.Errorf("%s: active+resolved != total", tc.Type)
		}
		typeSum += tc.Total
	}
	if typeSum != s.Total {
		t.Errorf("type totals sum to %d, want %d", typeSum, s.Total)
	}
	hourSum := 0
	for _, n := range s.Hours {
		hourSum += n
	}
	if hourSum != s.Total-s.Undated {
		t.Errorf("hour histogram sums to %d, want %d", hourSum, s.Total-s.Undated)
	}
}

func TestEngine_DoesNotMutateInput(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, sanJuan)
	reports := []model.Report{
		makeReport("b", model.TypeWaste, model.StatusActive, now, "Calle B"),
		makeReport("a", model.TypeWater, model.StatusResolved, now.Add(-time.Hour), "Calle A"),
	}
	reports[0].Photos = []string{"x"}
	before := make([]model.Report, len(reports))
	for i, r := range reports {
		before[i] = r
		before[i].Photos = make([]string, len(r.Photos))
		copy(before[i].Photos, r.Photos)
	}

	e := fixedEngine(now)
	first := e.Aggregate(reports)
	second := e.Aggregate(reports)

	if !reflect.DeepEqual(reports, before) {
		t.Error("input was mutated")
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("two runs over the same input differ")
	}
}

func TestEngine_UndatedExcludedFromTimeBuckets(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, sanJuan)
	reports := []model.Report{
		makeReport("a", model.TypeWater, model.StatusActive, time.Time{}, "Calle A"),
		makeReport("b", model.TypeWater, model.StatusActive, now, "Calle A"),
	}
	reports[0].Photos = []string{"p1", "p2"}

	s := fixedEngine(now).Aggregate(reports)
	if s.Undated != 1 {
		t.Errorf("Undated = %d, want 1", s.Undated)
	}
	if s.Today != 1 || s.Last7Days != 1 || s.Last30Days != 1 {
		t.Errorf("time buckets = %d/%d/%d, want 1/1/1", s.Today, s.Last7Days, s.Last30Days)
	}
	if s.Total != 2 || s.ForType(model.TypeWater).Total != 2 {
		t.Error("undated record should still count toward totals")
	}
	if s.WithPhotos != 1 || s.TotalPhotos != 2 {
		t.Errorf("photos = %d/%d, want 1/2", s.WithPhotos, s.TotalPhotos)
	}
	if s.Zones[0].Total != 2 {
		t.Errorf("zone total = %d, want 2", s.Zones[0].Total)
	}
}

func TestEngine_WindowBoundaries(t *testing.T) {
	now := time.Date(2024, 5, 10, 0, 30, 0, 0, sanJuan)
	reports := []model.Report{
		makeReport("edge7", model.TypeWater, model.StatusActive, now.Add(-7*24*time.Hour), "A"),
		makeReport("past7", model.TypeWater, model.StatusActive, now.Add(-7*24*time.Hour-time.Second), "A"),
		makeReport("edge30", model.TypeWater, model.StatusActive, now.Add(-30*24*time.Hour), "A"),
		makeReport("yesterday", model.TypeWater, model.StatusActive, now.Add(-time.Hour), "A"),
	}

	s := fixedEngine(now).Aggregate(reports)
	if s.Last7Days != 2 {
		t.Errorf("Last7Days = %d, want 2", s.Last7Days)
	}
	if s.Last30Days != 4 {
		t.Errorf("Last30Days = %d, want 4", s.Last30Days)
	}
	if s.Today != 0 {
		t.Errorf("Today = %d, want 0 (an hour ago was yesterday)", s.Today)
	}
}

func TestEngine_RecomputesNow(t *testing.T) {
	created := time.Date(2024, 5, 10, 9, 0, 0, 0, sanJuan)
	now := created.Add(time.Hour)
	e := &Engine{Now: func() time.Time { return now }, Location: sanJuan}
	reports := []model.Report{makeReport("a", model.TypeWater, model.StatusActive, created, "A")}

	if got := e.Aggregate(reports).Today; got != 1 {
		t.Fatalf("Today = %d, want 1", got)
	}
	now = created.Add(48 * time.Hour)
	if got := e.Aggregate(reports).Today; got != 0 {
		t.Errorf("Today after two days = %d, want 0", got)
	}
}

func TestEngine_ZoneRanking(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, sanJuan)
	var reports []model.Report
	add := func(zone string, n int) {
		for i := 0; i < n; i++ {
			reports = append(reports, makeReport(zone+fmt.Sprint(i), model.TypeWater, model.StatusActive, now, zone))
		}
	}
	add("Beta", 2)
	add("Alfa", 2)
	add("Gamma", 3)
	for i := 0; i < 10; i++ {
		add(fmt.Sprintf("Z%02d", i), 1)
	}

	s := fixedEngine(now).Aggregate(reports)
	if len(s.Zones) != 10 {
		t.Fatalf("expected 10 zones, got %d", len(s.Zones))
	}
	want := []string{"Gamma", "Beta", "Alfa", "Z00", "Z01"}
	for i, name := range want {
		if s.Zones[i].Name != name {
			t.Errorf("zone %d = %q, want %q", i, s.Zones[i].Name, name)
		}
	}
	if s.Zones[0].ByType[model.TypeWater] != 3 {
		t.Errorf("Gamma water count = %d", s.Zones[0].ByType[model.TypeWater])
	}
}

func TestEngine_PeakHourTieBreak(t *testing.T) {
	now := time.Date(2024, 5, 10, 23, 0, 0, 0, sanJuan)
	at := func(h int) time.Time { return time.Date(2024, 5, 10, h, 5, 0, 0, sanJuan) }
	reports := []model.Report{
		makeReport("a", model.TypeWater, model.StatusActive, at(15), "A"),
		makeReport("b", model.TypeWater, model.StatusActive, at(8), "A"),
		makeReport("c", model.TypeWater, model.StatusActive, at(15), "A"),
		makeReport("d", model.TypeWater, model.StatusActive, at(8), "A"),
	}

	s := fixedEngine(now).Aggregate(reports)
	if s.PeakHour != 8 || s.PeakHourCount != 2 {
		t.Errorf("peak = %d (%d), want 8 (2)", s.PeakHour, s.PeakHourCount)
	}
}

func TestEngine_LocalHours(t *testing.T) {
	// 02:00 UTC is 23:00 of the previous day in San Juan.
	created := time.Date(2024, 5, 12, 2, 0, 0, 0, time.UTC)
	now := time.Date(2024, 5, 12, 12, 0, 0, 0, sanJuan)
	s := fixedEngine(now).Aggregate([]model.Report{makeReport("a", model.TypeWater, model.StatusActive, created, "A")})

	if s.Hours[23] != 1 {
		t.Errorf("expected hour 23 bucket, got %v", s.Hours)
	}
	if s.Weekdays[time.Saturday].Total != 1 {
		t.Errorf("expected Saturday bucket, got %v", s.Weekdays)
	}
	if s.Today != 0 {
		t.Errorf("Today = %d, want 0", s.Today)
	}
}

func TestEngine_MalformedRecordsStayPartitioned(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, sanJuan)
	reports := []model.Report{
		{Status: model.StatusActive},
		{Status: model.StatusActive, Type: model.TypePower},
		{Type: "bogus"},
		{Status: model.StatusResolved},
		{},
	}
	s := fixedEngine(now).Aggregate(reports)

	if s.Total != 5 {
		t.Fatalf("total = %d", s.Total)
	}
	if s.Active != 4 || s.Resolved != 1 {
		t.Errorf("active = %d, resolved = %d, want 4 and 1", s.Active, s.Resolved)
	}
	sum := 0
	for _, tc := range s.ByType {
		sum += tc.Total
		if tc.Active+tc.Resolved != tc.Total {
			t.Errorf("%s: %d active + %d resolved != %d", tc.Type, tc.Active, tc.Resolved, tc.Total)
		}
	}
	if sum != s.Total {
		t.Errorf("per-type totals sum to %d, want %d", sum, s.Total)
	}
	water := s.ForType(model.TypeWater)
	if water.Total != 4 || water.Resolved != 1 {
		t.Errorf("water = %+v, want untyped records counted as water", water)
	}
	if s.Undated != 5 {
		t.Errorf("undated = %d", s.Undated)
	}
}
