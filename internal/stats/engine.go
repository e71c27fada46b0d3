package stats

import (
	"sort"
	"time"

	"github.com/sarmiento-reclamos/reclamos/internal/model"
)

// DefaultZoneLimit is how many zones the ranking keeps.
const DefaultZoneLimit = 10

// Engine derives dashboard and export statistics from a report set.
type Engine struct {
	Now       func() time.Time
	Location  *time.Location
	ZoneLimit int
}

// NewEngine creates an engine using wall-clock time in loc.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{
		Now:       time.Now,
		Location:  loc,
		ZoneLimit: DefaultZoneLimit,
	}
}

// TypeCount is the status breakdown of one report type.
type TypeCount struct {
	Type     model.ReportType `json:"type"`
	Label    string           `json:"label"`
	Total    int              `json:"total"`
	Active   int              `json:"active"`
	Resolved int              `json:"resolved"`
}

// ZoneCount is one entry of the zone ranking.
type ZoneCount struct {
	Name   string                   `json:"name"`
	Total  int                      `json:"total"`
	Active int                      `json:"active"`
	ByType map[model.ReportType]int `json:"by_type"`
}

// DayCount is one weekday bucket.
type DayCount struct {
	Total  int `json:"total"`
	Active int `json:"active"`
}

// Summary holds every derived metric of one aggregation.
type Summary struct {
	Total    int         `json:"total"`
	Active   int         `json:"active"`
	Resolved int         `json:"resolved"`
	ByType   []TypeCount `json:"by_type"`

	Today      int `json:"today"`
	Last7Days  int `json:"last_7_days"`
	Last30Days int `json:"last_30_days"`

	WithPhotos  int `json:"with_photos"`
	TotalPhotos int `json:"total_photos"`

	Zones []ZoneCount `json:"zones"`

	Weekdays      [7]DayCount `json:"weekdays"` // Sunday = 0
	Hours         [24]int     `json:"hours"`
	PeakHour      int         `json:"peak_hour"`
	PeakHourCount int         `json:"peak_hour_count"`

	// Undated counts records without a usable creation time. They are left
	// out of every time bucket.
	Undated int `json:"undated"`

	ComputedAt time.Time `json:"computed_at"`
}

// ForType returns the breakdown for t.
func (s Summary) ForType(t model.ReportType) TypeCount {
	for _, tc := range s.ByType {
		if tc.Type == t {
			return tc
		}
	}
	return TypeCount{Type: t, Label: t.Label()}
}

// Aggregate computes the summary of reports. It never modifies reports and
// reads the clock on every call.
func (e *Engine) Aggregate(reports []model.Report) Summary {
	loc := e.Location
	if loc == nil {
		loc = time.Local
	}
	nowFn := e.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	now := nowFn().In(loc)

	s := Summary{
		Total:      len(reports),
		ByType:     make([]TypeCount, len(model.ReportTypes)),
		ComputedAt: now,
	}
	for i, rt := range model.ReportTypes {
		s.ByType[i] = TypeCount{Type: rt, Label: rt.Label()}
	}

	ty, tm, td := now.Date()
	weekAgo := now.Add(-7 * 24 * time.Hour)
	monthAgo := now.Add(-30 * 24 * time.Hour)

	zones := newZoneTally()

	for _, r := range reports {
		// Anything not resolved counts as active, and a missing or unknown
		// type counts as water, the same way records are displayed.
		active := r.Status != model.StatusResolved
		if active {
			s.Active++
		} else {
			s.Resolved++
		}

		rt := r.Type
		if rt.Index() < 0 {
			rt = model.TypeWater
		}
		tc := &s.ByType[rt.Index()]
		tc.Total++
		if active {
			tc.Active++
		} else {
			tc.Resolved++
		}

		if len(r.Photos) > 0 {
			s.WithPhotos++
			s.TotalPhotos += len(r.Photos)
		}

		zones.add(ZoneOf(r.Address), rt, active)

		if !r.HasCreatedAt() {
			s.Undated++
			continue
		}
		created := r.CreatedAt.In(loc)
		if y, m, d := created.Date(); y == ty && m == tm && d == td {
			s.Today++
		}
		if !created.Before(weekAgo) {
			s.Last7Days++
		}
		if !created.Before(monthAgo) {
			s.Last30Days++
		}

		wd := created.Weekday()
		s.Weekdays[wd].Total++
		if active {
			s.Weekdays[wd].Active++
		}
		s.Hours[created.Hour()]++
	}

	for h, n := range s.Hours {
		if n > s.PeakHourCount {
			s.PeakHour = h
			s.PeakHourCount = n
		}
	}

	limit := e.ZoneLimit
	if limit <= 0 {
		limit = DefaultZoneLimit
	}
	s.Zones = zones.ranked(limit)

	return s
}

type zoneTally struct {
	order []string
	byKey map[string]*ZoneCount
}

func newZoneTally() *zoneTally {
	return &zoneTally{byKey: make(map[string]*ZoneCount)}
}

func (z *zoneTally) add(name string, t model.ReportType, active bool) {
	zc, ok := z.byKey[name]
	if !ok {
		zc = &ZoneCount{Name: name, ByType: make(map[model.ReportType]int)}
		z.byKey[name] = zc
		z.order = append(z.order, name)
	}
	zc.Total++
	if active {
		zc.Active++
	}
	zc.ByType[t]++
}

// ranked returns zones by total descending. Ties keep first-seen order.
func (z *zoneTally) ranked(limit int) []ZoneCount {
	out := make([]ZoneCount, 0, len(z.order))
	for _, name := range z.order {
		out = append(out, *z.byKey[name])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Total > out[j].Total
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
