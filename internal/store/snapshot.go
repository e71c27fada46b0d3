package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sarmiento-reclamos/reclamos/internal/model"
)

// snapshotFile is the on-disk layout of a snapshot.
type snapshotFile struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Reports     []snapshotRecord `json:"reports"`
}

// snapshotRecord accepts records written before photo state and report type
// existed. Missing fields are filled by model.Backfill.
type snapshotRecord struct {
	ID            string          `json:"id"`
	Position      *model.Position `json:"position,omitempty"`
	Latitude      float64         `json:"latitude,omitempty"`
	Longitude     float64         `json:"longitude,omitempty"`
	Address       *string         `json:"address,omitempty"`
	Description   *string         `json:"description,omitempty"`
	ReportedBy    *string         `json:"reported_by,omitempty"`
	CreatedAt     *time.Time      `json:"created_at,omitempty"`
	Status        *string         `json:"status,omitempty"`
	Type          *string         `json:"report_type,omitempty"`
	Photos        []string        `json:"photos"`
	PhotoState    *string         `json:"photo_state,omitempty"`
	PhotoAttempts *int            `json:"photo_attempts,omitempty"`
}

func (rec snapshotRecord) legacy() model.Legacy {
	l := model.Legacy{
		ID:            rec.ID,
		Lat:           rec.Latitude,
		Lng:           rec.Longitude,
		Address:       rec.Address,
		Description:   rec.Description,
		ReportedBy:    rec.ReportedBy,
		CreatedAt:     rec.CreatedAt,
		Status:        rec.Status,
		Type:          rec.Type,
		Photos:        rec.Photos,
		PhotoState:    rec.PhotoState,
		PhotoAttempts: rec.PhotoAttempts,
	}
	if rec.Position != nil {
		l.Lat, l.Lng = rec.Position.Lat, rec.Position.Lng
	}
	if l.CreatedAt != nil && l.CreatedAt.IsZero() {
		l.CreatedAt = nil
	}
	return l
}

func recordOf(r model.Report) snapshotRecord {
	pos := r.Position
	status, typ, state := string(r.Status), string(r.Type), string(r.PhotoState)
	rec := snapshotRecord{
		ID:            r.ID,
		Position:      &pos,
		Address:       &r.Address,
		Description:   &r.Description,
		ReportedBy:    &r.ReportedBy,
		Status:        &status,
		Type:          &typ,
		Photos:        r.Photos,
		PhotoState:    &state,
		PhotoAttempts: &r.PhotoAttempts,
	}
	if r.HasCreatedAt() {
		created := r.CreatedAt
		rec.CreatedAt = &created
	}
	if rec.Photos == nil {
		rec.Photos = []string{}
	}
	return rec
}

// LoadSnapshot reads reports from a snapshot file, newest first. Legacy
// records are backfilled.
func LoadSnapshot(path string) ([]model.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot file: %w", err)
	}

	var file snapshotFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing snapshot file: %w", err)
	}

	reports := make([]model.Report, 0, len(file.Reports))
	for _, rec := range file.Reports {
		reports = append(reports, model.Backfill(rec.legacy()))
	}
	return reports, nil
}

// SaveSnapshot writes reports to path atomically.
func SaveSnapshot(path string, reports []model.Report, at time.Time) error {
	file := snapshotFile{GeneratedAt: at, Reports: make([]snapshotRecord, 0, len(reports))}
	for _, r := range reports {
		file.Reports = append(file.Reports, recordOf(r))
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// OpenSnapshot returns a MemoryStore backed by the snapshot at path. A
// missing file starts an empty store that is created on the first write.
func OpenSnapshot(path string) (*MemoryStore, error) {
	var reports []model.Report
	if _, err := os.Stat(path); err == nil {
		reports, err = LoadSnapshot(path)
		if err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("snapshot file: %w", err)
	}

	s := NewMemoryStoreFrom(reports)
	s.path = path
	return s, nil
}

// persistLocked writes the store to its snapshot file, if any. The caller
// holds s.mu.
func (s *MemoryStore) persistLocked() error {
	if s.path == "" {
		return nil
	}
	out := make([]model.Report, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, s.reports[s.order[i]])
	}
	sortNewestFirst(out)
	return SaveSnapshot(s.path, out, s.now())
}
