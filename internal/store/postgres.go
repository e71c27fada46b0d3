package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sarmiento-reclamos/reclamos/internal/model"
)

// Table is the relational table holding reports.
const Table = "water_reports"

// reportRow mirrors a water_reports row. Columns added after the first
// release are nullable until the migration has run.
type reportRow struct {
	ID            string         `gorm:"column:id;type:uuid;primaryKey;default:gen_random_uuid()"`
	Latitude      float64        `gorm:"column:latitude"`
	Longitude     float64        `gorm:"column:longitude"`
	Address       sql.NullString `gorm:"column:address"`
	Description   sql.NullString `gorm:"column:description"`
	ReportedBy    sql.NullString `gorm:"column:reported_by"`
	Created       sql.NullTime   `gorm:"column:created_at;default:now()"`
	Status        sql.NullString `gorm:"column:status"`
	ReportType    sql.NullString `gorm:"column:report_type"`
	Photos        pq.StringArray `gorm:"column:photos;type:text[]"`
	PhotoState    sql.NullString `gorm:"column:photo_state"`
	PhotoAttempts sql.NullInt64  `gorm:"column:photo_attempts"`
}

func (reportRow) TableName() string {
	return Table
}

func rowOf(r model.Report) reportRow {
	photos := r.Photos
	if photos == nil {
		photos = []string{}
	}
	return reportRow{
		Latitude:      r.Position.Lat,
		Longitude:     r.Position.Lng,
		Address:       sql.NullString{String: r.Address, Valid: true},
		Description:   sql.NullString{String: r.Description, Valid: true},
		ReportedBy:    sql.NullString{String: r.ReportedBy, Valid: true},
		Status:        sql.NullString{String: string(r.Status), Valid: true},
		ReportType:    sql.NullString{String: string(r.Type), Valid: true},
		Photos:        pq.StringArray(photos),
		PhotoState:    sql.NullString{String: string(r.PhotoState), Valid: true},
		PhotoAttempts: sql.NullInt64{Int64: int64(r.PhotoAttempts), Valid: true},
	}
}

func (row reportRow) legacy() model.Legacy {
	l := model.Legacy{
		ID:          row.ID,
		Lat:         row.Latitude,
		Lng:         row.Longitude,
		Address:     nullString(row.Address),
		Description: nullString(row.Description),
		ReportedBy:  nullString(row.ReportedBy),
		Status:      nullString(row.Status),
		Type:        nullString(row.ReportType),
		PhotoState:  nullString(row.PhotoState),
	}
	if row.Photos != nil {
		l.Photos = []string(row.Photos)
	}
	if row.Created.Valid {
		t := row.Created.Time
		l.CreatedAt = &t
	}
	if row.PhotoAttempts.Valid {
		n := int(row.PhotoAttempts.Int64)
		l.PhotoAttempts = &n
	}
	return l
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// PostgresStore keeps reports in the water_reports table.
type PostgresStore struct {
	db  *gorm.DB
	dsn string
	log log.Interface

	// listen opens the change notification stream. Replaced in tests.
	listen func(ctx context.Context) (<-chan Change, error)
}

// OpenPostgres connects to the database at dsn through lib/pq.
func OpenPostgres(dsn string, logger log.Interface) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DriverName: "postgres",
		DSN:        dsn,
	}), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	s := NewPostgresStore(db, logger)
	s.dsn = dsn
	s.listen = s.listenPQ
	return s, nil
}

// NewPostgresStore wraps an open gorm handle. Subscribe is unavailable until a
// DSN is known, see OpenPostgres.
func NewPostgresStore(db *gorm.DB, l log.Interface) *PostgresStore {
	if l == nil {
		l = log.Log
	}
	return &PostgresStore{db: db, log: l}
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
		NowFunc:                func() time.Time { return time.Now().UTC() },
	}
}

func (s *PostgresStore) Create(ctx context.Context, r model.Report) (model.Report, error) {
	row := rowOf(r)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return model.Report{}, fmt.Errorf("inserting report: %w", err)
	}
	return s.decode(row), nil
}

func (s *PostgresStore) List(ctx context.Context, f model.Filter) ([]model.Report, error) {
	q := s.db.WithContext(ctx).Model(&reportRow{})
	if f.Status != "" {
		q = q.Where("COALESCE(status, 'active') = ?", string(f.Status))
	}
	if f.Type != "" {
		q = q.Where("COALESCE(report_type, 'agua') = ?", string(f.Type))
	}
	if f.PhotoState != "" {
		q = q.Where("photo_state = ?", string(f.PhotoState))
	}

	var rows []reportRow
	if err := q.Order("created_at DESC NULLS LAST").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}

	out := make([]model.Report, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.decode(row))
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (model.Report, error) {
	var row reportRow
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Report{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return model.Report{}, fmt.Errorf("fetching report %s: %w", id, err)
	}
	return s.decode(row), nil
}

func (s *PostgresStore) Update(ctx context.Context, id string, p model.Patch) error {
	values := map[string]any{}
	if p.Status != nil {
		values["status"] = string(*p.Status)
	}
	if p.Photos != nil {
		values["photos"] = pq.StringArray(p.Photos)
	}
	if p.PhotoState != nil {
		values["photo_state"] = string(*p.PhotoState)
	}
	if p.PhotoAttempts != nil {
		values["photo_attempts"] = *p.PhotoAttempts
	}
	if len(values) == 0 {
		_, err := s.Get(ctx, id)
		return err
	}

	res := s.db.WithContext(ctx).Model(&reportRow{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return fmt.Errorf("updating report %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&reportRow{})
	if res.Error != nil {
		return fmt.Errorf("deleting report %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *PostgresStore) Subscribe(ctx context.Context) (<-chan Change, error) {
	if s.listen == nil {
		return nil, errors.New("change notifications need a database DSN")
	}
	return s.listen(ctx)
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// decode converts a row, backfilling rows that predate the migration.
func (s *PostgresStore) decode(row reportRow) model.Report {
	l := row.legacy()
	if l.NeedsBackfill() {
		s.log.WithField("id", row.ID).Warn("legacy row without defaults; run reclamos migrate")
	}
	return model.Backfill(l)
}
