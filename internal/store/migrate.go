package store

import (
	"context"
	"fmt"
)

// Migrations bring a water_reports table of any earlier release up to the
// current schema. Every statement is idempotent.
var Migrations = []struct {
	Name string
	SQL  string
}{
	{"create table", `CREATE TABLE IF NOT EXISTS water_reports (
	id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	latitude double precision NOT NULL,
	longitude double precision NOT NULL,
	address text,
	description text,
	reported_by text DEFAULT 'Anónimo',
	created_at timestamptz DEFAULT now(),
	status text DEFAULT 'active'
)`},
	{"add photos", `ALTER TABLE water_reports ADD COLUMN IF NOT EXISTS photos text[] DEFAULT '{}'`},
	{"add report_type", `ALTER TABLE water_reports ADD COLUMN IF NOT EXISTS report_type text DEFAULT 'agua'`},
	{"add photo_state", `ALTER TABLE water_reports ADD COLUMN IF NOT EXISTS photo_state text DEFAULT 'none'`},
	{"add photo_attempts", `ALTER TABLE water_reports ADD COLUMN IF NOT EXISTS photo_attempts integer DEFAULT 0`},
	{"backfill report_type", `UPDATE water_reports SET report_type = 'agua' WHERE report_type IS NULL`},
	{"backfill reported_by", `UPDATE water_reports SET reported_by = 'Anónimo' WHERE reported_by IS NULL OR reported_by = '' OR report_type = 'denuncia_anonima'`},
	{"backfill status", `UPDATE water_reports SET status = 'active' WHERE status IS NULL`},
	{"backfill photos", `UPDATE water_reports SET photos = '{}' WHERE photos IS NULL`},
	{"backfill photo_state", `UPDATE water_reports SET photo_state = CASE WHEN cardinality(photos) > 0 THEN 'attached' ELSE 'none' END WHERE photo_state IS NULL`},
	{"backfill photo_attempts", `UPDATE water_reports SET photo_attempts = 0 WHERE photo_attempts IS NULL`},
	{"index created_at", `CREATE INDEX IF NOT EXISTS water_reports_created_at_idx ON water_reports (created_at DESC)`},
	{"notify function", `CREATE OR REPLACE FUNCTION water_reports_notify() RETURNS trigger AS $$
DECLARE
	rec RECORD;
BEGIN
	IF TG_OP = 'DELETE' THEN
		rec := OLD;
	ELSE
		rec := NEW;
	END IF;
	PERFORM pg_notify('water_reports_changes', json_build_object('op', lower(TG_OP), 'id', rec.id)::text);
	RETURN rec;
END;
$$ LANGUAGE plpgsql`},
	{"drop notify trigger", `DROP TRIGGER IF EXISTS water_reports_notify ON water_reports`},
	{"notify trigger", `CREATE TRIGGER water_reports_notify AFTER INSERT OR UPDATE OR DELETE ON water_reports FOR EACH ROW EXECUTE FUNCTION water_reports_notify()`},
}

// Migrate runs Migrations in order and returns the names that ran.
func (s *PostgresStore) Migrate(ctx context.Context) ([]string, error) {
	var done []string
	for _, m := range Migrations {
		if err := s.db.WithContext(ctx).Exec(m.SQL).Error; err != nil {
			return done, fmt.Errorf("migration %q: %w", m.Name, err)
		}
		s.log.WithField("migration", m.Name).Debug("applied")
		done = append(done, m.Name)
	}
	return done, nil
}
