package store

import (
	"fmt"
	"log/slog"
)

// migrations run in order inside a single transaction. Statements must
// stay idempotent; new schema changes are appended, never edited.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		username      TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL,
		full_name     TEXT NOT NULL,
		email         TEXT NOT NULL,
		role          TEXT NOT NULL CHECK (role IN ('admin','inspector','project_manager','builder','property_developer')),
		is_active     INTEGER NOT NULL DEFAULT 1,
		created_at    TIMESTAMP NOT NULL,
		last_login    TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS sessions (
		token      TEXT PRIMARY KEY,
		username   TEXT NOT NULL REFERENCES users(username) ON DELETE CASCADE,
		created_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP NOT NULL,
		ip         TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at)`,

	`CREATE TABLE IF NOT EXISTS portfolios (
		id             TEXT PRIMARY KEY,
		name           TEXT NOT NULL,
		description    TEXT NOT NULL DEFAULT '',
		owner_username TEXT,
		created_at     TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS projects (
		id               TEXT PRIMARY KEY,
		portfolio_id     TEXT NOT NULL REFERENCES portfolios(id) ON DELETE CASCADE,
		name             TEXT NOT NULL,
		description      TEXT NOT NULL DEFAULT '',
		status           TEXT NOT NULL DEFAULT 'active',
		manager_username TEXT,
		created_at       TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_projects_portfolio ON projects(portfolio_id)`,

	`CREATE TABLE IF NOT EXISTS buildings (
		id            TEXT PRIMARY KEY,
		project_id    TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		name          TEXT NOT NULL,
		address       TEXT NOT NULL DEFAULT '',
		total_units   INTEGER NOT NULL DEFAULT 0,
		building_type TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_buildings_project ON buildings(project_id)`,

	`CREATE TABLE IF NOT EXISTS processed_inspections (
		id              TEXT PRIMARY KEY,
		building_id     TEXT,
		building_name   TEXT NOT NULL,
		address         TEXT NOT NULL DEFAULT '',
		inspection_date TEXT NOT NULL DEFAULT '',
		uploaded_by     TEXT NOT NULL,
		processed_at    TIMESTAMP NOT NULL,
		is_active       INTEGER NOT NULL DEFAULT 1,
		source_file     TEXT NOT NULL DEFAULT '',
		metrics_json    TEXT NOT NULL DEFAULT '{}'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_inspections_building ON processed_inspections(building_name, is_active)`,

	`CREATE TABLE IF NOT EXISTS inspection_items (
		id                 INTEGER PRIMARY KEY AUTOINCREMENT,
		inspection_id      TEXT NOT NULL REFERENCES processed_inspections(id) ON DELETE CASCADE,
		unit_number        TEXT NOT NULL,
		unit_type          TEXT NOT NULL DEFAULT '',
		room               TEXT NOT NULL,
		component          TEXT NOT NULL,
		trade              TEXT NOT NULL DEFAULT '',
		status_class       TEXT NOT NULL CHECK (status_class IN ('OK','Not OK','Blank')),
		urgency            TEXT NOT NULL CHECK (urgency IN ('Normal','High Priority','Urgent')),
		planned_completion TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_items_inspection ON inspection_items(inspection_id)`,

	`CREATE TABLE IF NOT EXISTS inspection_defects (
		id                 INTEGER PRIMARY KEY AUTOINCREMENT,
		inspection_id      TEXT NOT NULL REFERENCES processed_inspections(id) ON DELETE CASCADE,
		unit_number        TEXT NOT NULL,
		unit_type          TEXT NOT NULL DEFAULT '',
		room               TEXT NOT NULL,
		component          TEXT NOT NULL,
		trade              TEXT NOT NULL DEFAULT '',
		urgency            TEXT NOT NULL CHECK (urgency IN ('Normal','High Priority','Urgent')),
		planned_completion TIMESTAMP,
		status             TEXT NOT NULL DEFAULT 'open'
			CHECK (status IN ('open','assigned','in_progress','completed','approved','rejected')),
		assigned_to        TEXT NOT NULL DEFAULT '',
		created_at         TIMESTAMP NOT NULL,
		updated_at         TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_defects_inspection ON inspection_defects(inspection_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_defects_assignee ON inspection_defects(assigned_to, status)`,

	`CREATE TABLE IF NOT EXISTS defect_history (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		defect_id  INTEGER NOT NULL REFERENCES inspection_defects(id) ON DELETE CASCADE,
		old_status TEXT NOT NULL,
		new_status TEXT NOT NULL,
		changed_by TEXT NOT NULL,
		notes      TEXT NOT NULL DEFAULT '',
		changed_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS trade_mappings (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		room       TEXT NOT NULL,
		component  TEXT NOT NULL,
		trade      TEXT NOT NULL,
		created_by TEXT NOT NULL DEFAULT '',
		is_active  INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_mappings_active
		ON trade_mappings(room, component) WHERE is_active = 1`,

	`CREATE TABLE IF NOT EXISTS user_permissions (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		username         TEXT NOT NULL REFERENCES users(username) ON DELETE CASCADE,
		resource_type    TEXT NOT NULL CHECK (resource_type IN ('portfolio','project','building')),
		resource_id      TEXT NOT NULL,
		permission_level TEXT NOT NULL CHECK (permission_level IN ('read','write','admin')),
		granted_by       TEXT NOT NULL DEFAULT '',
		granted_at       TIMESTAMP NOT NULL,
		UNIQUE (username, resource_type, resource_id)
	)`,

	`CREATE TABLE IF NOT EXISTS audit_log (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		username   TEXT NOT NULL,
		action     TEXT NOT NULL,
		resource   TEXT NOT NULL DEFAULT '',
		success    INTEGER NOT NULL DEFAULT 1,
		ip_address TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		details    TEXT NOT NULL DEFAULT '',
		timestamp  TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_user_time ON audit_log(username, timestamp)`,
}

func (s *Store) migrate() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration transaction: %w", err)
	}
	defer tx.Rollback()

	for i, stmt := range migrations {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}

	s.logger.Debug("schema migrations applied", slog.Int("statements", len(migrations)))
	return nil
}
