package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// One row per labeled trajectory
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL CHECK(status IN ('confident', 'ambiguous', 'unclear')),
			method TEXT NOT NULL DEFAULT '',
			frame_count INTEGER NOT NULL,
			duration REAL NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Resolved physics events, in start order
		`CREATE TABLE IF NOT EXISTS run_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			sequence INTEGER NOT NULL,
			action TEXT NOT NULL,
			object TEXT,
			start_time REAL NOT NULL,
			end_time REAL NOT NULL CHECK(end_time >= start_time),
			confidence REAL NOT NULL,
			extra TEXT NOT NULL DEFAULT '{}'
		)`,

		// Reconciled action; absent when vision was required but unavailable
		`CREATE TABLE IF NOT EXISTS run_results (
			run_id TEXT PRIMARY KEY REFERENCES runs(id) ON DELETE CASCADE,
			action TEXT NOT NULL,
			object TEXT,
			start_time REAL NOT NULL,
			end_time REAL NOT NULL,
			confidence REAL NOT NULL,
			extra TEXT NOT NULL DEFAULT '{}',
			method TEXT NOT NULL,
			status TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT ''
		)`,

		// Raw trajectory records, kept for relabeling
		`CREATE TABLE IF NOT EXISTS run_trajectories (
			run_id TEXT PRIMARY KEY REFERENCES runs(id) ON DELETE CASCADE,
			data TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_run_events_run_id ON run_events(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
