package store

import (
	"database/sql"
	"encoding/json"
	"errors"
)

// TrajectoryRepository reads the raw trajectory record stored with each run
// so it can be labeled again with different tuning. Records are written by
// RunRepository.Create.
type TrajectoryRepository struct {
	db *sql.DB
}

// Trajectories returns the trajectory repository for this store.
func (s *Store) Trajectories() *TrajectoryRepository {
	return &TrajectoryRepository{db: s.db}
}

// Get returns the stored record of runID.
func (r *TrajectoryRepository) Get(runID string) (json.RawMessage, error) {
	var data string
	err := r.db.QueryRow(`SELECT data FROM run_trajectories WHERE run_id = ?`, runID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return json.RawMessage(data), nil
}
