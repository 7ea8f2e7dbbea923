package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/roster/core/importer"
	"github.com/trezcool/roster/core/school"
)

type reportStore struct {
	db *DB
}

var _ importer.ReportStore = (*reportStore)(nil)

func NewReportStore(db *DB) *reportStore {
	return &reportStore{db: db}
}

// SaveReport stores rep and evicts the expired reports.
func (store *reportStore) SaveReport(_ context.Context, rep importer.Report) (importer.Report, error) {
	store.db.mutex.Lock()
	defer store.db.mutex.Unlock()

	for id, r := range store.db.reports {
		if !r.ExpiresAt.After(rep.CreatedAt) {
			delete(store.db.reports, id)
		}
	}
	rep.ID = uuid.New().String()
	store.db.reports[rep.ID] = rep
	return rep, nil
}

func (store *reportStore) GetReport(_ context.Context, schoolID, id string) (importer.Report, error) {
	store.db.mutex.RLock()
	defer store.db.mutex.RUnlock()

	rep, ok := store.db.reports[id]
	if !ok || rep.SchoolID != schoolID || !rep.ExpiresAt.After(school.NowFunc()) {
		return importer.Report{}, school.ErrNotFound
	}
	return rep, nil
}
