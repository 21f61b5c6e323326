package dummydb

import (
	"sort"

	"github.com/trezcool/shule/core/activity"
)

type activityRepository struct {
	db *activityTable
}

var _ activity.Repository = (*activityRepository)(nil) // interface compliance check

func NewActivityRepository(db *DB) activity.Repository {
	return &activityRepository{db: db.activity}
}

func (repo *activityRepository) CreateEntry(e activity.Entry) (activity.Entry, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	pkCount++
	e.ID = pkCount
	repo.db.table[e.ID] = &e
	return e, nil
}

func (repo *activityRepository) QueryEntriesByUser(userID, limit int) ([]activity.Entry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var entries []activity.Entry
	for _, e := range repo.db.table {
		if e.UserID == userID {
			entries = append(entries, *e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Timestamp.After(entries[j].Timestamp) })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
