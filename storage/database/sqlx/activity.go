package sqlxrepos

import (
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/activity"
)

type activityRow struct {
	ID         int       `db:"id"`
	UserID     int       `db:"user_id"`
	Action     string    `db:"action"`
	ObjectType string    `db:"object_type"`
	ObjectID   int       `db:"object_id"`
	ObjectName string    `db:"object_name"`
	Timestamp  time.Time `db:"timestamp"`
}

type activityRepository struct {
	db *sqlx.DB
}

var _ activity.Repository = (*activityRepository)(nil)

func NewActivityRepository(db *sqlx.DB) activity.Repository {
	return &activityRepository{db: db}
}

func (repo *activityRepository) CreateEntry(e activity.Entry) (activity.Entry, error) {
	query, args, err := psql.Insert("activity_log").
		Columns("user_id", "action", "object_type", "object_id", "object_name", "timestamp").
		Values(e.UserID, e.Action, e.ObjectType, e.ObjectID, e.ObjectName, e.Timestamp).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return activity.Entry{}, errors.Wrap(err, "building query")
	}
	if err = repo.db.Get(&e.ID, query, args...); err != nil {
		return activity.Entry{}, errors.Wrap(err, "creating activity entry")
	}
	return e, nil
}

func (repo *activityRepository) QueryEntriesByUser(userID, limit int) ([]activity.Entry, error) {
	qb := psql.Select("id", "user_id", "action", "object_type", "object_id", "object_name", "timestamp").
		From("activity_log").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("timestamp DESC")
	if limit > 0 {
		qb = qb.Limit(uint64(limit))
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []activityRow
	if err = repo.db.Select(&rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying activity entries")
	}
	entries := make([]activity.Entry, len(rows))
	for i, r := range rows {
		entries[i] = activity.Entry(r)
	}
	return entries, nil
}
