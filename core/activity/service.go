package activity

import (
	"fmt"
	"time"

	"github.com/trezcool/shule/core"
)

type (
	Repository interface {
		CreateEntry(e Entry) (Entry, error)
		QueryEntriesByUser(userID, limit int) ([]Entry, error)
	}

	// Service appends activity records. A failed append must never fail the
	// operation being recorded; errors are only logged.
	Service interface {
		Record(userID int, action, objectType string, objectID int, objectName string)
		RecentForUser(userID, limit int) ([]Entry, error)
	}

	service struct {
		repo   Repository
		logger core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, logger core.Logger) Service {
	return &service{repo: repo, logger: logger}
}

func (svc *service) Record(userID int, action, objectType string, objectID int, objectName string) {
	entry := Entry{
		UserID:     userID,
		Action:     action,
		ObjectType: objectType,
		ObjectID:   objectID,
		ObjectName: objectName,
		Timestamp:  time.Now().UTC(),
	}
	if _, err := svc.repo.CreateEntry(entry); err != nil {
		svc.logger.Error(fmt.Sprintf("recording activity %q: %v", action, err), err)
	}
}

func (svc *service) RecentForUser(userID, limit int) ([]Entry, error) {
	return svc.repo.QueryEntriesByUser(userID, limit)
}
