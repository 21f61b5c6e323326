package dummydb

import (
	"sort"

	"github.com/trezcool/shule/core/messaging"
)

type messageRepository struct {
	db     *messageTable
	userDB *userTable
}

var _ messaging.Repository = (*messageRepository)(nil) // interface compliance check

func NewMessageRepository(db *DB) messaging.Repository {
	return &messageRepository{db: db.message, userDB: db.user}
}

func (repo *messageRepository) refresh(m messaging.Message) messaging.Message {
	repo.userDB.RLock()
	defer repo.userDB.RUnlock()
	if usr, ok := repo.userDB.table[m.SenderID]; ok {
		sender := *usr
		m.Sender = &sender
	}
	if usr, ok := repo.userDB.table[m.RecipientID]; ok {
		recipient := *usr
		m.Recipient = &recipient
	}
	return m
}

func (repo *messageRepository) CreateMessage(m messaging.Message) (messaging.Message, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	pkCount++
	m.ID = pkCount
	stored := m
	stored.Sender = nil
	stored.Recipient = nil
	repo.db.table[stored.ID] = &stored
	return m, nil
}

func (repo *messageRepository) GetMessageByID(id int) (messaging.Message, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if m, ok := repo.db.table[id]; ok {
		return repo.refresh(*m), nil
	}
	return messaging.Message{}, messaging.ErrNotFound
}

func (repo *messageRepository) query(match func(m messaging.Message) bool) []messaging.Message {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var msgs []messaging.Message
	for _, m := range repo.db.table {
		if match(*m) {
			msgs = append(msgs, repo.refresh(*m))
		}
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID < msgs[j].ID })
	return msgs
}

func (repo *messageRepository) QueryInbox(userID int) ([]messaging.Message, error) {
	return repo.query(func(m messaging.Message) bool { return m.RecipientID == userID }), nil
}

func (repo *messageRepository) QuerySent(userID int) ([]messaging.Message, error) {
	return repo.query(func(m messaging.Message) bool { return m.SenderID == userID }), nil
}

func (repo *messageRepository) QueryThread(rootID int) ([]messaging.Message, error) {
	return repo.query(func(m messaging.Message) bool {
		return m.ID == rootID || (m.ParentID.Valid && m.ParentID.Int == rootID)
	}), nil
}

func (repo *messageRepository) CountUnread(userID int) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	count := 0
	for _, m := range repo.db.table {
		if m.RecipientID == userID && !m.IsRead {
			count++
		}
	}
	return count, nil
}

func (repo *messageRepository) UpdateMessage(m messaging.Message) (messaging.Message, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[m.ID]
	if !ok {
		return messaging.Message{}, messaging.ErrNotFound
	}
	orig.IsRead = m.IsRead
	return m, nil
}
