package sqlxrepos

import (
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core/messaging"
)

type messageRow struct {
	ID          int       `db:"id"`
	SenderID    int       `db:"sender_id"`
	RecipientID int       `db:"recipient_id"`
	Subject     string    `db:"subject"`
	Body        string    `db:"body"`
	IsRead      bool      `db:"is_read"`
	SentAt      time.Time `db:"sent_at"`
	ParentID    null.Int  `db:"parent_id"`
	Sender      userRow   `db:"sender"`
	Recipient   userRow   `db:"recipient"`
}

func (r messageRow) toMessage() messaging.Message {
	sender := r.Sender.toUser()
	recipient := r.Recipient.toUser()
	return messaging.Message{
		ID:          r.ID,
		SenderID:    r.SenderID,
		RecipientID: r.RecipientID,
		Subject:     r.Subject,
		Body:        r.Body,
		IsRead:      r.IsRead,
		SentAt:      r.SentAt,
		ParentID:    r.ParentID,
		Sender:      &sender,
		Recipient:   &recipient,
	}
}

var messageColumns = []string{
	"m.id", "m.sender_id", "m.recipient_id", "m.subject", "m.body",
	"m.is_read", "m.sent_at", "m.parent_id",
	`s.id AS "sender.id"`, `s.name AS "sender.name"`, `s.username AS "sender.username"`,
	`s.email AS "sender.email"`, `s.role AS "sender.role"`, `s.is_active AS "sender.is_active"`,
	`s.password_hash AS "sender.password_hash"`, `s.created_at AS "sender.created_at"`,
	`s.updated_at AS "sender.updated_at"`, `s.last_login AS "sender.last_login"`,
	`r.id AS "recipient.id"`, `r.name AS "recipient.name"`, `r.username AS "recipient.username"`,
	`r.email AS "recipient.email"`, `r.role AS "recipient.role"`, `r.is_active AS "recipient.is_active"`,
	`r.password_hash AS "recipient.password_hash"`, `r.created_at AS "recipient.created_at"`,
	`r.updated_at AS "recipient.updated_at"`, `r.last_login AS "recipient.last_login"`,
}

type messageRepository struct {
	db *sqlx.DB
}

var _ messaging.Repository = (*messageRepository)(nil)

func NewMessageRepository(db *sqlx.DB) messaging.Repository {
	return &messageRepository{db: db}
}

func (repo *messageRepository) messageQuery() sq.SelectBuilder {
	return psql.Select(messageColumns...).
		From("messages m").
		Join("users s ON s.id = m.sender_id").
		Join("users r ON r.id = m.recipient_id")
}

func (repo *messageRepository) CreateMessage(m messaging.Message) (messaging.Message, error) {
	query, args, err := psql.Insert("messages").
		Columns("sender_id", "recipient_id", "subject", "body", "is_read", "sent_at", "parent_id").
		Values(m.SenderID, m.RecipientID, m.Subject, m.Body, m.IsRead, m.SentAt, m.ParentID).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return messaging.Message{}, errors.Wrap(err, "building query")
	}
	if err = repo.db.Get(&m.ID, query, args...); err != nil {
		return messaging.Message{}, errors.Wrap(err, "creating message")
	}
	return m, nil
}

func (repo *messageRepository) GetMessageByID(id int) (messaging.Message, error) {
	query, args, err := repo.messageQuery().Where(sq.Eq{"m.id": id}).ToSql()
	if err != nil {
		return messaging.Message{}, errors.Wrap(err, "building query")
	}
	var row messageRow
	if err = repo.db.Get(&row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return messaging.Message{}, messaging.ErrNotFound
		}
		return messaging.Message{}, errors.Wrap(err, "getting message")
	}
	return row.toMessage(), nil
}

func (repo *messageRepository) queryMessages(qb sq.SelectBuilder) ([]messaging.Message, error) {
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []messageRow
	if err = repo.db.Select(&rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}
	msgs := make([]messaging.Message, len(rows))
	for i, r := range rows {
		msgs[i] = r.toMessage()
	}
	return msgs, nil
}

func (repo *messageRepository) QueryInbox(userID int) ([]messaging.Message, error) {
	return repo.queryMessages(repo.messageQuery().
		Where(sq.Eq{"m.recipient_id": userID}).
		OrderBy("m.sent_at DESC"))
}

func (repo *messageRepository) QuerySent(userID int) ([]messaging.Message, error) {
	return repo.queryMessages(repo.messageQuery().
		Where(sq.Eq{"m.sender_id": userID}).
		OrderBy("m.sent_at DESC"))
}

func (repo *messageRepository) QueryThread(rootID int) ([]messaging.Message, error) {
	return repo.queryMessages(repo.messageQuery().
		Where(sq.Or{sq.Eq{"m.id": rootID}, sq.Eq{"m.parent_id": rootID}}).
		OrderBy("m.sent_at"))
}

func (repo *messageRepository) CountUnread(userID int) (int, error) {
	query, args, err := psql.Select("COUNT(*)").
		From("messages").
		Where(sq.Eq{"recipient_id": userID, "is_read": false}).
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	var count int
	if err = repo.db.Get(&count, query, args...); err != nil {
		return 0, errors.Wrap(err, "counting unread messages")
	}
	return count, nil
}

func (repo *messageRepository) UpdateMessage(m messaging.Message) (messaging.Message, error) {
	query, args, err := psql.Update("messages").
		Set("is_read", m.IsRead).
		Where(sq.Eq{"id": m.ID}).
		ToSql()
	if err != nil {
		return messaging.Message{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.db.Exec(query, args...); err != nil {
		return messaging.Message{}, errors.Wrap(err, "updating message")
	}
	return m, nil
}
