package messaging

import (
	"errors"
	"sort"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/activity"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

var (
	// errors
	ErrNotFound          = errors.New("message not found")
	ErrRecipientNotFound = errors.New("recipient not found")
)

type (
	Repository interface {
		CreateMessage(m Message) (Message, error)
		GetMessageByID(id int) (Message, error)
		QueryInbox(userID int) ([]Message, error)
		QuerySent(userID int) ([]Message, error)
		// QueryThread returns the root message and its replies, oldest first.
		QueryThread(rootID int) ([]Message, error)
		CountUnread(userID int) (int, error)
		UpdateMessage(m Message) (Message, error)
	}

	Service interface {
		// RecipientCandidates lists the users the actor may message,
		// scoped by role and never including the actor.
		RecipientCandidates(actor access.Actor) ([]user.User, error)
		Compose(actor access.Actor, cm ComposeMessage) (Message, error)
		Get(actor access.Actor, id int) (Message, error)
		Thread(actor access.Actor, id int) ([]Message, error)
		Inbox(actor access.Actor) ([]Message, error)
		Sent(actor access.Actor) ([]Message, error)
		UnreadCount(actor access.Actor) (int, error)
		MarkRead(actor access.Actor, id int) (Message, error)
	}

	service struct {
		repo        Repository
		usrSvc      user.Service
		schoolSvc   school.Service
		activitySvc activity.Service
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, usrSvc user.Service, schoolSvc school.Service, activitySvc activity.Service) Service {
	return &service{
		repo:        repo,
		usrSvc:      usrSvc,
		schoolSvc:   schoolSvc,
		activitySvc: activitySvc,
	}
}

func (svc *service) RecipientCandidates(actor access.Actor) ([]user.User, error) {
	seen := map[int]user.User{}
	add := func(usrs ...user.User) {
		for _, usr := range usrs {
			if usr.ID != actor.User.ID && usr.IsActive {
				seen[usr.ID] = usr
			}
		}
	}

	switch {
	case actor.IsAdmin():
		usrs, err := svc.usrSvc.QueryAll()
		if err != nil {
			return nil, err
		}
		add(usrs...)

	case actor.IsTeacher():
		// all staff, plus the students of the courses the teacher teaches
		if err := svc.addByRoles(add, user.RoleAdmin, user.RoleTeacher); err != nil {
			return nil, err
		}
		courses, err := svc.schoolSvc.QueryCoursesByTeacherUser(actor.User.ID)
		if err != nil {
			return nil, err
		}
		if err = svc.addCourseMembers(add, courses, false); err != nil {
			return nil, err
		}

	case actor.IsStudent():
		// admins, the teachers of enrolled courses, and classmates
		if err := svc.addByRoles(add, user.RoleAdmin); err != nil {
			return nil, err
		}
		courses, err := svc.schoolSvc.QueryCoursesByStudent(actor.Student.ID)
		if err != nil {
			return nil, err
		}
		if err = svc.addCourseMembers(add, courses, true); err != nil {
			return nil, err
		}

	default:
		return nil, core.NewPermissionDeniedError()
	}

	candidates := make([]user.User, 0, len(seen))
	for _, usr := range seen {
		candidates = append(candidates, usr)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Name < candidates[j].Name })
	return candidates, nil
}

func (svc *service) addByRoles(add func(...user.User), roles ...string) error {
	active := true
	for _, role := range roles {
		usrs, err := svc.usrSvc.Query(&user.QueryFilter{Role: role, IsActive: &active}, nil)
		if err != nil {
			return err
		}
		add(usrs...)
	}
	return nil
}

// addCourseMembers adds the students of each course, and the teachers too
// when withTeachers is set. Membership relations load on GetCourse.
func (svc *service) addCourseMembers(add func(...user.User), courses []school.Course, withTeachers bool) error {
	for _, c := range courses {
		course, err := svc.schoolSvc.GetCourse(c.ID)
		if err != nil {
			return err
		}
		for _, student := range course.Students {
			add(student.User)
		}
		if withTeachers {
			for _, teacher := range course.Teachers {
				add(teacher.User)
			}
		}
	}
	return nil
}

func (svc *service) Compose(actor access.Actor, cm ComposeMessage) (Message, error) {
	candidates, err := svc.RecipientCandidates(actor)
	if err != nil {
		return Message{}, err
	}
	var recipient *user.User
	for i := range candidates {
		if candidates[i].ID == cm.RecipientID {
			recipient = &candidates[i]
			break
		}
	}
	if recipient == nil {
		return Message{}, core.NewValidationError(ErrRecipientNotFound,
			core.FieldError{Field: "recipient_id", Error: "you cannot message this user"})
	}

	msg := Message{
		SenderID:    actor.User.ID,
		RecipientID: recipient.ID,
		Subject:     cm.Subject,
		Body:        cm.Body,
		SentAt:      time.Now().UTC(),
		Sender:      &actor.User,
		Recipient:   recipient,
	}
	if cm.ParentID != nil {
		parent, err := svc.repo.GetMessageByID(*cm.ParentID)
		if err != nil {
			return Message{}, err
		}
		if !parent.IsParticipant(actor.User.ID) {
			return Message{}, core.NewPermissionDeniedError("you cannot reply to this message")
		}
		// replies attach to the thread root
		rootID := parent.ID
		if parent.ParentID.Valid {
			rootID = parent.ParentID.Int
		}
		msg.ParentID = null.IntFrom(rootID)
	}

	msg, err = svc.repo.CreateMessage(msg)
	if err != nil {
		return Message{}, err
	}
	svc.activitySvc.Record(actor.User.ID, activity.ActionMessageSend, "message", msg.ID, msg.Subject)
	return msg, nil
}

func (svc *service) Get(actor access.Actor, id int) (Message, error) {
	msg, err := svc.repo.GetMessageByID(id)
	if err != nil {
		return Message{}, err
	}
	if !actor.IsAdmin() && !msg.IsParticipant(actor.User.ID) {
		return Message{}, core.NewPermissionDeniedError("you cannot view this message")
	}
	return msg, nil
}

func (svc *service) Thread(actor access.Actor, id int) ([]Message, error) {
	msg, err := svc.Get(actor, id)
	if err != nil {
		return nil, err
	}
	rootID := msg.ID
	if msg.ParentID.Valid {
		rootID = msg.ParentID.Int
	}
	return svc.repo.QueryThread(rootID)
}

func (svc *service) Inbox(actor access.Actor) ([]Message, error) {
	return svc.repo.QueryInbox(actor.User.ID)
}

func (svc *service) Sent(actor access.Actor) ([]Message, error) {
	return svc.repo.QuerySent(actor.User.ID)
}

func (svc *service) UnreadCount(actor access.Actor) (int, error) {
	return svc.repo.CountUnread(actor.User.ID)
}

// MarkRead flips the read flag; only the recipient may do so.
func (svc *service) MarkRead(actor access.Actor, id int) (Message, error) {
	msg, err := svc.repo.GetMessageByID(id)
	if err != nil {
		return Message{}, err
	}
	if msg.RecipientID != actor.User.ID {
		return Message{}, core.NewPermissionDeniedError("only the recipient can mark a message as read")
	}
	if msg.IsRead {
		return msg, nil
	}
	msg.IsRead = true
	return svc.repo.UpdateMessage(msg)
}
