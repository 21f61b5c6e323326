package messaging_test

import (
	"log"
	"os"
	"testing"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/activity"
	"github.com/trezcool/shule/core/messaging"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
	emailsvc "github.com/trezcool/shule/services/email"
	logsvc "github.com/trezcool/shule/services/logger"
	dummydb "github.com/trezcool/shule/storage/database/dummy"
)

type testEnv struct {
	usrSvc    user.Service
	schoolSvc school.Service
	svc       messaging.Service

	admin    access.Actor
	teacher  access.Actor // teaches cs101
	teacher2 access.Actor // teaches nothing
	student  access.Actor // enrolled in cs101
	student2 access.Actor // classmate in cs101
	student3 access.Actor // enrolled nowhere
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed, %v", err)
	}
	logger := logsvc.NewStdLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags))
	usrSvc := user.NewServiceMock(dummydb.NewUserRepository(db), emailsvc.NewConsoleServiceMock(), nil)
	activitySvc := activity.NewService(dummydb.NewActivityRepository(db), logger)
	schoolSvc := school.NewService(dummydb.NewSchoolRepository(db), usrSvc, activitySvc)
	env := &testEnv{
		usrSvc:    usrSvc,
		schoolSvc: schoolSvc,
		svc:       messaging.NewService(dummydb.NewMessageRepository(db), usrSvc, schoolSvc, activitySvc),
	}

	adminUsr, err := usrSvc.Create(user.NewUser{
		Name: "Boss", Username: "boss", Email: "boss@test.cd", Password: "LePassword123", Role: user.RoleAdmin,
	})
	if err != nil {
		t.Fatalf("Create() failed, %v", err)
	}
	env.admin = access.Actor{User: adminUsr}

	env.teacher = env.newTeacher(t, "prof")
	env.teacher2 = env.newTeacher(t, "prof2")
	env.student = env.newStudent(t, "awa", "stu001")
	env.student2 = env.newStudent(t, "ben", "stu002")
	env.student3 = env.newStudent(t, "cleo", "stu003")

	course, err := schoolSvc.CreateCourse(adminUsr.ID, school.NewCourse{Code: "cs101", Name: "Intro to CS"})
	if err != nil {
		t.Fatalf("CreateCourse() failed, %v", err)
	}
	if _, err = schoolSvc.AssignTeacher(adminUsr.ID, env.teacher.Teacher.ID, course.ID); err != nil {
		t.Fatalf("AssignTeacher() failed, %v", err)
	}
	for _, s := range []*access.Actor{&env.student, &env.student2} {
		if _, err = schoolSvc.Enroll(adminUsr.ID, s.Student.ID, course.ID); err != nil {
			t.Fatalf("Enroll() failed, %v", err)
		}
		student, err := schoolSvc.GetStudent(s.Student.ID)
		if err != nil {
			t.Fatalf("GetStudent() failed, %v", err)
		}
		s.Student = &student
	}
	return env
}

func (env *testEnv) newTeacher(t *testing.T, uname string) access.Actor {
	t.Helper()
	teacher, err := env.schoolSvc.CreateTeacher(school.NewTeacher{
		NewUser: user.NewUser{
			Name:     uname,
			Username: uname,
			Email:    uname + "@test.cd",
			Password: "LePassword123",
			Role:     user.RoleTeacher,
		},
		Specialty: "Mathematics",
	})
	if err != nil {
		t.Fatalf("CreateTeacher() failed, %v", err)
	}
	return access.Actor{User: teacher.User, Teacher: &teacher}
}

func (env *testEnv) newStudent(t *testing.T, uname, enrollmentID string) access.Actor {
	t.Helper()
	student, err := env.schoolSvc.CreateStudent(school.NewStudent{
		NewUser: user.NewUser{
			Name:     uname,
			Username: uname,
			Email:    uname + "@test.cd",
			Password: "LePassword123",
			Role:     user.RoleStudent,
		},
		EnrollmentID: enrollmentID,
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed, %v", err)
	}
	return access.Actor{User: student.User, Student: &student}
}

func candidateIDs(t *testing.T, svc messaging.Service, actor access.Actor) map[int]bool {
	t.Helper()
	candidates, err := svc.RecipientCandidates(actor)
	if err != nil {
		t.Fatalf("RecipientCandidates() failed, %v", err)
	}
	ids := make(map[int]bool, len(candidates))
	for _, c := range candidates {
		if c.ID == actor.User.ID {
			t.Error("candidates must never include the actor")
		}
		ids[c.ID] = true
	}
	return ids
}

func TestService_RecipientCandidates(t *testing.T) {
	env := setup(t)

	t.Run("admin sees everyone", func(t *testing.T) {
		ids := candidateIDs(t, env.svc, env.admin)
		for _, a := range []access.Actor{env.teacher, env.teacher2, env.student, env.student2, env.student3} {
			if !ids[a.User.ID] {
				t.Errorf("admin is missing candidate %s", a.User.Username)
			}
		}
	})

	t.Run("teacher sees staff and taught students", func(t *testing.T) {
		ids := candidateIDs(t, env.svc, env.teacher)
		for _, a := range []access.Actor{env.admin, env.teacher2, env.student, env.student2} {
			if !ids[a.User.ID] {
				t.Errorf("teacher is missing candidate %s", a.User.Username)
			}
		}
		if ids[env.student3.User.ID] {
			t.Error("teacher must not see students outside its courses")
		}
	})

	t.Run("student sees admins, course teachers and classmates", func(t *testing.T) {
		ids := candidateIDs(t, env.svc, env.student)
		for _, a := range []access.Actor{env.admin, env.teacher, env.student2} {
			if !ids[a.User.ID] {
				t.Errorf("student is missing candidate %s", a.User.Username)
			}
		}
		if ids[env.teacher2.User.ID] {
			t.Error("student must not see teachers outside its courses")
		}
		if ids[env.student3.User.ID] {
			t.Error("student must not see non-classmates")
		}
	})

	t.Run("unenrolled student only sees admins", func(t *testing.T) {
		ids := candidateIDs(t, env.svc, env.student3)
		if !ids[env.admin.User.ID] {
			t.Error("student is missing the admin")
		}
		if len(ids) != 1 {
			t.Errorf("student sees %d candidates, want 1", len(ids))
		}
	})
}

func TestService_Compose(t *testing.T) {
	env := setup(t)

	msg, err := env.svc.Compose(env.student, messaging.ComposeMessage{
		RecipientID: env.teacher.User.ID,
		Subject:     "Question about HW1",
		Body:        "May I get an extension?",
	})
	if err != nil {
		t.Fatalf("Compose() failed, %v", err)
	}
	if msg.SenderID != env.student.User.ID || msg.RecipientID != env.teacher.User.ID {
		t.Errorf("message participants = (%d, %d)", msg.SenderID, msg.RecipientID)
	}
	if msg.IsRead {
		t.Error("a fresh message must be unread")
	}

	// out-of-scope recipients are rejected
	_, err = env.svc.Compose(env.student, messaging.ComposeMessage{
		RecipientID: env.teacher2.User.ID,
		Subject:     "Hello",
		Body:        "Hi",
	})
	if _, ok := err.(*core.ValidationError); !ok {
		t.Errorf("Compose() to non-candidate error = %v, want a validation error", err)
	}
}

func TestService_Compose_threading(t *testing.T) {
	env := setup(t)

	root, err := env.svc.Compose(env.student, messaging.ComposeMessage{
		RecipientID: env.teacher.User.ID,
		Subject:     "Question",
		Body:        "First",
	})
	if err != nil {
		t.Fatalf("Compose() failed, %v", err)
	}

	reply, err := env.svc.Compose(env.teacher, messaging.ComposeMessage{
		RecipientID: env.student.User.ID,
		Subject:     "Re: Question",
		Body:        "Second",
		ParentID:    &root.ID,
	})
	if err != nil {
		t.Fatalf("Compose() reply failed, %v", err)
	}
	if !reply.ParentID.Valid || reply.ParentID.Int != root.ID {
		t.Errorf("reply ParentID = %+v, want %d", reply.ParentID, root.ID)
	}

	// replying to a reply still attaches to the root
	reply2, err := env.svc.Compose(env.student, messaging.ComposeMessage{
		RecipientID: env.teacher.User.ID,
		Subject:     "Re: Re: Question",
		Body:        "Third",
		ParentID:    &reply.ID,
	})
	if err != nil {
		t.Fatalf("Compose() reply failed, %v", err)
	}
	if !reply2.ParentID.Valid || reply2.ParentID.Int != root.ID {
		t.Errorf("reply2 ParentID = %+v, want root %d", reply2.ParentID, root.ID)
	}

	// outsiders cannot reply into the thread
	_, err = env.svc.Compose(env.admin, messaging.ComposeMessage{
		RecipientID: env.teacher.User.ID,
		Subject:     "Intruding",
		Body:        "Hi",
		ParentID:    &root.ID,
	})
	if !core.IsPermissionDenied(err) {
		t.Errorf("Compose() reply by non-participant error = %v, want permission denied", err)
	}

	// the whole thread is visible from any of its messages
	thread, err := env.svc.Thread(env.teacher, reply2.ID)
	if err != nil {
		t.Fatalf("Thread() failed, %v", err)
	}
	if len(thread) != 3 {
		t.Errorf("thread has %d messages, want 3", len(thread))
	}
}

func TestService_MarkRead(t *testing.T) {
	env := setup(t)

	msg, err := env.svc.Compose(env.student, messaging.ComposeMessage{
		RecipientID: env.teacher.User.ID,
		Subject:     "Question",
		Body:        "Hello",
	})
	if err != nil {
		t.Fatalf("Compose() failed, %v", err)
	}

	count, err := env.svc.UnreadCount(env.teacher)
	if err != nil {
		t.Fatalf("UnreadCount() failed, %v", err)
	}
	if count != 1 {
		t.Errorf("UnreadCount() = %d, want 1", count)
	}

	// the sender cannot mark it read
	if _, err = env.svc.MarkRead(env.student, msg.ID); !core.IsPermissionDenied(err) {
		t.Errorf("MarkRead() by sender error = %v, want permission denied", err)
	}

	msg, err = env.svc.MarkRead(env.teacher, msg.ID)
	if err != nil {
		t.Fatalf("MarkRead() failed, %v", err)
	}
	if !msg.IsRead {
		t.Error("message must be read after MarkRead()")
	}

	// marking again is a no-op
	if _, err = env.svc.MarkRead(env.teacher, msg.ID); err != nil {
		t.Errorf("MarkRead() repeat failed, %v", err)
	}

	count, err = env.svc.UnreadCount(env.teacher)
	if err != nil {
		t.Fatalf("UnreadCount() failed, %v", err)
	}
	if count != 0 {
		t.Errorf("UnreadCount() = %d, want 0", count)
	}
}

func TestService_inboxAndSent(t *testing.T) {
	env := setup(t)

	if _, err := env.svc.Compose(env.student, messaging.ComposeMessage{
		RecipientID: env.teacher.User.ID,
		Subject:     "Question",
		Body:        "Hello",
	}); err != nil {
		t.Fatalf("Compose() failed, %v", err)
	}

	inbox, err := env.svc.Inbox(env.teacher)
	if err != nil {
		t.Fatalf("Inbox() failed, %v", err)
	}
	if len(inbox) != 1 {
		t.Errorf("teacher inbox has %d messages, want 1", len(inbox))
	}

	sent, err := env.svc.Sent(env.student)
	if err != nil {
		t.Fatalf("Sent() failed, %v", err)
	}
	if len(sent) != 1 {
		t.Errorf("student sent box has %d messages, want 1", len(sent))
	}

	// no leakage across users
	inbox, err = env.svc.Inbox(env.student2)
	if err != nil {
		t.Fatalf("Inbox() failed, %v", err)
	}
	if len(inbox) != 0 {
		t.Errorf("classmate inbox has %d messages, want 0", len(inbox))
	}
}
