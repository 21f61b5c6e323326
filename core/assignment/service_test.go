package assignment_test

import (
	"log"
	"os"
	"testing"
	"time"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/activity"
	"github.com/trezcool/shule/core/assignment"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
	emailsvc "github.com/trezcool/shule/services/email"
	logsvc "github.com/trezcool/shule/services/logger"
	dummydb "github.com/trezcool/shule/storage/database/dummy"
)

type testEnv struct {
	repo      assignment.Repository
	schoolSvc school.Service
	svc       assignment.Service
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
	repo := dummydb.NewAssignmentRepository(db)
	return &testEnv{
		repo:      repo,
		schoolSvc: schoolSvc,
		svc:       assignment.NewService(repo, schoolSvc, activitySvc),
	}
}

func (env *testEnv) teacherActor(t *testing.T, uname string) access.Actor {
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

func (env *testEnv) studentActor(t *testing.T, uname, enrollmentID string) access.Actor {
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

// refreshStudent reloads the student's course membership into the actor.
func (env *testEnv) refreshStudent(t *testing.T, actor *access.Actor) {
	t.Helper()
	student, err := env.schoolSvc.GetStudent(actor.Student.ID)
	if err != nil {
		t.Fatalf("GetStudent() failed, %v", err)
	}
	actor.Student = &student
}

// classroom provisions a course taught by the teacher with the student
// enrolled, plus a published assignment owned by the teacher.
func (env *testEnv) classroom(t *testing.T) (teacher, student access.Actor, course school.Course, asg assignment.Assignment) {
	t.Helper()
	teacher = env.teacherActor(t, "prof")
	student = env.studentActor(t, "awa", "stu001")

	course, err := env.schoolSvc.CreateCourse(teacher.User.ID, school.NewCourse{Code: "cs101", Name: "Intro to CS"})
	if err != nil {
		t.Fatalf("CreateCourse() failed, %v", err)
	}
	if _, err = env.schoolSvc.AssignTeacher(1, teacher.Teacher.ID, course.ID); err != nil {
		t.Fatalf("AssignTeacher() failed, %v", err)
	}
	if _, err = env.schoolSvc.Enroll(1, student.Student.ID, course.ID); err != nil {
		t.Fatalf("Enroll() failed, %v", err)
	}
	env.refreshStudent(t, &student)

	na := assignment.NewAssignment{
		CourseID: course.ID,
		Title:    "Homework 1",
		DueDate:  time.Now().Add(48 * time.Hour),
		Status:   assignment.StatusPublished,
	}
	if err = na.Validate(); err != nil {
		t.Fatalf("Validate() failed, %v", err)
	}
	asg, err = env.svc.Create(teacher, na)
	if err != nil {
		t.Fatalf("Create() failed, %v", err)
	}
	return teacher, student, course, asg
}

// newDraft builds a validated draft assignment payload for the course.
func newDraft(t *testing.T, courseID int, title string) assignment.NewAssignment {
	t.Helper()
	na := assignment.NewAssignment{
		CourseID: courseID,
		Title:    title,
		DueDate:  time.Now().Add(48 * time.Hour),
	}
	if err := na.Validate(); err != nil {
		t.Fatalf("Validate() failed, %v", err)
	}
	return na
}

func TestService_Create_ownership(t *testing.T) {
	env := setup(t)
	teacher := env.teacherActor(t, "prof")
	other := env.teacherActor(t, "otherprof")
	admin := access.Actor{User: user.User{ID: 999, Role: user.RoleAdmin}}

	course, err := env.schoolSvc.CreateCourse(1, school.NewCourse{Code: "cs101", Name: "Intro to CS"})
	if err != nil {
		t.Fatalf("CreateCourse() failed, %v", err)
	}
	if _, err = env.schoolSvc.AssignTeacher(1, teacher.Teacher.ID, course.ID); err != nil {
		t.Fatalf("AssignTeacher() failed, %v", err)
	}

	na := assignment.NewAssignment{
		CourseID: course.ID,
		Title:    "Homework 1",
		DueDate:  time.Now().Add(48 * time.Hour),
	}
	if err = na.Validate(); err != nil {
		t.Fatalf("Validate() failed, %v", err)
	}

	// course teacher owns what it creates
	asg, err := env.svc.Create(teacher, na)
	if err != nil {
		t.Fatalf("Create() failed, %v", err)
	}
	if asg.TeacherID != teacher.User.ID {
		t.Errorf("TeacherID = %d, want %d", asg.TeacherID, teacher.User.ID)
	}
	if asg.Status != assignment.StatusDraft {
		t.Errorf("Status = %s, want draft", asg.Status)
	}
	if asg.MaxPoints != 100 {
		t.Errorf("MaxPoints = %d, want default 100", asg.MaxPoints)
	}

	// a teacher outside the course may not create
	if _, err = env.svc.Create(other, na); !core.IsPermissionDenied(err) {
		t.Errorf("Create() error = %v, want permission denied", err)
	}

	// admins must name the owning teacher
	if _, err = env.svc.Create(admin, na); err == nil {
		t.Error("Create() as admin without teacher_id should fail")
	}
	na.TeacherID = teacher.User.ID
	asg, err = env.svc.Create(admin, na)
	if err != nil {
		t.Fatalf("Create() as admin failed, %v", err)
	}
	if asg.TeacherID != teacher.User.ID {
		t.Errorf("TeacherID = %d, want %d", asg.TeacherID, teacher.User.ID)
	}
}

func TestService_statusTransitions(t *testing.T) {
	env := setup(t)
	teacher, _, _, asg := env.classroom(t)

	// published -> archived
	asg, err := env.svc.Archive(teacher, asg.ID)
	if err != nil {
		t.Fatalf("Archive() failed, %v", err)
	}
	if asg.Status != assignment.StatusArchived {
		t.Errorf("Status = %s, want archived", asg.Status)
	}

	// archived is terminal
	if _, err = env.svc.Publish(teacher, asg.ID); err == nil {
		t.Error("Publish() on archived assignment should fail")
	}
	if _, err = env.svc.Update(teacher, asg.ID, assignment.UpdateAssignment{Status: assignment.StatusDraft}); err == nil {
		t.Error("Update() back to draft on archived assignment should fail")
	}
}

func TestService_Update_ownerOnly(t *testing.T) {
	env := setup(t)
	teacher, _, course, asg := env.classroom(t)

	// a co-teacher of the course is still not the owner
	other := env.teacherActor(t, "otherprof")
	if _, err := env.schoolSvc.AssignTeacher(1, other.Teacher.ID, course.ID); err != nil {
		t.Fatalf("AssignTeacher() failed, %v", err)
	}
	_, err := env.svc.Update(other, asg.ID, assignment.UpdateAssignment{Title: "Hijacked"})
	if !core.IsPermissionDenied(err) {
		t.Errorf("Update() error = %v, want permission denied", err)
	}

	asg, err = env.svc.Update(teacher, asg.ID, assignment.UpdateAssignment{Title: "Homework 1b"})
	if err != nil {
		t.Fatalf("Update() failed, %v", err)
	}
	if asg.Title != "Homework 1b" {
		t.Errorf("Title = %s, want Homework 1b", asg.Title)
	}
}

func TestService_Submit(t *testing.T) {
	env := setup(t)
	_, student, _, asg := env.classroom(t)

	sub, err := env.svc.Submit(student, assignment.NewSubmission{AssignmentID: asg.ID, FileRef: "hw1.pdf"})
	if err != nil {
		t.Fatalf("Submit() failed, %v", err)
	}
	if sub.IsLate {
		t.Error("submission before the due date must not be late")
	}
	if sub.IsGraded() {
		t.Error("fresh submission must not be graded")
	}

	// one submission per (assignment, student)
	_, err = env.svc.Submit(student, assignment.NewSubmission{AssignmentID: asg.ID, FileRef: "hw1-again.pdf"})
	if !core.IsConflict(err) {
		t.Errorf("Submit() error = %v, want a conflict", err)
	}
}

func TestService_Submit_rejections(t *testing.T) {
	env := setup(t)
	teacher, student, course, asg := env.classroom(t)

	// drafts do not accept submissions
	draft, err := env.svc.Create(teacher, newDraft(t, course.ID, "Draft work"))
	if err != nil {
		t.Fatalf("Create() failed, %v", err)
	}
	_, err = env.svc.Submit(student, assignment.NewSubmission{AssignmentID: draft.ID, FileRef: "x.pdf"})
	if _, ok := err.(*core.ValidationError); !ok {
		t.Errorf("Submit() on draft error = %v, want a validation error", err)
	}

	// teachers cannot submit
	_, err = env.svc.Submit(teacher, assignment.NewSubmission{AssignmentID: asg.ID, FileRef: "x.pdf"})
	if !core.IsPermissionDenied(err) {
		t.Errorf("Submit() as teacher error = %v, want permission denied", err)
	}

	// unenrolled students cannot submit
	outsider := env.studentActor(t, "outsider", "stu002")
	_, err = env.svc.Submit(outsider, assignment.NewSubmission{AssignmentID: asg.ID, FileRef: "x.pdf"})
	if !core.IsPermissionDenied(err) {
		t.Errorf("Submit() unenrolled error = %v, want permission denied", err)
	}
}

func TestService_Submit_isLateFrozen(t *testing.T) {
	env := setup(t)
	teacher, student, _, asg := env.classroom(t)

	// push the due date into the past behind the service's back
	asg.DueDate = time.Now().Add(-time.Hour)
	if _, err := env.repo.UpdateAssignment(asg); err != nil {
		t.Fatalf("UpdateAssignment() failed, %v", err)
	}

	sub, err := env.svc.Submit(student, assignment.NewSubmission{AssignmentID: asg.ID, FileRef: "hw1.pdf"})
	if err != nil {
		t.Fatalf("Submit() failed, %v", err)
	}
	if !sub.IsLate {
		t.Fatal("submission after the due date must be late")
	}

	// extending the due date afterwards does not rewrite history
	due := time.Now().Add(72 * time.Hour)
	if _, err = env.svc.Update(teacher, asg.ID, assignment.UpdateAssignment{DueDate: &due}); err != nil {
		t.Fatalf("Update() failed, %v", err)
	}
	sub, err = env.svc.GetSubmission(teacher, sub.ID)
	if err != nil {
		t.Fatalf("GetSubmission() failed, %v", err)
	}
	if !sub.IsLate {
		t.Error("IsLate must stay frozen after the due date moves")
	}
}

func TestService_Grade(t *testing.T) {
	env := setup(t)
	teacher, student, _, asg := env.classroom(t)

	sub, err := env.svc.Submit(student, assignment.NewSubmission{AssignmentID: asg.ID, FileRef: "hw1.pdf"})
	if err != nil {
		t.Fatalf("Submit() failed, %v", err)
	}

	grade := 150 // above MaxPoints
	_, err = env.svc.Grade(teacher, sub.ID, assignment.GradeSubmission{Grade: &grade})
	if _, ok := err.(*core.ValidationError); !ok {
		t.Errorf("Grade() above max error = %v, want a validation error", err)
	}

	grade = 85
	sub, err = env.svc.Grade(teacher, sub.ID, assignment.GradeSubmission{Grade: &grade, Feedback: "good work"})
	if err != nil {
		t.Fatalf("Grade() failed, %v", err)
	}
	if !sub.IsGraded() || sub.Grade.Int != 85 {
		t.Errorf("Grade = %+v, want 85", sub.Grade)
	}

	// regrading overwrites
	grade = 90
	sub, err = env.svc.Grade(teacher, sub.ID, assignment.GradeSubmission{Grade: &grade})
	if err != nil {
		t.Fatalf("Grade() failed, %v", err)
	}
	if sub.Grade.Int != 90 {
		t.Errorf("Grade = %+v, want 90", sub.Grade)
	}

	// students cannot grade, not even their own work
	grade = 100
	_, err = env.svc.Grade(student, sub.ID, assignment.GradeSubmission{Grade: &grade})
	if !core.IsPermissionDenied(err) {
		t.Errorf("Grade() as student error = %v, want permission denied", err)
	}
}

func TestService_QueryForActor(t *testing.T) {
	env := setup(t)
	teacher, student, course, asg := env.classroom(t)
	admin := access.Actor{User: user.User{ID: 999, Role: user.RoleAdmin}}

	// a draft in the same course stays invisible to students
	if _, err := env.svc.Create(teacher, newDraft(t, course.ID, "Draft work")); err != nil {
		t.Fatalf("Create() failed, %v", err)
	}

	asgs, err := env.svc.QueryForActor(admin)
	if err != nil {
		t.Fatalf("QueryForActor(admin) failed, %v", err)
	}
	if len(asgs) != 2 {
		t.Errorf("admin sees %d assignments, want 2", len(asgs))
	}

	asgs, err = env.svc.QueryForActor(teacher)
	if err != nil {
		t.Fatalf("QueryForActor(teacher) failed, %v", err)
	}
	if len(asgs) != 2 {
		t.Errorf("teacher sees %d assignments, want 2", len(asgs))
	}

	asgs, err = env.svc.QueryForActor(student)
	if err != nil {
		t.Fatalf("QueryForActor(student) failed, %v", err)
	}
	if len(asgs) != 1 || asgs[0].ID != asg.ID {
		t.Errorf("student sees %d assignments, want only the published one", len(asgs))
	}
}

func TestService_Stats(t *testing.T) {
	env := setup(t)
	teacher, student, _, asg := env.classroom(t)

	if _, err := env.svc.Submit(student, assignment.NewSubmission{AssignmentID: asg.ID, FileRef: "hw1.pdf"}); err != nil {
		t.Fatalf("Submit() failed, %v", err)
	}

	stats, err := env.svc.Stats(teacher, asg.ID)
	if err != nil {
		t.Fatalf("Stats() failed, %v", err)
	}
	if stats.TotalStudents != 1 {
		t.Errorf("TotalStudents = %d, want 1", stats.TotalStudents)
	}
	if stats.SubmittedCount != 1 {
		t.Errorf("SubmittedCount = %d, want 1", stats.SubmittedCount)
	}
	if stats.GradedCount != 0 {
		t.Errorf("GradedCount = %d, want 0", stats.GradedCount)
	}
}
