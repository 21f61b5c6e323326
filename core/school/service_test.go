package school_test

import (
	"log"
	"os"
	"testing"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/activity"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
	emailsvc "github.com/trezcool/shule/services/email"
	logsvc "github.com/trezcool/shule/services/logger"
	dummydb "github.com/trezcool/shule/storage/database/dummy"
)

type testEnv struct {
	usrSvc      user.Service
	activitySvc activity.Service
	svc         school.Service
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
	return &testEnv{
		usrSvc:      usrSvc,
		activitySvc: activitySvc,
		svc:         school.NewService(dummydb.NewSchoolRepository(db), usrSvc, activitySvc),
	}
}

func createTeacher(t *testing.T, svc school.Service, uname string) school.Teacher {
	t.Helper()
	teacher, err := svc.CreateTeacher(school.NewTeacher{
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
	return teacher
}

func createStudent(t *testing.T, svc school.Service, uname, enrollmentID string) school.Student {
	t.Helper()
	student, err := svc.CreateStudent(school.NewStudent{
		NewUser: user.NewUser{
			Name:     uname,
			Username: uname,
			Email:    uname + "@test.cd",
			Password: "LePassword123",
			Role:     user.RoleStudent,
		},
		EnrollmentID: enrollmentID,
		Semester:     1,
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed, %v", err)
	}
	return student
}

func createCourse(t *testing.T, svc school.Service, code, name string) school.Course {
	t.Helper()
	course, err := svc.CreateCourse(1, school.NewCourse{Code: code, Name: name, Credit: 3})
	if err != nil {
		t.Fatalf("CreateCourse() failed, %v", err)
	}
	return course
}

func TestService_Enroll_triState(t *testing.T) {
	env := setup(t)
	student := createStudent(t, env.svc, "awa", "stu001")
	course := createCourse(t, env.svc, "cs101", "Intro to CS")

	// first enrollment applies
	res, err := env.svc.Enroll(1, student.ID, course.ID)
	if err != nil {
		t.Fatalf("Enroll() failed, %v", err)
	}
	if res != school.ChangeApplied {
		t.Errorf("Enroll() = %v, want ChangeApplied", res)
	}

	// repeating it changes nothing and reports a conflict
	res, err = env.svc.Enroll(1, student.ID, course.ID)
	if res != school.ChangeUnchanged {
		t.Errorf("Enroll() = %v, want ChangeUnchanged", res)
	}
	if !core.IsConflict(err) {
		t.Errorf("Enroll() error = %v, want a conflict", err)
	}

	// unknown records are not conflicts
	res, err = env.svc.Enroll(1, student.ID, 999)
	if res != school.ChangeNotFound {
		t.Errorf("Enroll() = %v, want ChangeNotFound", res)
	}
	if err != school.ErrCourseNotFound {
		t.Errorf("Enroll() error = %v, want ErrCourseNotFound", err)
	}
	res, err = env.svc.Enroll(1, 999, course.ID)
	if res != school.ChangeNotFound {
		t.Errorf("Enroll() = %v, want ChangeNotFound", res)
	}
	if err != school.ErrStudentNotFound {
		t.Errorf("Enroll() error = %v, want ErrStudentNotFound", err)
	}

	// membership survives on the student
	refreshed, err := env.svc.GetStudent(student.ID)
	if err != nil {
		t.Fatalf("GetStudent() failed, %v", err)
	}
	if !refreshed.IsEnrolledIn(course.ID) {
		t.Error("student is not enrolled after Enroll()")
	}
}

func TestService_Unenroll_triState(t *testing.T) {
	env := setup(t)
	student := createStudent(t, env.svc, "awa", "stu001")
	course := createCourse(t, env.svc, "cs101", "Intro to CS")

	// not enrolled yet: unchanged
	res, err := env.svc.Unenroll(1, student.ID, course.ID)
	if res != school.ChangeUnchanged {
		t.Errorf("Unenroll() = %v, want ChangeUnchanged", res)
	}
	if !core.IsConflict(err) {
		t.Errorf("Unenroll() error = %v, want a conflict", err)
	}

	if _, err = env.svc.Enroll(1, student.ID, course.ID); err != nil {
		t.Fatalf("Enroll() failed, %v", err)
	}

	res, err = env.svc.Unenroll(1, student.ID, course.ID)
	if err != nil {
		t.Fatalf("Unenroll() failed, %v", err)
	}
	if res != school.ChangeApplied {
		t.Errorf("Unenroll() = %v, want ChangeApplied", res)
	}

	refreshed, err := env.svc.GetStudent(student.ID)
	if err != nil {
		t.Fatalf("GetStudent() failed, %v", err)
	}
	if refreshed.IsEnrolledIn(course.ID) {
		t.Error("student is still enrolled after Unenroll()")
	}
}

func TestService_teacherAssignment_triState(t *testing.T) {
	env := setup(t)
	teacher := createTeacher(t, env.svc, "prof")
	course := createCourse(t, env.svc, "cs101", "Intro to CS")

	res, err := env.svc.AssignTeacher(1, teacher.ID, course.ID)
	if err != nil {
		t.Fatalf("AssignTeacher() failed, %v", err)
	}
	if res != school.ChangeApplied {
		t.Errorf("AssignTeacher() = %v, want ChangeApplied", res)
	}

	res, err = env.svc.AssignTeacher(1, teacher.ID, course.ID)
	if res != school.ChangeUnchanged {
		t.Errorf("AssignTeacher() = %v, want ChangeUnchanged", res)
	}
	if !core.IsConflict(err) {
		t.Errorf("AssignTeacher() error = %v, want a conflict", err)
	}

	course, err = env.svc.GetCourse(course.ID)
	if err != nil {
		t.Fatalf("GetCourse() failed, %v", err)
	}
	if !course.HasTeacherUser(teacher.UserID) {
		t.Error("course is missing the assigned teacher")
	}

	res, err = env.svc.RemoveTeacher(1, teacher.ID, course.ID)
	if err != nil {
		t.Fatalf("RemoveTeacher() failed, %v", err)
	}
	if res != school.ChangeApplied {
		t.Errorf("RemoveTeacher() = %v, want ChangeApplied", res)
	}

	res, err = env.svc.RemoveTeacher(1, teacher.ID, course.ID)
	if res != school.ChangeUnchanged {
		t.Errorf("RemoveTeacher() = %v, want ChangeUnchanged", res)
	}
	if !core.IsConflict(err) {
		t.Errorf("RemoveTeacher() error = %v, want a conflict", err)
	}

	res, err = env.svc.AssignTeacher(1, 999, course.ID)
	if res != school.ChangeNotFound {
		t.Errorf("AssignTeacher() = %v, want ChangeNotFound", res)
	}
	if err != school.ErrTeacherNotFound {
		t.Errorf("AssignTeacher() error = %v, want ErrTeacherNotFound", err)
	}
}

func TestService_CreateStudent_duplicateEnrollmentID(t *testing.T) {
	env := setup(t)
	createStudent(t, env.svc, "awa", "stu001")

	_, err := env.svc.CreateStudent(school.NewStudent{
		NewUser: user.NewUser{
			Name:     "Other",
			Username: "other",
			Email:    "other@test.cd",
			Password: "LePassword123",
			Role:     user.RoleStudent,
		},
		EnrollmentID: "stu001",
	})
	var vErr *core.ValidationError
	if !asValidationError(err, &vErr) {
		t.Fatalf("CreateStudent() error = %v, want a validation error", err)
	}
	if len(vErr.Fields) == 0 || vErr.Fields[0].Field != "enrollment_id" {
		t.Errorf("CreateStudent() fields = %+v, want enrollment_id", vErr.Fields)
	}
}

func TestService_CreateCourse_duplicateCode(t *testing.T) {
	env := setup(t)
	createCourse(t, env.svc, "cs101", "Intro to CS")

	_, err := env.svc.CreateCourse(1, school.NewCourse{Code: "cs101", Name: "Another"})
	var vErr *core.ValidationError
	if !asValidationError(err, &vErr) {
		t.Fatalf("CreateCourse() error = %v, want a validation error", err)
	}
	if len(vErr.Fields) == 0 || vErr.Fields[0].Field != "code" {
		t.Errorf("CreateCourse() fields = %+v, want code", vErr.Fields)
	}
}

func asValidationError(err error, target **core.ValidationError) bool {
	vErr, ok := err.(*core.ValidationError)
	if ok {
		*target = vErr
	}
	return ok
}
