package school

import (
	"errors"
	"time"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/activity"
	"github.com/trezcool/shule/core/user"
)

var (
	// errors
	ErrTeacherNotFound     = errors.New("teacher not found")
	ErrStudentNotFound     = errors.New("student not found")
	ErrCourseNotFound      = errors.New("course not found")
	ErrMaterialNotFound    = errors.New("course material not found")
	ErrCourseCodeExists    = errors.New("a course with this code already exists")
	ErrEnrollmentIDExists  = errors.New("a student with this enrollment id already exists")
	ErrAlreadyEnrolled     = errors.New("student is already enrolled in this course")
	ErrNotEnrolled         = errors.New("student is not enrolled in this course")
	ErrTeacherAssigned     = errors.New("teacher is already assigned to this course")
	ErrTeacherNotAssigned  = errors.New("teacher is not assigned to this course")
)

// ChangeResult is the outcome of an idempotent membership operation.
type ChangeResult int

const (
	// ChangeApplied: the link was added or removed.
	ChangeApplied ChangeResult = iota
	// ChangeUnchanged: the requested state already held; nothing was done.
	ChangeUnchanged
	// ChangeNotFound: one of the referenced records does not exist.
	ChangeNotFound
)

type (
	Repository interface {
		// teachers
		CreateTeacher(t Teacher) (Teacher, error)
		GetTeacherByID(id int) (Teacher, error)
		GetTeacherByUserID(userID int) (Teacher, error)
		QueryAllTeachers() ([]Teacher, error)
		UpdateTeacher(t Teacher) (Teacher, error)

		// students
		CheckEnrollmentIDUniqueness(enrollmentID string, excludedStudents ...Student) error
		CreateStudent(s Student) (Student, error)
		GetStudentByID(id int) (Student, error)
		GetStudentByUserID(userID int) (Student, error)
		QueryAllStudents() ([]Student, error)
		QueryStudentsByCourse(courseID int) ([]Student, error)
		UpdateStudent(s Student) (Student, error)

		// courses
		CheckCourseCodeUniqueness(code string, excludedCourses ...Course) error
		CreateCourse(c Course) (Course, error)
		GetCourseByID(id int) (Course, error)
		QueryAllCourses() ([]Course, error)
		QueryCoursesByTeacherUser(userID int) ([]Course, error)
		QueryCoursesByStudent(studentID int) ([]Course, error)
		UpdateCourse(c Course) (Course, error)
		DeleteCoursesByID(ids ...int) error

		// membership links; adds and removes report whether a change was made
		AddStudentToCourse(studentID, courseID int) (bool, error)
		RemoveStudentFromCourse(studentID, courseID int) (bool, error)
		AddTeacherToCourse(teacherID, courseID int) (bool, error)
		RemoveTeacherFromCourse(teacherID, courseID int) (bool, error)

		// materials
		CreateMaterial(m CourseMaterial) (CourseMaterial, error)
		GetMaterialByID(id int) (CourseMaterial, error)
		QueryMaterialsByCourse(courseID int) ([]CourseMaterial, error)
		DeleteMaterialsByID(ids ...int) error
	}

	Service interface {
		// provisioning
		CreateTeacher(nt NewTeacher) (Teacher, error)
		GetTeacher(id int) (Teacher, error)
		GetTeacherByUser(userID int) (Teacher, error)
		QueryTeachers() ([]Teacher, error)
		UpdateTeacher(id int, ut UpdateTeacher) (Teacher, error)
		DeleteTeacher(id int) error

		CreateStudent(ns NewStudent) (Student, error)
		GetStudent(id int) (Student, error)
		GetStudentByUser(userID int) (Student, error)
		QueryStudents() ([]Student, error)
		UpdateStudent(id int, us UpdateStudent) (Student, error)
		DeleteStudent(id int) error

		// courses
		CreateCourse(actorID int, nc NewCourse) (Course, error)
		GetCourse(id int) (Course, error)
		QueryCourses() ([]Course, error)
		QueryCoursesByTeacherUser(userID int) ([]Course, error)
		QueryCoursesByStudent(studentID int) ([]Course, error)
		UpdateCourse(actorID, id int, uc UpdateCourse) (Course, error)
		DeleteCourse(actorID, id int) error

		// enrollment & teacher assignment; idempotent tri-state operations
		Enroll(actorID, studentID, courseID int) (ChangeResult, error)
		Unenroll(actorID, studentID, courseID int) (ChangeResult, error)
		AssignTeacher(actorID, teacherID, courseID int) (ChangeResult, error)
		RemoveTeacher(actorID, teacherID, courseID int) (ChangeResult, error)

		// materials
		AddMaterial(actorID int, nm NewMaterial) (CourseMaterial, error)
		GetMaterial(id int) (CourseMaterial, error)
		QueryMaterials(courseID int) ([]CourseMaterial, error)
		DeleteMaterial(actorID, id int) error
	}

	service struct {
		repo        Repository
		usrSvc      user.Service
		activitySvc activity.Service
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, usrSvc user.Service, activitySvc activity.Service) Service {
	return &service{
		repo:        repo,
		usrSvc:      usrSvc,
		activitySvc: activitySvc,
	}
}

// Teachers

func (svc *service) CreateTeacher(nt NewTeacher) (Teacher, error) {
	usr, err := svc.usrSvc.Create(nt.NewUser)
	if err != nil {
		return Teacher{}, err
	}
	return svc.repo.CreateTeacher(Teacher{
		UserID:    usr.ID,
		Specialty: nt.Specialty,
		Phone:     nt.Phone,
		User:      usr,
	})
}

func (svc *service) GetTeacher(id int) (Teacher, error) {
	return svc.repo.GetTeacherByID(id)
}

func (svc *service) GetTeacherByUser(userID int) (Teacher, error) {
	return svc.repo.GetTeacherByUserID(userID)
}

func (svc *service) QueryTeachers() ([]Teacher, error) {
	return svc.repo.QueryAllTeachers()
}

func (svc *service) UpdateTeacher(id int, ut UpdateTeacher) (Teacher, error) {
	teacher, err := svc.repo.GetTeacherByID(id)
	if err != nil {
		return Teacher{}, err
	}
	if ut.Specialty != "" {
		teacher.Specialty = ut.Specialty
	}
	if ut.Phone != "" {
		teacher.Phone = ut.Phone
	}
	return svc.repo.UpdateTeacher(teacher)
}

// DeleteTeacher deletes the owning User; the Teacher profile and its course
// membership links cascade. Courses themselves survive (teachers is m2m).
func (svc *service) DeleteTeacher(id int) error {
	teacher, err := svc.repo.GetTeacherByID(id)
	if err != nil {
		return err
	}
	return svc.usrSvc.Delete(teacher.UserID)
}

// Students

func (svc *service) CreateStudent(ns NewStudent) (Student, error) {
	if err := svc.checkEnrollmentIDUniqueness(ns.EnrollmentID); err != nil {
		return Student{}, err
	}
	usr, err := svc.usrSvc.Create(ns.NewUser)
	if err != nil {
		return Student{}, err
	}
	return svc.repo.CreateStudent(Student{
		UserID:       usr.ID,
		EnrollmentID: ns.EnrollmentID,
		Semester:     ns.Semester,
		User:         usr,
	})
}

func (svc *service) checkEnrollmentIDUniqueness(enrollmentID string, excl ...Student) error {
	if err := svc.repo.CheckEnrollmentIDUniqueness(enrollmentID, excl...); err != nil {
		if err == ErrEnrollmentIDExists {
			return core.NewValidationError(err, core.FieldError{Field: "enrollment_id", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) GetStudent(id int) (Student, error) {
	return svc.repo.GetStudentByID(id)
}

func (svc *service) GetStudentByUser(userID int) (Student, error) {
	return svc.repo.GetStudentByUserID(userID)
}

func (svc *service) QueryStudents() ([]Student, error) {
	return svc.repo.QueryAllStudents()
}

func (svc *service) UpdateStudent(id int, us UpdateStudent) (Student, error) {
	student, err := svc.repo.GetStudentByID(id)
	if err != nil {
		return Student{}, err
	}
	if us.Semester != 0 {
		student.Semester = us.Semester
	}
	return svc.repo.UpdateStudent(student)
}

// DeleteStudent deletes the owning User; the Student profile, its enrollment
// links and its submissions cascade.
func (svc *service) DeleteStudent(id int) error {
	student, err := svc.repo.GetStudentByID(id)
	if err != nil {
		return err
	}
	return svc.usrSvc.Delete(student.UserID)
}

// Courses

func (svc *service) CreateCourse(actorID int, nc NewCourse) (Course, error) {
	if err := svc.checkCourseCodeUniqueness(nc.Code); err != nil {
		return Course{}, err
	}
	course, err := svc.repo.CreateCourse(Course{
		Code:        nc.Code,
		Name:        nc.Name,
		Description: nc.Description,
		Credit:      nc.Credit,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return Course{}, err
	}
	svc.activitySvc.Record(actorID, activity.ActionCourseCreate, "course", course.ID, course.Name)
	return course, nil
}

func (svc *service) checkCourseCodeUniqueness(code string, excl ...Course) error {
	if err := svc.repo.CheckCourseCodeUniqueness(code, excl...); err != nil {
		if err == ErrCourseCodeExists {
			return core.NewValidationError(err, core.FieldError{Field: "code", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) GetCourse(id int) (Course, error) {
	return svc.repo.GetCourseByID(id)
}

func (svc *service) QueryCourses() ([]Course, error) {
	return svc.repo.QueryAllCourses()
}

func (svc *service) QueryCoursesByTeacherUser(userID int) ([]Course, error) {
	return svc.repo.QueryCoursesByTeacherUser(userID)
}

func (svc *service) QueryCoursesByStudent(studentID int) ([]Course, error) {
	return svc.repo.QueryCoursesByStudent(studentID)
}

func (svc *service) UpdateCourse(actorID, id int, uc UpdateCourse) (Course, error) {
	course, err := svc.repo.GetCourseByID(id)
	if err != nil {
		return Course{}, err
	}
	if err := uc.Validate(course); err != nil {
		return Course{}, err
	}
	if uc.Code != course.Code {
		if err := svc.checkCourseCodeUniqueness(uc.Code, course); err != nil {
			return Course{}, err
		}
	}
	course.Code = uc.Code
	course.Name = uc.Name
	if uc.Description != "" {
		course.Description = uc.Description
	}
	course.Credit = uc.Credit

	course, err = svc.repo.UpdateCourse(course)
	if err != nil {
		return Course{}, err
	}
	svc.activitySvc.Record(actorID, activity.ActionCourseUpdate, "course", course.ID, course.Name)
	return course, nil
}

func (svc *service) DeleteCourse(actorID, id int) error {
	course, err := svc.repo.GetCourseByID(id)
	if err != nil {
		return err
	}
	if err = svc.repo.DeleteCoursesByID(id); err != nil {
		return err
	}
	svc.activitySvc.Record(actorID, activity.ActionCourseDelete, "course", course.ID, course.Name)
	return nil
}

// Enrollment & teacher assignment

func (svc *service) Enroll(actorID, studentID, courseID int) (ChangeResult, error) {
	student, err := svc.repo.GetStudentByID(studentID)
	if err != nil {
		if err == ErrStudentNotFound {
			return ChangeNotFound, err
		}
		return ChangeUnchanged, err
	}
	course, err := svc.repo.GetCourseByID(courseID)
	if err != nil {
		if err == ErrCourseNotFound {
			return ChangeNotFound, err
		}
		return ChangeUnchanged, err
	}

	added, err := svc.repo.AddStudentToCourse(studentID, courseID)
	if err != nil {
		return ChangeUnchanged, err
	}
	if !added {
		return ChangeUnchanged, core.NewConflictError(ErrAlreadyEnrolled.Error())
	}
	svc.activitySvc.Record(actorID, activity.ActionStudentAdd, "enrollment", course.ID,
		student.User.Username+" to "+course.Name)
	return ChangeApplied, nil
}

func (svc *service) Unenroll(actorID, studentID, courseID int) (ChangeResult, error) {
	student, err := svc.repo.GetStudentByID(studentID)
	if err != nil {
		if err == ErrStudentNotFound {
			return ChangeNotFound, err
		}
		return ChangeUnchanged, err
	}
	course, err := svc.repo.GetCourseByID(courseID)
	if err != nil {
		if err == ErrCourseNotFound {
			return ChangeNotFound, err
		}
		return ChangeUnchanged, err
	}

	removed, err := svc.repo.RemoveStudentFromCourse(studentID, courseID)
	if err != nil {
		return ChangeUnchanged, err
	}
	if !removed {
		return ChangeUnchanged, core.NewConflictError(ErrNotEnrolled.Error())
	}
	svc.activitySvc.Record(actorID, activity.ActionStudentRemove, "enrollment", course.ID,
		student.User.Username+" from "+course.Name)
	return ChangeApplied, nil
}

func (svc *service) AssignTeacher(actorID, teacherID, courseID int) (ChangeResult, error) {
	teacher, err := svc.repo.GetTeacherByID(teacherID)
	if err != nil {
		if err == ErrTeacherNotFound {
			return ChangeNotFound, err
		}
		return ChangeUnchanged, err
	}
	course, err := svc.repo.GetCourseByID(courseID)
	if err != nil {
		if err == ErrCourseNotFound {
			return ChangeNotFound, err
		}
		return ChangeUnchanged, err
	}

	added, err := svc.repo.AddTeacherToCourse(teacherID, courseID)
	if err != nil {
		return ChangeUnchanged, err
	}
	if !added {
		return ChangeUnchanged, core.NewConflictError(ErrTeacherAssigned.Error())
	}
	svc.activitySvc.Record(actorID, activity.ActionTeacherAssign, "course", course.ID,
		teacher.User.Username+" to "+course.Name)
	return ChangeApplied, nil
}

func (svc *service) RemoveTeacher(actorID, teacherID, courseID int) (ChangeResult, error) {
	teacher, err := svc.repo.GetTeacherByID(teacherID)
	if err != nil {
		if err == ErrTeacherNotFound {
			return ChangeNotFound, err
		}
		return ChangeUnchanged, err
	}
	course, err := svc.repo.GetCourseByID(courseID)
	if err != nil {
		if err == ErrCourseNotFound {
			return ChangeNotFound, err
		}
		return ChangeUnchanged, err
	}

	removed, err := svc.repo.RemoveTeacherFromCourse(teacherID, courseID)
	if err != nil {
		return ChangeUnchanged, err
	}
	if !removed {
		return ChangeUnchanged, core.NewConflictError(ErrTeacherNotAssigned.Error())
	}
	svc.activitySvc.Record(actorID, activity.ActionTeacherRemove, "course", course.ID,
		teacher.User.Username+" from "+course.Name)
	return ChangeApplied, nil
}

// Materials

func (svc *service) AddMaterial(actorID int, nm NewMaterial) (CourseMaterial, error) {
	course, err := svc.repo.GetCourseByID(nm.CourseID)
	if err != nil {
		return CourseMaterial{}, err
	}
	material, err := svc.repo.CreateMaterial(CourseMaterial{
		CourseID:     course.ID,
		Title:        nm.Title,
		Description:  nm.Description,
		FileRef:      nm.FileRef,
		UploadedByID: actorID,
		UploadedAt:   time.Now().UTC(),
	})
	if err != nil {
		return CourseMaterial{}, err
	}
	svc.activitySvc.Record(actorID, activity.ActionMaterialUpload, "material", material.ID, material.Title)
	return material, nil
}

func (svc *service) GetMaterial(id int) (CourseMaterial, error) {
	return svc.repo.GetMaterialByID(id)
}

func (svc *service) QueryMaterials(courseID int) ([]CourseMaterial, error) {
	return svc.repo.QueryMaterialsByCourse(courseID)
}

func (svc *service) DeleteMaterial(actorID, id int) error {
	if _, err := svc.repo.GetMaterialByID(id); err != nil {
		return err
	}
	return svc.repo.DeleteMaterialsByID(id)
}
