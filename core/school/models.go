package school

import (
	"time"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

// Teacher extends a teacher-role User with staff attributes.
// It cascades when the owning User is deleted.
type Teacher struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id"`
	Specialty string    `json:"specialty"`
	Phone     string    `json:"phone"`
	User      user.User `json:"user"`
}

// Student extends a student-role User with an enrollment identity and the
// many-to-many Course membership. Enrollment is by course id only.
type Student struct {
	ID           int       `json:"id"`
	UserID       int       `json:"user_id"`
	EnrollmentID string    `json:"enrollment_id"`
	Semester     int       `json:"semester"`
	User         user.User `json:"user"`
	CourseIDs    []int     `json:"course_ids"`
}

func (s *Student) IsEnrolledIn(courseID int) bool {
	for _, id := range s.CourseIDs {
		if id == courseID {
			return true
		}
	}
	return false
}

// Course groups teachers and students. Both relations may be empty; a course
// with zero teachers is a valid state, not an error.
type Course struct {
	ID          int       `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Credit      int       `json:"credit"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	Teachers    []Teacher `json:"teachers,omitempty"`
	Students    []Student `json:"students,omitempty"`
}

// HasTeacherUser reports whether the given user owns one of the course's
// teacher profiles.
func (c *Course) HasTeacherUser(userID int) bool {
	for _, t := range c.Teachers {
		if t.UserID == userID {
			return true
		}
	}
	return false
}

func (c *Course) HasStudent(studentID int) bool {
	for _, s := range c.Students {
		if s.ID == studentID {
			return true
		}
	}
	return false
}

// CourseMaterial is a file shared with everyone who can view the course.
type CourseMaterial struct {
	ID           int       `json:"id"`
	CourseID     int       `json:"course_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	FileRef      string    `json:"file"`
	UploadedByID int       `json:"uploaded_by_id"`
	UploadedAt   time.Time `json:"uploaded_at"` // UTC
}

// NewTeacher provisions a teacher User and its Teacher profile together.
type NewTeacher struct {
	user.NewUser
	Specialty string `json:"specialty" validate:"required"`
	Phone     string `json:"phone"`
}

func (nt *NewTeacher) Validate(usrSvc user.Service) error {
	nt.Role = user.RoleTeacher
	nt.Specialty = core.CleanString(nt.Specialty)
	nt.Phone = core.CleanString(nt.Phone)
	if err := core.Validate.StructExcept(nt, "NewUser"); err != nil {
		return err
	}
	return nt.NewUser.Validate(usrSvc)
}

type UpdateTeacher struct {
	Specialty string `json:"specialty"`
	Phone     string `json:"phone"`
}

func (ut *UpdateTeacher) Validate() error {
	ut.Specialty = core.CleanString(ut.Specialty)
	ut.Phone = core.CleanString(ut.Phone)
	return core.Validate.Struct(ut)
}

// NewStudent provisions a student User and its Student profile together.
type NewStudent struct {
	user.NewUser
	EnrollmentID string `json:"enrollment_id" validate:"required,alphanum_"`
	Semester     int    `json:"semester" validate:"omitempty,min=1"`
}

func (ns *NewStudent) Validate(usrSvc user.Service) error {
	ns.Role = user.RoleStudent
	ns.EnrollmentID = core.CleanString(ns.EnrollmentID, true /* lower */)
	if ns.Semester == 0 {
		ns.Semester = 1
	}
	if err := core.Validate.StructExcept(ns, "NewUser"); err != nil {
		return err
	}
	return ns.NewUser.Validate(usrSvc)
}

type UpdateStudent struct {
	Semester int `json:"semester" validate:"omitempty,min=1"`
}

func (us *UpdateStudent) Validate() error { return core.Validate.Struct(us) }

type NewCourse struct {
	Code        string `json:"code" validate:"required,max=20"`
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description"`
	Credit      int    `json:"credit" validate:"omitempty,min=1"`
}

func (nc *NewCourse) Validate() error {
	nc.Code = core.CleanString(nc.Code, true /* lower */)
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	if nc.Credit == 0 {
		nc.Credit = 3
	}
	return core.Validate.Struct(nc)
}

type UpdateCourse struct {
	Code        string `json:"code" validate:"omitempty,max=20"`
	Name        string `json:"name" validate:"omitempty,max=200"`
	Description string `json:"description"`
	Credit      int    `json:"credit" validate:"omitempty,min=1"`
}

func (uc *UpdateCourse) Validate(origCourse Course) error {
	if code := core.CleanString(uc.Code, true /* lower */); code != "" {
		uc.Code = code
	} else {
		uc.Code = origCourse.Code
	}
	if name := core.CleanString(uc.Name); name != "" {
		uc.Name = name
	} else {
		uc.Name = origCourse.Name
	}
	uc.Description = core.CleanString(uc.Description)
	if uc.Credit == 0 {
		uc.Credit = origCourse.Credit
	}
	return core.Validate.Struct(uc)
}

type NewMaterial struct {
	CourseID    int    `json:"course_id" validate:"required"`
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description"`
	FileRef     string `json:"-" validate:"required"`
}

func (nm *NewMaterial) Validate() error {
	nm.Title = core.CleanString(nm.Title)
	nm.Description = core.CleanString(nm.Description)
	return core.Validate.Struct(nm)
}
