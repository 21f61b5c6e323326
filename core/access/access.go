package access

import (
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

// Actor is the authenticated user performing an operation, together with its
// role profile. The profile pointer matching the role must be set for the
// role-specific rules to grant anything; everything fails closed otherwise.
type Actor struct {
	User    user.User
	Teacher *school.Teacher
	Student *school.Student
}

func (a Actor) IsAdmin() bool {
	return a.User.IsAdmin()
}

func (a Actor) IsTeacher() bool {
	return a.User.IsTeacher() && a.Teacher != nil
}

func (a Actor) IsStudent() bool {
	return a.User.IsStudent() && a.Student != nil
}

type (
	// Assignment is any record owned by a single teacher-user. Ownership is
	// by the specific assigning teacher, not course-teacher membership.
	Assignment interface {
		OwnerUserID() int
	}

	// Submission is any record tied to an assignment owner and a submitting
	// student-user.
	Submission interface {
		AssignmentOwnerUserID() int
		StudentUserID() int
	}
)

// CanManageCourse reports whether the actor may create, modify or delete
// records under the given course: admins, and teachers who are members of the
// course's teacher set.
func CanManageCourse(a Actor, c school.Course) bool {
	if a.IsAdmin() {
		return true
	}
	return a.IsTeacher() && c.HasTeacherUser(a.User.ID)
}

// CanManageAssignment reports whether the actor may modify, archive or delete
// the assignment. Only the owning teacher (or an admin) qualifies; teaching
// the same course is not enough.
func CanManageAssignment(a Actor, asg Assignment) bool {
	if a.IsAdmin() {
		return true
	}
	if !a.IsTeacher() {
		return false
	}
	owner := asg.OwnerUserID()
	return owner != 0 && owner == a.User.ID
}

// CanViewSubmission grants the assignment's owning teacher, the submitting
// student and admins.
func CanViewSubmission(a Actor, sub Submission) bool {
	if a.IsAdmin() {
		return true
	}
	if a.IsTeacher() {
		owner := sub.AssignmentOwnerUserID()
		return owner != 0 && owner == a.User.ID
	}
	if a.IsStudent() {
		student := sub.StudentUserID()
		return student != 0 && student == a.User.ID
	}
	return false
}

// CanGradeSubmission: only the assignment's owning teacher (or an admin) may
// set grade and feedback.
func CanGradeSubmission(a Actor, sub Submission) bool {
	if a.IsAdmin() {
		return true
	}
	if !a.IsTeacher() {
		return false
	}
	owner := sub.AssignmentOwnerUserID()
	return owner != 0 && owner == a.User.ID
}

// CanViewCourseMaterials grants admins, teachers of the course and enrolled
// students.
func CanViewCourseMaterials(a Actor, c school.Course) bool {
	if a.IsAdmin() {
		return true
	}
	if a.IsTeacher() && c.HasTeacherUser(a.User.ID) {
		return true
	}
	return a.IsStudent() && a.Student.IsEnrolledIn(c.ID)
}
