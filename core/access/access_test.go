package access

import (
	"testing"

	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

type stubAssignment struct{ owner int }

func (a stubAssignment) OwnerUserID() int { return a.owner }

type stubSubmission struct {
	owner   int
	student int
}

func (s stubSubmission) AssignmentOwnerUserID() int { return s.owner }
func (s stubSubmission) StudentUserID() int         { return s.student }

func adminActor(userID int) Actor {
	return Actor{User: user.User{ID: userID, Role: user.RoleAdmin}}
}

func teacherActor(userID int) Actor {
	return Actor{
		User:    user.User{ID: userID, Role: user.RoleTeacher},
		Teacher: &school.Teacher{ID: 100 + userID, UserID: userID},
	}
}

func studentActor(userID int, courseIDs ...int) Actor {
	return Actor{
		User:    user.User{ID: userID, Role: user.RoleStudent},
		Student: &school.Student{ID: 200 + userID, UserID: userID, CourseIDs: courseIDs},
	}
}

func TestCanManageCourse(t *testing.T) {
	course := school.Course{
		ID:       1,
		Teachers: []school.Teacher{{ID: 101, UserID: 1}},
	}

	tests := []struct {
		name  string
		actor Actor
		want  bool
	}{
		{name: "admin", actor: adminActor(9), want: true},
		{name: "course teacher", actor: teacherActor(1), want: true},
		{name: "other teacher", actor: teacherActor(2), want: false},
		{name: "student", actor: studentActor(3, 1), want: false},
		{name: "teacher role without profile", actor: Actor{User: user.User{ID: 1, Role: user.RoleTeacher}}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanManageCourse(tt.actor, course); got != tt.want {
				t.Errorf("CanManageCourse() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanManageAssignment(t *testing.T) {
	tests := []struct {
		name  string
		actor Actor
		asg   Assignment
		want  bool
	}{
		{name: "admin", actor: adminActor(9), asg: stubAssignment{owner: 1}, want: true},
		{name: "owning teacher", actor: teacherActor(1), asg: stubAssignment{owner: 1}, want: true},
		{name: "co-teacher is not enough", actor: teacherActor(2), asg: stubAssignment{owner: 1}, want: false},
		{name: "student", actor: studentActor(3), asg: stubAssignment{owner: 3}, want: false},
		{name: "unknown owner fails closed", actor: teacherActor(1), asg: stubAssignment{}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanManageAssignment(tt.actor, tt.asg); got != tt.want {
				t.Errorf("CanManageAssignment() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanViewSubmission(t *testing.T) {
	sub := stubSubmission{owner: 1, student: 3}

	tests := []struct {
		name  string
		actor Actor
		sub   Submission
		want  bool
	}{
		{name: "admin", actor: adminActor(9), sub: sub, want: true},
		{name: "assignment owner", actor: teacherActor(1), sub: sub, want: true},
		{name: "other teacher", actor: teacherActor(2), sub: sub, want: false},
		{name: "submitting student", actor: studentActor(3), sub: sub, want: true},
		{name: "other student", actor: studentActor(4), sub: sub, want: false},
		{name: "unknown relations fail closed", actor: teacherActor(1), sub: stubSubmission{}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanViewSubmission(tt.actor, tt.sub); got != tt.want {
				t.Errorf("CanViewSubmission() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanGradeSubmission(t *testing.T) {
	sub := stubSubmission{owner: 1, student: 3}

	tests := []struct {
		name  string
		actor Actor
		want  bool
	}{
		{name: "admin", actor: adminActor(9), want: true},
		{name: "assignment owner", actor: teacherActor(1), want: true},
		{name: "other teacher", actor: teacherActor(2), want: false},
		{name: "submitting student", actor: studentActor(3), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanGradeSubmission(tt.actor, sub); got != tt.want {
				t.Errorf("CanGradeSubmission() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanViewCourseMaterials(t *testing.T) {
	course := school.Course{
		ID:       1,
		Teachers: []school.Teacher{{ID: 101, UserID: 1}},
	}

	tests := []struct {
		name  string
		actor Actor
		want  bool
	}{
		{name: "admin", actor: adminActor(9), want: true},
		{name: "course teacher", actor: teacherActor(1), want: true},
		{name: "other teacher", actor: teacherActor(2), want: false},
		{name: "enrolled student", actor: studentActor(3, 1), want: true},
		{name: "unenrolled student", actor: studentActor(4, 2), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanViewCourseMaterials(tt.actor, course); got != tt.want {
				t.Errorf("CanViewCourseMaterials() = %v, want %v", got, tt.want)
			}
		})
	}
}
