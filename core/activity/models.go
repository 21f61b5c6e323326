package activity

import "time"

// Action kinds
const (
	ActionCourseCreate     = "course_create"
	ActionCourseUpdate     = "course_update"
	ActionCourseDelete     = "course_delete"
	ActionAssignmentCreate = "assignment_create"
	ActionAssignmentUpdate = "assignment_update"
	ActionAssignmentSubmit = "assignment_submit"
	ActionGradeSubmit      = "grade_submit"
	ActionStudentAdd       = "student_add"
	ActionStudentRemove    = "student_remove"
	ActionTeacherAssign    = "teacher_assign"
	ActionTeacherRemove    = "teacher_remove"
	ActionMaterialUpload   = "material_upload"
	ActionMessageSend      = "message_send"
)

// Entry is one append-only activity record. Entries are written explicitly
// by each mutating operation; nothing is logged implicitly on save.
type Entry struct {
	ID         int       `json:"id"`
	UserID     int       `json:"user_id"`
	Action     string    `json:"action"`
	ObjectType string    `json:"object_type"`
	ObjectID   int       `json:"object_id"`
	ObjectName string    `json:"object_name"`
	Timestamp  time.Time `json:"timestamp"` // UTC
}
