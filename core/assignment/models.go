package assignment

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
)

// Statuses
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

var AllStatuses = []string{StatusDraft, StatusPublished, StatusArchived}

// Assignment belongs to one Course and is owned by exactly one teacher-user:
// the assigning teacher, which need not be every teacher of the course.
type Assignment struct {
	ID            int            `json:"id"`
	CourseID      int            `json:"course_id"`
	TeacherID     int            `json:"teacher_id"` // owning teacher-user
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	DueDate       time.Time      `json:"due_date"` // UTC
	MaxPoints     int            `json:"max_points"`
	Status        string         `json:"status"`
	AttachmentRef null.String    `json:"attachment"`
	CreatedAt     time.Time      `json:"created_at"` // UTC
	UpdatedAt     time.Time      `json:"updated_at"` // UTC
	StudentIDs    []int          `json:"student_ids"`
	Course        *school.Course `json:"course,omitempty"`
}

// OwnerUserID satisfies access.Assignment.
func (a *Assignment) OwnerUserID() int { return a.TeacherID }

func (a *Assignment) IsPastDue() bool {
	return time.Now().After(a.DueDate)
}

// DaysRemaining returns whole days until the due date; negative once past.
func (a *Assignment) DaysRemaining() int {
	return int(time.Until(a.DueDate).Hours() / 24)
}

// CanTransitionTo reports whether the status change is allowed:
// draft and published move freely between each other and into archived;
// archived is terminal.
func (a *Assignment) CanTransitionTo(status string) bool {
	if a.Status == status {
		return true
	}
	return a.Status != StatusArchived
}

// Submission records one student's work for one assignment; at most one
// exists per (assignment, student) pair. IsLate is computed once at creation
// against the due date of that instant and never recomputed.
type Submission struct {
	ID           int             `json:"id"`
	AssignmentID int             `json:"assignment_id"`
	StudentID    int             `json:"student_id"`
	FileRef      string          `json:"submitted_file"`
	SubmittedAt  time.Time       `json:"submitted_at"` // UTC
	Grade        null.Int        `json:"grade"`
	Feedback     string          `json:"feedback"`
	IsLate       bool            `json:"is_late"`
	Assignment   *Assignment     `json:"assignment,omitempty"`
	Student      *school.Student `json:"student,omitempty"`
}

func (s *Submission) IsGraded() bool { return s.Grade.Valid }

// AssignmentOwnerUserID satisfies access.Submission; zero when the relation
// is not loaded, which denies everything but admin.
func (s *Submission) AssignmentOwnerUserID() int {
	if s.Assignment == nil {
		return 0
	}
	return s.Assignment.TeacherID
}

// StudentUserID satisfies access.Submission.
func (s *Submission) StudentUserID() int {
	if s.Student == nil {
		return 0
	}
	return s.Student.UserID
}

// Stats are the computed completion counters shown on an assignment detail.
type Stats struct {
	TotalStudents  int `json:"total_students"`
	SubmittedCount int `json:"submitted_count"`
	GradedCount    int `json:"graded_count"`
	DaysRemaining  int `json:"days_remaining"`
}

type NewAssignment struct {
	CourseID    int       `json:"course_id" validate:"required"`
	TeacherID   int       `json:"teacher_id"` // required for admins, ignored for teachers
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"due_date" validate:"required"`
	MaxPoints   int       `json:"max_points" validate:"omitempty,min=1"`
	Status      string    `json:"status" validate:"omitempty,oneof=draft published"`
	StudentIDs  []int     `json:"student_ids"`
}

func (na *NewAssignment) Validate() error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	if na.MaxPoints == 0 {
		na.MaxPoints = 100
	}
	if na.Status == "" {
		na.Status = StatusDraft
	}
	if err := core.Validate.Struct(na); err != nil {
		return err
	}
	if na.DueDate.Before(time.Now()) {
		return core.NewValidationError(nil, core.FieldError{Field: "due_date", Error: "due date cannot be in the past"})
	}
	return nil
}

type UpdateAssignment struct {
	Title       string     `json:"title" validate:"omitempty,max=200"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	MaxPoints   int        `json:"max_points" validate:"omitempty,min=1"`
	Status      string     `json:"status" validate:"omitempty,oneof=draft published archived"`
	StudentIDs  []int      `json:"student_ids"`

	// AttachmentRef is set by the file upload handler, never bound from JSON.
	AttachmentRef string `json:"-"`
}

func (ua *UpdateAssignment) Validate(orig Assignment) error {
	ua.Title = core.CleanString(ua.Title)
	ua.Description = core.CleanString(ua.Description)
	if err := core.Validate.Struct(ua); err != nil {
		return err
	}
	if ua.DueDate != nil && ua.DueDate.Before(time.Now()) {
		return core.NewValidationError(nil, core.FieldError{Field: "due_date", Error: "due date cannot be in the past"})
	}
	if ua.Status != "" && !orig.CanTransitionTo(ua.Status) {
		return core.NewValidationError(nil, core.FieldError{
			Field: "status",
			Error: "archived assignments cannot be changed back to draft or published",
		})
	}
	return nil
}

type NewSubmission struct {
	AssignmentID int    `json:"assignment_id" validate:"required"`
	FileRef      string `json:"-" validate:"required"`
}

func (ns *NewSubmission) Validate() error { return core.Validate.Struct(ns) }

type GradeSubmission struct {
	Grade    *int   `json:"grade" validate:"required,min=0"`
	Feedback string `json:"feedback"`
}

func (gs *GradeSubmission) Validate(maxPoints int) error {
	gs.Feedback = core.CleanString(gs.Feedback)
	if err := core.Validate.Struct(gs); err != nil {
		return err
	}
	if *gs.Grade > maxPoints {
		return core.NewValidationError(nil, core.FieldError{Field: "grade", Error: "grade cannot exceed the assignment's max points"})
	}
	return nil
}
