package sqlxrepos

import (
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core/assignment"
)

type assignmentRow struct {
	ID            int         `db:"id"`
	CourseID      int         `db:"course_id"`
	TeacherID     int         `db:"teacher_id"`
	Title         string      `db:"title"`
	Description   string      `db:"description"`
	DueDate       time.Time   `db:"due_date"`
	MaxPoints     int         `db:"max_points"`
	Status        string      `db:"status"`
	AttachmentRef null.String `db:"attachment_ref"`
	CreatedAt     time.Time   `db:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at"`
}

func (r assignmentRow) toAssignment() assignment.Assignment {
	return assignment.Assignment{
		ID:            r.ID,
		CourseID:      r.CourseID,
		TeacherID:     r.TeacherID,
		Title:         r.Title,
		Description:   r.Description,
		DueDate:       r.DueDate,
		MaxPoints:     r.MaxPoints,
		Status:        r.Status,
		AttachmentRef: r.AttachmentRef,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

type submissionRow struct {
	ID           int       `db:"id"`
	AssignmentID int       `db:"assignment_id"`
	StudentID    int       `db:"student_id"`
	FileRef      string    `db:"file_ref"`
	SubmittedAt  time.Time `db:"submitted_at"`
	Grade        null.Int  `db:"grade"`
	Feedback     string    `db:"feedback"`
	IsLate       bool      `db:"is_late"`
}

func (r submissionRow) toSubmission() assignment.Submission {
	return assignment.Submission{
		ID:           r.ID,
		AssignmentID: r.AssignmentID,
		StudentID:    r.StudentID,
		FileRef:      r.FileRef,
		SubmittedAt:  r.SubmittedAt,
		Grade:        r.Grade,
		Feedback:     r.Feedback,
		IsLate:       r.IsLate,
	}
}

var (
	assignmentColumns = []string{
		"id", "course_id", "teacher_id", "title", "description", "due_date",
		"max_points", "status", "attachment_ref", "created_at", "updated_at",
	}
	submissionColumns = []string{
		"id", "assignment_id", "student_id", "file_ref", "submitted_at",
		"grade", "feedback", "is_late",
	}
)

type assignmentRepository struct {
	db        *sqlx.DB
	schoolRepo *schoolRepository
}

var _ assignment.Repository = (*assignmentRepository)(nil)

func NewAssignmentRepository(db *sqlx.DB) assignment.Repository {
	return &assignmentRepository{db: db, schoolRepo: &schoolRepository{db: db}}
}

func (repo *assignmentRepository) CreateAssignment(a assignment.Assignment) (assignment.Assignment, error) {
	query, args, err := psql.Insert("assignments").
		Columns("course_id", "teacher_id", "title", "description", "due_date",
			"max_points", "status", "attachment_ref", "created_at", "updated_at").
		Values(a.CourseID, a.TeacherID, a.Title, a.Description, a.DueDate,
			a.MaxPoints, a.Status, a.AttachmentRef, a.CreatedAt, a.UpdatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "building query")
	}
	if err = repo.db.Get(&a.ID, query, args...); err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "creating assignment")
	}
	if err = repo.setAssignmentStudents(a.ID, a.StudentIDs); err != nil {
		return assignment.Assignment{}, err
	}
	return a, nil
}

func (repo *assignmentRepository) setAssignmentStudents(assignmentID int, studentIDs []int) error {
	query, args, err := psql.Delete("assignment_students").
		Where(sq.Eq{"assignment_id": assignmentID}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	if _, err = repo.db.Exec(query, args...); err != nil {
		return errors.Wrap(err, "clearing assignment students")
	}
	if len(studentIDs) == 0 {
		return nil
	}

	qb := psql.Insert("assignment_students").Columns("assignment_id", "student_id")
	for _, sid := range studentIDs {
		qb = qb.Values(assignmentID, sid)
	}
	query, args, err = qb.Suffix("ON CONFLICT DO NOTHING").ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	if _, err = repo.db.Exec(query, args...); err != nil {
		return errors.Wrap(err, "setting assignment students")
	}
	return nil
}

func (repo *assignmentRepository) loadAssignmentStudentIDs(a *assignment.Assignment) error {
	query, args, err := psql.Select("student_id").
		From("assignment_students").
		Where(sq.Eq{"assignment_id": a.ID}).
		OrderBy("student_id").
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	if err = repo.db.Select(&a.StudentIDs, query, args...); err != nil {
		return errors.Wrap(err, "loading assignment students")
	}
	return nil
}

func (repo *assignmentRepository) GetAssignmentByID(id int) (assignment.Assignment, error) {
	query, args, err := psql.Select(assignmentColumns...).
		From("assignments").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "building query")
	}
	var row assignmentRow
	if err = repo.db.Get(&row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return assignment.Assignment{}, assignment.ErrNotFound
		}
		return assignment.Assignment{}, errors.Wrap(err, "getting assignment")
	}
	asg := row.toAssignment()
	if err = repo.loadAssignmentStudentIDs(&asg); err != nil {
		return assignment.Assignment{}, err
	}
	return asg, nil
}

func (repo *assignmentRepository) queryAssignments(qb sq.SelectBuilder) ([]assignment.Assignment, error) {
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []assignmentRow
	if err = repo.db.Select(&rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	asgs := make([]assignment.Assignment, len(rows))
	for i, r := range rows {
		asgs[i] = r.toAssignment()
	}
	return asgs, nil
}

func (repo *assignmentRepository) QueryAllAssignments() ([]assignment.Assignment, error) {
	return repo.queryAssignments(psql.Select(assignmentColumns...).
		From("assignments").
		OrderBy("due_date"))
}

func (repo *assignmentRepository) QueryAssignmentsByOwner(userID int) ([]assignment.Assignment, error) {
	return repo.queryAssignments(psql.Select(assignmentColumns...).
		From("assignments").
		Where(sq.Eq{"teacher_id": userID}).
		OrderBy("due_date"))
}

func (repo *assignmentRepository) QueryAssignmentsByCourses(courseIDs []int, publishedOnly bool) ([]assignment.Assignment, error) {
	if len(courseIDs) == 0 {
		return nil, nil
	}
	qb := psql.Select(assignmentColumns...).
		From("assignments").
		Where(sq.Eq{"course_id": courseIDs}).
		OrderBy("due_date")
	if publishedOnly {
		qb = qb.Where(sq.Eq{"status": assignment.StatusPublished})
	}
	return repo.queryAssignments(qb)
}

func (repo *assignmentRepository) UpdateAssignment(a assignment.Assignment) (assignment.Assignment, error) {
	query, args, err := psql.Update("assignments").
		Set("title", a.Title).
		Set("description", a.Description).
		Set("due_date", a.DueDate).
		Set("max_points", a.MaxPoints).
		Set("status", a.Status).
		Set("attachment_ref", a.AttachmentRef).
		Set("updated_at", a.UpdatedAt).
		Where(sq.Eq{"id": a.ID}).
		ToSql()
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.db.Exec(query, args...); err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "updating assignment")
	}
	if err = repo.setAssignmentStudents(a.ID, a.StudentIDs); err != nil {
		return assignment.Assignment{}, err
	}
	return a, nil
}

func (repo *assignmentRepository) DeleteAssignmentsByID(ids ...int) error {
	query, args, err := psql.Delete("assignments").Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	if _, err = repo.db.Exec(query, args...); err != nil {
		return errors.Wrap(err, "deleting assignments")
	}
	return nil
}

// Submissions

func (repo *assignmentRepository) CreateSubmission(s assignment.Submission) (assignment.Submission, error) {
	query, args, err := psql.Insert("submissions").
		Columns("assignment_id", "student_id", "file_ref", "submitted_at", "grade", "feedback", "is_late").
		Values(s.AssignmentID, s.StudentID, s.FileRef, s.SubmittedAt, s.Grade, s.Feedback, s.IsLate).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return assignment.Submission{}, errors.Wrap(err, "building query")
	}
	if err = repo.db.Get(&s.ID, query, args...); err != nil {
		if isUniqueViolation(err, "submissions_assignment_student_key") {
			return assignment.Submission{}, assignment.ErrDuplicateSubmission
		}
		return assignment.Submission{}, errors.Wrap(err, "creating submission")
	}
	return s, nil
}

// GetSubmissionByID loads the submission with its assignment and student,
// which access checks need.
func (repo *assignmentRepository) GetSubmissionByID(id int) (assignment.Submission, error) {
	query, args, err := psql.Select(submissionColumns...).
		From("submissions").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return assignment.Submission{}, errors.Wrap(err, "building query")
	}
	var row submissionRow
	if err = repo.db.Get(&row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return assignment.Submission{}, assignment.ErrSubmissionNotFound
		}
		return assignment.Submission{}, errors.Wrap(err, "getting submission")
	}
	sub := row.toSubmission()

	asg, err := repo.GetAssignmentByID(sub.AssignmentID)
	if err != nil {
		return assignment.Submission{}, err
	}
	sub.Assignment = &asg
	student, err := repo.schoolRepo.GetStudentByID(sub.StudentID)
	if err != nil {
		return assignment.Submission{}, err
	}
	sub.Student = &student
	return sub, nil
}

func (repo *assignmentRepository) querySubmissions(qb sq.SelectBuilder) ([]assignment.Submission, error) {
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []submissionRow
	if err = repo.db.Select(&rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	subs := make([]assignment.Submission, len(rows))
	for i, r := range rows {
		subs[i] = r.toSubmission()
	}
	return subs, nil
}

func (repo *assignmentRepository) QuerySubmissionsByAssignment(assignmentID int) ([]assignment.Submission, error) {
	return repo.querySubmissions(psql.Select(submissionColumns...).
		From("submissions").
		Where(sq.Eq{"assignment_id": assignmentID}).
		OrderBy("submitted_at"))
}

func (repo *assignmentRepository) QuerySubmissionsByStudent(studentID int) ([]assignment.Submission, error) {
	return repo.querySubmissions(psql.Select(submissionColumns...).
		From("submissions").
		Where(sq.Eq{"student_id": studentID}).
		OrderBy("submitted_at DESC"))
}

func (repo *assignmentRepository) UpdateSubmission(s assignment.Submission) (assignment.Submission, error) {
	query, args, err := psql.Update("submissions").
		Set("grade", s.Grade).
		Set("feedback", s.Feedback).
		Where(sq.Eq{"id": s.ID}).
		ToSql()
	if err != nil {
		return assignment.Submission{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.db.Exec(query, args...); err != nil {
		return assignment.Submission{}, errors.Wrap(err, "updating submission")
	}
	return s, nil
}
