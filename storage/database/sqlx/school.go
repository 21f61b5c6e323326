package sqlxrepos

import (
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/school"
)

// teacherRow and studentRow join their owning user in one query.
type teacherRow struct {
	ID        int    `db:"id"`
	UserID    int    `db:"user_id"`
	Specialty string `db:"specialty"`
	Phone     string `db:"phone"`
	User      userRow `db:"user"`
}

func (r teacherRow) toTeacher() school.Teacher {
	return school.Teacher{
		ID:        r.ID,
		UserID:    r.UserID,
		Specialty: r.Specialty,
		Phone:     r.Phone,
		User:      r.User.toUser(),
	}
}

type studentRow struct {
	ID           int     `db:"id"`
	UserID       int     `db:"user_id"`
	EnrollmentID string  `db:"enrollment_id"`
	Semester     int     `db:"semester"`
	User         userRow `db:"user"`
}

func (r studentRow) toStudent() school.Student {
	return school.Student{
		ID:           r.ID,
		UserID:       r.UserID,
		EnrollmentID: r.EnrollmentID,
		Semester:     r.Semester,
		User:         r.User.toUser(),
	}
}

type courseRow struct {
	ID          int       `db:"id"`
	Code        string    `db:"code"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Credit      int       `db:"credit"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r courseRow) toCourse() school.Course {
	return school.Course{
		ID:          r.ID,
		Code:        r.Code,
		Name:        r.Name,
		Description: r.Description,
		Credit:      r.Credit,
		CreatedAt:   r.CreatedAt,
	}
}

type materialRow struct {
	ID           int       `db:"id"`
	CourseID     int       `db:"course_id"`
	Title        string    `db:"title"`
	Description  string    `db:"description"`
	FileRef      string    `db:"file_ref"`
	UploadedByID int       `db:"uploaded_by_id"`
	UploadedAt   time.Time `db:"uploaded_at"`
}

func (r materialRow) toMaterial() school.CourseMaterial {
	return school.CourseMaterial(r)
}

var (
	teacherColumns = []string{
		`t.id`, `t.user_id`, `t.specialty`, `t.phone`,
		`u.id AS "user.id"`, `u.name AS "user.name"`, `u.username AS "user.username"`,
		`u.email AS "user.email"`, `u.role AS "user.role"`, `u.is_active AS "user.is_active"`,
		`u.password_hash AS "user.password_hash"`, `u.created_at AS "user.created_at"`,
		`u.updated_at AS "user.updated_at"`, `u.last_login AS "user.last_login"`,
	}
	studentColumns = []string{
		`s.id`, `s.user_id`, `s.enrollment_id`, `s.semester`,
		`u.id AS "user.id"`, `u.name AS "user.name"`, `u.username AS "user.username"`,
		`u.email AS "user.email"`, `u.role AS "user.role"`, `u.is_active AS "user.is_active"`,
		`u.password_hash AS "user.password_hash"`, `u.created_at AS "user.created_at"`,
		`u.updated_at AS "user.updated_at"`, `u.last_login AS "user.last_login"`,
	}
	courseColumns = []string{"id", "code", "name", "description", "credit", "created_at"}
)

type schoolRepository struct {
	db *sqlx.DB
}

var _ school.Repository = (*schoolRepository)(nil)

func NewSchoolRepository(db *sqlx.DB) school.Repository {
	return &schoolRepository{db: db}
}

// Teachers

func (repo *schoolRepository) CreateTeacher(t school.Teacher) (school.Teacher, error) {
	query, args, err := psql.Insert("teachers").
		Columns("user_id", "specialty", "phone").
		Values(t.UserID, t.Specialty, t.Phone).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return school.Teacher{}, errors.Wrap(err, "building query")
	}
	if err = repo.db.Get(&t.ID, query, args...); err != nil {
		return school.Teacher{}, errors.Wrap(err, "creating teacher")
	}
	return t, nil
}

func (repo *schoolRepository) getTeacher(pred interface{}) (school.Teacher, error) {
	query, args, err := psql.Select(teacherColumns...).
		From("teachers t").
		Join("users u ON u.id = t.user_id").
		Where(pred).
		ToSql()
	if err != nil {
		return school.Teacher{}, errors.Wrap(err, "building query")
	}
	var row teacherRow
	if err = repo.db.Get(&row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return school.Teacher{}, school.ErrTeacherNotFound
		}
		return school.Teacher{}, errors.Wrap(err, "getting teacher")
	}
	return row.toTeacher(), nil
}

func (repo *schoolRepository) GetTeacherByID(id int) (school.Teacher, error) {
	return repo.getTeacher(sq.Eq{"t.id": id})
}

func (repo *schoolRepository) GetTeacherByUserID(userID int) (school.Teacher, error) {
	return repo.getTeacher(sq.Eq{"t.user_id": userID})
}

func (repo *schoolRepository) queryTeachers(qb sq.SelectBuilder) ([]school.Teacher, error) {
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []teacherRow
	if err = repo.db.Select(&rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying teachers")
	}
	teachers := make([]school.Teacher, len(rows))
	for i, r := range rows {
		teachers[i] = r.toTeacher()
	}
	return teachers, nil
}

func (repo *schoolRepository) QueryAllTeachers() ([]school.Teacher, error) {
	return repo.queryTeachers(psql.Select(teacherColumns...).
		From("teachers t").
		Join("users u ON u.id = t.user_id").
		OrderBy("t.id"))
}

func (repo *schoolRepository) queryTeachersByCourse(courseID int) ([]school.Teacher, error) {
	return repo.queryTeachers(psql.Select(teacherColumns...).
		From("teachers t").
		Join("users u ON u.id = t.user_id").
		Join("course_teachers ct ON ct.teacher_id = t.id").
		Where(sq.Eq{"ct.course_id": courseID}).
		OrderBy("t.id"))
}

func (repo *schoolRepository) UpdateTeacher(t school.Teacher) (school.Teacher, error) {
	query, args, err := psql.Update("teachers").
		Set("specialty", t.Specialty).
		Set("phone", t.Phone).
		Where(sq.Eq{"id": t.ID}).
		ToSql()
	if err != nil {
		return school.Teacher{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.db.Exec(query, args...); err != nil {
		return school.Teacher{}, errors.Wrap(err, "updating teacher")
	}
	return t, nil
}

// Students

func (repo *schoolRepository) CheckEnrollmentIDUniqueness(enrollmentID string, excludedStudents ...school.Student) error {
	qb := psql.Select("COUNT(*)").From("students").Where(sq.Eq{"enrollment_id": enrollmentID})
	if len(excludedStudents) > 0 {
		ids := make([]int, len(excludedStudents))
		for i, s := range excludedStudents {
			ids[i] = s.ID
		}
		qb = qb.Where(sq.NotEq{"id": ids})
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	var count int
	if err = repo.db.Get(&count, query, args...); err != nil {
		return errors.Wrap(err, "checking enrollment id uniqueness")
	}
	if count > 0 {
		return school.ErrEnrollmentIDExists
	}
	return nil
}

func (repo *schoolRepository) CreateStudent(s school.Student) (school.Student, error) {
	query, args, err := psql.Insert("students").
		Columns("user_id", "enrollment_id", "semester").
		Values(s.UserID, s.EnrollmentID, s.Semester).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return school.Student{}, errors.Wrap(err, "building query")
	}
	if err = repo.db.Get(&s.ID, query, args...); err != nil {
		if isUniqueViolation(err, "students_enrollment_id_key") {
			return school.Student{}, school.ErrEnrollmentIDExists
		}
		return school.Student{}, errors.Wrap(err, "creating student")
	}
	return s, nil
}

func (repo *schoolRepository) getStudent(pred interface{}) (school.Student, error) {
	query, args, err := psql.Select(studentColumns...).
		From("students s").
		Join("users u ON u.id = s.user_id").
		Where(pred).
		ToSql()
	if err != nil {
		return school.Student{}, errors.Wrap(err, "building query")
	}
	var row studentRow
	if err = repo.db.Get(&row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return school.Student{}, school.ErrStudentNotFound
		}
		return school.Student{}, errors.Wrap(err, "getting student")
	}
	student := row.toStudent()
	if err = repo.loadStudentCourseIDs(&student); err != nil {
		return school.Student{}, err
	}
	return student, nil
}

func (repo *schoolRepository) loadStudentCourseIDs(s *school.Student) error {
	query, args, err := psql.Select("course_id").
		From("course_students").
		Where(sq.Eq{"student_id": s.ID}).
		OrderBy("course_id").
		ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	if err = repo.db.Select(&s.CourseIDs, query, args...); err != nil {
		return errors.Wrap(err, "loading student courses")
	}
	return nil
}

func (repo *schoolRepository) GetStudentByID(id int) (school.Student, error) {
	return repo.getStudent(sq.Eq{"s.id": id})
}

func (repo *schoolRepository) GetStudentByUserID(userID int) (school.Student, error) {
	return repo.getStudent(sq.Eq{"s.user_id": userID})
}

func (repo *schoolRepository) queryStudents(qb sq.SelectBuilder) ([]school.Student, error) {
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []studentRow
	if err = repo.db.Select(&rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]school.Student, len(rows))
	for i, r := range rows {
		students[i] = r.toStudent()
	}
	return students, nil
}

func (repo *schoolRepository) QueryAllStudents() ([]school.Student, error) {
	return repo.queryStudents(psql.Select(studentColumns...).
		From("students s").
		Join("users u ON u.id = s.user_id").
		OrderBy("s.id"))
}

func (repo *schoolRepository) QueryStudentsByCourse(courseID int) ([]school.Student, error) {
	return repo.queryStudents(psql.Select(studentColumns...).
		From("students s").
		Join("users u ON u.id = s.user_id").
		Join("course_students cs ON cs.student_id = s.id").
		Where(sq.Eq{"cs.course_id": courseID}).
		OrderBy("s.id"))
}

func (repo *schoolRepository) UpdateStudent(s school.Student) (school.Student, error) {
	query, args, err := psql.Update("students").
		Set("enrollment_id", s.EnrollmentID).
		Set("semester", s.Semester).
		Where(sq.Eq{"id": s.ID}).
		ToSql()
	if err != nil {
		return school.Student{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.db.Exec(query, args...); err != nil {
		return school.Student{}, errors.Wrap(err, "updating student")
	}
	return s, nil
}

// Courses

func (repo *schoolRepository) CheckCourseCodeUniqueness(code string, excludedCourses ...school.Course) error {
	qb := psql.Select("COUNT(*)").From("courses").Where(sq.Eq{"code": code})
	if len(excludedCourses) > 0 {
		ids := make([]int, len(excludedCourses))
		for i, c := range excludedCourses {
			ids[i] = c.ID
		}
		qb = qb.Where(sq.NotEq{"id": ids})
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	var count int
	if err = repo.db.Get(&count, query, args...); err != nil {
		return errors.Wrap(err, "checking course code uniqueness")
	}
	if count > 0 {
		return school.ErrCourseCodeExists
	}
	return nil
}

func (repo *schoolRepository) CreateCourse(c school.Course) (school.Course, error) {
	query, args, err := psql.Insert("courses").
		Columns("code", "name", "description", "credit", "created_at").
		Values(c.Code, c.Name, c.Description, c.Credit, c.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return school.Course{}, errors.Wrap(err, "building query")
	}
	if err = repo.db.Get(&c.ID, query, args...); err != nil {
		if isUniqueViolation(err, "courses_code_key") {
			return school.Course{}, school.ErrCourseCodeExists
		}
		return school.Course{}, errors.Wrap(err, "creating course")
	}
	return c, nil
}

// GetCourseByID loads the course with its teacher and student memberships.
func (repo *schoolRepository) GetCourseByID(id int) (school.Course, error) {
	query, args, err := psql.Select(courseColumns...).From("courses").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return school.Course{}, errors.Wrap(err, "building query")
	}
	var row courseRow
	if err = repo.db.Get(&row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return school.Course{}, school.ErrCourseNotFound
		}
		return school.Course{}, errors.Wrap(err, "getting course")
	}
	course := row.toCourse()
	if course.Teachers, err = repo.queryTeachersByCourse(course.ID); err != nil {
		return school.Course{}, err
	}
	if course.Students, err = repo.QueryStudentsByCourse(course.ID); err != nil {
		return school.Course{}, err
	}
	return course, nil
}

func (repo *schoolRepository) queryCourses(qb sq.SelectBuilder) ([]school.Course, error) {
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []courseRow
	if err = repo.db.Select(&rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]school.Course, len(rows))
	for i, r := range rows {
		courses[i] = r.toCourse()
	}
	return courses, nil
}

func (repo *schoolRepository) QueryAllCourses() ([]school.Course, error) {
	return repo.queryCourses(psql.Select(courseColumns...).From("courses").OrderBy("id"))
}

func (repo *schoolRepository) QueryCoursesByTeacherUser(userID int) ([]school.Course, error) {
	return repo.queryCourses(psql.Select(
		"c.id", "c.code", "c.name", "c.description", "c.credit", "c.created_at").
		From("courses c").
		Join("course_teachers ct ON ct.course_id = c.id").
		Join("teachers t ON t.id = ct.teacher_id").
		Where(sq.Eq{"t.user_id": userID}).
		OrderBy("c.id"))
}

func (repo *schoolRepository) QueryCoursesByStudent(studentID int) ([]school.Course, error) {
	return repo.queryCourses(psql.Select(
		"c.id", "c.code", "c.name", "c.description", "c.credit", "c.created_at").
		From("courses c").
		Join("course_students cs ON cs.course_id = c.id").
		Where(sq.Eq{"cs.student_id": studentID}).
		OrderBy("c.id"))
}

func (repo *schoolRepository) UpdateCourse(c school.Course) (school.Course, error) {
	query, args, err := psql.Update("courses").
		Set("code", c.Code).
		Set("name", c.Name).
		Set("description", c.Description).
		Set("credit", c.Credit).
		Where(sq.Eq{"id": c.ID}).
		ToSql()
	if err != nil {
		return school.Course{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.db.Exec(query, args...); err != nil {
		if isUniqueViolation(err, "courses_code_key") {
			return school.Course{}, school.ErrCourseCodeExists
		}
		return school.Course{}, errors.Wrap(err, "updating course")
	}
	return c, nil
}

func (repo *schoolRepository) DeleteCoursesByID(ids ...int) error {
	query, args, err := psql.Delete("courses").Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	if _, err = repo.db.Exec(query, args...); err != nil {
		return errors.Wrap(err, "deleting courses")
	}
	return nil
}

// Membership links. ON CONFLICT DO NOTHING keeps adds idempotent; the
// affected-row count reports whether anything changed.

func (repo *schoolRepository) AddStudentToCourse(studentID, courseID int) (bool, error) {
	query, args, err := psql.Insert("course_students").
		Columns("student_id", "course_id").
		Values(studentID, courseID).
		Suffix("ON CONFLICT DO NOTHING").
		ToSql()
	if err != nil {
		return false, errors.Wrap(err, "building query")
	}
	return repo.execChanged(query, args, "enrolling student")
}

func (repo *schoolRepository) RemoveStudentFromCourse(studentID, courseID int) (bool, error) {
	query, args, err := psql.Delete("course_students").
		Where(sq.Eq{"student_id": studentID, "course_id": courseID}).
		ToSql()
	if err != nil {
		return false, errors.Wrap(err, "building query")
	}
	return repo.execChanged(query, args, "unenrolling student")
}

func (repo *schoolRepository) AddTeacherToCourse(teacherID, courseID int) (bool, error) {
	query, args, err := psql.Insert("course_teachers").
		Columns("teacher_id", "course_id").
		Values(teacherID, courseID).
		Suffix("ON CONFLICT DO NOTHING").
		ToSql()
	if err != nil {
		return false, errors.Wrap(err, "building query")
	}
	return repo.execChanged(query, args, "assigning teacher")
}

func (repo *schoolRepository) RemoveTeacherFromCourse(teacherID, courseID int) (bool, error) {
	query, args, err := psql.Delete("course_teachers").
		Where(sq.Eq{"teacher_id": teacherID, "course_id": courseID}).
		ToSql()
	if err != nil {
		return false, errors.Wrap(err, "building query")
	}
	return repo.execChanged(query, args, "removing teacher")
}

func (repo *schoolRepository) execChanged(query string, args []interface{}, msg string) (bool, error) {
	res, err := repo.db.Exec(query, args...)
	if err != nil {
		return false, errors.Wrap(err, msg)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, msg)
	}
	return n > 0, nil
}

// Materials

func (repo *schoolRepository) CreateMaterial(m school.CourseMaterial) (school.CourseMaterial, error) {
	query, args, err := psql.Insert("course_materials").
		Columns("course_id", "title", "description", "file_ref", "uploaded_by_id", "uploaded_at").
		Values(m.CourseID, m.Title, m.Description, m.FileRef, m.UploadedByID, m.UploadedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return school.CourseMaterial{}, errors.Wrap(err, "building query")
	}
	if err = repo.db.Get(&m.ID, query, args...); err != nil {
		return school.CourseMaterial{}, errors.Wrap(err, "creating material")
	}
	return m, nil
}

func (repo *schoolRepository) GetMaterialByID(id int) (school.CourseMaterial, error) {
	query, args, err := psql.Select("id", "course_id", "title", "description", "file_ref", "uploaded_by_id", "uploaded_at").
		From("course_materials").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return school.CourseMaterial{}, errors.Wrap(err, "building query")
	}
	var row materialRow
	if err = repo.db.Get(&row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return school.CourseMaterial{}, school.ErrMaterialNotFound
		}
		return school.CourseMaterial{}, errors.Wrap(err, "getting material")
	}
	return row.toMaterial(), nil
}

func (repo *schoolRepository) QueryMaterialsByCourse(courseID int) ([]school.CourseMaterial, error) {
	query, args, err := psql.Select("id", "course_id", "title", "description", "file_ref", "uploaded_by_id", "uploaded_at").
		From("course_materials").
		Where(sq.Eq{"course_id": courseID}).
		OrderBy("uploaded_at DESC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []materialRow
	if err = repo.db.Select(&rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying materials")
	}
	materials := make([]school.CourseMaterial, len(rows))
	for i, r := range rows {
		materials[i] = r.toMaterial()
	}
	return materials, nil
}

func (repo *schoolRepository) DeleteMaterialsByID(ids ...int) error {
	query, args, err := psql.Delete("course_materials").Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	if _, err = repo.db.Exec(query, args...); err != nil {
		return errors.Wrap(err, "deleting materials")
	}
	return nil
}
