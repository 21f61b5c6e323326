package dummydb

import (
	"sort"

	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

type schoolRepository struct {
	userDB     *userTable
	teacherDB  *teacherTable
	studentDB  *studentTable
	courseDB   *courseTable
	materialDB *materialTable
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{
		userDB:     db.user,
		teacherDB:  db.teacher,
		studentDB:  db.student,
		courseDB:   db.course,
		materialDB: db.material,
	}
}

func (repo *schoolRepository) loadUser(userID int) user.User {
	repo.userDB.RLock()
	defer repo.userDB.RUnlock()
	if usr, ok := repo.userDB.table[userID]; ok {
		return *usr
	}
	return user.User{}
}

// Teachers

func (repo *schoolRepository) CreateTeacher(t school.Teacher) (school.Teacher, error) {
	repo.teacherDB.Lock()
	defer repo.teacherDB.Unlock()

	pkCount++
	t.ID = pkCount
	repo.teacherDB.table[t.ID] = &t
	return t, nil
}

func (repo *schoolRepository) refreshTeacher(t school.Teacher) school.Teacher {
	t.User = repo.loadUser(t.UserID)
	return t
}

func (repo *schoolRepository) GetTeacherByID(id int) (school.Teacher, error) {
	repo.teacherDB.RLock()
	defer repo.teacherDB.RUnlock()

	if t, ok := repo.teacherDB.table[id]; ok {
		return repo.refreshTeacher(*t), nil
	}
	return school.Teacher{}, school.ErrTeacherNotFound
}

func (repo *schoolRepository) GetTeacherByUserID(userID int) (school.Teacher, error) {
	repo.teacherDB.RLock()
	defer repo.teacherDB.RUnlock()

	for _, t := range repo.teacherDB.table {
		if t.UserID == userID {
			return repo.refreshTeacher(*t), nil
		}
	}
	return school.Teacher{}, school.ErrTeacherNotFound
}

func (repo *schoolRepository) QueryAllTeachers() ([]school.Teacher, error) {
	repo.teacherDB.RLock()
	defer repo.teacherDB.RUnlock()

	teachers := make([]school.Teacher, 0, len(repo.teacherDB.table))
	for _, t := range repo.teacherDB.table {
		teachers = append(teachers, repo.refreshTeacher(*t))
	}
	sort.Slice(teachers, func(i, j int) bool { return teachers[i].ID < teachers[j].ID })
	return teachers, nil
}

func (repo *schoolRepository) UpdateTeacher(t school.Teacher) (school.Teacher, error) {
	repo.teacherDB.Lock()
	defer repo.teacherDB.Unlock()

	if _, ok := repo.teacherDB.table[t.ID]; !ok {
		return school.Teacher{}, school.ErrTeacherNotFound
	}
	repo.teacherDB.table[t.ID] = &t
	return t, nil
}

// Students

func (repo *schoolRepository) CheckEnrollmentIDUniqueness(enrollmentID string, excludedStudents ...school.Student) error {
	repo.studentDB.RLock()
	defer repo.studentDB.RUnlock()

	for _, s := range repo.studentDB.table {
		if s.EnrollmentID != enrollmentID {
			continue
		}
		excluded := false
		for _, excl := range excludedStudents {
			if excl.ID == s.ID {
				excluded = true
				break
			}
		}
		if !excluded {
			return school.ErrEnrollmentIDExists
		}
	}
	return nil
}

func (repo *schoolRepository) CreateStudent(s school.Student) (school.Student, error) {
	repo.studentDB.Lock()
	defer repo.studentDB.Unlock()

	pkCount++
	s.ID = pkCount
	repo.studentDB.table[s.ID] = &s
	return s, nil
}

func (repo *schoolRepository) refreshStudent(s school.Student) school.Student {
	s.User = repo.loadUser(s.UserID)
	s.CourseIDs = repo.studentCourseIDs(s.ID)
	return s
}

func (repo *schoolRepository) studentCourseIDs(studentID int) []int {
	repo.courseDB.RLock()
	defer repo.courseDB.RUnlock()

	var ids []int
	for courseID, students := range repo.courseDB.studentLinks {
		if students[studentID] {
			ids = append(ids, courseID)
		}
	}
	sort.Ints(ids)
	return ids
}

func (repo *schoolRepository) GetStudentByID(id int) (school.Student, error) {
	repo.studentDB.RLock()
	defer repo.studentDB.RUnlock()

	if s, ok := repo.studentDB.table[id]; ok {
		return repo.refreshStudent(*s), nil
	}
	return school.Student{}, school.ErrStudentNotFound
}

func (repo *schoolRepository) GetStudentByUserID(userID int) (school.Student, error) {
	repo.studentDB.RLock()
	defer repo.studentDB.RUnlock()

	for _, s := range repo.studentDB.table {
		if s.UserID == userID {
			return repo.refreshStudent(*s), nil
		}
	}
	return school.Student{}, school.ErrStudentNotFound
}

func (repo *schoolRepository) QueryAllStudents() ([]school.Student, error) {
	repo.studentDB.RLock()
	defer repo.studentDB.RUnlock()

	students := make([]school.Student, 0, len(repo.studentDB.table))
	for _, s := range repo.studentDB.table {
		students = append(students, repo.refreshStudent(*s))
	}
	sort.Slice(students, func(i, j int) bool { return students[i].ID < students[j].ID })
	return students, nil
}

func (repo *schoolRepository) QueryStudentsByCourse(courseID int) ([]school.Student, error) {
	repo.courseDB.RLock()
	links := repo.courseDB.studentLinks[courseID]
	ids := make([]int, 0, len(links))
	for sid := range links {
		ids = append(ids, sid)
	}
	repo.courseDB.RUnlock()
	sort.Ints(ids)

	repo.studentDB.RLock()
	defer repo.studentDB.RUnlock()
	var students []school.Student
	for _, sid := range ids {
		if s, ok := repo.studentDB.table[sid]; ok {
			students = append(students, repo.refreshStudent(*s))
		}
	}
	return students, nil
}

func (repo *schoolRepository) UpdateStudent(s school.Student) (school.Student, error) {
	repo.studentDB.Lock()
	defer repo.studentDB.Unlock()

	if _, ok := repo.studentDB.table[s.ID]; !ok {
		return school.Student{}, school.ErrStudentNotFound
	}
	repo.studentDB.table[s.ID] = &s
	return s, nil
}

// Courses

func (repo *schoolRepository) CheckCourseCodeUniqueness(code string, excludedCourses ...school.Course) error {
	repo.courseDB.RLock()
	defer repo.courseDB.RUnlock()

	for _, c := range repo.courseDB.table {
		if c.Code != code {
			continue
		}
		excluded := false
		for _, excl := range excludedCourses {
			if excl.ID == c.ID {
				excluded = true
				break
			}
		}
		if !excluded {
			return school.ErrCourseCodeExists
		}
	}
	return nil
}

func (repo *schoolRepository) CreateCourse(c school.Course) (school.Course, error) {
	repo.courseDB.Lock()
	defer repo.courseDB.Unlock()

	pkCount++
	c.ID = pkCount
	repo.courseDB.table[c.ID] = &c
	repo.courseDB.teacherLinks[c.ID] = make(map[int]bool)
	repo.courseDB.studentLinks[c.ID] = make(map[int]bool)
	return c, nil
}

func (repo *schoolRepository) GetCourseByID(id int) (school.Course, error) {
	repo.courseDB.RLock()
	c, ok := repo.courseDB.table[id]
	if !ok {
		repo.courseDB.RUnlock()
		return school.Course{}, school.ErrCourseNotFound
	}
	course := *c
	teacherIDs := make([]int, 0, len(repo.courseDB.teacherLinks[id]))
	for tid := range repo.courseDB.teacherLinks[id] {
		teacherIDs = append(teacherIDs, tid)
	}
	repo.courseDB.RUnlock()
	sort.Ints(teacherIDs)

	repo.teacherDB.RLock()
	for _, tid := range teacherIDs {
		if t, ok := repo.teacherDB.table[tid]; ok {
			course.Teachers = append(course.Teachers, repo.refreshTeacher(*t))
		}
	}
	repo.teacherDB.RUnlock()

	students, err := repo.QueryStudentsByCourse(id)
	if err != nil {
		return school.Course{}, err
	}
	course.Students = students
	return course, nil
}

func (repo *schoolRepository) QueryAllCourses() ([]school.Course, error) {
	repo.courseDB.RLock()
	defer repo.courseDB.RUnlock()

	courses := make([]school.Course, 0, len(repo.courseDB.table))
	for _, c := range repo.courseDB.table {
		courses = append(courses, *c)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].ID < courses[j].ID })
	return courses, nil
}

func (repo *schoolRepository) QueryCoursesByTeacherUser(userID int) ([]school.Course, error) {
	teacher, err := repo.GetTeacherByUserID(userID)
	if err != nil {
		return nil, nil
	}

	repo.courseDB.RLock()
	defer repo.courseDB.RUnlock()
	var courses []school.Course
	for courseID, teachers := range repo.courseDB.teacherLinks {
		if teachers[teacher.ID] {
			if c, ok := repo.courseDB.table[courseID]; ok {
				courses = append(courses, *c)
			}
		}
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].ID < courses[j].ID })
	return courses, nil
}

func (repo *schoolRepository) QueryCoursesByStudent(studentID int) ([]school.Course, error) {
	repo.courseDB.RLock()
	defer repo.courseDB.RUnlock()

	var courses []school.Course
	for courseID, students := range repo.courseDB.studentLinks {
		if students[studentID] {
			if c, ok := repo.courseDB.table[courseID]; ok {
				courses = append(courses, *c)
			}
		}
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].ID < courses[j].ID })
	return courses, nil
}

func (repo *schoolRepository) UpdateCourse(c school.Course) (school.Course, error) {
	repo.courseDB.Lock()
	defer repo.courseDB.Unlock()

	orig, ok := repo.courseDB.table[c.ID]
	if !ok {
		return school.Course{}, school.ErrCourseNotFound
	}
	orig.Code = c.Code
	orig.Name = c.Name
	orig.Description = c.Description
	orig.Credit = c.Credit
	return *orig, nil
}

func (repo *schoolRepository) DeleteCoursesByID(ids ...int) error {
	repo.courseDB.Lock()
	defer repo.courseDB.Unlock()
	for _, id := range ids {
		delete(repo.courseDB.table, id)
		delete(repo.courseDB.teacherLinks, id)
		delete(repo.courseDB.studentLinks, id)
	}
	return nil
}

// Membership links

func (repo *schoolRepository) AddStudentToCourse(studentID, courseID int) (bool, error) {
	repo.courseDB.Lock()
	defer repo.courseDB.Unlock()

	links, ok := repo.courseDB.studentLinks[courseID]
	if !ok {
		return false, school.ErrCourseNotFound
	}
	if links[studentID] {
		return false, nil
	}
	links[studentID] = true
	return true, nil
}

func (repo *schoolRepository) RemoveStudentFromCourse(studentID, courseID int) (bool, error) {
	repo.courseDB.Lock()
	defer repo.courseDB.Unlock()

	links, ok := repo.courseDB.studentLinks[courseID]
	if !ok {
		return false, school.ErrCourseNotFound
	}
	if !links[studentID] {
		return false, nil
	}
	delete(links, studentID)
	return true, nil
}

func (repo *schoolRepository) AddTeacherToCourse(teacherID, courseID int) (bool, error) {
	repo.courseDB.Lock()
	defer repo.courseDB.Unlock()

	links, ok := repo.courseDB.teacherLinks[courseID]
	if !ok {
		return false, school.ErrCourseNotFound
	}
	if links[teacherID] {
		return false, nil
	}
	links[teacherID] = true
	return true, nil
}

func (repo *schoolRepository) RemoveTeacherFromCourse(teacherID, courseID int) (bool, error) {
	repo.courseDB.Lock()
	defer repo.courseDB.Unlock()

	links, ok := repo.courseDB.teacherLinks[courseID]
	if !ok {
		return false, school.ErrCourseNotFound
	}
	if !links[teacherID] {
		return false, nil
	}
	delete(links, teacherID)
	return true, nil
}

// Materials

func (repo *schoolRepository) CreateMaterial(m school.CourseMaterial) (school.CourseMaterial, error) {
	repo.materialDB.Lock()
	defer repo.materialDB.Unlock()

	pkCount++
	m.ID = pkCount
	repo.materialDB.table[m.ID] = &m
	return m, nil
}

func (repo *schoolRepository) GetMaterialByID(id int) (school.CourseMaterial, error) {
	repo.materialDB.RLock()
	defer repo.materialDB.RUnlock()

	if m, ok := repo.materialDB.table[id]; ok {
		return *m, nil
	}
	return school.CourseMaterial{}, school.ErrMaterialNotFound
}

func (repo *schoolRepository) QueryMaterialsByCourse(courseID int) ([]school.CourseMaterial, error) {
	repo.materialDB.RLock()
	defer repo.materialDB.RUnlock()

	var materials []school.CourseMaterial
	for _, m := range repo.materialDB.table {
		if m.CourseID == courseID {
			materials = append(materials, *m)
		}
	}
	sort.Slice(materials, func(i, j int) bool { return materials[i].ID < materials[j].ID })
	return materials, nil
}

func (repo *schoolRepository) DeleteMaterialsByID(ids ...int) error {
	repo.materialDB.Lock()
	defer repo.materialDB.Unlock()
	for _, id := range ids {
		delete(repo.materialDB.table, id)
	}
	return nil
}
