package dummydb

import (
	"sort"

	"github.com/trezcool/shule/core/assignment"
	"github.com/trezcool/shule/core/school"
)

type assignmentRepository struct {
	db         *assignmentTable
	subDB      *submissionTable
	schoolRepo school.Repository
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *DB) assignment.Repository {
	return &assignmentRepository{
		db:         db.assignment,
		subDB:      db.submission,
		schoolRepo: NewSchoolRepository(db),
	}
}

func (repo *assignmentRepository) CreateAssignment(a assignment.Assignment) (assignment.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	pkCount++
	a.ID = pkCount
	stored := a
	stored.Course = nil
	repo.db.table[stored.ID] = &stored
	return a, nil
}

func (repo *assignmentRepository) GetAssignmentByID(id int) (assignment.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if a, ok := repo.db.table[id]; ok {
		return *a, nil
	}
	return assignment.Assignment{}, assignment.ErrNotFound
}

func (repo *assignmentRepository) query(match func(a assignment.Assignment) bool) []assignment.Assignment {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var asgs []assignment.Assignment
	for _, a := range repo.db.table {
		if match(*a) {
			asgs = append(asgs, *a)
		}
	}
	sort.Slice(asgs, func(i, j int) bool { return asgs[i].DueDate.Before(asgs[j].DueDate) })
	return asgs
}

func (repo *assignmentRepository) QueryAllAssignments() ([]assignment.Assignment, error) {
	return repo.query(func(assignment.Assignment) bool { return true }), nil
}

func (repo *assignmentRepository) QueryAssignmentsByOwner(userID int) ([]assignment.Assignment, error) {
	return repo.query(func(a assignment.Assignment) bool { return a.TeacherID == userID }), nil
}

func (repo *assignmentRepository) QueryAssignmentsByCourses(courseIDs []int, publishedOnly bool) ([]assignment.Assignment, error) {
	return repo.query(func(a assignment.Assignment) bool {
		if publishedOnly && a.Status != assignment.StatusPublished {
			return false
		}
		for _, cid := range courseIDs {
			if a.CourseID == cid {
				return true
			}
		}
		return false
	}), nil
}

func (repo *assignmentRepository) UpdateAssignment(a assignment.Assignment) (assignment.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[a.ID]; !ok {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	stored := a
	stored.Course = nil
	repo.db.table[stored.ID] = &stored
	return a, nil
}

func (repo *assignmentRepository) DeleteAssignmentsByID(ids ...int) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)

		// cascade submissions
		repo.subDB.Lock()
		for sid, sub := range repo.subDB.table {
			if sub.AssignmentID == id {
				delete(repo.subDB.table, sid)
			}
		}
		repo.subDB.Unlock()
	}
	return nil
}

// Submissions

func (repo *assignmentRepository) CreateSubmission(s assignment.Submission) (assignment.Submission, error) {
	repo.subDB.Lock()
	defer repo.subDB.Unlock()

	for _, sub := range repo.subDB.table {
		if sub.AssignmentID == s.AssignmentID && sub.StudentID == s.StudentID {
			return assignment.Submission{}, assignment.ErrDuplicateSubmission
		}
	}

	pkCount++
	s.ID = pkCount
	stored := s
	stored.Assignment = nil
	stored.Student = nil
	repo.subDB.table[stored.ID] = &stored
	return s, nil
}

func (repo *assignmentRepository) GetSubmissionByID(id int) (assignment.Submission, error) {
	repo.subDB.RLock()
	s, ok := repo.subDB.table[id]
	if !ok {
		repo.subDB.RUnlock()
		return assignment.Submission{}, assignment.ErrSubmissionNotFound
	}
	sub := *s
	repo.subDB.RUnlock()

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

func (repo *assignmentRepository) querySubmissions(match func(s assignment.Submission) bool) []assignment.Submission {
	repo.subDB.RLock()
	defer repo.subDB.RUnlock()

	var subs []assignment.Submission
	for _, s := range repo.subDB.table {
		if match(*s) {
			subs = append(subs, *s)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	return subs
}

func (repo *assignmentRepository) QuerySubmissionsByAssignment(assignmentID int) ([]assignment.Submission, error) {
	return repo.querySubmissions(func(s assignment.Submission) bool { return s.AssignmentID == assignmentID }), nil
}

func (repo *assignmentRepository) QuerySubmissionsByStudent(studentID int) ([]assignment.Submission, error) {
	return repo.querySubmissions(func(s assignment.Submission) bool { return s.StudentID == studentID }), nil
}

func (repo *assignmentRepository) UpdateSubmission(s assignment.Submission) (assignment.Submission, error) {
	repo.subDB.Lock()
	defer repo.subDB.Unlock()

	orig, ok := repo.subDB.table[s.ID]
	if !ok {
		return assignment.Submission{}, assignment.ErrSubmissionNotFound
	}
	orig.Grade = s.Grade
	orig.Feedback = s.Feedback
	return s, nil
}
