// Package dummydb provides in-memory repositories used by tests.
package dummydb

import (
	"sync"

	"github.com/trezcool/shule/core/activity"
	"github.com/trezcool/shule/core/assignment"
	"github.com/trezcool/shule/core/messaging"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

type (
	DB struct {
		user       *userTable
		profile    *profileTable
		teacher    *teacherTable
		student    *studentTable
		course     *courseTable
		material   *materialTable
		assignment *assignmentTable
		submission *submissionTable
		message    *messageTable
		activity   *activityTable
	}

	userTable struct {
		sync.RWMutex
		table map[int]*user.User
	}
	profileTable struct {
		sync.RWMutex
		table map[int]*user.Profile
	}
	teacherTable struct {
		sync.RWMutex
		table map[int]*school.Teacher
	}
	studentTable struct {
		sync.RWMutex
		table map[int]*school.Student
	}
	courseTable struct {
		sync.RWMutex
		table map[int]*school.Course
		// membership links, keyed by course id
		teacherLinks map[int]map[int]bool
		studentLinks map[int]map[int]bool
	}
	materialTable struct {
		sync.RWMutex
		table map[int]*school.CourseMaterial
	}
	assignmentTable struct {
		sync.RWMutex
		table map[int]*assignment.Assignment
	}
	submissionTable struct {
		sync.RWMutex
		table map[int]*assignment.Submission
	}
	messageTable struct {
		sync.RWMutex
		table map[int]*messaging.Message
	}
	activityTable struct {
		sync.RWMutex
		table map[int]*activity.Entry
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:    &userTable{table: make(map[int]*user.User)},
		profile: &profileTable{table: make(map[int]*user.Profile)},
		teacher: &teacherTable{table: make(map[int]*school.Teacher)},
		student: &studentTable{table: make(map[int]*school.Student)},
		course: &courseTable{
			table:        make(map[int]*school.Course),
			teacherLinks: make(map[int]map[int]bool),
			studentLinks: make(map[int]map[int]bool),
		},
		material:   &materialTable{table: make(map[int]*school.CourseMaterial)},
		assignment: &assignmentTable{table: make(map[int]*assignment.Assignment)},
		submission: &submissionTable{table: make(map[int]*assignment.Submission)},
		message:    &messageTable{table: make(map[int]*messaging.Message)},
		activity:   &activityTable{table: make(map[int]*activity.Entry)},
	}
	return db, nil
}
