package assignment

import (
	"errors"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/activity"
	"github.com/trezcool/shule/core/school"
)

var (
	// errors
	ErrNotFound            = errors.New("assignment not found")
	ErrSubmissionNotFound  = errors.New("submission not found")
	ErrDuplicateSubmission = errors.New("a submission for this assignment already exists")
)

type (
	Repository interface {
		CreateAssignment(a Assignment) (Assignment, error)
		GetAssignmentByID(id int) (Assignment, error)
		QueryAllAssignments() ([]Assignment, error)
		QueryAssignmentsByOwner(userID int) ([]Assignment, error)
		// QueryAssignmentsByCourses returns assignments of the given courses,
		// optionally restricted to published ones.
		QueryAssignmentsByCourses(courseIDs []int, publishedOnly bool) ([]Assignment, error)
		UpdateAssignment(a Assignment) (Assignment, error)
		DeleteAssignmentsByID(ids ...int) error

		// CreateSubmission fails with ErrDuplicateSubmission when the
		// (assignment, student) pair already has one.
		CreateSubmission(s Submission) (Submission, error)
		GetSubmissionByID(id int) (Submission, error)
		QuerySubmissionsByAssignment(assignmentID int) ([]Submission, error)
		QuerySubmissionsByStudent(studentID int) ([]Submission, error)
		UpdateSubmission(s Submission) (Submission, error)
	}

	Service interface {
		Create(actor access.Actor, na NewAssignment) (Assignment, error)
		Get(actor access.Actor, id int) (Assignment, error)
		// QueryForActor scopes the listing to what the actor may see:
		// admins see everything, teachers their own assignments, students
		// the published assignments of their courses.
		QueryForActor(actor access.Actor) ([]Assignment, error)
		Update(actor access.Actor, id int, ua UpdateAssignment) (Assignment, error)
		Publish(actor access.Actor, id int) (Assignment, error)
		Archive(actor access.Actor, id int) (Assignment, error)
		Delete(actor access.Actor, id int) error
		Stats(actor access.Actor, id int) (Stats, error)

		Submit(actor access.Actor, ns NewSubmission) (Submission, error)
		GetSubmission(actor access.Actor, id int) (Submission, error)
		QuerySubmissions(actor access.Actor, assignmentID int) ([]Submission, error)
		QueryOwnSubmissions(actor access.Actor) ([]Submission, error)
		Grade(actor access.Actor, submissionID int, gs GradeSubmission) (Submission, error)
	}

	service struct {
		repo        Repository
		schoolSvc   school.Service
		activitySvc activity.Service
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, schoolSvc school.Service, activitySvc activity.Service) Service {
	return &service{
		repo:        repo,
		schoolSvc:   schoolSvc,
		activitySvc: activitySvc,
	}
}

// Assignments

func (svc *service) Create(actor access.Actor, na NewAssignment) (Assignment, error) {
	course, err := svc.schoolSvc.GetCourse(na.CourseID)
	if err != nil {
		return Assignment{}, err
	}
	if !access.CanManageCourse(actor, course) {
		return Assignment{}, core.NewPermissionDeniedError("you cannot create assignments for this course")
	}

	// teachers always own what they create; admins must name the owner
	ownerID := actor.User.ID
	if actor.IsAdmin() {
		if na.TeacherID == 0 {
			return Assignment{}, core.NewValidationError(nil, core.FieldError{Field: "teacher_id", Error: "this field is required"})
		}
		if _, err = svc.schoolSvc.GetTeacherByUser(na.TeacherID); err != nil {
			return Assignment{}, core.NewValidationError(err, core.FieldError{Field: "teacher_id", Error: school.ErrTeacherNotFound.Error()})
		}
		ownerID = na.TeacherID
	}

	now := time.Now().UTC()
	asg, err := svc.repo.CreateAssignment(Assignment{
		CourseID:    course.ID,
		TeacherID:   ownerID,
		Title:       na.Title,
		Description: na.Description,
		DueDate:     na.DueDate.UTC(),
		MaxPoints:   na.MaxPoints,
		Status:      na.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
		StudentIDs:  na.StudentIDs,
	})
	if err != nil {
		return Assignment{}, err
	}
	svc.activitySvc.Record(actor.User.ID, activity.ActionAssignmentCreate, "assignment", asg.ID, asg.Title)
	return asg, nil
}

func (svc *service) Get(actor access.Actor, id int) (Assignment, error) {
	asg, err := svc.repo.GetAssignmentByID(id)
	if err != nil {
		return Assignment{}, err
	}
	if err = svc.checkViewAssignment(actor, asg); err != nil {
		return Assignment{}, err
	}
	return asg, nil
}

// checkViewAssignment: managers see everything; students see only published
// assignments of the courses they are enrolled in.
func (svc *service) checkViewAssignment(actor access.Actor, asg Assignment) error {
	if access.CanManageAssignment(actor, &asg) {
		return nil
	}
	if actor.IsStudent() && asg.Status == StatusPublished && actor.Student.IsEnrolledIn(asg.CourseID) {
		return nil
	}
	if actor.IsTeacher() {
		course, err := svc.schoolSvc.GetCourse(asg.CourseID)
		if err == nil && access.CanManageCourse(actor, course) {
			return nil
		}
	}
	return core.NewPermissionDeniedError("you cannot view this assignment")
}

func (svc *service) QueryForActor(actor access.Actor) ([]Assignment, error) {
	switch {
	case actor.IsAdmin():
		return svc.repo.QueryAllAssignments()
	case actor.IsTeacher():
		return svc.repo.QueryAssignmentsByOwner(actor.User.ID)
	case actor.IsStudent():
		return svc.repo.QueryAssignmentsByCourses(actor.Student.CourseIDs, true)
	}
	return nil, core.NewPermissionDeniedError()
}

func (svc *service) Update(actor access.Actor, id int, ua UpdateAssignment) (Assignment, error) {
	asg, err := svc.repo.GetAssignmentByID(id)
	if err != nil {
		return Assignment{}, err
	}
	if !access.CanManageAssignment(actor, &asg) {
		return Assignment{}, core.NewPermissionDeniedError("you cannot modify this assignment")
	}
	if err = ua.Validate(asg); err != nil {
		return Assignment{}, err
	}

	if ua.Title != "" {
		asg.Title = ua.Title
	}
	if ua.Description != "" {
		asg.Description = ua.Description
	}
	if ua.DueDate != nil {
		asg.DueDate = ua.DueDate.UTC()
	}
	if ua.MaxPoints != 0 {
		asg.MaxPoints = ua.MaxPoints
	}
	if ua.Status != "" {
		asg.Status = ua.Status
	}
	if ua.StudentIDs != nil {
		asg.StudentIDs = ua.StudentIDs
	}
	if ua.AttachmentRef != "" {
		asg.AttachmentRef = null.StringFrom(ua.AttachmentRef)
	}
	asg.UpdatedAt = time.Now().UTC()

	asg, err = svc.repo.UpdateAssignment(asg)
	if err != nil {
		return Assignment{}, err
	}
	svc.activitySvc.Record(actor.User.ID, activity.ActionAssignmentUpdate, "assignment", asg.ID, asg.Title)
	return asg, nil
}

func (svc *service) Publish(actor access.Actor, id int) (Assignment, error) {
	return svc.Update(actor, id, UpdateAssignment{Status: StatusPublished})
}

func (svc *service) Archive(actor access.Actor, id int) (Assignment, error) {
	return svc.Update(actor, id, UpdateAssignment{Status: StatusArchived})
}

func (svc *service) Delete(actor access.Actor, id int) error {
	asg, err := svc.repo.GetAssignmentByID(id)
	if err != nil {
		return err
	}
	if !access.CanManageAssignment(actor, &asg) {
		return core.NewPermissionDeniedError("you cannot delete this assignment")
	}
	return svc.repo.DeleteAssignmentsByID(id)
}

func (svc *service) Stats(actor access.Actor, id int) (Stats, error) {
	asg, err := svc.Get(actor, id)
	if err != nil {
		return Stats{}, err
	}
	course, err := svc.schoolSvc.GetCourse(asg.CourseID)
	if err != nil {
		return Stats{}, err
	}
	subs, err := svc.repo.QuerySubmissionsByAssignment(asg.ID)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{
		TotalStudents: len(course.Students),
		DaysRemaining: asg.DaysRemaining(),
	}
	for _, sub := range subs {
		stats.SubmittedCount++
		if sub.IsGraded() {
			stats.GradedCount++
		}
	}
	return stats, nil
}

// Submissions

func (svc *service) Submit(actor access.Actor, ns NewSubmission) (Submission, error) {
	if !actor.IsStudent() {
		return Submission{}, core.NewPermissionDeniedError("only students can submit work")
	}
	asg, err := svc.repo.GetAssignmentByID(ns.AssignmentID)
	if err != nil {
		return Submission{}, err
	}
	if asg.Status != StatusPublished {
		return Submission{}, core.NewValidationError(nil, core.FieldError{Field: "assignment_id", Error: "assignment is not open for submissions"})
	}
	if !actor.Student.IsEnrolledIn(asg.CourseID) {
		return Submission{}, core.NewPermissionDeniedError("you are not enrolled in this assignment's course")
	}

	now := time.Now().UTC()
	sub, err := svc.repo.CreateSubmission(Submission{
		AssignmentID: asg.ID,
		StudentID:    actor.Student.ID,
		FileRef:      ns.FileRef,
		SubmittedAt:  now,
		IsLate:       now.After(asg.DueDate), // frozen at creation
		Assignment:   &asg,
		Student:      actor.Student,
	})
	if err != nil {
		if err == ErrDuplicateSubmission {
			return Submission{}, core.NewConflictError(err.Error())
		}
		return Submission{}, err
	}
	svc.activitySvc.Record(actor.User.ID, activity.ActionAssignmentSubmit, "submission", sub.ID, asg.Title)
	return sub, nil
}

func (svc *service) GetSubmission(actor access.Actor, id int) (Submission, error) {
	sub, err := svc.repo.GetSubmissionByID(id)
	if err != nil {
		return Submission{}, err
	}
	if !access.CanViewSubmission(actor, &sub) {
		return Submission{}, core.NewPermissionDeniedError("you cannot view this submission")
	}
	return sub, nil
}

func (svc *service) QuerySubmissions(actor access.Actor, assignmentID int) ([]Submission, error) {
	asg, err := svc.repo.GetAssignmentByID(assignmentID)
	if err != nil {
		return nil, err
	}
	if !access.CanManageAssignment(actor, &asg) {
		return nil, core.NewPermissionDeniedError("you cannot view this assignment's submissions")
	}
	return svc.repo.QuerySubmissionsByAssignment(assignmentID)
}

func (svc *service) QueryOwnSubmissions(actor access.Actor) ([]Submission, error) {
	if !actor.IsStudent() {
		return nil, core.NewPermissionDeniedError()
	}
	return svc.repo.QuerySubmissionsByStudent(actor.Student.ID)
}

// Grade records or overwrites a submission's grade and feedback.
func (svc *service) Grade(actor access.Actor, submissionID int, gs GradeSubmission) (Submission, error) {
	sub, err := svc.repo.GetSubmissionByID(submissionID)
	if err != nil {
		return Submission{}, err
	}
	if !access.CanGradeSubmission(actor, &sub) {
		return Submission{}, core.NewPermissionDeniedError("you cannot grade this submission")
	}
	asg := sub.Assignment
	if asg == nil {
		loaded, err := svc.repo.GetAssignmentByID(sub.AssignmentID)
		if err != nil {
			return Submission{}, err
		}
		asg = &loaded
	}
	if err = gs.Validate(asg.MaxPoints); err != nil {
		return Submission{}, err
	}

	sub.Grade = null.IntFrom(*gs.Grade)
	sub.Feedback = gs.Feedback
	sub, err = svc.repo.UpdateSubmission(sub)
	if err != nil {
		return Submission{}, err
	}
	svc.activitySvc.Record(actor.User.ID, activity.ActionGradeSubmit, "submission", sub.ID, asg.Title)
	return sub, nil
}
