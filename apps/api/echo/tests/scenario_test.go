package tests

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/trezcool/shule/core/activity"
	"github.com/trezcool/shule/core/assignment"
	"github.com/trezcool/shule/core/messaging"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

// Test_api_schoolWorkflow walks the full teaching workflow over HTTP: an
// admin provisions people and a course, a teacher publishes an assignment,
// a student submits, the teacher grades, and the two exchange messages.
func Test_api_schoolWorkflow(t *testing.T) {
	env := setup(t)

	admin := env.createAdmin(t, "boss")
	adminToken := getToken(t, admin)

	// unauthenticated requests bounce
	req, rec := newRequest(http.MethodGet, "/v1/assignments")
	env.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)

	// admin provisions a teacher and a student
	var teacher school.Teacher
	req, rec = newAuthRequest(http.MethodPost, "/v1/teachers", adminToken, marchallObj(t, map[string]interface{}{
		"name":      "Prof",
		"username":  "prof",
		"email":     "prof@test.cd",
		"password":  "LePassword123",
		"specialty": "Mathematics",
	}))
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("creating teacher: code = %d, body = %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &teacher)
	if !teacher.User.IsTeacher() {
		t.Fatalf("provisioned user role = %s, want teacher", teacher.User.Role)
	}

	var student school.Student
	req, rec = newAuthRequest(http.MethodPost, "/v1/students", adminToken, marchallObj(t, map[string]interface{}{
		"name":          "Awa",
		"username":      "awa",
		"email":         "awa@test.cd",
		"password":      "LePassword123",
		"enrollment_id": "stu001",
	}))
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("creating student: code = %d, body = %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &student)

	// non-admins cannot provision
	teacherToken := getToken(t, teacher.User)
	studentToken := getToken(t, student.User)
	req, rec = newAuthRequest(http.MethodPost, "/v1/teachers", teacherToken, marchallObj(t, map[string]string{}))
	env.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden}, rec)

	// admin creates the course, assigns the teacher and enrolls the student
	var course school.Course
	req, rec = newAuthRequest(http.MethodPost, "/v1/courses", adminToken, marchallObj(t, map[string]interface{}{
		"code": "cs101",
		"name": "Intro to CS",
	}))
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("creating course: code = %d, body = %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &course)

	coursePath := fmt.Sprintf("/v1/courses/%d", course.ID)
	req, rec = newAuthRequest(http.MethodPost, coursePath+"/assign-teacher", adminToken,
		marchallObj(t, map[string]int{"teacher_id": teacher.ID}))
	env.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, map[string]string{"success": "changed"})}, rec)

	req, rec = newAuthRequest(http.MethodPost, coursePath+"/enroll", adminToken,
		marchallObj(t, map[string]int{"student_id": student.ID}))
	env.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, map[string]string{"success": "changed"})}, rec)

	// double enrollment is a warning, not an error
	req, rec = newAuthRequest(http.MethodPost, coursePath+"/enroll", adminToken,
		marchallObj(t, map[string]int{"student_id": student.ID}))
	env.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusOK,
		wantData: marchallObj(t, map[string]string{"warning": "student is already enrolled in this course"}),
	}, rec)

	// enrolling a ghost is 404
	req, rec = newAuthRequest(http.MethodPost, coursePath+"/enroll", adminToken,
		marchallObj(t, map[string]int{"student_id": 999}))
	env.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound}, rec)

	// students cannot manage the course
	req, rec = newAuthRequest(http.MethodPost, coursePath+"/enroll", studentToken,
		marchallObj(t, map[string]int{"student_id": student.ID}))
	env.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden}, rec)

	// teacher creates and publishes an assignment
	var asg assignment.Assignment
	req, rec = newAuthRequest(http.MethodPost, "/v1/assignments", teacherToken, marchallObj(t, map[string]interface{}{
		"course_id": course.ID,
		"title":     "Homework 1",
		"due_date":  time.Now().Add(48 * time.Hour).Format(time.RFC3339),
	}))
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("creating assignment: code = %d, body = %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &asg)
	if asg.Status != assignment.StatusDraft {
		t.Fatalf("assignment status = %s, want draft", asg.Status)
	}

	asgPath := fmt.Sprintf("/v1/assignments/%d", asg.ID)

	// the draft is invisible to the student
	req, rec = newAuthRequest(http.MethodGet, "/v1/assignments", studentToken)
	env.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte("[]")}, rec)

	req, rec = newAuthRequest(http.MethodPost, asgPath+"/publish", teacherToken)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("publishing: code = %d, body = %s", rec.Code, rec.Body.String())
	}

	var asgs []assignment.Assignment
	req, rec = newAuthRequest(http.MethodGet, "/v1/assignments", studentToken)
	env.app.ServeHTTP(rec, req)
	decodeBody(t, rec, &asgs)
	if len(asgs) != 1 {
		t.Fatalf("student sees %d assignments, want 1", len(asgs))
	}

	// student submits work
	var sub assignment.Submission
	req, rec = newUploadRequest(t, http.MethodPost, asgPath+"/submissions", studentToken,
		"file", "hw1.pdf", []byte("my answers"), nil)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("submitting: code = %d, body = %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &sub)
	if sub.IsLate {
		t.Error("submission before the due date must not be late")
	}

	// resubmitting conflicts
	req, rec = newUploadRequest(t, http.MethodPost, asgPath+"/submissions", studentToken,
		"file", "hw1-again.pdf", []byte("more answers"), nil)
	env.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusConflict}, rec)

	// teacher reviews and grades
	var subs []assignment.Submission
	req, rec = newAuthRequest(http.MethodGet, asgPath+"/submissions", teacherToken)
	env.app.ServeHTTP(rec, req)
	decodeBody(t, rec, &subs)
	if len(subs) != 1 {
		t.Fatalf("teacher sees %d submissions, want 1", len(subs))
	}

	gradePath := fmt.Sprintf("/v1/submissions/%d/grade", sub.ID)
	req, rec = newAuthRequest(http.MethodPut, gradePath, teacherToken,
		marchallObj(t, map[string]interface{}{"grade": 150}))
	env.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest}, rec)

	req, rec = newAuthRequest(http.MethodPut, gradePath, teacherToken,
		marchallObj(t, map[string]interface{}{"grade": 85, "feedback": "good work"}))
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("grading: code = %d, body = %s", rec.Code, rec.Body.String())
	}

	// the student cannot grade its own work
	req, rec = newAuthRequest(http.MethodPut, gradePath, studentToken,
		marchallObj(t, map[string]interface{}{"grade": 100}))
	env.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden}, rec)

	// but sees the grade on its own submissions
	req, rec = newAuthRequest(http.MethodGet, "/v1/submissions/mine", studentToken)
	env.app.ServeHTTP(rec, req)
	decodeBody(t, rec, &subs)
	if len(subs) != 1 || !subs[0].IsGraded() || subs[0].Grade.Int != 85 {
		t.Fatalf("student's submissions = %+v, want one graded 85", subs)
	}

	// stats reflect the submission
	var stats assignment.Stats
	req, rec = newAuthRequest(http.MethodGet, asgPath+"/stats", teacherToken)
	env.app.ServeHTTP(rec, req)
	decodeBody(t, rec, &stats)
	if stats.SubmittedCount != 1 || stats.GradedCount != 1 {
		t.Errorf("stats = %+v, want 1 submitted 1 graded", stats)
	}

	// student messages the teacher
	var candidates []user.User
	req, rec = newAuthRequest(http.MethodGet, "/v1/messages/candidates", studentToken)
	env.app.ServeHTTP(rec, req)
	decodeBody(t, rec, &candidates)
	found := false
	for _, c := range candidates {
		if c.ID == teacher.UserID {
			found = true
		}
		if c.ID == student.UserID {
			t.Error("candidates must not include the sender")
		}
	}
	if !found {
		t.Fatal("teacher is missing from the student's candidates")
	}

	var msg messaging.Message
	req, rec = newAuthRequest(http.MethodPost, "/v1/messages", studentToken, marchallObj(t, map[string]interface{}{
		"recipient_id": teacher.UserID,
		"subject":      "Question about HW1",
		"body":         "Could you clarify problem 2?",
	}))
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("composing: code = %d, body = %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &msg)

	req, rec = newAuthRequest(http.MethodGet, "/v1/messages/unread-count", teacherToken)
	env.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, map[string]int{"unread": 1})}, rec)

	readPath := fmt.Sprintf("/v1/messages/%d/read", msg.ID)
	req, rec = newAuthRequest(http.MethodPost, readPath, teacherToken)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("marking read: code = %d, body = %s", rec.Code, rec.Body.String())
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/messages/unread-count", teacherToken)
	env.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, map[string]int{"unread": 0})}, rec)

	// the workflow left an activity trail
	var entries []activity.Entry
	activityPath := fmt.Sprintf("/v1/users/%d/activity", teacher.UserID)
	req, rec = newAuthRequest(http.MethodGet, activityPath, adminToken)
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("querying activity: code = %d, body = %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &entries)
	if len(entries) == 0 {
		t.Error("teacher's activity log is empty")
	}
}

func Test_api_login(t *testing.T) {
	env := setup(t)
	admin := env.createAdmin(t, "boss")

	tests := []httpTest{
		{
			name:     "empty credentials",
			body:     marchallObj(t, map[string]string{}),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown user",
			body:     marchallObj(t, map[string]string{"username": "ghost", "password": "LePassword123"}),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "wrong password",
			body:     marchallObj(t, map[string]string{"username": "boss", "password": "nope"}),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "valid credentials",
			body:     marchallObj(t, map[string]string{"username": "boss", "password": "LePassword123"}),
			wantCode: http.StatusOK,
		},
		{
			name:     "login with email",
			body:     marchallObj(t, map[string]string{"username": admin.Email, "password": "LePassword123"}),
			wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", tt.body)
			env.app.ServeHTTP(rec, req)
			if rec.Code != tt.wantCode {
				t.Errorf("code = %d, want %d; body = %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantCode == http.StatusOK {
				var resp struct {
					Token string `json:"token"`
				}
				decodeBody(t, rec, &resp)
				if resp.Token == "" {
					t.Error("login response is missing the token")
				}
			}
		})
	}
}

func Test_api_userDetailAccess(t *testing.T) {
	env := setup(t)
	admin := env.createAdmin(t, "boss")
	teacher := env.createTeacher(t, "prof")
	student := env.createStudent(t, "awa", "stu001")

	adminToken := getToken(t, admin)
	teacherToken := getToken(t, teacher.User)
	studentToken := getToken(t, student.User)

	teacherPath := fmt.Sprintf("/v1/users/%d", teacher.UserID)

	tests := []httpTest{
		{name: "no token", method: http.MethodGet, path: teacherPath, wantCode: http.StatusUnauthorized},
		{name: "self", method: http.MethodGet, path: teacherPath, token: teacherToken, wantCode: http.StatusOK},
		{name: "admin", method: http.MethodGet, path: teacherPath, token: adminToken, wantCode: http.StatusOK},
		{name: "other user", method: http.MethodGet, path: teacherPath, token: studentToken, wantCode: http.StatusForbidden},
		{name: "admin delete self is refused", method: http.MethodDelete, path: fmt.Sprintf("/v1/users/%d", admin.ID), token: adminToken, wantCode: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token)
			env.app.ServeHTTP(rec, req)
			if rec.Code != tt.wantCode {
				t.Errorf("code = %d, want %d; body = %s", rec.Code, tt.wantCode, rec.Body.String())
			}
		})
	}
}
