package tests

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/activity"
	"github.com/trezcool/shule/core/assignment"
	"github.com/trezcool/shule/core/messaging"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
	emailsvc "github.com/trezcool/shule/services/email"
	"github.com/trezcool/shule/services/filestore"
	logsvc "github.com/trezcool/shule/services/logger"
	dummydb "github.com/trezcool/shule/storage/database/dummy"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testEnv struct {
	app Server

	usrSvc        user.Service
	schoolSvc     school.Service
	assignmentSvc assignment.Service
	messagingSvc  messaging.Service
	activitySvc   activity.Service
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	// set up DB & repos
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed, %v", err)
	}

	// set up services
	logger := logsvc.NewStdLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags))
	mailSvc := emailsvc.NewConsoleServiceMock()
	fileStore, err := filestore.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("filestore.NewLocalStorage() failed, %v", err)
	}
	usrSvc := user.NewServiceMock(dummydb.NewUserRepository(db), mailSvc, nil)
	activitySvc := activity.NewService(dummydb.NewActivityRepository(db), logger)
	schoolSvc := school.NewService(dummydb.NewSchoolRepository(db), usrSvc, activitySvc)
	assignmentSvc := assignment.NewService(dummydb.NewAssignmentRepository(db), schoolSvc, activitySvc)
	messagingSvc := messaging.NewService(dummydb.NewMessageRepository(db), usrSvc, schoolSvc, activitySvc)

	// set up server
	app := NewServer(
		&Options{
			DisableReqLogs: true,
			Logger:         logger,
			FileStore:      fileStore,
			UserSvc:        usrSvc,
			SchoolSvc:      schoolSvc,
			AssignmentSvc:  assignmentSvc,
			MessagingSvc:   messagingSvc,
			ActivitySvc:    activitySvc,
		},
	)
	return &testEnv{
		app:           app,
		usrSvc:        usrSvc,
		schoolSvc:     schoolSvc,
		assignmentSvc: assignmentSvc,
		messagingSvc:  messagingSvc,
		activitySvc:   activitySvc,
	}
}

func (env *testEnv) createAdmin(t *testing.T, uname string) user.User {
	t.Helper()
	usr, err := env.usrSvc.Create(user.NewUser{
		Name:     uname,
		Username: uname,
		Email:    uname + "@test.cd",
		Password: "LePassword123",
		Role:     user.RoleAdmin,
	})
	if err != nil {
		t.Fatalf("Create() failed, %v", err)
	}
	return usr
}

func (env *testEnv) createTeacher(t *testing.T, uname string) school.Teacher {
	t.Helper()
	teacher, err := env.schoolSvc.CreateTeacher(school.NewTeacher{
		NewUser: user.NewUser{
			Name:     uname,
			Username: uname,
			Email:    uname + "@test.cd",
			Password: "LePassword123",
			Role:     user.RoleTeacher,
		},
		Specialty: "Mathematics",
	})
	if err != nil {
		t.Fatalf("CreateTeacher() failed, %v", err)
	}
	return teacher
}

func (env *testEnv) createStudent(t *testing.T, uname, enrollmentID string) school.Student {
	t.Helper()
	student, err := env.schoolSvc.CreateStudent(school.NewStudent{
		NewUser: user.NewUser{
			Name:     uname,
			Username: uname,
			Email:    uname + "@test.cd",
			Password: "LePassword123",
			Role:     user.RoleStudent,
		},
		EnrollmentID: enrollmentID,
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed, %v", err)
	}
	return student
}

func (env *testEnv) teacherActor(t *testing.T, teacher school.Teacher) access.Actor {
	t.Helper()
	return access.Actor{User: teacher.User, Teacher: &teacher}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// newUploadRequest builds a multipart request with one file field plus
// optional form values.
func newUploadRequest(t *testing.T, method, path, token, field, filename string, content []byte, values map[string]string) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("CreateFormFile() failed, %v", err)
	}
	if _, err = io.Copy(fw, bytes.NewReader(content)); err != nil {
		t.Fatalf("copying file content failed, %v", err)
	}
	for k, v := range values {
		if err = w.WriteField(k, v); err != nil {
			t.Fatalf("WriteField() failed, %v", err)
		}
	}
	if err = w.Close(); err != nil {
		t.Fatalf("closing multipart writer failed, %v", err)
	}

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func getToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decoding response %q failed: %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
