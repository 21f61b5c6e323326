package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

type courseApi struct {
	usrSvc    user.Service
	svc       school.Service
	fileStore core.FileStorage
}

func registerCourseAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	usrSvc user.Service,
	svc school.Service,
	fileStore core.FileStorage,
) {
	api := courseApi{usrSvc: usrSvc, svc: svc, fileStore: fileStore}

	cg := g.Group("/courses", jwt)
	cg.POST("", api.create, staffMiddleware())
	cg.GET("", api.query)
	cg.GET("/:id", api.retrieve)
	cg.PUT("/:id", api.update)
	cg.DELETE("/:id", api.destroy)

	// membership
	cg.POST("/:id/enroll", api.enroll)
	cg.POST("/:id/unenroll", api.unenroll)
	cg.POST("/:id/assign-teacher", api.assignTeacher)
	cg.POST("/:id/remove-teacher", api.removeTeacher)

	// materials
	cg.POST("/:id/materials", api.addMaterial)
	cg.GET("/:id/materials", api.queryMaterials)

	mg := g.Group("/materials", jwt)
	mg.GET("/:id/download", api.downloadMaterial)
	mg.DELETE("/:id", api.deleteMaterial)
}

func (api *courseApi) actor(ctx echo.Context) (access.Actor, error) {
	return getContextActor(ctx, api.usrSvc, api.svc)
}

func (api *courseApi) create(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}

	var data school.NewCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err = data.Validate(); err != nil {
		return err
	}

	course, err := api.svc.CreateCourse(actor.User.ID, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, course)
}

// query scopes the listing to the caller's role. Admins see all courses,
// teachers the ones they teach, students the ones they are enrolled in.
func (api *courseApi) query(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}

	var courses []school.Course
	switch {
	case actor.IsAdmin():
		courses, err = api.svc.QueryCourses()
	case actor.IsTeacher():
		courses, err = api.svc.QueryCoursesByTeacherUser(actor.User.ID)
	case actor.IsStudent():
		courses, err = api.svc.QueryCoursesByStudent(actor.Student.ID)
	default:
		return errHttpForbidden
	}
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []school.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	course, err := api.svc.GetCourse(id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, course)
}

func (api *courseApi) update(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	actor, _, err := api.managedCourse(ctx, id)
	if err != nil {
		return err
	}

	var data school.UpdateCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}

	course, err := api.svc.UpdateCourse(actor.User.ID, id, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, course)
}

func (api *courseApi) destroy(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	actor, _, err := api.managedCourse(ctx, id)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteCourse(actor.User.ID, id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// managedCourse loads the course and ensures the actor may manage it.
func (api *courseApi) managedCourse(ctx echo.Context, id int) (access.Actor, school.Course, error) {
	actor, err := api.actor(ctx)
	if err != nil {
		return access.Actor{}, school.Course{}, err
	}
	course, err := api.svc.GetCourse(id)
	if err != nil {
		return access.Actor{}, school.Course{}, err
	}
	if !access.CanManageCourse(actor, course) {
		return access.Actor{}, school.Course{}, errHttpForbidden
	}
	return actor, course, nil
}

// Membership

type enrollmentRequest struct {
	StudentID int `json:"student_id" validate:"required"`
}

type teacherAssignmentRequest struct {
	TeacherID int `json:"teacher_id" validate:"required"`
}

// respondChange maps an idempotent membership outcome onto HTTP. A change
// that was already in the requested state is not an error to the caller;
// it gets a 200 with a warning instead.
func respondChange(ctx echo.Context, res school.ChangeResult, err error) error {
	switch res {
	case school.ChangeApplied:
		return ctx.JSON(http.StatusOK, SuccessResponse{Success: "changed"})
	case school.ChangeUnchanged:
		if core.IsConflict(err) {
			return ctx.JSON(http.StatusOK, WarningResponse{Warning: err.Error()})
		}
		return err
	default: // ChangeNotFound
		return err
	}
}

func (api *courseApi) enroll(ctx echo.Context) error {
	courseID, err := pathID(ctx)
	if err != nil {
		return err
	}
	actor, _, err := api.managedCourse(ctx, courseID)
	if err != nil {
		return err
	}

	var data enrollmentRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to enrollmentRequest")
	}
	if err = core.Validate.Struct(&data); err != nil {
		return err
	}

	res, err := api.svc.Enroll(actor.User.ID, data.StudentID, courseID)
	return respondChange(ctx, res, err)
}

func (api *courseApi) unenroll(ctx echo.Context) error {
	courseID, err := pathID(ctx)
	if err != nil {
		return err
	}
	actor, _, err := api.managedCourse(ctx, courseID)
	if err != nil {
		return err
	}

	var data enrollmentRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to enrollmentRequest")
	}
	if err = core.Validate.Struct(&data); err != nil {
		return err
	}

	res, err := api.svc.Unenroll(actor.User.ID, data.StudentID, courseID)
	return respondChange(ctx, res, err)
}

func (api *courseApi) assignTeacher(ctx echo.Context) error {
	courseID, err := pathID(ctx)
	if err != nil {
		return err
	}
	actor, _, err := api.managedCourse(ctx, courseID)
	if err != nil {
		return err
	}

	var data teacherAssignmentRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to teacherAssignmentRequest")
	}
	if err = core.Validate.Struct(&data); err != nil {
		return err
	}

	res, err := api.svc.AssignTeacher(actor.User.ID, data.TeacherID, courseID)
	return respondChange(ctx, res, err)
}

func (api *courseApi) removeTeacher(ctx echo.Context) error {
	courseID, err := pathID(ctx)
	if err != nil {
		return err
	}
	actor, _, err := api.managedCourse(ctx, courseID)
	if err != nil {
		return err
	}

	var data teacherAssignmentRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to teacherAssignmentRequest")
	}
	if err = core.Validate.Struct(&data); err != nil {
		return err
	}

	res, err := api.svc.RemoveTeacher(actor.User.ID, data.TeacherID, courseID)
	return respondChange(ctx, res, err)
}

// Materials

func (api *courseApi) addMaterial(ctx echo.Context) error {
	courseID, err := pathID(ctx)
	if err != nil {
		return err
	}
	actor, _, err := api.managedCourse(ctx, courseID)
	if err != nil {
		return err
	}

	fileHdr, err := ctx.FormFile("file")
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "file", Error: "a file is required"})
	}
	file, err := fileHdr.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer file.Close()

	ref, err := api.fileStore.Save(file, fileHdr.Filename)
	if err != nil {
		return errors.Wrap(err, "storing material file")
	}

	data := school.NewMaterial{
		CourseID:    courseID,
		Title:       ctx.FormValue("title"),
		Description: ctx.FormValue("description"),
		FileRef:     ref,
	}
	if err = data.Validate(); err != nil {
		_ = api.fileStore.Delete(ref)
		return err
	}

	material, err := api.svc.AddMaterial(actor.User.ID, data)
	if err != nil {
		_ = api.fileStore.Delete(ref)
		return err
	}
	return ctx.JSON(http.StatusCreated, material)
}

func (api *courseApi) queryMaterials(ctx echo.Context) error {
	courseID, err := pathID(ctx)
	if err != nil {
		return err
	}
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	course, err := api.svc.GetCourse(courseID)
	if err != nil {
		return err
	}
	if !access.CanViewCourseMaterials(actor, course) {
		return errHttpForbidden
	}

	materials, err := api.svc.QueryMaterials(courseID)
	if err != nil {
		return errors.Wrap(err, "querying course materials")
	}
	if materials == nil {
		materials = []school.CourseMaterial{}
	}
	return ctx.JSON(http.StatusOK, materials)
}

func (api *courseApi) downloadMaterial(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	material, err := api.svc.GetMaterial(id)
	if err != nil {
		return err
	}
	course, err := api.svc.GetCourse(material.CourseID)
	if err != nil {
		return err
	}
	if !access.CanViewCourseMaterials(actor, course) {
		return errHttpForbidden
	}

	file, err := api.fileStore.Open(material.FileRef)
	if err != nil {
		return errors.Wrap(err, "opening material file")
	}
	defer file.Close()
	return ctx.Stream(http.StatusOK, "application/octet-stream", file)
}

func (api *courseApi) deleteMaterial(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	material, err := api.svc.GetMaterial(id)
	if err != nil {
		return err
	}
	course, err := api.svc.GetCourse(material.CourseID)
	if err != nil {
		return err
	}
	if !access.CanManageCourse(actor, course) {
		return errHttpForbidden
	}

	if err = api.svc.DeleteMaterial(actor.User.ID, id); err != nil {
		return err
	}
	_ = api.fileStore.Delete(material.FileRef)
	return ctx.NoContent(http.StatusNoContent)
}
