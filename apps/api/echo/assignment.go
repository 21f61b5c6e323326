package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/assignment"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

type assignmentApi struct {
	usrSvc    user.Service
	schoolSvc school.Service
	svc       assignment.Service
	fileStore core.FileStorage
}

func registerAssignmentAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	usrSvc user.Service,
	schoolSvc school.Service,
	svc assignment.Service,
	fileStore core.FileStorage,
) {
	api := assignmentApi{usrSvc: usrSvc, schoolSvc: schoolSvc, svc: svc, fileStore: fileStore}

	ag := g.Group("/assignments", jwt)
	ag.POST("", api.create, staffMiddleware())
	ag.GET("", api.query)
	ag.GET("/:id", api.retrieve)
	ag.PUT("/:id", api.update)
	ag.DELETE("/:id", api.destroy)
	ag.POST("/:id/attachment", api.uploadAttachment)
	ag.POST("/:id/publish", api.publish)
	ag.POST("/:id/archive", api.archive)
	ag.GET("/:id/stats", api.stats)
	ag.GET("/:id/submissions", api.querySubmissions)
	ag.POST("/:id/submissions", api.submit)

	sg := g.Group("/submissions", jwt)
	sg.GET("/mine", api.ownSubmissions)
	sg.GET("/:id", api.retrieveSubmission)
	sg.PUT("/:id/grade", api.grade)
}

func (api *assignmentApi) actor(ctx echo.Context) (access.Actor, error) {
	return getContextActor(ctx, api.usrSvc, api.schoolSvc)
}

func (api *assignmentApi) create(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}

	var data assignment.NewAssignment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err = data.Validate(); err != nil {
		return err
	}

	asg, err := api.svc.Create(actor, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, asg)
}

func (api *assignmentApi) query(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	asgs, err := api.svc.QueryForActor(actor)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	if asgs == nil {
		asgs = []assignment.Assignment{}
	}
	return ctx.JSON(http.StatusOK, asgs)
}

func (api *assignmentApi) retrieve(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	asg, err := api.svc.Get(actor, id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, asg)
}

func (api *assignmentApi) update(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}

	var data assignment.UpdateAssignment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAssignment")
	}

	asg, err := api.svc.Update(actor, id, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, asg)
}

func (api *assignmentApi) destroy(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(actor, id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *assignmentApi) uploadAttachment(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	actor, err := api.actor(ctx)
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
		return errors.Wrap(err, "storing attachment file")
	}

	asg, err := api.svc.Update(actor, id, assignment.UpdateAssignment{AttachmentRef: ref})
	if err != nil {
		_ = api.fileStore.Delete(ref)
		return err
	}
	return ctx.JSON(http.StatusOK, asg)
}

func (api *assignmentApi) publish(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	asg, err := api.svc.Publish(actor, id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, asg)
}

func (api *assignmentApi) archive(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	asg, err := api.svc.Archive(actor, id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, asg)
}

func (api *assignmentApi) stats(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	stats, err := api.svc.Stats(actor, id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, stats)
}

// Submissions

func (api *assignmentApi) submit(ctx echo.Context) error {
	asgID, err := pathID(ctx)
	if err != nil {
		return err
	}
	actor, err := api.actor(ctx)
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
		return errors.Wrap(err, "storing submission file")
	}

	data := assignment.NewSubmission{AssignmentID: asgID, FileRef: ref}
	if err = data.Validate(); err != nil {
		_ = api.fileStore.Delete(ref)
		return err
	}

	sub, err := api.svc.Submit(actor, data)
	if err != nil {
		_ = api.fileStore.Delete(ref)
		return err
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *assignmentApi) querySubmissions(ctx echo.Context) error {
	asgID, err := pathID(ctx)
	if err != nil {
		return err
	}
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	subs, err := api.svc.QuerySubmissions(actor, asgID)
	if err != nil {
		return err
	}
	if subs == nil {
		subs = []assignment.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *assignmentApi) ownSubmissions(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	subs, err := api.svc.QueryOwnSubmissions(actor)
	if err != nil {
		return err
	}
	if subs == nil {
		subs = []assignment.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *assignmentApi) retrieveSubmission(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	sub, err := api.svc.GetSubmission(actor, id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *assignmentApi) grade(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}

	var data assignment.GradeSubmission
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeSubmission")
	}

	sub, err := api.svc.Grade(actor, id, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}
