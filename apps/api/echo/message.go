package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/access"
	"github.com/trezcool/shule/core/messaging"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

type messageApi struct {
	usrSvc    user.Service
	schoolSvc school.Service
	svc       messaging.Service
}

func registerMessageAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	usrSvc user.Service,
	schoolSvc school.Service,
	svc messaging.Service,
) {
	api := messageApi{usrSvc: usrSvc, schoolSvc: schoolSvc, svc: svc}

	mg := g.Group("/messages", jwt)
	mg.GET("/candidates", api.candidates)
	mg.POST("", api.compose)
	mg.GET("/inbox", api.inbox)
	mg.GET("/sent", api.sent)
	mg.GET("/unread-count", api.unreadCount)
	mg.GET("/:id", api.retrieve)
	mg.GET("/:id/thread", api.thread)
	mg.POST("/:id/read", api.markRead)
}

func (api *messageApi) actor(ctx echo.Context) (access.Actor, error) {
	return getContextActor(ctx, api.usrSvc, api.schoolSvc)
}

func (api *messageApi) candidates(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	candidates, err := api.svc.RecipientCandidates(actor)
	if err != nil {
		return errors.Wrap(err, "querying recipient candidates")
	}
	if candidates == nil {
		candidates = []user.User{}
	}
	return ctx.JSON(http.StatusOK, candidates)
}

func (api *messageApi) compose(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}

	var data messaging.ComposeMessage
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ComposeMessage")
	}
	if err = data.Validate(); err != nil {
		return err
	}

	msg, err := api.svc.Compose(actor, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, msg)
}

func (api *messageApi) inbox(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	msgs, err := api.svc.Inbox(actor)
	if err != nil {
		return errors.Wrap(err, "querying inbox")
	}
	if msgs == nil {
		msgs = []messaging.Message{}
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *messageApi) sent(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	msgs, err := api.svc.Sent(actor)
	if err != nil {
		return errors.Wrap(err, "querying sent messages")
	}
	if msgs == nil {
		msgs = []messaging.Message{}
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *messageApi) unreadCount(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	count, err := api.svc.UnreadCount(actor)
	if err != nil {
		return errors.Wrap(err, "counting unread messages")
	}
	return ctx.JSON(http.StatusOK, map[string]int{"unread": count})
}

func (api *messageApi) retrieve(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	msg, err := api.svc.Get(actor, id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, msg)
}

func (api *messageApi) thread(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	msgs, err := api.svc.Thread(actor, id)
	if err != nil {
		return err
	}
	if msgs == nil {
		msgs = []messaging.Message{}
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *messageApi) markRead(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	msg, err := api.svc.MarkRead(actor, id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, msg)
}
