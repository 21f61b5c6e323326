package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

type profileApi struct {
	svc       user.Service
	fileStore core.FileStorage
}

func registerProfileAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc user.Service, fileStore core.FileStorage) {
	api := profileApi{svc: svc, fileStore: fileStore}

	pg := g.Group("/profile", jwt)
	pg.GET("", api.retrieve)
	pg.PUT("", api.update)
	pg.POST("/picture", api.uploadPicture)

	tfa := pg.Group("/2fa")
	tfa.POST("/enable", api.enableTwoFactor)
	tfa.POST("/confirm", api.confirmTwoFactor)
	tfa.POST("/disable", api.disableTwoFactor)
}

type twoFactorRequest struct {
	Code string `json:"code" validate:"required"`
}

func (r *twoFactorRequest) Validate() error { return core.Validate.Struct(r) }

func (api *profileApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	prof, err := api.svc.GetProfile(usr)
	if err != nil {
		return errors.Wrap(err, "getting profile")
	}
	return ctx.JSON(http.StatusOK, prof)
}

func (api *profileApi) update(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data user.UpdateProfile
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	if err = data.Validate(); err != nil {
		return err
	}

	prof, err := api.svc.UpdateProfile(usr, data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return ctx.JSON(http.StatusOK, prof)
}

func (api *profileApi) uploadPicture(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	fh, err := ctx.FormFile("picture")
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "picture", Error: "this field is required"})
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening upload")
	}
	defer func() { _ = f.Close() }()

	ref, err := api.fileStore.Save(f, fh.Filename)
	if err != nil {
		return errors.Wrap(err, "saving picture")
	}

	prof, err := api.svc.GetProfile(usr)
	if err != nil {
		return errors.Wrap(err, "getting profile")
	}
	if prof.PictureRef.Valid {
		_ = api.fileStore.Delete(prof.PictureRef.String)
	}
	prof.PictureRef = null.StringFrom(ref)
	prof, err = api.svc.SaveProfile(prof)
	if err != nil {
		return errors.Wrap(err, "saving profile")
	}
	return ctx.JSON(http.StatusOK, prof)
}

func (api *profileApi) enableTwoFactor(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	setup, err := api.svc.EnableTwoFactor(usr)
	if err != nil {
		return errors.Wrap(err, "enabling two-factor")
	}
	return ctx.JSON(http.StatusOK, setup)
}

func (api *profileApi) confirmTwoFactor(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data twoFactorRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to twoFactorRequest")
	}
	if err = data.Validate(); err != nil {
		return err
	}

	if err = api.svc.ConfirmTwoFactor(usr, data.Code); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Two-factor authentication enabled."})
}

func (api *profileApi) disableTwoFactor(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data twoFactorRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to twoFactorRequest")
	}

	if err = api.svc.DisableTwoFactor(usr, data.Code); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Two-factor authentication disabled."})
}
