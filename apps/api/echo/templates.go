package echoapi

import (
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/digitalmadrasa/madrasa/core"
	"github.com/digitalmadrasa/madrasa/core/certificate"
	"github.com/digitalmadrasa/madrasa/services/upload"
)

var errNoFile = core.NewFieldError("file", "this field is required")

type templateApi struct {
	svc      *certificate.Service
	uploads  Uploader
	validate core.StructValidator
	logger   core.Logger
}

func registerTemplateAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	uploadLimit string,
	svc *certificate.Service,
	uploads Uploader,
	validate core.StructValidator,
	logger core.Logger,
) {
	api := templateApi{svc: svc, uploads: uploads, validate: validate, logger: logger}

	tg := g.Group("/certificate-templates", jwt, requireAdmin(logger))
	tg.GET("", api.query)
	var uploadMw []echo.MiddlewareFunc
	if uploadLimit != "" {
		uploadMw = append(uploadMw, middleware.BodyLimit(uploadLimit))
	}
	tg.POST("/backgrounds", api.uploadBackground, uploadMw...)
	tg.GET("/:id", api.retrieve)
	tg.DELETE("/:id", api.destroy)
}

const backgroundsRoute = "/v1/certificate-templates/backgrounds"

// clients may name a submission themselves; retries under the same key are refused while it runs
const headerIdempotencyKey = "Idempotency-Key"

// Handlers

func (api *templateApi) query(ctx echo.Context) error {
	ordering := new(Ordering)
	ordering.Bind(ctx)
	tmpls, err := api.svc.QueryTemplates(ctx.Request().Context(), ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "listing templates")
	}
	ordering.Sort(tmpls)
	return ctx.JSON(http.StatusOK, TemplateList{Items: tmpls})
}

func (api *templateApi) retrieve(ctx echo.Context) error {
	tmpl, err := api.svc.GetTemplate(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting template")
	}
	return ctx.JSON(http.StatusOK, tmpl)
}

func (api *templateApi) destroy(ctx echo.Context) error {
	if err := api.svc.DeleteTemplate(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting template")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *templateApi) uploadBackground(ctx echo.Context) error {
	if api.uploads == nil {
		return errHttpNotFound
	}
	fh, err := ctx.FormFile("file")
	if err != nil {
		return errNoFile
	}

	viewer, err := getContextViewer(ctx)
	if err != nil {
		return err
	}
	key := ctx.Request().Header.Get(headerIdempotencyKey)
	if key == "" {
		key = uploadsvc.SubmissionKey(viewer.ID.String(), fh.Filename, fh.Size)
	}

	up := uploadsvc.Upload{
		Key:         "backgrounds|" + key,
		Path:        uploadsvc.BackgroundPath(fh.Filename),
		ContentType: fileContentType(fh.Header.Get(echo.HeaderContentType), fh.Filename),
		Size:        fh.Size,
	}
	if err = up.Validate(api.validate); err != nil {
		return err
	}

	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer func() { _ = f.Close() }()
	up.Body = f
	up.OnProgress = func(pct int) {
		api.logger.Debug("uploading template background", map[string]interface{}{"path": up.Path, "progress": pct})
	}

	res, err := api.uploads.Upload(ctx.Request().Context(), up)
	if err != nil {
		return errors.Wrap(err, "uploading template background")
	}
	return ctx.JSON(http.StatusCreated, res)
}

// fileContentType is the declared type of an uploaded file, else the one of its extension.
func fileContentType(declared, filename string) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
		return mt
	}
	ct := mime.TypeByExtension(strings.ToLower(path.Ext(filename)))
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}
	return ct
}

type TemplateList struct {
	Items []certificate.Template `json:"items"`
}
