package echoapi

import (
	"mime"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/digitalmadrasa/madrasa/core/certificate"
)

type certificateApi struct {
	svc *certificate.Service
}

func registerCertificateAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *certificate.Service) {
	api := certificateApi{svc: svc}

	cg := g.Group("/certificates/:courseId/:certificateId", jwt)
	cg.GET("", api.preview)
	cg.GET("/png", api.png)
	cg.GET("/pdf", api.pdf)
	cg.POST("/email", api.email)
}

func renderRequest(ctx echo.Context) (certificate.RenderRequest, error) {
	viewer, err := getContextViewer(ctx)
	if err != nil {
		return certificate.RenderRequest{}, errors.Wrap(err, "getting context viewer")
	}
	return certificate.RenderRequest{
		CourseID:      ctx.Param("courseId"),
		CertificateID: ctx.Param("certificateId"),
		Viewer:        viewer,
	}, nil
}

// Handlers

func (api *certificateApi) preview(ctx echo.Context) error {
	req, err := renderRequest(ctx)
	if err != nil {
		return err
	}
	a, err := api.svc.Preview(ctx.Request().Context(), req)
	if err != nil {
		return errors.Wrap(err, "previewing certificate")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *certificateApi) png(ctx echo.Context) error {
	req, err := renderRequest(ctx)
	if err != nil {
		return err
	}
	exp, err := api.svc.ExportPNG(ctx.Request().Context(), req)
	if err != nil {
		return errors.Wrap(err, "exporting png")
	}
	return attachment(ctx, exp)
}

func (api *certificateApi) pdf(ctx echo.Context) error {
	req, err := renderRequest(ctx)
	if err != nil {
		return err
	}
	exp, err := api.svc.ExportPDF(ctx.Request().Context(), req)
	if err != nil {
		return errors.Wrap(err, "exporting pdf")
	}
	return attachment(ctx, exp)
}

func (api *certificateApi) email(ctx echo.Context) error {
	req, err := renderRequest(ctx)
	if err != nil {
		return err
	}
	to, err := api.svc.EmailCertificate(ctx.Request().Context(), req)
	if err != nil {
		return errors.Wrap(err, "emailing certificate")
	}
	return ctx.JSON(http.StatusAccepted, EmailResponse{SentTo: to})
}

func attachment(ctx echo.Context, exp *certificate.Export) error {
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": exp.Filename})
	ctx.Response().Header().Set(echo.HeaderContentDisposition, disposition)
	return ctx.Blob(http.StatusOK, exp.ContentType, exp.Data)
}

type EmailResponse struct {
	SentTo string `json:"sent_to"`
}
