package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/digitalmadrasa/madrasa/core"
	"github.com/digitalmadrasa/madrasa/core/certificate"
	"github.com/digitalmadrasa/madrasa/services/upload"
)

var (
	errUnauthorized  = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHttpForbidden = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound  = echo.NewHTTPError(http.StatusNotFound, "not found")

	// user-visible messages
	msgExportFailed   = "The certificate could not be exported. Please try again later."
	msgUpstreamFailed = "The certificate could not be loaded. Please try again later."
	msgNoRecipient    = "The certificate owner has no email address."
	msgUploadRunning  = "This file is already being uploaded."
)

// fatalError answers a certificate or course that could not be loaded.
func fatalError(fe *certificate.FatalError) (int, string) {
	if fe.NotFound() {
		return http.StatusNotFound, fe.Resource + " not found"
	}
	return http.StatusBadGateway, msgUpstreamFailed
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		var (
			fatalErr  *certificate.FatalError
			exportErr *certificate.ExportError
		)
		switch {
		case errors.As(err, &fatalErr):
			// already reported by the certificate service
			code, message = fatalError(fatalErr)
		case errors.As(err, &exportErr):
			code, message = http.StatusInternalServerError, msgExportFailed
			logger.Error(msgExportFailed, err, contextPerson(ctx))
		}
		if code != 0 {
			respond(ctx, err, code, message)
			return
		}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if fldErrs := origErr.FieldMessages(); fldErrs != nil {
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default:
			switch origErr {
			case certificate.ErrNotFound:
				code, message = http.StatusNotFound, "not found"
			case certificate.ErrNoRecipient:
				code, message = http.StatusUnprocessableEntity, msgNoRecipient
			case uploadsvc.ErrInProgress:
				code, message = http.StatusConflict, msgUploadRunning
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg
				logger.Error(msg, errors.Wrap(err, msg), contextPerson(ctx))

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}
		respond(ctx, err, code, message)
	}
}

func respond(ctx echo.Context, err error, code int, message interface{}) {
	if ctx.Echo().Debug {
		message = err.Error()
	}
	if m, ok := message.(string); ok {
		message = echo.Map{"error": m}
	}

	// Send response
	if !ctx.Response().Committed {
		if ctx.Request().Method == http.MethodHead { // Issue #608
			err = ctx.NoContent(code)
		} else {
			err = ctx.JSON(code, message)
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}
