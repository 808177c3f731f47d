package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolbus/core"
	"github.com/trezcool/schoolbus/core/notification"
)

var (
	errInvalidAPIKey = echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing API key")
	errHttpNotFound  = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// errorBody maps err to a status code and a JSON body. ok is false for unexpected errors,
// which are answered with a bare 500.
func errorBody(err error, translator ut.Translator) (code int, body interface{}, ok bool) {
	cause := errors.Cause(err)
	if cause == notification.ErrNotFound {
		cause = errHttpNotFound
	}

	switch e := cause.(type) {
	case *echo.HTTPError:
		if inner, isHTTP := e.Internal.(*echo.HTTPError); isHTTP {
			e = inner
		}
		return e.Code, e.Message, true
	case validator.ValidationErrors:
		fields := make(map[string]string, len(e))
		for _, fe := range e {
			fields[fe.Field()] = fe.Translate(translator)
		}
		return http.StatusBadRequest, fields, true
	case *core.ValidationError:
		if len(e.Fields) == 0 {
			return http.StatusBadRequest, e.Error(), true
		}
		fields := make(map[string]string, len(e.Fields))
		for _, fe := range e.Fields {
			fields[fe.Field] = fe.Error
		}
		return http.StatusBadRequest, fields, true
	}
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), false
}

// newAppHTTPErrorHandler answers every handler error as JSON. Unexpected errors are logged and
// a core shutdown error calls signalShutdown so the server stops gracefully.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		code, body, ok := errorBody(err, translator)
		if !ok {
			req := ctx.Request()
			logger.Error("handling "+req.Method+" "+ctx.Path(), errors.WithStack(err), map[string]interface{}{
				"method": req.Method,
				"path":   ctx.Path(),
			})
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		switch {
		case ctx.Echo().Debug:
			body = err.Error()
		default:
			if msg, isText := body.(string); isText {
				body = echo.Map{"error": msg}
			}
		}

		if ctx.Response().Committed {
			return
		}
		var werr error
		if ctx.Request().Method == http.MethodHead {
			werr = ctx.NoContent(code)
		} else {
			werr = ctx.JSON(code, body)
		}
		if werr != nil {
			ctx.Echo().Logger.Error(werr)
		}
	}
}
