package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campusgrid/core"
	"github.com/trezcool/campusgrid/core/ingest"
)

var errHttpNotFound = echo.NewHTTPError(http.StatusNotFound, "not found")

// validationMessage renders a ValidationError as {"error", "kind": "validation", "fields"}.
func validationMessage(err *core.ValidationError) echo.Map {
	msg := echo.Map{"error": err.Error(), "kind": err.Kind()}
	if flds := err.FieldMap(); flds != nil {
		msg["fields"] = flds
	}
	return msg
}

// ingestErrorCodes maps ingestion error kinds to HTTP status codes; unlisted kinds are server errors.
var ingestErrorCodes = map[ingest.ErrorKind]int{
	ingest.ErrNoFile:          http.StatusBadRequest,
	ingest.ErrNoData:          http.StatusBadRequest,
	ingest.ErrSchemaMismatch:  http.StatusBadRequest,
	ingest.ErrDuplicateColumn: http.StatusBadRequest,
	ingest.ErrTooManyColumns:  http.StatusBadRequest,
	ingest.ErrUnknownDomain:   http.StatusNotFound,
	ingest.ErrTimeout:         http.StatusGatewayTimeout,
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught,
// eg. a storage failure caused by postgres shutting down.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		logServerError := func() {
			msg := http.StatusText(http.StatusInternalServerError)
			logger.Error(msg, errors.Wrap(err, msg), map[string]interface{}{
				"request_id": ctx.Response().Header().Get(echo.HeaderXRequestID),
				"path":       ctx.Request().URL.Path,
			})
		}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			code = http.StatusBadRequest
			message = validationMessage(core.TranslateValidationErrors(origErr, translator))
		case *core.ValidationError:
			code = http.StatusBadRequest
			message = validationMessage(origErr)
		case *ingest.Error:
			msg := origErr.Error()
			var ok bool
			if code, ok = ingestErrorCodes[origErr.Kind]; !ok {
				code = http.StatusInternalServerError
				logServerError()
				if !ctx.Echo().Debug {
					msg = http.StatusText(http.StatusInternalServerError)
				}
			}
			message = echo.Map{"error": msg, "kind": origErr.Kind}
		default:
			if origErr == ingest.ErrTableNotFound {
				code = http.StatusNotFound
				message = errHttpNotFound.Message
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			message = http.StatusText(http.StatusInternalServerError)
			logServerError()

			if ctx.Echo().Debug {
				message = err.Error()
			}
		}

		// shutting down...
		if code == http.StatusInternalServerError && core.IsShutdown(err) {
			signalShutdown()
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
}
