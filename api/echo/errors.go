package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/balozi/core"
	"github.com/trezcool/balozi/core/application"
	"github.com/trezcool/balozi/core/chat"
	"github.com/trezcool/balozi/core/event"
	"github.com/trezcool/balozi/core/feed"
	"github.com/trezcool/balozi/core/hours"
	"github.com/trezcool/balozi/core/notification"
	"github.com/trezcool/balozi/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// domain sentinel errors and their HTTP statuses
var domainErrStatuses = map[error]int{
	application.ErrNotFound:         http.StatusNotFound,
	application.ErrAlreadySubmitted: http.StatusConflict,
	application.ErrInvalidState:     http.StatusConflict,
	user.ErrNotFound:                http.StatusNotFound,
	hours.ErrNotFound:               http.StatusNotFound,
	hours.ErrInvalidState:           http.StatusConflict,
	event.ErrNotFound:               http.StatusNotFound,
	event.ErrInvalidStatus:          http.StatusBadRequest,
	feed.ErrNotFound:                http.StatusNotFound,
	feed.ErrForbidden:               http.StatusForbidden,
	chat.ErrNotFound:                http.StatusNotFound,
	notification.ErrNotFound:        http.StatusNotFound,
	core.ErrFileTooLarge:            http.StatusRequestEntityTooLarge,
	core.ErrUnsupportedFileType:     http.StatusUnsupportedMediaType,
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how
// to handle our errors. signalShutdown is called whenever a core.shutdown
// error is caught so the Server can stop gracefully.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

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
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default:
			if status, ok := domainErrStatuses[origErr]; ok {
				code = status
				message = origErr.Error()
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr.ID = claims.Subject
				usr.Username = claims.Username
				usr.Email = claims.Email
			}
			logger.Error(msg, errors.Wrap(err, msg), usr)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		} else if m, ok := message.(string); ok {
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
