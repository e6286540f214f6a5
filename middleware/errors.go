package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/princinho/toursbackend/apperror"
	"github.com/princinho/toursbackend/models"
	"github.com/princinho/toursbackend/utils"
	"go.uber.org/zap"
)

const genericMessage = "Something went wrong"

// ErrorHandler renders the last error recorded with c.Error as the
// {status, message} envelope. Errors without a known kind are logged and
// hidden behind a generic 500 unless exposeDetails is set.
func ErrorHandler(log *zap.Logger, exposeDetails bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		ae := Classify(err)

		body := gin.H{"status": apperror.Status(ae.Kind), "message": ae.Message}
		if ae.Kind == apperror.Internal {
			log.Error("unhandled error",
				zap.String("method", c.Request.Method),
				zap.String("route", RoutePath(c)),
				zap.String("request_id", RequestID(c)),
				zap.Error(err))
			if exposeDetails {
				body["error"] = err.Error()
			}
		}
		c.JSON(apperror.HTTPStatus(ae.Kind), body)
	}
}

// Classify maps err onto an operational error when its shape is known:
// binding and validation failures, malformed JSON, and duplicate keys.
func Classify(err error) *apperror.Error {
	if ae, ok := apperror.As(err); ok {
		return ae
	}

	var ve validator.ValidationErrors
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &ve):
		return apperror.Wrap(apperror.ValidationFailed, models.ValidationMessage(ve), err)
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return apperror.Wrap(apperror.ValidationFailed, "Malformed JSON body", err)
	case errors.Is(err, io.EOF):
		return apperror.Wrap(apperror.ValidationFailed, "Request body is empty", err)
	case errors.As(err, &typeErr):
		return apperror.Wrap(apperror.ValidationFailed, "Invalid "+typeErr.Field+": wrong type", err)
	case errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
		return apperror.Wrap(apperror.ValidationFailed, "Expected a multipart form", err)
	case utils.IsDuplicateKey(err):
		field := utils.DuplicateKeyField(err)
		if field == "" {
			field = "value"
		}
		return apperror.Wrap(apperror.Conflict, "Duplicate field value: "+field+". Please use another value!", err)
	}
	return apperror.Wrap(apperror.Internal, genericMessage, err)
}
