package router

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"

	"julianmorley.ca/con-plar/petstore/pkg/checkout"
	"julianmorley.ca/con-plar/petstore/pkg/errs"
	"julianmorley.ca/con-plar/petstore/pkg/global"
)

// unsavedMessage accompanies a successful change that could not be persisted.
const unsavedMessage = "Your change was applied but could not be saved"

// respondError maps a core error onto an HTTP status and error envelope.
// fallback is used for errors with no user-facing message of their own.
func respondError(c *gin.Context, err error, fallback string) {
	var (
		validationErr  *errs.ValidationError
		notFoundErr    *errs.NotFoundError
		applicationErr *errs.ApplicationError
		transportErr   *errs.TransportError
		persistenceErr *errs.PersistenceError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, global.ErrorResponse(validationErr.Message, []global.ValidationError{
			{Field: validationErr.Field, Message: validationErr.Message, Code: validationErr.Rule},
		}))
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, global.ErrorResponse(notFoundErr.Error(), []global.ValidationError{
			{Field: "id", Message: notFoundErr.Error(), Code: "not_found"},
		}))
	case errors.As(err, &applicationErr):
		status := applicationErr.StatusCode
		if status < http.StatusBadRequest || status >= http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		msg := applicationErr.Message
		if msg == "" {
			msg = fallback
		}
		c.JSON(status, global.ErrorResponse(msg, nil))
	case errors.As(err, &transportErr):
		log.WithError(err).Error("Order service unavailable")
		c.JSON(http.StatusBadGateway, global.ErrorResponse(fallback, nil))
	case errors.Is(err, checkout.ErrSubmissionInFlight), errors.Is(err, checkout.ErrAttemptCompleted):
		c.JSON(http.StatusConflict, global.ErrorResponse(err.Error(), nil))
	case errors.Is(err, checkout.ErrUnknownField):
		c.JSON(http.StatusBadRequest, global.ErrorResponse(err.Error(), nil))
	case errors.As(err, &persistenceErr):
		log.WithError(err).Error("Storage failure")
		c.JSON(http.StatusInternalServerError, global.ErrorResponse(fallback, nil))
	default:
		log.WithError(err).Error("Unhandled error")
		c.JSON(http.StatusInternalServerError, global.ErrorResponse(fallback, nil))
	}
}

// respondMutation answers a container mutation. A persistence failure still
// returns the new state, flagged as unsaved.
func respondMutation(c *gin.Context, status int, data interface{}, err error) {
	if err != nil && !errs.IsPersistence(err) {
		respondError(c, err, "Request failed")
		return
	}
	resp := global.SuccessResponse(data)
	if err != nil {
		resp.Message = unsavedMessage
	}
	c.JSON(status, resp)
}

func bindingErrors(err error) []global.ValidationError {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []global.ValidationError{{Field: "body", Message: err.Error(), Code: "json_parse_error"}}
	}
	out := make([]global.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, global.ValidationError{
			Field:   fe.Field(),
			Message: fe.Error(),
			Code:    fe.Tag(),
		})
	}
	return out
}
