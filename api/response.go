package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rustyeddy/replaytrader/replay"
	"github.com/rustyeddy/replaytrader/session"
	"github.com/rustyeddy/replaytrader/sim"
)

// Response is the envelope for every JSON reply.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeInsufficientMargin = "INSUFFICIENT_MARGIN"
	CodeInternal           = "INTERNAL_ERROR"
)

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func fail(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, Response{Error: &Error{Code: code, Message: msg}})
}

// handle replies with data, or maps err onto a status code. A rejected
// submission still carries its data.
func handle(c *gin.Context, data any, err error) {
	if err == nil {
		ok(c, data)
		return
	}
	status, code := classify(err)
	c.AbortWithStatusJSON(status, Response{Data: data, Error: &Error{Code: code, Message: err.Error()}})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, sim.ErrInsufficientMargin):
		return http.StatusUnprocessableEntity, CodeInsufficientMargin
	case errors.Is(err, sim.ErrInvalidInput),
		errors.Is(err, replay.ErrSeekRange):
		return http.StatusBadRequest, CodeBadRequest
	case errors.Is(err, sim.ErrUnknownInstrument),
		errors.Is(err, sim.ErrUnknownOrder),
		errors.Is(err, sim.ErrNoPosition):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, session.ErrNotStarted),
		errors.Is(err, session.ErrFinished),
		errors.Is(err, session.ErrCannotStart),
		errors.Is(err, sim.ErrNoActiveBar):
		return http.StatusConflict, CodeConflict
	}
	return http.StatusInternalServerError, CodeInternal
}
