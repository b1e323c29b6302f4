package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/medrota/rota-api/pkg/response"
)

type calendarService interface {
	Feed(ctx context.Context, token string) (string, error)
}

// CalendarHandler serves the public ICS subscription feed. The route is
// unauthenticated; possession of the token is the credential.
type CalendarHandler struct {
	service calendarService
}

// NewCalendarHandler constructs the handler.
func NewCalendarHandler(service calendarService) *CalendarHandler {
	return &CalendarHandler{service: service}
}

// Feed godoc
// @Summary Personal rotation calendar (ICS)
// @Tags Calendar
// @Produce plain
// @Param token path string true "Calendar token"
// @Success 200 {string} string "text/calendar payload"
// @Router /calendar/{token}.ics [get]
func (h *CalendarHandler) Feed(c *gin.Context) {
	token := strings.TrimSuffix(c.Param("token"), ".ics")
	feed, err := h.service.Feed(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, []byte(feed), "rotations.ics", "text/calendar; charset=utf-8")
}
