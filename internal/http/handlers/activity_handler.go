// Activity trail HTTP handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-gifter-backend/internal/domain"
)

// ListActivityResponse wraps a page of activity log records.
type ListActivityResponse struct {
	Activity   []domain.ActivityLog `json:"activity"`
	Pagination Pagination           `json:"pagination"`
}

// ListActivity returns the activity trail, newest first.
//
// Query params: level (info/warning/error), type (event type such as
// entry_success or win_detected), page, page_size.
func (h *Handlers) ListActivity(c *gin.Context) {
	page, pageSize := clampPagination(c)
	items, total, err := h.activity.List(c.Request.Context(),
		c.Query("level"), c.Query("type"), page, pageSize)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, ListActivityResponse{
		Activity:   items,
		Pagination: pageMeta(page, pageSize, total),
	})
}
