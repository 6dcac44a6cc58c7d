// Game catalog HTTP handlers.
package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-gifter-backend/internal/domain"
	"github.com/tbourn/go-gifter-backend/internal/utils"
)

// GetGame returns cached Steam metadata for the given app ID, fetching from
// the Steam API on a cache miss. With refresh=true the cache age is ignored
// and a fresh fetch is forced.
func (h *Handlers) GetGame(c *gin.Context) {
	appID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || appID <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "id must be a positive Steam app ID")
		return
	}
	var game *domain.Game
	if f := boolFilter(c, "refresh"); f != nil && *f {
		game, err = h.games.Refresh(c.Request.Context(), appID)
	} else {
		game, err = h.games.GetOrFetch(c.Request.Context(), appID)
	}
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, game)
}

// ListGames searches the locally cached game catalog by name.
func (h *Handlers) ListGames(c *gin.Context) {
	limit := utils.ClampInt(utils.AtoiDefault(c.Query("limit"), 20), 1, 100)
	games, err := h.games.Search(c.Request.Context(), strings.TrimSpace(c.Query("search")), limit)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"games": games})
}

// RefreshStaleGames re-fetches metadata for games whose cache entries have
// expired. The optional limit query param caps the batch (default 50).
func (h *Handlers) RefreshStaleGames(c *gin.Context) {
	limit := utils.ClampInt(utils.AtoiDefault(c.Query("limit"), 50), 1, 500)
	n, err := h.games.RefreshStale(c.Request.Context(), limit)
	if err != nil {
		// Partial progress still gets reported alongside the error.
		c.JSON(http.StatusBadGateway, gin.H{
			"refreshed": n,
			"error":     ErrorResponse{Code: ErrCodeSiteError, Message: err.Error()},
		})
		return
	}
	ok(c, http.StatusOK, gin.H{"refreshed": n})
}
