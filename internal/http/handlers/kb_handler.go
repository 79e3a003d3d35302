// Knowledge-base HTTP handler.
//
//   - GET /kb/search?q=...&k=3
//
// Search is deterministic: the same query against the same article set always
// returns the same ranked results.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-support-agent/internal/kb"
	"github.com/tbourn/go-support-agent/internal/utils"
)

// KBSearchResponse wraps ranked knowledge-base matches for a query.
type KBSearchResponse struct {
	Query   string      `json:"query"`
	Results []kb.Result `json:"results"`
}

// SearchKB godoc
// @ID          searchKB
// @Summary     Search the knowledge base
// @Description Returns the top-k article chunks ranked by keyword score.
// @Tags        KnowledgeBase
// @Produce     json
//
// @Param       q  query  string  true   "Search query"
// @Param       k  query  int     false  "Maximum results"  minimum(1) default(3)
//
// @Success     200  {object}  handlers.KBSearchResponse
// @Failure     400  {object}  handlers.ErrorResponse "Missing query"
// @Router      /kb/search [get]
func (h *Handlers) SearchKB(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "q required")
		return
	}
	k := utils.AtoiDefault(c.Query("k"), kb.DefaultTopK)
	if k < 1 {
		k = kb.DefaultTopK
	}

	results := h.kbIndex.Search(q, k)
	if results == nil {
		results = []kb.Result{}
	}
	ok(c, http.StatusOK, KBSearchResponse{Query: q, Results: results})
}
