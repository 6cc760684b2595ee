package v1

import (
	"net/http"
	"strings"

	"profile-registry/internal/delivery/http/response"
	"profile-registry/internal/domain"
	"profile-registry/pkg/apperror"

	"github.com/gin-gonic/gin"
)

type SearchHandler struct {
	profileUC domain.ProfileUsecase
}

func NewSearchHandler(r *gin.RouterGroup, profileUC domain.ProfileUsecase, limiter gin.HandlerFunc) {
	handler := &SearchHandler{profileUC: profileUC}
	r.GET("/search", limiter, handler.Search)
}

// SearchQuery is the query string form of domain.SearchCriteria. Tag
// filters are repeated "tag=group:key" parameters.
type SearchQuery struct {
	Variant      string   `form:"variant"`
	LocationCode *int     `form:"location_code"`
	MinRating    *float64 `form:"min_rating"`
	Keyword      string   `form:"keyword"`
	Limit        int      `form:"limit"`
	Offset       int      `form:"offset"`
}

// Search godoc
// @Summary      Search approved profiles
// @Description  Filters AND across categories; tag keys within one group match when the profile has any of them.
// @Tags         search
// @Produce      json
// @Param        tag  query  []string  false  "group:key, repeatable"
// @Success      200  {object}  response.Response{data=domain.SearchResult}
// @Failure      400  {object}  response.Response
// @Router       /search [get]
func (h *SearchHandler) Search(c *gin.Context) {
	var q SearchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		_ = c.Error(apperror.Validation("query", "Invalid search parameters"))
		return
	}

	criteria := domain.SearchCriteria{
		Variant:      domain.Variant(q.Variant),
		LocationCode: q.LocationCode,
		MinRating:    q.MinRating,
		Keyword:      q.Keyword,
		Limit:        q.Limit,
		Offset:       q.Offset,
	}
	for _, raw := range c.QueryArray("tag") {
		group, key, ok := strings.Cut(raw, ":")
		if !ok || group == "" || key == "" {
			_ = c.Error(apperror.Validation("tag", "tag filters must look like group:key"))
			return
		}
		if criteria.Tags == nil {
			criteria.Tags = map[string][]string{}
		}
		criteria.Tags[group] = append(criteria.Tags[group], key)
	}

	res, err := h.profileUC.Search(c.Request.Context(), criteria)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Search results", res)
}
