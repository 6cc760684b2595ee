package v1

import (
	"net/http"

	"profile-registry/internal/delivery/http/cache"
	"profile-registry/internal/delivery/http/response"

	"github.com/gin-gonic/gin"
)

type ClassificationHandler struct {
	codes cache.CodeSource
}

func NewClassificationHandler(r *gin.RouterGroup, codes cache.CodeSource) {
	handler := &ClassificationHandler{codes: codes}

	classifications := r.Group("/classifications")
	{
		classifications.GET("", handler.ListGroups)
		classifications.GET("/:group", handler.ListCodes)
	}
}

func (h *ClassificationHandler) ListGroups(c *gin.Context) {
	groups, err := h.codes.ListClassificationGroups(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Classification groups", groups)
}

// ListCodes returns the active codes of one group in display order.
func (h *ClassificationHandler) ListCodes(c *gin.Context) {
	codes, err := h.codes.ListClassificationCodes(c.Request.Context(), c.Param("group"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Classification codes", codes)
}
