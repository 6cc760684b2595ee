package v1

import (
	"net/http"

	"profile-registry/internal/delivery/http/middleware"
	"profile-registry/internal/delivery/http/response"
	"profile-registry/internal/domain"
	"profile-registry/pkg/apperror"

	"github.com/gin-gonic/gin"
)

type ProfileHandler struct {
	profileUC domain.ProfileUsecase
}

// NewProfileHandler registers profile routes. public carries optional
// authentication; protected requires it.
func NewProfileHandler(public, protected *gin.RouterGroup, profileUC domain.ProfileUsecase) {
	handler := &ProfileHandler{profileUC: profileUC}

	public.GET("/profiles/:id", handler.GetProfile)

	me := protected.Group("/me/profiles")
	{
		me.GET("/:variant", handler.GetOwnProfile)
		me.PUT("/:variant", handler.SaveDraft)
	}

	profiles := protected.Group("/profiles/:id")
	{
		profiles.POST("/submit", handler.Submit)
		profiles.POST("/reopen", handler.Reopen)
		profiles.DELETE("", handler.Delete)
		profiles.POST("/review", middleware.RequireRole(domain.RoleReviewer, domain.RoleAdmin), handler.Review)
		profiles.PUT("/rating", middleware.RequireRole(domain.RoleAdmin), handler.RecordRating)
	}
}

// RatingRequest is pushed by the external review system.
type RatingRequest struct {
	Rating      *float64 `json:"rating" binding:"required"`
	ReviewCount int      `json:"review_count"`
}

// SaveDraft godoc
// @Summary      Create or update the caller's draft profile
// @Description  Replaces the envelope and every child collection. Drafts may be partial.
// @Tags         profiles
// @Accept       json
// @Produce      json
// @Param        variant  path  string  true  "personal or company"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /me/profiles/{variant} [put]
// @Security     BearerAuth
func (h *ProfileHandler) SaveDraft(c *gin.Context) {
	var payload domain.DraftPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		_ = c.Error(apperror.Validation("body", "Invalid JSON payload"))
		return
	}

	actor := middleware.ActorFrom(c)
	id, err := h.profileUC.CreateOrUpdateDraft(c.Request.Context(), actor.ID, domain.Variant(c.Param("variant")), payload)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.Success(c, http.StatusOK, "Draft saved", gin.H{"id": id})
}

func (h *ProfileHandler) GetOwnProfile(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	agg, err := h.profileUC.GetOwnProfile(c.Request.Context(), actor.ID, domain.Variant(c.Param("variant")))
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Profile", agg)
}

// GetProfile godoc
// @Summary      Get a profile
// @Description  Approved profiles are public. Other states are visible to the owner and reviewers.
// @Tags         profiles
// @Produce      json
// @Param        id  path  string  true  "Profile ID"
// @Success      200  {object}  response.Response{data=domain.Aggregate}
// @Failure      404  {object}  response.Response
// @Router       /profiles/{id} [get]
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	agg, err := h.profileUC.GetProfile(c.Request.Context(), c.Param("id"), middleware.ActorFrom(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Profile", agg)
}

func (h *ProfileHandler) Submit(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	if err := h.profileUC.Submit(c.Request.Context(), c.Param("id"), actor.ID); err != nil {
		_ = c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Profile submitted for review", nil)
}

func (h *ProfileHandler) Reopen(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	if err := h.profileUC.Reopen(c.Request.Context(), c.Param("id"), actor.ID); err != nil {
		_ = c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Profile reopened", nil)
}

// Review godoc
// @Summary      Approve or reject a submitted profile
// @Tags         profiles
// @Accept       json
// @Produce      json
// @Param        id  path  string  true  "Profile ID"
// @Success      200  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /profiles/{id}/review [post]
// @Security     BearerAuth
func (h *ProfileHandler) Review(c *gin.Context) {
	var decision domain.ReviewDecision
	if err := c.ShouldBindJSON(&decision); err != nil {
		_ = c.Error(apperror.Validation("body", "Invalid JSON payload"))
		return
	}

	if err := h.profileUC.Review(c.Request.Context(), c.Param("id"), middleware.ActorFrom(c), decision); err != nil {
		_ = c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Review recorded", nil)
}

func (h *ProfileHandler) Delete(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	if err := h.profileUC.Delete(c.Request.Context(), c.Param("id"), actor.ID); err != nil {
		_ = c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Profile deleted", nil)
}

func (h *ProfileHandler) RecordRating(c *gin.Context) {
	var req RatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperror.Validation("rating", "rating is required"))
		return
	}

	if err := h.profileUC.RecordRating(c.Request.Context(), c.Param("id"), *req.Rating, req.ReviewCount); err != nil {
		_ = c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Rating recorded", nil)
}
