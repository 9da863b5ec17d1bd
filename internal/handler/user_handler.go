package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/supervisi-api/internal/models"
	"github.com/noah-isme/supervisi-api/internal/service"
	"github.com/noah-isme/supervisi-api/pkg/response"
)

// UserHandler manages user CRUD endpoints.
type UserHandler struct {
	service *service.UserService
}

// NewUserHandler constructs a user handler.
func NewUserHandler(svc *service.UserService) *UserHandler {
	return &UserHandler{service: svc}
}

func roleQuery(c *gin.Context) *models.UserRole {
	raw := strings.ToUpper(strings.TrimSpace(c.Query("role")))
	if raw == "" {
		return nil
	}
	role := models.UserRole(raw)
	return &role
}

// List godoc
// @Summary List users
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param search query string false "Search by name or email"
// @Param role query string false "Filter by role"
// @Param isActive query bool false "Filter by active flag"
// @Param skip query int false "Offset"
// @Param take query int false "Page size (max 100)"
// @Success 200 {object} response.ListEnvelope
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	filter := models.UserFilter{
		Search:   strings.TrimSpace(c.Query("search")),
		Role:     roleQuery(c),
		IsActive: queryBool(c, "isActive"),
	}
	filter.Skip, filter.Take = page(c)

	users, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, users, total, filter.Skip, filter.Take)
}

// Search godoc
// @Summary Search active users
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param q query string true "Email or name fragment"
// @Param role query string false "Filter by role"
// @Success 200 {object} response.Envelope
// @Router /users/search [get]
func (h *UserHandler) Search(c *gin.Context) {
	users, err := h.service.Search(c.Request.Context(), c.Query("q"), roleQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, nil)
}

// ListByRole godoc
// @Summary List active users by role
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param role path string true "Role"
// @Success 200 {object} response.Envelope
// @Router /users/role/{role} [get]
func (h *UserHandler) ListByRole(c *gin.Context) {
	role := models.UserRole(strings.ToUpper(c.Param("role")))
	users, err := h.service.ListByRole(c.Request.Context(), role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, nil)
}

// ListActive godoc
// @Summary List active users
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /users/active [get]
func (h *UserHandler) ListActive(c *gin.Context) {
	users, err := h.service.ListActive(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, nil)
}

// Stats godoc
// @Summary User statistics
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /users/stats [get]
func (h *UserHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// CheckEmail godoc
// @Summary Check whether an email is registered
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param email query string true "Email"
// @Success 200 {object} response.Envelope
// @Router /users/check-email [get]
func (h *UserHandler) CheckEmail(c *gin.Context) {
	result, err := h.service.CheckEmail(c.Request.Context(), c.Query("email"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Get godoc
// @Summary Get user
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.ErrorBody
// @Router /users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// Create godoc
// @Summary Create user
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateUserRequest true "User payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.ErrorBody
// @Router /users [post]
func (h *UserHandler) Create(c *gin.Context) {
	var req models.CreateUserRequest
	if !bindJSON(c, &req, "invalid user payload") {
		return
	}
	user, err := h.service.Create(c.Request.Context(), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}

// BulkCreate godoc
// @Summary Create several users in one transaction
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.BulkCreateUsersRequest true "Users"
// @Success 201 {object} response.Envelope
// @Router /users/bulk [post]
func (h *UserHandler) BulkCreate(c *gin.Context) {
	var req models.BulkCreateUsersRequest
	if !bindJSON(c, &req, "invalid bulk payload") {
		return
	}
	users, err := h.service.BulkCreate(c.Request.Context(), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, users)
}

// Update godoc
// @Summary Update user
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param payload body models.UpdateUserRequest true "User payload"
// @Success 200 {object} response.Envelope
// @Router /users/{id} [patch]
func (h *UserHandler) Update(c *gin.Context) {
	var req models.UpdateUserRequest
	if !bindJSON(c, &req, "invalid user payload") {
		return
	}
	user, err := h.service.Update(c.Request.Context(), c.Param("id"), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// ToggleActive godoc
// @Summary Activate or deactivate user
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param payload body models.ToggleActiveRequest true "Active flag"
// @Success 200 {object} response.Envelope
// @Router /users/{id}/toggle-active [patch]
func (h *UserHandler) ToggleActive(c *gin.Context) {
	var req models.ToggleActiveRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	user, err := h.service.ToggleActive(c.Request.Context(), c.Param("id"), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// ChangePassword godoc
// @Summary Change password
// @Description Non-admin callers may only change their own password
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param payload body models.ChangePasswordRequest true "Passwords"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.ErrorBody
// @Router /users/{id}/change-password [patch]
func (h *UserHandler) ChangePassword(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req models.ChangePasswordRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	if err := h.service.ChangePassword(c.Request.Context(), p, c.Param("id"), req, requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Password changed successfully", nil)
}

// Delete godoc
// @Summary Deactivate user
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	if err := h.service.Remove(c.Request.Context(), c.Param("id"), requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "User deleted successfully", nil)
}

// Profile godoc
// @Summary Current user's profile
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /users/profile [get]
func (h *UserHandler) Profile(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	user, err := h.service.Profile(c.Request.Context(), p)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// UpdateProfile godoc
// @Summary Update current user's profile
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.UpdateProfileRequest true "Profile"
// @Success 200 {object} response.Envelope
// @Router /users/profile [patch]
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req models.UpdateProfileRequest
	if !bindJSON(c, &req, "invalid profile payload") {
		return
	}
	user, err := h.service.UpdateProfile(c.Request.Context(), p, req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}
