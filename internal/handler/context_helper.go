package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/supervisi-api/internal/middleware"
	"github.com/noah-isme/supervisi-api/internal/models"
	appErrors "github.com/noah-isme/supervisi-api/pkg/errors"
	"github.com/noah-isme/supervisi-api/pkg/response"
)

// principal returns the caller or writes a 401 and reports false.
func principal(c *gin.Context) (models.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Principal{}, false
	}
	return p, true
}

func requestMeta(c *gin.Context) models.RequestMeta {
	meta := models.RequestMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
	if p, ok := middleware.PrincipalFromContext(c); ok {
		meta.ActorID = p.UserID
	}
	return meta
}

// bindJSON decodes the body into dst and writes a 400 on failure.
func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}

// page reads skip/take. Unparseable values fall back to the defaults.
func page(c *gin.Context) (int, int) {
	skip, _ := strconv.Atoi(c.Query("skip"))
	take, _ := strconv.Atoi(c.Query("take"))
	return models.NormalizePage(skip, take)
}

func queryBool(c *gin.Context, key string) *bool {
	switch strings.ToLower(c.Query(key)) {
	case "true", "1":
		v := true
		return &v
	case "false", "0":
		v := false
		return &v
	}
	return nil
}

// queryTime accepts RFC3339 or a plain YYYY-MM-DD date.
func queryTime(c *gin.Context, key string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, appErrors.Validation(nil, "invalid "+key+", expected RFC3339 or YYYY-MM-DD")
	}
	return &t, nil
}

// queryRange parses startDate/endDate in one go.
func queryRange(c *gin.Context) (*time.Time, *time.Time, bool) {
	start, err := queryTime(c, "startDate")
	if err != nil {
		response.Error(c, err)
		return nil, nil, false
	}
	end, err := queryTime(c, "endDate")
	if err != nil {
		response.Error(c, err)
		return nil, nil, false
	}
	return start, end, true
}
