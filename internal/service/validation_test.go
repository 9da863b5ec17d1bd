package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/supervisi-api/internal/models"
	appErrors "github.com/noah-isme/supervisi-api/pkg/errors"
)

func TestPeriodValidation(t *testing.T) {
	v := NewValidator()
	base := models.GenerateReportRequest{SupervisorID: "s", TeacherID: "t", Title: "x"}

	for _, period := range []string{"2024-01", "2024-12", "1999-09"} {
		req := base
		req.Period = period
		assert.NoError(t, v.Struct(req), period)
	}
	for _, period := range []string{"2024-13", "2024-00", "2024-1", "24-01", "2024/01", ""} {
		req := base
		req.Period = period
		assert.Error(t, v.Struct(req), period)
	}
}

func TestValidatePayloadDetails(t *testing.T) {
	err := validatePayload(NewValidator(), models.CreateAssessmentRequest{Score: 7}, "invalid assessment payload")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, 400, appErr.Status)
	assert.Contains(t, appErr.Details, "supervisionId is required")
	assert.Contains(t, appErr.Details, "score must be at most 5")
}
