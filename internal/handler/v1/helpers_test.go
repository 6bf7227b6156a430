package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medira/clinicflow/internal/domain/appointment"
	"github.com/medira/clinicflow/internal/domain/consultation"
	"github.com/medira/clinicflow/internal/domain/patient"
	"github.com/medira/clinicflow/internal/domain/queue"
	"github.com/medira/clinicflow/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRespondServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"appointment not found", appointment.ErrAppointmentNotFound, http.StatusNotFound, ""},
		{"ticket not found", queue.ErrTicketNotFound, http.StatusNotFound, ""},
		{"consultation not found", consultation.ErrConsultationNotFound, http.StatusNotFound, ""},
		{"patient not found", patient.ErrPatientNotFound, http.StatusNotFound, ""},
		{"booking conflict", appointment.ErrAppointmentConflict, http.StatusConflict, "SLOT_UNAVAILABLE"},
		{"wrapped booking conflict", fmt.Errorf("scheduling: %w", appointment.ErrAppointmentConflict), http.StatusConflict, "SLOT_UNAVAILABLE"},
		{"calendar busy", service.ErrCalendarBusy, http.StatusConflict, "CALENDAR_BUSY"},
		{"practitioner busy", consultation.ErrPractitionerBusy, http.StatusConflict, ""},
		{"illegal ticket transition", queue.ErrInvalidStatusTransition, http.StatusConflict, "INVALID_TRANSITION"},
		{"illegal appointment transition", appointment.ErrInvalidStatusTransition, http.StatusConflict, "INVALID_TRANSITION"},
		{"invalid interval", appointment.ErrInvalidInterval, http.StatusBadRequest, ""},
		{"unknown status", queue.ErrInvalidStatus, http.StatusBadRequest, ""},
		{"inactive patient", patient.ErrPatientInactive, http.StatusBadRequest, ""},
		{"already finished", consultation.ErrAlreadyFinished, http.StatusBadRequest, ""},
		{"forbidden", service.ErrForbidden, http.StatusForbidden, ""},
		{"everything else", errors.New("db on fire"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)

			respondServiceError(c, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode != "" {
				var body ErrorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, tt.wantCode, body.Code)
			}
		})
	}
}

func TestRespondServiceErrorValidation(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	respondServiceError(c, &service.ValidationError{Fields: []string{"range end precedes range start"}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body ValidationErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"range end precedes range start"}, body.Fields)
}

func TestRespondServiceErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	respondServiceError(c, errors.New("pq: connection refused at 10.1.2.3"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal server error", body.Error)
}
