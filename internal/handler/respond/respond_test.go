package respond

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/techfala/ia-wizard/backend/internal/service/flow"
	"github.com/techfala/ia-wizard/backend/internal/service/trial"
	"github.com/techfala/ia-wizard/backend/internal/service/wizard"
)

func TestStatus(t *testing.T) {
	cases := map[error]int{
		wizard.ErrNameRequired: http.StatusBadRequest,
		fmt.Errorf("%w: continue from name", wizard.ErrInvalidTransition): http.StatusConflict,
		trial.ErrAlreadyActive:     http.StatusConflict,
		trial.ErrReservationFailed: http.StatusBadGateway,
		flow.ErrChatInactive:       http.StatusConflict,
		fmt.Errorf("boom"):         http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, Status(err), err.Error())
	}
}

func TestErrorHidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, fmt.Errorf("dial tcp 10.0.0.1: refused"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
}
