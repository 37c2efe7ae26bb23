package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unfoldmono/realza/internal/allocation"
	"github.com/unfoldmono/realza/internal/model"
)

func newTestContext() (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestGetUserID(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    uint64
		wantErr bool
	}{
		{"float64 from claims", float64(42), 42, false},
		{"uint64", uint64(7), 7, false},
		{"int", 9, 9, false},
		{"numeric string", "15", 15, false},
		{"garbage string", "abc", 0, true},
		{"missing", nil, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestContext()
			if tt.value != nil {
				c.Set("user_id", tt.value)
			}
			got, err := getUserID(c)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestActorFrom(t *testing.T) {
	c, _ := newTestContext()
	c.Set("user_id", float64(42))
	c.Set("role", "AGENT")

	actor, err := actorFrom(c)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), actor.ID)
	assert.Equal(t, model.RoleAgent, actor.Role)
}

func TestAllocErrorStatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{allocation.ErrUnauthenticated, http.StatusUnauthorized},
		{fmt.Errorf("%w: agent role required", allocation.ErrForbidden), http.StatusForbidden},
		{fmt.Errorf("%w: lock code available later", allocation.ErrTooEarly), http.StatusForbidden},
		{fmt.Errorf("%w: showing 9", allocation.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: bid too small", allocation.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w: already assigned", allocation.ErrInvalidState), http.StatusConflict},
		{fmt.Errorf("%w: claimed by someone else", allocation.ErrAlreadyClaimed), http.StatusConflict},
		{fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			c, rec := newTestContext()
			require.NoError(t, allocError(c, tt.err))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestParseID(t *testing.T) {
	c, _ := newTestContext()
	c.SetParamNames("id")
	c.SetParamValues("17")
	id, ok := parseID(c, "id")
	require.True(t, ok)
	assert.Equal(t, uint64(17), id)

	c.SetParamValues("0")
	_, ok = parseID(c, "id")
	assert.False(t, ok)

	c.SetParamValues("seventeen")
	_, ok = parseID(c, "id")
	assert.False(t, ok)
}
