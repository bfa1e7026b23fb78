package handler

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-roster-sync/internal/models"
	"github.com/noah-isme/sma-roster-sync/pkg/config"
	appErrors "github.com/noah-isme/sma-roster-sync/pkg/errors"
)

type registrarClientMock struct {
	sections []models.Section
	students []models.StudentRecord
	err      error
}

func (m *registrarClientMock) Sections(_ context.Context, _, _ string) ([]models.Section, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.sections, nil
}

func (m *registrarClientMock) Roster(_ context.Context, _ string) ([]models.StudentRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.students, nil
}

type identityResolverMock struct {
	users map[string]string
}

func (m *identityResolverMock) LookupUser(_ context.Context, _, code, _ string, _ bool) (string, error) {
	id, ok := m.users[code]
	if !ok {
		return "", sql.ErrNoRows
	}
	return id, nil
}

func newRegistrarHandler(client registrarClient, identities identityResolver) *RegistrarHandler {
	return NewRegistrarHandler(client, identities,
		config.RegistrarConfig{Provider: "cas"},
		config.SyncConfig{MatchNameStrict: true},
	)
}

func TestRegistrarHandlerSectionsRequiresCourseNumber(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newRegistrarHandler(&registrarClientMock{}, &identityResolverMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/registrar/sections", nil)
	c.Request = req

	handler.Sections(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegistrarHandlerSections(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newRegistrarHandler(&registrarClientMock{sections: []models.Section{
		{ID: "101", CourseName: "Data Structures", TeacherName: "Zhang San"},
	}}, &identityResolverMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/registrar/sections?course_number=08T1031050", nil)
	c.Request = req

	handler.Sections(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Zhang San")
}

func TestRegistrarHandlerRosterAnnotatesResolvedUsers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newRegistrarHandler(
		&registrarClientMock{students: []models.StudentRecord{
			{Code: "1180300101", Name: "Wang Wu"},
			{Code: "1180300102", Name: "Zhao Liu"},
		}},
		&identityResolverMock{users: map[string]string{"1180300101": "u-wang"}},
	)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/registrar/sections/101/roster", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "101"}}

	handler.Roster(c)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `"user_id":"u-wang"`)
	assert.Contains(t, body, `"matched":true`)
	assert.Contains(t, body, `"matched":false`)
}

func TestRegistrarHandlerRosterMapsUpstreamFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newRegistrarHandler(&registrarClientMock{err: appErrors.ErrRegistrarUnavailable}, &identityResolverMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/registrar/sections/101/roster", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "101"}}

	handler.Roster(c)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
