package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-roster-sync/internal/models"
	"github.com/noah-isme/sma-roster-sync/pkg/config"
	appErrors "github.com/noah-isme/sma-roster-sync/pkg/errors"
	"github.com/noah-isme/sma-roster-sync/pkg/response"
)

type registrarClient interface {
	Sections(ctx context.Context, courseNumber, semester string) ([]models.Section, error)
	Roster(ctx context.Context, sectionID string) ([]models.StudentRecord, error)
}

type identityResolver interface {
	LookupUser(ctx context.Context, provider, code, displayName string, matchName bool) (string, error)
}

// annotatedStudent is a registrar roster entry paired with the local account
// it would resolve to during a sync pass.
type annotatedStudent struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	UserID  string `json:"user_id,omitempty"`
	Matched bool   `json:"matched"`
}

// RegistrarHandler exposes read-only passthrough queries against the
// registrar, used by administrators to diagnose matching problems without
// running a sync pass.
type RegistrarHandler struct {
	client     registrarClient
	identities identityResolver
	provider   string
	matchName  bool
}

// NewRegistrarHandler builds a new handler.
func NewRegistrarHandler(client registrarClient, identities identityResolver, registrarCfg config.RegistrarConfig, syncCfg config.SyncConfig) *RegistrarHandler {
	return &RegistrarHandler{
		client:     client,
		identities: identities,
		provider:   registrarCfg.Provider,
		matchName:  syncCfg.MatchNameStrict,
	}
}

// Sections godoc
// @Summary Query registrar sections for a course number
// @Tags Registrar
// @Produce json
// @Param course_number query string true "Registrar course number"
// @Param semester query string false "Semester override"
// @Success 200 {object} response.Envelope
// @Router /registrar/sections [get]
func (h *RegistrarHandler) Sections(c *gin.Context) {
	courseNumber := c.Query("course_number")
	if courseNumber == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "course_number is required"))
		return
	}
	sections, err := h.client.Sections(c.Request.Context(), courseNumber, c.Query("semester"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sections)
}

// Roster godoc
// @Summary Query the registrar roster of one section
// @Tags Registrar
// @Produce json
// @Param id path string true "Section ID"
// @Success 200 {object} response.Envelope
// @Router /registrar/sections/{id}/roster [get]
func (h *RegistrarHandler) Roster(c *gin.Context) {
	students, err := h.client.Roster(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	annotated := make([]annotatedStudent, 0, len(students))
	for _, student := range students {
		entry := annotatedStudent{Code: student.Code, Name: student.Name}
		userID, err := h.identities.LookupUser(c.Request.Context(), h.provider, student.Code, student.Name, h.matchName)
		switch {
		case err == nil:
			entry.UserID = userID
			entry.Matched = true
		case errors.Is(err, sql.ErrNoRows):
			// unmatched is the interesting diagnostic, not an error
		default:
			response.Error(c, err)
			return
		}
		annotated = append(annotated, entry)
	}
	response.JSON(c, http.StatusOK, annotated)
}
