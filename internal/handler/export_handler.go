package handler

import (
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/aprendices-roster/internal/models"
	"github.com/noah-isme/aprendices-roster/internal/service"
	appErrors "github.com/noah-isme/aprendices-roster/pkg/errors"
	"github.com/noah-isme/aprendices-roster/pkg/response"
)

// ExportHandler serves cohort table downloads.
type ExportHandler struct {
	viewers *service.ViewerService
	exports *service.ExportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(viewers *service.ViewerService, exports *service.ExportService) *ExportHandler {
	return &ExportHandler{viewers: viewers, exports: exports}
}

// ExportCohort godoc
// @Summary Export cohort
// @Description Renders the cohort table and redirects to a signed download link. JSON clients receive the link instead.
// @Tags Exports
// @Produce json
// @Param code path string true "Cohort code"
// @Param format query string false "csv or pdf"
// @Success 200 {object} response.Envelope
// @Success 302
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exports/cohorts/{code} [get]
func (h *ExportHandler) ExportCohort(c *gin.Context) {
	coordinator, err := coordinatorFromContext(c, h.viewers)
	if err != nil {
		response.Error(c, err)
		return
	}
	code := c.Param("code")
	records, err := coordinator.CohortRecords(code)
	if err != nil {
		response.Error(c, err)
		return
	}
	link, err := h.exports.ExportCohort(c.Request.Context(), code, records, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}

	if strings.Contains(c.GetHeader("Accept"), "application/json") {
		response.JSON(c, http.StatusOK, link)
		return
	}
	c.Redirect(http.StatusFound, link.URL)
}

// Download godoc
// @Summary Download export
// @Tags Exports
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exports/download [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token requerido"))
		return
	}
	file, grant, err := h.exports.Open(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export"))
		return
	}

	format, _ := models.ParseExportFormat(strings.TrimPrefix(path.Ext(grant.Subject), "."))
	c.DataFromReader(http.StatusOK, info.Size(), format.ContentType(), file, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", grant.Subject),
		"Cache-Control":       "no-store",
	})
}
