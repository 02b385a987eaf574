package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/aprendices-roster/internal/models"
	"github.com/noah-isme/aprendices-roster/internal/service"
	appErrors "github.com/noah-isme/aprendices-roster/pkg/errors"
	"github.com/noah-isme/aprendices-roster/pkg/response"
)

// ViewerHandler exposes the roster view as a JSON API for script clients.
type ViewerHandler struct {
	viewers  *service.ViewerService
	debounce time.Duration
}

// NewViewerHandler constructs the handler.
func NewViewerHandler(viewers *service.ViewerService, debounce time.Duration) *ViewerHandler {
	return &ViewerHandler{viewers: viewers, debounce: debounce}
}

type selectionRequest struct {
	Code string `json:"code"`
}

type searchRequest struct {
	Term string `json:"term"`
}

// View godoc
// @Summary Current view
// @Description Returns the view model of the calling tab and drains its notifications
// @Tags Viewer
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /view [get]
func (h *ViewerHandler) View(c *gin.Context) {
	h.withCoordinator(c, func(coordinator *service.Coordinator) {
		respondView(c, coordinator, nil)
	})
}

// Login godoc
// @Summary Log in
// @Description Authenticate with any username and the shared password
// @Tags Viewer
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /session [post]
func (h *ViewerHandler) Login(c *gin.Context) {
	h.withCoordinator(c, func(coordinator *service.Coordinator) {
		var req models.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
			return
		}
		respondView(c, coordinator, coordinator.Login(c.Request.Context(), req.Username, req.Password))
	})
}

// Logout godoc
// @Summary Log out
// @Description Clears the session, the last cohort and the search history
// @Tags Viewer
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /session [delete]
func (h *ViewerHandler) Logout(c *gin.Context) {
	h.withCoordinator(c, func(coordinator *service.Coordinator) {
		coordinator.Logout(c.Request.Context())
		respondView(c, coordinator, nil)
	})
}

// SelectCohort godoc
// @Summary Select cohort
// @Description Shows the table of one cohort; an empty code returns to the placeholder
// @Tags Viewer
// @Accept json
// @Produce json
// @Param payload body selectionRequest true "Cohort code"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /selection [put]
func (h *ViewerHandler) SelectCohort(c *gin.Context) {
	h.withCoordinator(c, func(coordinator *service.Coordinator) {
		var req selectionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid selection payload"))
			return
		}
		respondView(c, coordinator, coordinator.SelectCohort(c.Request.Context(), req.Code))
	})
}

// Search godoc
// @Summary Search
// @Description Runs a search across all cohorts immediately
// @Tags Viewer
// @Accept json
// @Produce json
// @Param payload body searchRequest true "Search term"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /search [post]
func (h *ViewerHandler) Search(c *gin.Context) {
	h.withCoordinator(c, func(coordinator *service.Coordinator) {
		var req searchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid search payload"))
			return
		}
		respondView(c, coordinator, coordinator.SubmitSearch(c.Request.Context(), req.Term))
	})
}

// LiveSearch godoc
// @Summary Live search keystroke
// @Description Schedules a search once typing pauses; poll /view for the result
// @Tags Viewer
// @Accept json
// @Produce json
// @Param payload body searchRequest true "Search term"
// @Success 202 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /search/live [post]
func (h *ViewerHandler) LiveSearch(c *gin.Context) {
	h.withCoordinator(c, func(coordinator *service.Coordinator) {
		var req searchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid search payload"))
			return
		}
		if err := coordinator.TypeSearch(req.Term); err != nil {
			response.Error(c, err)
			return
		}
		response.Accepted(c, map[string]interface{}{
			"term":        req.Term,
			"debounce_ms": h.debounce.Milliseconds(),
		})
	})
}

// ClearSearch godoc
// @Summary Clear search
// @Tags Viewer
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /search [delete]
func (h *ViewerHandler) ClearSearch(c *gin.Context) {
	h.withCoordinator(c, func(coordinator *service.Coordinator) {
		respondView(c, coordinator, coordinator.ClearSearch(c.Request.Context()))
	})
}

// SearchHistory godoc
// @Summary Search history
// @Description Most recent searches first
// @Tags Viewer
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /search/history [get]
func (h *ViewerHandler) SearchHistory(c *gin.Context) {
	h.withCoordinator(c, func(coordinator *service.Coordinator) {
		history, err := coordinator.SearchHistory(c.Request.Context())
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, history)
	})
}

// Cohorts godoc
// @Summary List cohorts
// @Tags Viewer
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /cohorts [get]
func (h *ViewerHandler) Cohorts(c *gin.Context) {
	h.withCoordinator(c, func(coordinator *service.Coordinator) {
		cohorts, err := coordinator.Cohorts()
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, cohorts, map[string]interface{}{"total": len(cohorts)})
	})
}

// Statistics godoc
// @Summary Cohort statistics
// @Tags Viewer
// @Produce json
// @Param code path string true "Cohort code"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /cohorts/{code}/statistics [get]
func (h *ViewerHandler) Statistics(c *gin.Context) {
	h.withCoordinator(c, func(coordinator *service.Coordinator) {
		stats, err := coordinator.Statistics(c.Param("code"))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, stats)
	})
}

// Storage godoc
// @Summary Storage usage
// @Tags Viewer
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /storage [get]
func (h *ViewerHandler) Storage(c *gin.Context) {
	h.withCoordinator(c, func(coordinator *service.Coordinator) {
		response.JSON(c, http.StatusOK, coordinator.StorageInfo(c.Request.Context()))
	})
}

func (h *ViewerHandler) withCoordinator(c *gin.Context, fn func(*service.Coordinator)) {
	coordinator, err := coordinatorFromContext(c, h.viewers)
	if err != nil {
		response.Error(c, err)
		return
	}
	fn(coordinator)
}

// respondView writes the view with its drained notifications in meta, or
// the error with the same meta.
func respondView(c *gin.Context, coordinator *service.Coordinator, err error) {
	view := coordinator.View()
	meta := map[string]interface{}{}
	if len(view.Notifications) > 0 {
		meta["notifications"] = view.Notifications
	}
	view.Notifications = nil

	if err != nil {
		response.Error(c, err, meta)
		return
	}
	response.JSON(c, http.StatusOK, view, meta)
}
