package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/aprendices-roster/internal/models"
	"github.com/noah-isme/aprendices-roster/internal/service"
	"github.com/noah-isme/aprendices-roster/pkg/response"
)

// PageHandler serves the server-rendered roster page. Form posts redirect
// back to the page so reloads never resubmit.
type PageHandler struct {
	viewers        *service.ViewerService
	exportsEnabled bool
	logger         *zap.Logger
}

type pageData struct {
	View           models.ViewModel
	ExportsEnabled bool
}

// NewPageHandler constructs the page handler.
func NewPageHandler(viewers *service.ViewerService, exportsEnabled bool, logger *zap.Logger) *PageHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageHandler{viewers: viewers, exportsEnabled: exportsEnabled, logger: logger}
}

// Index renders the login form or the roster view.
func (h *PageHandler) Index(c *gin.Context) {
	coordinator, err := coordinatorFromContext(c, h.viewers)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.HTML(http.StatusOK, "index.html", pageData{View: coordinator.View(), ExportsEnabled: h.exportsEnabled})
}

// Login handles the login form.
func (h *PageHandler) Login(c *gin.Context) {
	h.post(c, func(coordinator *service.Coordinator) error {
		var req models.LoginRequest
		if err := c.ShouldBind(&req); err != nil {
			return err
		}
		return coordinator.Login(c.Request.Context(), req.Username, req.Password)
	})
}

// Logout handles the logout button.
func (h *PageHandler) Logout(c *gin.Context) {
	h.post(c, func(coordinator *service.Coordinator) error {
		coordinator.Logout(c.Request.Context())
		return nil
	})
}

// SelectCohort handles the cohort dropdown.
func (h *PageHandler) SelectCohort(c *gin.Context) {
	h.post(c, func(coordinator *service.Coordinator) error {
		return coordinator.SelectCohort(c.Request.Context(), c.PostForm("code"))
	})
}

// Search handles the search form.
func (h *PageHandler) Search(c *gin.Context) {
	h.post(c, func(coordinator *service.Coordinator) error {
		return coordinator.SubmitSearch(c.Request.Context(), c.PostForm("term"))
	})
}

// ClearSearch handles the clear button.
func (h *PageHandler) ClearSearch(c *gin.Context) {
	h.post(c, func(coordinator *service.Coordinator) error {
		return coordinator.ClearSearch(c.Request.Context())
	})
}

// post runs a form action and redirects to the page. Failures are already
// queued as notifications by the coordinator, or leave the view unchanged.
func (h *PageHandler) post(c *gin.Context, action func(*service.Coordinator) error) {
	coordinator, err := coordinatorFromContext(c, h.viewers)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := action(coordinator); err != nil {
		h.logger.Debug("form action rejected", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.Redirect(http.StatusSeeOther, "/")
}
