package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/aprendices-roster/internal/middleware"
	"github.com/noah-isme/aprendices-roster/internal/service"
	appErrors "github.com/noah-isme/aprendices-roster/pkg/errors"
)

func coordinatorFromContext(c *gin.Context, viewers *service.ViewerService) (*service.Coordinator, error) {
	scope, ok := middleware.ScopeFromContext(c)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "missing client scope")
	}
	return viewers.Coordinator(c.Request.Context(), scope), nil
}
