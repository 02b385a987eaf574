package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/aprendices-roster/internal/models"
	"github.com/noah-isme/aprendices-roster/internal/service"
	appErrors "github.com/noah-isme/aprendices-roster/pkg/errors"
	"github.com/noah-isme/aprendices-roster/pkg/response"
)

// ContextScopeKey is the gin context key storing the client scope.
const ContextScopeKey = "clientScope"

// Cookie names.
const (
	ClientCookieName = "roster_client"
	TabCookieName    = "roster_tab"
)

// ScopeIssuer signs and verifies scope cookies.
type ScopeIssuer interface {
	IssueScopeToken(kind models.ScopeTokenKind, id string) (string, error)
	ParseScopeToken(kind models.ScopeTokenKind, token string) (string, error)
	ClientTokenTTL() time.Duration
}

// ClientScope identifies the browser and tab of every request. Missing or
// invalid cookies are replaced with fresh ids. The tab cookie has no expiry
// so it ends with the browser session.
func ClientScope(issuer ScopeIssuer, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.SetSameSite(http.SameSiteLaxMode)

		clientID, err := scopeID(c, issuer, models.ScopeTokenClient, ClientCookieName, int(issuer.ClientTokenTTL().Seconds()), secure)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		tabID, err := scopeID(c, issuer, models.ScopeTokenTab, TabCookieName, 0, secure)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextScopeKey, models.ClientScope{ClientID: clientID, TabID: tabID})
		c.Next()
	}
}

// ScopeFromContext returns the scope set by ClientScope.
func ScopeFromContext(c *gin.Context) (models.ClientScope, bool) {
	value, exists := c.Get(ContextScopeKey)
	if !exists {
		return models.ClientScope{}, false
	}
	scope, ok := value.(models.ClientScope)
	return scope, ok
}

func scopeID(c *gin.Context, issuer ScopeIssuer, kind models.ScopeTokenKind, cookie string, maxAge int, secure bool) (string, error) {
	if raw, err := c.Cookie(cookie); err == nil && raw != "" {
		if id, err := issuer.ParseScopeToken(kind, raw); err == nil {
			return id, nil
		}
	}

	id := service.NewScopeID()
	token, err := issuer.IssueScopeToken(kind, id)
	if err != nil {
		return "", appErrors.FromError(err)
	}
	c.SetCookie(cookie, token, maxAge, "/", "", secure, true)
	return id, nil
}
