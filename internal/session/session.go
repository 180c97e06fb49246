package session

import (
	"net/http"

	"github.com/Real-Bird/upload-server/internal/config"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/memstore"
	"github.com/gin-gonic/gin"
)

// Middleware attaches an in-memory session to every request. The cookie only carries a signed
// session id and is written once a handler saves the session.
func Middleware(cfg config.SessionConfig) gin.HandlerFunc {
	store := memstore.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   false,
		SameSite: http.SameSiteLaxMode,
	})
	return sessions.Sessions(cfg.Name, store)
}
