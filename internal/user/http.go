package user

import (
	"net/http"

	"github.com/Real-Bird/upload-server/internal/apperr"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const viewsKey = "views"

// RegisterRoutes mounts the user group. It requires the session middleware.
func RegisterRoutes(group *gin.RouterGroup) {
	group.GET("", list)
	group.GET("/session", session)
}

func list(c *gin.Context) {
	s := sessions.Default(c)
	views, _ := s.Get(viewsKey).(int)
	s.Set(viewsKey, views+1)
	if err := s.Save(); err != nil {
		_ = c.Error(apperr.Wrap(apperr.KindInternal, "save session", err))
		return
	}
	c.String(http.StatusOK, "respond with a resource")
}

func session(c *gin.Context) {
	views, _ := sessions.Default(c).Get(viewsKey).(int)
	c.JSON(http.StatusOK, gin.H{"views": views})
}
