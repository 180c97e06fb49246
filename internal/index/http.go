package index

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Title is the page title rendered by the index view.
const Title = "Express"

// RegisterRoutes mounts the index page.
func RegisterRoutes(router gin.IRoutes) {
	router.GET("/", show)
}

func show(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{"title": Title})
}
