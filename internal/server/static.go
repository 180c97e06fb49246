package server

import (
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
)

// Static serves files of root for GET and HEAD requests whose path names an existing file.
// Anything else falls through to the routes.
func Static(root fs.FS) gin.HandlerFunc {
	serve := static.Serve("/", pageFS{FileSystem: http.FS(root), root: root})
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			return
		}
		serve(c)
	}
}

// pageFS adapts an fs.FS to static.ServeFileSystem. Directories are never served.
type pageFS struct {
	http.FileSystem
	root fs.FS
}

func (p pageFS) Exists(prefix, urlPath string) bool {
	name := strings.TrimPrefix(path.Clean("/"+strings.TrimPrefix(urlPath, prefix)), "/")
	if name == "" {
		return false
	}
	info, err := fs.Stat(p.root, name)
	return err == nil && !info.IsDir()
}
