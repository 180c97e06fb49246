// Package web embeds the static pages and the HTML views.
package web

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed pages views
var content embed.FS

// Pages returns the static pages served as-is.
func Pages() fs.FS {
	return mustSub("pages")
}

// Views parses the HTML view templates.
func Views() *template.Template {
	return template.Must(template.ParseFS(mustSub("views"), "*.html"))
}

func mustSub(dir string) fs.FS {
	sub, err := fs.Sub(content, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
