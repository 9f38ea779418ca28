// Package web holds the HTML templates rendered by the upload form endpoints.
package web

import (
	"embed"
	"html/template"
)

//go:embed templates/*.html
var templates embed.FS

func Templates() (*template.Template, error) {
	return template.ParseFS(templates, "templates/*.html")
}
