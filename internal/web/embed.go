package web

import (
	"embed"
	"html/template"
	"io/fs"
	"log/slog"
	"regexp"
	"strings"

	"github.com/datalytics/console/internal/form"
)

//go:embed static
var staticFiles embed.FS

//go:embed templates
var templateFiles embed.FS

// StaticFS is the embedded static file system with the "static/" prefix stripped.
var StaticFS fs.FS

// Templates is the compiled template set for all views.
var Templates *template.Template

// Funcs are the helpers available to every view.
var Funcs = template.FuncMap{
	"imgsrc":   ImageURL,
	"dateonly": form.DateOnly,
}

func init() {
	var err error

	StaticFS, err = fs.Sub(staticFiles, "static")
	if err != nil {
		slog.Error("web: failed to create static FS", "err", err)
		panic(err)
	}

	Templates, err = template.New("").Funcs(Funcs).ParseFS(templateFiles,
		"templates/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		slog.Error("web: failed to parse templates", "err", err)
		panic(err)
	}
}

var dataImage = regexp.MustCompile(`^data:image/(png|jpeg|gif|webp);base64,[A-Za-z0-9+/=\s]+$`)

// ImageURL returns src as a URL safe for an img src attribute, or "" when it
// is neither an inline raster image nor an http(s) URL. html/template would
// otherwise replace data: URLs with a placeholder.
func ImageURL(src string) template.URL {
	src = strings.TrimSpace(src)
	switch {
	case src == "":
		return ""
	case dataImage.MatchString(src):
		return template.URL(src)
	case strings.HasPrefix(src, "https://"), strings.HasPrefix(src, "http://"):
		return template.URL(src)
	}
	return ""
}
