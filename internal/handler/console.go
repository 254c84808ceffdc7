// Package handler serves the console's pages. Every page acts on the
// backend through a client bound to the caller's console session jar.
package handler

import (
	"bytes"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/datalytics/console/internal/auth"
	"github.com/datalytics/console/internal/backend"
	"github.com/datalytics/console/internal/batch"
	"github.com/datalytics/console/internal/form"
	"github.com/datalytics/console/internal/media"
	appmw "github.com/datalytics/console/internal/middleware"
	"github.com/datalytics/console/internal/model"
)

// Options are the presentation and policy settings pages depend on.
type Options struct {
	Brand          string
	GuardCutover   time.Month
	DefaultCutover time.Month
	FirstBatchYear int
	CountryCode    string
	MaxImageBytes  int
}

func (o *Options) defaults() {
	if o.Brand == "" {
		o.Brand = "Datalytics Admin"
	}
	if o.GuardCutover == 0 {
		o.GuardCutover = batch.GuardCutover
	}
	if o.DefaultCutover == 0 {
		o.DefaultCutover = batch.DefaultCutover
	}
	if o.FirstBatchYear == 0 {
		o.FirstBatchYear = batch.FirstYear
	}
	if o.CountryCode == "" {
		o.CountryCode = form.DefaultCountryCode
	}
	if o.MaxImageBytes <= 0 {
		o.MaxImageBytes = media.MaxImageBytes
	}
}

// Console holds what every page handler needs.
type Console struct {
	BaseHandler
	client    *backend.Client
	templates *template.Template
	verifier  *auth.Verifier
	guard     *auth.Guard
	login     *auth.LoginController
	opts      Options
}

func NewConsole(logger *slog.Logger, client *backend.Client, tmpl *template.Template, v *auth.Verifier, g *auth.Guard, login *auth.LoginController, opts Options) *Console {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	opts.defaults()
	return &Console{
		BaseHandler: BaseHandler{Logger: logger.With("component", "console")},
		client:      client,
		templates:   tmpl,
		verifier:    v,
		guard:       g,
		login:       login,
		opts:        opts,
	}
}

// API returns the backend client acting for the request's console session.
// Outside a session the client gets a throwaway jar.
func (c *Console) API(r *http.Request) *backend.Client {
	if s := appmw.SessionFrom(r.Context()); s != nil {
		return c.client.WithJar(s.Jar())
	}
	return c.client.WithJar(nil)
}

// Identity adapts API for the session and guard middleware.
func (c *Console) Identity(r *http.Request) auth.IdentitySource {
	return c.API(r)
}

func (c *Console) now() time.Time {
	return c.guard.Now()
}

type page struct {
	Title  string
	Brand  string
	Admin  *model.Admin
	Flash  string
	Error  string
	Notice string
	Data   any
}

// render executes name into a buffer first so a template failure still
// yields a clean 500.
func (c *Console) render(w http.ResponseWriter, r *http.Request, status int, name string, p page) {
	p.Brand = c.opts.Brand
	if p.Admin == nil {
		p.Admin = appmw.AdminFromContext(r.Context())
	}
	if s := appmw.SessionFrom(r.Context()); s != nil {
		p.Flash = s.PopFlash()
	}

	var buf bytes.Buffer
	if err := c.templates.ExecuteTemplate(&buf, name, p); err != nil {
		c.Logger.Error("render: template error", "template", name, "err", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

type errorData struct {
	Message string
}

func (c *Console) renderError(w http.ResponseWriter, r *http.Request, status int, title, msg string) {
	c.render(w, r, status, "error.html", page{Title: title, Data: errorData{Message: msg}})
}

// loadFailed renders the outcome of a failed backend read.
func (c *Console) loadFailed(w http.ResponseWriter, r *http.Request, err error, what string) {
	if backend.IsNotFound(err) {
		c.renderError(w, r, http.StatusNotFound, "Not Found", what+" not found")
		return
	}
	c.Logger.Warn("backend: read failed", "what", what, "err", err)
	c.renderError(w, r, http.StatusBadGateway, "Error", backend.MessageOr(err, "Failed to load "+what))
}

// flashRedirect stores msg for the next page and sends the browser to url.
func flashRedirect(w http.ResponseWriter, r *http.Request, url, msg string) {
	if s := appmw.SessionFrom(r.Context()); s != nil && msg != "" {
		s.Flash(msg)
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}

// readUpload parses a multipart form and returns the prepared "image" file,
// or nil when none was chosen.
func (c *Console) readUpload(w http.ResponseWriter, r *http.Request) (*media.Image, error) {
	limit := int64(c.opts.MaxImageBytes) + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	err := r.ParseMultipartForm(limit)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, media.ErrTooLarge
		}
		return nil, err
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, hdr, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, int64(c.opts.MaxImageBytes)+1))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return media.Prepare(hdr.Filename, data, c.opts.MaxImageBytes)
}

// uploadMessage turns a readUpload error into the text shown by the field.
func uploadMessage(err error) string {
	switch {
	case errors.Is(err, media.ErrTooLarge):
		return media.ErrTooLarge.Error()
	case errors.Is(err, media.ErrNotImage):
		return media.ErrNotImage.Error()
	default:
		return "Upload failed"
	}
}

// checkBatch adds a batch error when value is not among the offered options.
func checkBatch(errs form.Errors, choices batch.Choices, value string) form.Errors {
	if _, bad := errs["batch"]; bad {
		return errs
	}
	tok, err := batch.Parse(value)
	if err == nil && choices.Allows(tok) {
		return errs
	}
	if errs == nil {
		errs = form.Errors{}
	}
	errs["batch"] = "This batch is not available"
	return errs
}

func (c *Console) courses(r *http.Request) []model.Course {
	list, err := c.API(r).Courses(r.Context())
	if err != nil {
		c.Logger.Warn("courses: list failed", "err", err)
		return nil
	}
	return form.FilterCourses(list)
}

func (c *Console) positions(r *http.Request, b string) []model.Position {
	if b == "" {
		return nil
	}
	list, err := c.API(r).Positions(r.Context(), b)
	if err != nil {
		c.Logger.Warn("positions: list failed", "batch", b, "err", err)
		return nil
	}
	return form.ReversePositions(list)
}
