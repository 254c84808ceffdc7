package handler

import (
	"net/http"
	"net/url"

	"github.com/datalytics/console/internal/backend"
	"github.com/datalytics/console/internal/batch"
	"github.com/datalytics/console/internal/form"
	"github.com/datalytics/console/internal/model"
)

type coursesData struct {
	Courses []model.Course
	Form    form.Course
	Errors  form.Errors
}

// Courses lists the courses newest first, with the add form.
func (c *Console) Courses(w http.ResponseWriter, r *http.Request) {
	list, err := c.API(r).Courses(r.Context())
	if err != nil {
		c.loadFailed(w, r, err, "courses")
		return
	}
	c.render(w, r, http.StatusOK, "courses.html", page{
		Title: "Courses",
		Data:  coursesData{Courses: form.FilterCourses(list)},
	})
}

// AddCourse creates a course.
func (c *Console) AddCourse(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	var in form.Course
	form.Bind(r, &in)

	status, msg := http.StatusUnprocessableEntity, ""
	errs := form.Check(in)
	if len(errs) == 0 {
		err := c.API(r).CreateCourse(r.Context(), in.Name)
		if err == nil {
			flashRedirect(w, r, "/dashboard/courses", "Course added successfully")
			return
		}
		c.Logger.Warn("courses: create failed", "err", err)
		status, msg = http.StatusBadGateway, backend.MessageOr(err, "Failed to add course")
	} else {
		msg = errs.First("name")
	}

	c.render(w, r, status, "courses.html", page{
		Title: "Courses",
		Error: msg,
		Data:  coursesData{Courses: c.courses(r), Form: in, Errors: errs},
	})
}

type rolesData struct {
	Batch     string
	Batches   []batch.Token
	Positions []model.Position
	Form      form.Position
	Errors    form.Errors
}

// selectedBatch reads ?batch=, falling back to the batch in progress.
func (c *Console) selectedBatch(r *http.Request) batch.Token {
	if tok, err := batch.Parse(r.URL.Query().Get("batch")); err == nil {
		return tok
	}
	return batch.Current(c.now(), c.opts.DefaultCutover)
}

func (c *Console) batchRange() []batch.Token {
	return batch.Range(c.opts.FirstBatchYear, c.now().Year()+1)
}

// Roles lists the club roles of one batch, with the add form.
func (c *Console) Roles(w http.ResponseWriter, r *http.Request) {
	tok := c.selectedBatch(r)
	list, err := c.API(r).Positions(r.Context(), tok.String())
	if err != nil {
		c.loadFailed(w, r, err, "roles")
		return
	}
	c.render(w, r, http.StatusOK, "roles.html", page{
		Title: "Roles",
		Data: rolesData{
			Batch:     tok.String(),
			Batches:   c.batchRange(),
			Positions: form.ReversePositions(list),
			Form:      form.Position{Batch: tok.String()},
		},
	})
}

// AddRole creates a club role for a batch.
func (c *Console) AddRole(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	var in form.Position
	form.Bind(r, &in)

	status, msg := http.StatusUnprocessableEntity, ""
	errs := form.Check(in)
	if len(errs) == 0 {
		err := c.API(r).CreatePosition(r.Context(), in.Title, in.Batch)
		if err == nil {
			flashRedirect(w, r, "/dashboard/roles?batch="+url.QueryEscape(in.Batch), "Role added successfully")
			return
		}
		c.Logger.Warn("roles: create failed", "batch", in.Batch, "err", err)
		status, msg = http.StatusBadGateway, backend.MessageOr(err, "Failed to add role")
	} else {
		msg = errs.First("title", "batch")
	}

	shown := in.Batch
	if _, err := batch.Parse(shown); err != nil {
		shown = batch.Current(c.now(), c.opts.DefaultCutover).String()
	}
	c.render(w, r, status, "roles.html", page{
		Title: "Roles",
		Error: msg,
		Data: rolesData{
			Batch:     shown,
			Batches:   c.batchRange(),
			Positions: c.positions(r, shown),
			Form:      in,
			Errors:    errs,
		},
	})
}

// Positions returns the roles of ?batch= as JSON for the member and admin
// forms.
func (c *Console) Positions(w http.ResponseWriter, r *http.Request) {
	tok, err := batch.Parse(r.URL.Query().Get("batch"))
	if err != nil {
		c.errorResponse(w, r, http.StatusBadRequest, "invalid batch")
		return
	}
	list, err := c.API(r).Positions(r.Context(), tok.String())
	if err != nil {
		c.Logger.Warn("positions: list failed", "batch", tok, "err", err)
		c.errorResponse(w, r, http.StatusBadGateway, backend.MessageOr(err, "Failed to load roles"))
		return
	}
	if err := c.writeJSON(w, http.StatusOK, envelope{"positions": form.ReversePositions(list)}, nil); err != nil {
		c.serverErrorResponse(w, r, err)
	}
}
