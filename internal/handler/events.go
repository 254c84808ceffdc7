package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/datalytics/console/internal/backend"
	"github.com/datalytics/console/internal/batch"
	"github.com/datalytics/console/internal/form"
	appmw "github.com/datalytics/console/internal/middleware"
	"github.com/datalytics/console/internal/model"
)

var eventFieldSeq = []string{"title", "description", "date", "venue", "registrationLink", "batch", "image"}

type eventsData struct {
	Events []model.Event
}

type eventFormData struct {
	Form    form.Event
	Errors  form.Errors
	Batches batch.Choices
	Submit  string
}

// Events lists every event.
func (c *Console) Events(w http.ResponseWriter, r *http.Request) {
	list, err := c.API(r).Events(r.Context())
	if err != nil {
		c.loadFailed(w, r, err, "events")
		return
	}
	c.render(w, r, http.StatusOK, "events.html", page{Title: "Events", Data: eventsData{Events: list}})
}

// Events are offered the same batches as members.
func (c *Console) addEventChoices(r *http.Request) batch.Choices {
	return batch.MemberChoices(appmw.IsSuperAdmin(r.Context()), c.now(), c.opts.DefaultCutover, c.opts.FirstBatchYear)
}

// AddEventPage renders an empty event form.
func (c *Console) AddEventPage(w http.ResponseWriter, r *http.Request) {
	choices := c.addEventChoices(r)
	c.render(w, r, http.StatusOK, "event_form.html", page{
		Title: "Add Event",
		Data: eventFormData{
			Form:    form.Event{Batch: choices.Default.String()},
			Batches: choices,
			Submit:  "Add Event",
		},
	})
}

// AddEvent validates and submits a new event.
func (c *Console) AddEvent(w http.ResponseWriter, r *http.Request) {
	choices := c.addEventChoices(r)
	img, uploadErr := c.readUpload(w, r)

	var e form.Event
	form.Bind(r, &e)
	e.Image = ""

	data := eventFormData{Form: e, Batches: choices, Submit: "Add Event"}
	data.Errors = imageRequired(checkBatch(form.Check(e), choices, e.Batch), img, uploadErr, e.Image)
	if len(data.Errors) > 0 {
		c.render(w, r, http.StatusUnprocessableEntity, "event_form.html", page{
			Title: "Add Event",
			Error: data.Errors.First(eventFieldSeq...),
			Data:  data,
		})
		return
	}

	if err := c.API(r).CreateEvent(r.Context(), e.Multipart(img)); err != nil {
		c.Logger.Warn("events: create failed", "err", err)
		c.render(w, r, http.StatusBadGateway, "event_form.html", page{
			Title: "Add Event",
			Error: backend.MessageOr(err, "Failed to add event"),
			Data:  data,
		})
		return
	}
	flashRedirect(w, r, "/dashboard/events", "Event added successfully")
}

// EditEventPage renders the event form filled from the backend record.
func (c *Console) EditEventPage(w http.ResponseWriter, r *http.Request) {
	rec, err := c.API(r).Event(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		c.loadFailed(w, r, err, "event")
		return
	}
	c.render(w, r, http.StatusOK, "event_form.html", page{
		Title: "Edit Event",
		Data: eventFormData{
			Form:    form.EventFrom(rec),
			Batches: batch.EditChoices(c.now(), c.opts.FirstBatchYear, batch.Token(rec.Batch)),
			Submit:  "Update Event",
		},
	})
}

// EditEvent submits changes to an event.
func (c *Console) EditEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	img, uploadErr := c.readUpload(w, r)

	var e form.Event
	form.Bind(r, &e)
	choices := batch.EditChoices(c.now(), c.opts.FirstBatchYear, batch.Token(e.Batch))

	data := eventFormData{Form: e, Batches: choices, Submit: "Update Event"}
	data.Errors = imageRequired(checkBatch(form.Check(e), choices, e.Batch), img, uploadErr, e.Image)
	if len(data.Errors) > 0 {
		c.render(w, r, http.StatusUnprocessableEntity, "event_form.html", page{
			Title: "Edit Event",
			Error: data.Errors.First(eventFieldSeq...),
			Data:  data,
		})
		return
	}

	if err := c.API(r).UpdateEvent(r.Context(), id, e.Multipart(img)); err != nil {
		c.Logger.Warn("events: update failed", "id", id, "err", err)
		c.render(w, r, http.StatusBadGateway, "event_form.html", page{
			Title: "Edit Event",
			Error: backend.MessageOr(err, "Failed to update event"),
			Data:  data,
		})
		return
	}
	flashRedirect(w, r, "/dashboard/events", "Event updated successfully")
}
