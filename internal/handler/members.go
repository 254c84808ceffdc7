package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/datalytics/console/internal/backend"
	"github.com/datalytics/console/internal/batch"
	"github.com/datalytics/console/internal/form"
	"github.com/datalytics/console/internal/media"
	appmw "github.com/datalytics/console/internal/middleware"
	"github.com/datalytics/console/internal/model"
)

var (
	memberYears    = []string{"2", "3", "4"}
	memberFieldSeq = []string{"name", "email", "rollNo", "course", "year", "gender", "batch", "position", "dob", "phone", "image"}
)

type membersData struct {
	Members []model.Member
}

type memberFormData struct {
	Form      form.Member
	Errors    form.Errors
	Courses   []model.Course
	Positions []model.Position
	Years     []string
	Genders   []string
	Batches   batch.Choices
	Submit    string
}

// Members lists every member.
func (c *Console) Members(w http.ResponseWriter, r *http.Request) {
	list, err := c.API(r).Members(r.Context())
	if err != nil {
		c.loadFailed(w, r, err, "members")
		return
	}
	c.render(w, r, http.StatusOK, "members.html", page{Title: "Members", Data: membersData{Members: list}})
}

func (c *Console) addMemberChoices(r *http.Request) batch.Choices {
	return batch.MemberChoices(appmw.IsSuperAdmin(r.Context()), c.now(), c.opts.DefaultCutover, c.opts.FirstBatchYear)
}

func (c *Console) memberForm(r *http.Request, m form.Member, choices batch.Choices, submit string) memberFormData {
	return memberFormData{
		Form:      m,
		Courses:   c.courses(r),
		Positions: c.positions(r, m.Batch),
		Years:     memberYears,
		Genders:   model.Genders,
		Batches:   choices,
		Submit:    submit,
	}
}

// AddMemberPage renders an empty member form with the default batch chosen.
func (c *Console) AddMemberPage(w http.ResponseWriter, r *http.Request) {
	choices := c.addMemberChoices(r)
	m := form.Member{Batch: choices.Default.String()}
	c.render(w, r, http.StatusOK, "member_form.html", page{
		Title: "Add Member",
		Data:  c.memberForm(r, m, choices, "Add Member"),
	})
}

// AddMember validates and submits a new member.
func (c *Console) AddMember(w http.ResponseWriter, r *http.Request) {
	choices := c.addMemberChoices(r)
	img, uploadErr := c.readUpload(w, r)

	var m form.Member
	form.Bind(r, &m)
	m.Image = ""

	errs := checkBatch(form.Check(m), choices, m.Batch)
	errs = imageRequired(errs, img, uploadErr, m.Image)
	if len(errs) > 0 {
		c.memberFormInvalid(w, r, "Add Member", "Add Member", m, choices, errs)
		return
	}

	if err := c.API(r).CreateMember(r.Context(), m.Multipart(c.opts.CountryCode, img)); err != nil {
		c.Logger.Warn("members: create failed", "err", err)
		c.render(w, r, http.StatusBadGateway, "member_form.html", page{
			Title: "Add Member",
			Error: backend.MessageOr(err, "Failed to add member"),
			Data:  c.memberForm(r, m, choices, "Add Member"),
		})
		return
	}
	flashRedirect(w, r, "/dashboard", "Member added successfully")
}

// EditMemberPage renders the member form filled from the backend record.
func (c *Console) EditMemberPage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := c.API(r).Member(r.Context(), id)
	if err != nil {
		c.loadFailed(w, r, err, "member")
		return
	}
	choices := batch.EditChoices(c.now(), c.opts.FirstBatchYear, batch.Token(rec.Batch))
	c.render(w, r, http.StatusOK, "member_form.html", page{
		Title: "Edit Member",
		Data:  c.memberForm(r, form.MemberFrom(rec), choices, "Update Member"),
	})
}

// EditMember validates and submits changes to a member. Without a new file
// the existing image URL is kept.
func (c *Console) EditMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	img, uploadErr := c.readUpload(w, r)

	var m form.Member
	form.Bind(r, &m)
	choices := batch.EditChoices(c.now(), c.opts.FirstBatchYear, batch.Token(m.Batch))

	errs := checkBatch(form.Check(m), choices, m.Batch)
	errs = imageRequired(errs, img, uploadErr, m.Image)
	if len(errs) > 0 {
		c.memberFormInvalid(w, r, "Edit Member", "Update Member", m, choices, errs)
		return
	}

	if err := c.API(r).UpdateMember(r.Context(), id, m.Multipart(c.opts.CountryCode, img)); err != nil {
		c.Logger.Warn("members: update failed", "id", id, "err", err)
		c.render(w, r, http.StatusBadGateway, "member_form.html", page{
			Title: "Edit Member",
			Error: backend.MessageOr(err, "Failed to update member"),
			Data:  c.memberForm(r, m, choices, "Update Member"),
		})
		return
	}
	flashRedirect(w, r, "/dashboard", "Member updated successfully")
}

// DeleteMember removes a member and returns to the list.
func (c *Console) DeleteMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := c.API(r).DeleteMember(r.Context(), id); err != nil {
		c.Logger.Warn("members: delete failed", "id", id, "err", err)
		flashRedirect(w, r, "/dashboard", backend.MessageOr(err, "Failed to delete member"))
		return
	}
	flashRedirect(w, r, "/dashboard", "Member deleted successfully")
}

func (c *Console) memberFormInvalid(w http.ResponseWriter, r *http.Request, title, submit string, m form.Member, choices batch.Choices, errs form.Errors) {
	data := c.memberForm(r, m, choices, submit)
	data.Errors = errs
	c.render(w, r, http.StatusUnprocessableEntity, "member_form.html", page{
		Title: title,
		Error: errs.First(memberFieldSeq...),
		Data:  data,
	})
}

// imageRequired records an upload problem, or a missing image when there is
// neither a new file nor an existing one.
func imageRequired(errs form.Errors, img *media.Image, uploadErr error, existing string) form.Errors {
	msg := ""
	switch {
	case uploadErr != nil:
		msg = uploadMessage(uploadErr)
	case img == nil && existing == "":
		msg = "Image is required"
	}
	if msg == "" {
		return errs
	}
	if errs == nil {
		errs = form.Errors{}
	}
	errs["image"] = msg
	return errs
}
