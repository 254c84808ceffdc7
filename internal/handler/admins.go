package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/datalytics/console/internal/auth"
	"github.com/datalytics/console/internal/backend"
	"github.com/datalytics/console/internal/batch"
	"github.com/datalytics/console/internal/form"
	appmw "github.com/datalytics/console/internal/middleware"
	"github.com/datalytics/console/internal/model"
)

var (
	newAdminYears  = []string{"2", "3", "4"}
	editAdminYears = []string{"1", "2", "3", "4"}
	adminFieldSeq  = []string{"name", "email", "password", "role", "rollNo", "course", "year", "gender", "batch", "position", "phone", "image"}
)

type adminsData struct {
	Admins []model.Admin
}

type adminFormData struct {
	Form             form.Admin
	Errors           form.Errors
	Courses          []model.Course
	Positions        []model.Position
	Years            []string
	Genders          []string
	Roles            []model.Role
	Batches          batch.Choices
	CanSetRole       bool
	PasswordRequired bool
	Submit           string
}

// Admins lists every admin account.
func (c *Console) Admins(w http.ResponseWriter, r *http.Request) {
	list, err := c.API(r).Admins(r.Context())
	if err != nil {
		c.loadFailed(w, r, err, "admins")
		return
	}
	c.render(w, r, http.StatusOK, "admins.html", page{Title: "Admin", Data: adminsData{Admins: list}})
}

func (c *Console) adminForm(r *http.Request, a form.Admin, choices batch.Choices, adding bool) adminFormData {
	d := adminFormData{
		Form:             a,
		Courses:          c.courses(r),
		Positions:        c.positions(r, a.Batch),
		Years:            editAdminYears,
		Genders:          model.Genders,
		Roles:            model.Roles,
		Batches:          choices,
		CanSetRole:       !adding && appmw.IsSuperAdmin(r.Context()),
		PasswordRequired: adding,
		Submit:           "Update Admin",
	}
	if adding {
		d.Years = newAdminYears
		d.Submit = "Create Admin"
	}
	return d
}

// roleFor returns the role a submission may carry. Only superadmins choose;
// everyone else sends fallback.
func roleFor(actor *model.Admin, requested string, fallback model.Role) model.Role {
	if actor.IsSuperAdmin() && model.Role(requested).Valid() {
		return model.Role(requested)
	}
	if !fallback.Valid() {
		return model.RoleAdmin
	}
	return fallback
}

func (c *Console) addAdminChoices(r *http.Request) batch.Choices {
	return batch.AdminChoices(appmw.IsSuperAdmin(r.Context()), c.now(), c.opts.FirstBatchYear)
}

// AddAdminPage renders the admin creation form.
func (c *Console) AddAdminPage(w http.ResponseWriter, r *http.Request) {
	choices := c.addAdminChoices(r)
	a := form.Admin{Batch: choices.Default.String(), Role: string(model.RoleAdmin)}
	c.render(w, r, http.StatusOK, "admin_form.html", page{
		Title: "Add Admin",
		Data:  c.adminForm(r, a, choices, true),
	})
}

// AddAdmin creates the account and hands over to its MFA enrollment. The
// session remembers the new id so the enrollment can finish without
// signing the acting admin out.
func (c *Console) AddAdmin(w http.ResponseWriter, r *http.Request) {
	choices := c.addAdminChoices(r)
	img, uploadErr := c.readUpload(w, r)

	var a form.Admin
	form.Bind(r, &a)
	a.Image = ""
	a.Role = string(model.RoleAdmin)

	errs := checkBatch(a.CheckAdd(), choices, a.Batch)
	errs = imageRequired(errs, img, uploadErr, a.Image)
	if len(errs) > 0 {
		c.adminFormInvalid(w, r, "Add Admin", a, choices, true, errs)
		return
	}

	// New accounts are always plain admins; promotion happens on edit.
	created, err := c.API(r).CreateAdmin(r.Context(), a.Multipart(c.opts.CountryCode, model.RoleAdmin, img))
	if err != nil {
		c.Logger.Warn("admins: create failed", "err", err)
		a.Password = ""
		c.render(w, r, http.StatusBadGateway, "admin_form.html", page{
			Title: "Add Admin",
			Error: backend.MessageOr(err, "Failed to create admin"),
			Data:  c.adminForm(r, a, choices, true),
		})
		return
	}

	if sess := appmw.SessionFrom(r.Context()); sess != nil {
		sess.SetPendingEnrollment(created.ID)
	}
	c.Logger.Info("admins: created, starting MFA enrollment", "admin_id", created.ID)
	http.Redirect(w, r, auth.MFAPath(auth.ModeSetup, created.ID), http.StatusSeeOther)
}

// findAdmin looks id up in the admin list; the backend has no single-admin
// read.
func (c *Console) findAdmin(r *http.Request, id string) (*model.Admin, error) {
	list, err := c.API(r).Admins(r.Context())
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].ID == id {
			return &list[i], nil
		}
	}
	return nil, &backend.APIError{Op: "admin", Status: http.StatusNotFound, Message: "Admin not found"}
}

// EditAdminPage renders the admin edit form.
func (c *Console) EditAdminPage(w http.ResponseWriter, r *http.Request) {
	rec, err := c.findAdmin(r, chi.URLParam(r, "id"))
	if err != nil {
		c.loadFailed(w, r, err, "admin")
		return
	}
	choices := batch.EditChoices(c.now(), c.opts.FirstBatchYear, batch.Token(rec.Batch))
	c.render(w, r, http.StatusOK, "admin_form.html", page{
		Title: "Edit Admin",
		Data:  c.adminForm(r, form.AdminFrom(rec), choices, false),
	})
}

// EditAdmin submits changes to an admin. An empty password leaves it
// unchanged; the role only changes when a superadmin asks for it.
func (c *Console) EditAdmin(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := c.findAdmin(r, id)
	if err != nil {
		c.loadFailed(w, r, err, "admin")
		return
	}

	img, uploadErr := c.readUpload(w, r)
	var a form.Admin
	form.Bind(r, &a)
	choices := batch.EditChoices(c.now(), c.opts.FirstBatchYear, batch.Token(a.Batch))

	errs := checkBatch(a.CheckEdit(), choices, a.Batch)
	errs = imageRequired(errs, img, uploadErr, a.Image)
	if len(errs) > 0 {
		c.adminFormInvalid(w, r, "Edit Admin", a, choices, false, errs)
		return
	}

	role := roleFor(appmw.AdminFromContext(r.Context()), a.Role, rec.Role)
	if err := c.API(r).UpdateAdmin(r.Context(), id, a.Multipart(c.opts.CountryCode, role, img)); err != nil {
		c.Logger.Warn("admins: update failed", "id", id, "err", err)
		a.Password = ""
		c.render(w, r, http.StatusBadGateway, "admin_form.html", page{
			Title: "Edit Admin",
			Error: backend.MessageOr(err, "Failed to update admin"),
			Data:  c.adminForm(r, a, choices, false),
		})
		return
	}
	flashRedirect(w, r, "/dashboard/admins", "Admin updated successfully")
}

func (c *Console) adminFormInvalid(w http.ResponseWriter, r *http.Request, title string, a form.Admin, choices batch.Choices, adding bool, errs form.Errors) {
	a.Password = ""
	data := c.adminForm(r, a, choices, adding)
	data.Errors = errs
	c.render(w, r, http.StatusUnprocessableEntity, "admin_form.html", page{
		Title: title,
		Error: errs.First(adminFieldSeq...),
		Data:  data,
	})
}
