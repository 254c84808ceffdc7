package form

import (
	"strings"

	"github.com/datalytics/console/internal/backend"
	"github.com/datalytics/console/internal/media"
	"github.com/datalytics/console/internal/model"
)

// Member is the add/edit member form.
type Member struct {
	Name      string `form:"name" validate:"notblank"`
	Email     string `form:"email" validate:"required,email"`
	Course    string `form:"course" validate:"required"`
	Position  string `form:"position" validate:"required"`
	Year      string `form:"year" validate:"required,oneof=2 3 4"`
	Batch     string `form:"batch" validate:"required,batch"`
	RollNo    string `form:"rollNo" validate:"notblank"`
	Gender    string `form:"gender" validate:"required,oneof=M F O"`
	DOB       string `form:"dob" validate:"required,datetime=2006-01-02"`
	Phone     string `form:"phone" validate:"phone10"`
	LinkedIn  string `form:"linkedin" validate:"omitempty,url"`
	Portfolio string `form:"portfolio" validate:"omitempty,url"`
	GitHub    string `form:"github" validate:"omitempty,url"`
	Instagram string `form:"instagram" validate:"omitempty,url"`
	Image     string `form:"existingImage"`
}

// MemberFrom fills the edit form from a stored member.
func MemberFrom(m *model.Member) Member {
	return Member{
		Name:      m.Name,
		Email:     m.Email,
		Course:    m.Course.ID,
		Position:  m.Position.ID,
		Year:      string(m.Year),
		Batch:     m.Batch,
		RollNo:    m.RollNo,
		Gender:    m.Gender,
		DOB:       DateOnly(m.DOB),
		Phone:     DisplayPhone(m.Phone),
		LinkedIn:  m.LinkedIn,
		Portfolio: m.Portfolio,
		GitHub:    m.GitHub,
		Instagram: m.Instagram,
		Image:     m.Image,
	}
}

// Multipart builds the backend submission. img may be nil on edit, in which
// case the existing image URL is forwarded.
func (m Member) Multipart(countryCode string, img *media.Image) *backend.Multipart {
	fd := &backend.Multipart{}
	fd.Set("name", m.Name)
	fd.Set("course", m.Course)
	fd.Set("year", m.Year)
	fd.Set("position", m.Position)
	fd.Set("email", m.Email)
	fd.Set("rollNo", m.RollNo)
	fd.Set("gender", m.Gender)
	fd.Set("dob", m.DOB)
	fd.Set("linkedin", m.LinkedIn)
	fd.SetIfNotEmpty("portfolio", m.Portfolio)
	fd.SetIfNotEmpty("github", m.GitHub)
	fd.SetIfNotEmpty("instagram", m.Instagram)
	fd.Set("batch", m.Batch)
	fd.Set("phone", FormatPhone(countryCode, m.Phone))
	attach(fd, img, m.Image)
	return fd
}

// Admin is the add/edit admin form. Password is required on add and
// optional on edit; Role is only honoured for superadmins.
type Admin struct {
	Name     string `form:"name" validate:"notblank"`
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" trim:"no"`
	Role     string `form:"role" validate:"omitempty,oneof=admin superadmin"`
	Course   string `form:"course" validate:"required"`
	Position string `form:"position" validate:"required"`
	Year     string `form:"year" validate:"required,oneof=1 2 3 4"`
	Batch    string `form:"batch" validate:"required,batch"`
	RollNo   string `form:"rollNo" validate:"notblank"`
	Gender   string `form:"gender" validate:"required,oneof=M F O"`
	Phone    string `form:"phone" validate:"phone10"`
	LinkedIn string `form:"linkedin" validate:"omitempty,url"`
	Image    string `form:"existingImage"`
}

// newAdmin carries the add-only rules.
type newAdmin struct {
	Password string `form:"password" validate:"password"`
	Year     string `form:"year" validate:"oneof=2 3 4"`
}

type editAdmin struct {
	Password string `form:"password" validate:"omitempty,password"`
}

// CheckAdd validates a is fit for creating an admin.
func (a Admin) CheckAdd() Errors {
	errs := Check(a)
	merge(&errs, Check(newAdmin{Password: a.Password, Year: a.Year}))
	return errs
}

// CheckEdit validates a is fit for updating an admin.
func (a Admin) CheckEdit() Errors {
	errs := Check(a)
	merge(&errs, Check(editAdmin{Password: a.Password}))
	return errs
}

// AdminFrom fills the edit form from a stored admin. The password is never
// prefilled.
func AdminFrom(a *model.Admin) Admin {
	return Admin{
		Name:     a.Name,
		Email:    a.Email,
		Role:     string(a.Role),
		Course:   a.Course.ID,
		Position: a.Position.ID,
		Year:     string(a.Year),
		Batch:    a.Batch,
		RollNo:   a.RollNo,
		Gender:   a.Gender,
		Phone:    DisplayPhone(a.Phone),
		LinkedIn: a.LinkedIn,
		Image:    a.Image,
	}
}

// Multipart builds the backend submission. role is what the acting admin
// is allowed to send; an empty password is omitted.
func (a Admin) Multipart(countryCode string, role model.Role, img *media.Image) *backend.Multipart {
	fd := &backend.Multipart{}
	fd.Set("name", a.Name)
	fd.Set("rollNo", a.RollNo)
	fd.Set("email", a.Email)
	fd.SetIfNotEmpty("password", a.Password)
	fd.Set("course", a.Course)
	fd.Set("gender", a.Gender)
	fd.Set("year", a.Year)
	fd.Set("batch", a.Batch)
	fd.Set("position", a.Position)
	fd.Set("linkedin", a.LinkedIn)
	fd.Set("phone", FormatPhone(countryCode, a.Phone))
	fd.Set("role", string(role))
	attach(fd, img, a.Image)
	return fd
}

// Event is the add/edit event form.
type Event struct {
	Title            string `form:"title" validate:"notblank"`
	Description      string `form:"description" validate:"notblank"`
	Date             string `form:"date" validate:"required,datetime=2006-01-02"`
	Venue            string `form:"venue" validate:"notblank"`
	RegistrationLink string `form:"registrationLink" validate:"omitempty,url"`
	Batch            string `form:"batch" validate:"required,batch"`
	Image            string `form:"existingImage"`
}

func EventFrom(e *model.Event) Event {
	return Event{
		Title:            e.Title,
		Description:      e.Description,
		Date:             DateOnly(e.Date),
		Venue:            e.Venue,
		RegistrationLink: e.RegistrationLink,
		Batch:            e.Batch,
		Image:            e.Image,
	}
}

func (e Event) Multipart(img *media.Image) *backend.Multipart {
	fd := &backend.Multipart{}
	fd.Set("title", e.Title)
	fd.Set("description", e.Description)
	fd.Set("date", e.Date)
	fd.Set("venue", e.Venue)
	fd.SetIfNotEmpty("registrationLink", e.RegistrationLink)
	fd.Set("batch", e.Batch)
	attach(fd, img, e.Image)
	return fd
}

type Course struct {
	Name string `form:"name" validate:"notblank,max=120"`
}

type Position struct {
	Title string `form:"title" validate:"notblank,max=120"`
	Batch string `form:"batch" validate:"required,batch"`
}

func attach(fd *backend.Multipart, img *media.Image, existing string) {
	if img != nil {
		fd.AttachImage(img.Filename, img.ContentType, img.Data)
		return
	}
	fd.SetIfNotEmpty("image", existing)
}

func merge(dst *Errors, src Errors) {
	if len(src) == 0 {
		return
	}
	if *dst == nil {
		*dst = Errors{}
	}
	for k, v := range src {
		(*dst)[k] = v
	}
}

// DateOnly trims an ISO timestamp to its date, for date inputs.
func DateOnly(s string) string {
	if len(s) >= 10 && s[4] == '-' && s[7] == '-' {
		return s[:10]
	}
	return s
}

// FilterCourses drops department-level entries and reverses the backend's
// order so the newest course comes first.
func FilterCourses(in []model.Course) []model.Course {
	out := make([]model.Course, 0, len(in))
	for i := len(in) - 1; i >= 0; i-- {
		if strings.Contains(strings.ToLower(in[i].Name), "computing department") {
			continue
		}
		out = append(out, in[i])
	}
	return out
}

// ReversePositions returns the positions newest first.
func ReversePositions(in []model.Position) []model.Position {
	out := make([]model.Position, len(in))
	for i, p := range in {
		out[len(in)-1-i] = p
	}
	return out
}
