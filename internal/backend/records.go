package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/datalytics/console/internal/model"
)

// Admins lists every admin account.
func (c *Client) Admins(ctx context.Context) ([]model.Admin, error) {
	return list[model.Admin](ctx, c, "admins", "/admin/all", "admins")
}

// CreateAdmin creates an admin account and returns it.
func (c *Client) CreateAdmin(ctx context.Context, form *Multipart) (*model.Admin, error) {
	var raw json.RawMessage
	if err := c.sendMultipart(ctx, "create-admin", http.MethodPost, "/admin/add", form, &raw); err != nil {
		return nil, err
	}
	admin, err := decodeItem[model.Admin](raw, "admin")
	if err != nil {
		return nil, &APIError{Op: "create-admin", Status: http.StatusOK, Err: err}
	}
	return admin, nil
}

// UpdateAdmin replaces the editable fields of an admin account.
func (c *Client) UpdateAdmin(ctx context.Context, id string, form *Multipart) error {
	return c.sendMultipart(ctx, "update-admin", http.MethodPut, "/admin/edit/"+url.PathEscape(id), form, nil)
}

// Members lists every member.
func (c *Client) Members(ctx context.Context) ([]model.Member, error) {
	return list[model.Member](ctx, c, "members", "/admin/members", "members")
}

// Member fetches one member.
func (c *Client) Member(ctx context.Context, id string) (*model.Member, error) {
	return item[model.Member](ctx, c, "member", "/admin/members/"+url.PathEscape(id), "member")
}

// CreateMember adds a member.
func (c *Client) CreateMember(ctx context.Context, form *Multipart) error {
	return c.sendMultipart(ctx, "create-member", http.MethodPost, "/admin/members/add", form, nil)
}

// UpdateMember replaces the editable fields of a member.
func (c *Client) UpdateMember(ctx context.Context, id string, form *Multipart) error {
	return c.sendMultipart(ctx, "update-member", http.MethodPut, "/admin/members/edit/"+url.PathEscape(id), form, nil)
}

// DeleteMember removes a member.
func (c *Client) DeleteMember(ctx context.Context, id string) error {
	return c.do(ctx, "delete-member", http.MethodDelete, "/admin/members/"+url.PathEscape(id), nil, "", nil)
}

// Courses lists the courses in the order the backend stores them.
func (c *Client) Courses(ctx context.Context) ([]model.Course, error) {
	return list[model.Course](ctx, c, "courses", "/courses", "courses")
}

// CreateCourse adds a course.
func (c *Client) CreateCourse(ctx context.Context, name string) error {
	return c.sendJSON(ctx, "create-course", http.MethodPost, "/courses", map[string]string{"name": name}, nil)
}

// Positions lists the club roles defined for a batch.
func (c *Client) Positions(ctx context.Context, batch string) ([]model.Position, error) {
	return list[model.Position](ctx, c, "positions", "/roles/"+url.PathEscape(batch), "roles")
}

// CreatePosition adds a club role to a batch.
func (c *Client) CreatePosition(ctx context.Context, title, batch string) error {
	return c.sendJSON(ctx, "create-position", http.MethodPost, "/roles", map[string]string{
		"title": title,
		"batch": batch,
	}, nil)
}

// Events lists every event.
func (c *Client) Events(ctx context.Context) ([]model.Event, error) {
	return list[model.Event](ctx, c, "events", "/events", "events")
}

// Event fetches one event.
func (c *Client) Event(ctx context.Context, id string) (*model.Event, error) {
	return item[model.Event](ctx, c, "event", "/events/"+url.PathEscape(id), "event")
}

// CreateEvent adds an event.
func (c *Client) CreateEvent(ctx context.Context, form *Multipart) error {
	return c.sendMultipart(ctx, "create-event", http.MethodPost, "/admin/events/add", form, nil)
}

// UpdateEvent replaces the editable fields of an event.
func (c *Client) UpdateEvent(ctx context.Context, id string, form *Multipart) error {
	return c.sendMultipart(ctx, "update-event", http.MethodPut, "/admin/events/edit/"+url.PathEscape(id), form, nil)
}

func list[T any](ctx context.Context, c *Client, op, path, key string) ([]T, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, op, path, &raw); err != nil {
		return nil, err
	}
	items, err := decodeList[T](raw, key)
	if err != nil {
		return nil, &APIError{Op: op, Status: http.StatusOK, Err: err}
	}
	return items, nil
}

func item[T any](ctx context.Context, c *Client, op, path, key string) (*T, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, op, path, &raw); err != nil {
		return nil, err
	}
	v, err := decodeItem[T](raw, key)
	if err != nil {
		return nil, &APIError{Op: op, Status: http.StatusOK, Err: err}
	}
	return v, nil
}
