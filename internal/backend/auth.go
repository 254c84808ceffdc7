package backend

import (
	"context"
	"errors"
	"net/http"

	"github.com/datalytics/console/internal/model"
)

// LoginResult is the backend's answer to a credential check. A bare success
// leaves all fields zero.
type LoginResult struct {
	SetupMFA    bool   `json:"setupMFA"`
	MFARequired bool   `json:"mfaRequired"`
	AdminID     string `json:"adminId"`
}

// Me returns the admin the current session belongs to.
func (c *Client) Me(ctx context.Context) (*model.Admin, error) {
	var resp struct {
		Admin *model.Admin `json:"admin"`
	}
	if err := c.getJSON(ctx, "me", "/admin/me", &resp); err != nil {
		return nil, err
	}
	if resp.Admin == nil || resp.Admin.ID == "" {
		return nil, &APIError{Op: "me", Status: 200, Err: errors.New("response carries no admin")}
	}
	return resp.Admin, nil
}

// Login checks credentials. On a bare success the backend sets its session
// cookie on the client's jar.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	var res LoginResult
	err := c.sendJSON(ctx, "login", http.MethodPost, "/admin/login", map[string]string{
		"email":    email,
		"password": password,
	}, &res)
	return res, err
}

// Logout ends the backend session.
func (c *Client) Logout(ctx context.Context) error {
	return c.sendJSON(ctx, "logout", http.MethodPost, "/admin/logout", struct{}{}, nil)
}

// SetupMFA asks the backend to generate an authenticator enrollment for the
// admin and returns the QR image to display (a data URL or image URL).
func (c *Client) SetupMFA(ctx context.Context, adminID string) (string, error) {
	var resp struct {
		QRImage string `json:"qrImage"`
	}
	err := c.sendJSON(ctx, "setup-mfa", http.MethodPost, "/admin/setup-mfa", map[string]string{
		"adminId": adminID,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.QRImage == "" {
		return "", &APIError{Op: "setup-mfa", Status: 200, Err: errors.New("response carries no qrImage")}
	}
	return resp.QRImage, nil
}

// VerifyMFA submits a one-time code. It reports whether the backend treated
// the verification as part of an admin-creation workflow, in which case no
// session was established for adminID.
func (c *Client) VerifyMFA(ctx context.Context, adminID, code string, fromCreate bool) (bool, error) {
	var resp struct {
		FromCreate bool `json:"fromCreate"`
	}
	err := c.sendJSON(ctx, "verify-mfa", http.MethodPost, "/admin/verify-mfa", map[string]any{
		"adminId":    adminID,
		"code":       code,
		"fromCreate": fromCreate,
	}, &resp)
	return resp.FromCreate, err
}
