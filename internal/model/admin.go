package model

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// Roles lists the roles an admin account can hold, lowest privilege first.
var Roles = []Role{RoleAdmin, RoleSuperAdmin}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Admin is an administrator account as reported by the backend. The same
// shape is returned by /admin/me, where it describes the acting identity.
type Admin struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	Batch    string `json:"batch"`
	Course   Ref    `json:"course"`
	Position Ref    `json:"position"`
	Year     Text   `json:"year"`
	RollNo   string `json:"rollNo"`
	Gender   string `json:"gender"`
	Phone    string `json:"phone"`
	LinkedIn string `json:"linkedin"`
	Image    string `json:"image"`
}

// IsSuperAdmin reports whether the admin holds the elevated role.
func (a *Admin) IsSuperAdmin() bool {
	return a != nil && a.Role == RoleSuperAdmin
}
