package rbac

import "time"

// AdminRole is the only capability group the protected surface requires.
const AdminRole = "Admin"

// Role represents a named capability group. Names are unique and an
// account's role set carries no duplicates.
type Role struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
