package domain

import "time"

// UserRole enumerates the university roles.
type UserRole string

const (
	RoleMahasiswa UserRole = "mahasiswa"
	RoleDosen     UserRole = "dosen"
	RoleAdmin     UserRole = "admin"
	RoleExecutive UserRole = "executive"
)

// User is the directory entry consumed read-only by the workflow engine.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         UserRole
	Department   *string
	Position     *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CanManageTickets reports whether the role may act on any ticket.
func (u *User) CanManageTickets() bool {
	return u.Role == RoleAdmin || u.Role == RoleExecutive
}

// WorkloadSnapshot pairs a candidate with the counts the selectors score on.
type WorkloadSnapshot struct {
	User                User
	ActiveTickets       int
	UrgentTickets       int
	CompletedInCategory int
	AvgSatisfaction     float64
}
