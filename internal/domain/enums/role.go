package enums

type Role string

const (
	RoleUser   Role = "user"
	RoleTester Role = "tester"
	RoleAdmin  Role = "admin"
)

// Privileged roles bypass the subscription check entirely.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleTester
}
