package rbac

const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

// RolePermissions is the default policy table.
var RolePermissions = map[string][]string{
	RoleStudent: {
		"exam:view",
		"session:start",
		"session:take",
		"attempt:view-own",
		"dashboard:student",
	},
	RoleAdmin: {
		"exam:*",
		"dashboard:admin",
	},
}

// ValidRole reports whether role is one of the two assignable roles.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleStudent
}
