package session

// Roles
const (
	RoleAdmin   Role = "admin"
	RoleSchool  Role = "school"
	RoleTutor   Role = "tutor"
	RoleStudent Role = "student"
)

// DefaultDestination is where principals land when their role has no dedicated area.
const DefaultDestination = "/dashboard"

var (
	AllRoles = []Role{RoleAdmin, RoleSchool, RoleTutor, RoleStudent}

	destinations = map[Role]string{
		RoleAdmin:  "/admin/dashboard",
		RoleSchool: "/schools/dashboard",
		RoleTutor:  "/tutors/dashboard",
	}
)

type Role string

func (r Role) IsValid() bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

func (r Role) String() string { return string(r) }

// Destination returns the landing path of role.
func Destination(role Role) string {
	if dest, ok := destinations[role]; ok {
		return dest
	}
	return DefaultDestination
}

// Principal is the authenticated identity carried by a session token.
type Principal struct {
	ID         string `json:"id"`
	Role       Role   `json:"role"`
	IsVerified bool   `json:"is_verified"`
	Name       string `json:"name"`
}

func (p Principal) HasAnyRole(roles ...Role) bool {
	for _, role := range roles {
		if p.Role == role {
			return true
		}
	}
	return false
}
