package domain

// Role is the gateway role carried by an access token.
type Role string

const (
	RoleStudent  Role = "STUDENT"
	RoleAdmin    Role = "ADMIN"
	RoleOperator Role = "OPERATOR"
)

// ParseRole maps a document-server role name onto a gateway role.
// Unknown names fall back to STUDENT.
func ParseRole(raw string) Role {
	switch Role(raw) {
	case RoleAdmin:
		return RoleAdmin
	case RoleOperator:
		return RoleOperator
	default:
		return RoleStudent
	}
}

// Member is the logged-in account as reported by the document server.
type Member struct {
	MemberID       string
	Name           string
	Role           Role
	Department     string
	AcademicStatus string
}
