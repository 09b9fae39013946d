package monitoring

import (
	"fmt"
	"strings"
)

// Role selects which workflow a session runs.
type Role string

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

func (r Role) Valid() bool {
	return r == RoleDoctor || r == RolePatient
}

func (r Role) String() string {
	return string(r)
}

// ParseRole accepts the role name in any case.
func ParseRole(value string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if !role.Valid() {
		return "", InvalidValue("role", fmt.Sprintf("unknown role %q", value))
	}
	return role, nil
}
