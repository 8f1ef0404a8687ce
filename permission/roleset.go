package permission

import "strings"

// RoleSet is a bitmask of roles, one bit per Role value.
type RoleSet uint64

// Roles builds a RoleSet. Invalid roles are ignored.
func Roles(roles ...Role) RoleSet {
	var s RoleSet
	for _, r := range roles {
		s.Set(r)
	}
	return s
}

// AnyRole matches every defined role.
func AnyRole() RoleSet {
	return Roles(Student, Mentor, Admin)
}

// Has reports whether r is in the set. The zero role is never a member.
func (s RoleSet) Has(r Role) bool {
	if !r.Valid() {
		return false
	}
	return s&(1<<r) != 0
}

// Set adds r to the set.
func (s *RoleSet) Set(r Role) {
	if !r.Valid() {
		return
	}
	*s |= 1 << r
}

// Clear removes r from the set.
func (s *RoleSet) Clear(r Role) {
	if !r.Valid() {
		return
	}
	*s &^= 1 << r
}

// Empty reports whether no role is set.
func (s RoleSet) Empty() bool {
	return s == 0
}

func (s RoleSet) String() string {
	var names []string
	for _, r := range []Role{Student, Mentor, Admin} {
		if s.Has(r) {
			names = append(names, r.String())
		}
	}
	return "{" + strings.Join(names, ",") + "}"
}
