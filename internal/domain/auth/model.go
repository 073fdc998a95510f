package auth

import (
	"fmt"
	"strings"
	"time"
)

// Permissions is a bit-set of actions a credential grants within a call.
type Permissions uint32

const (
	PermJoin Permissions = 1 << iota
	PermPublish
	PermModerate
)

var permNames = []struct {
	perm Permissions
	name string
}{
	{PermJoin, "join"},
	{PermPublish, "publish"},
	{PermModerate, "moderate"},
}

// Has reports whether all bits of p are granted.
func (p Permissions) Has(perm Permissions) bool {
	return p&perm == perm
}

// Names returns the granted permission names in declaration order.
func (p Permissions) Names() []string {
	var names []string
	for _, entry := range permNames {
		if p.Has(entry.perm) {
			names = append(names, entry.name)
		}
	}
	return names
}

// ParsePermissions maps permission names to a bit-set.
func ParsePermissions(names []string) (Permissions, error) {
	var p Permissions
	for _, name := range names {
		matched := false
		for _, entry := range permNames {
			if entry.name == strings.ToLower(name) {
				p |= entry.perm
				matched = true
				break
			}
		}
		if !matched {
			return 0, fmt.Errorf("unknown permission %q", name)
		}
	}
	return p, nil
}

// Credential proves a user may join a specific incarnation of a call.
// It is valid only while unexpired and only against the generation it was
// minted for; tearing a call down and recreating it invalidates every
// outstanding credential at once.
type Credential struct {
	CallID      string
	Generation  int64
	UserID      string
	Permissions Permissions
	ExpiresAt   time.Time
	Signature   []byte
}
