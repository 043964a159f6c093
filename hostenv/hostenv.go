// Package hostenv checks and applies the host-level preconditions of the
// database setup: effective user, owner account resolution, and file
// ownership/permission bits.
package hostenv

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"strconv"
	"strings"
)

var (
	ErrNotRoot        = errors.New("must be executed as root")
	ErrMalformedOwner = errors.New("malformed owner")
	ErrUnknownUser    = errors.New("user does not exist")
	ErrUnknownGroup   = errors.New("group does not exist")
)

// RequireRoot fails unless the effective uid is 0. The database lives under
// /srv and gets chowned to service accounts, both of which need root.
func RequireRoot() error {
	if os.Geteuid() != 0 {
		return ErrNotRoot
	}
	return nil
}

// Owner is a resolved "user.group" pair.
type Owner struct {
	User  string
	Group string
	UID   int
	GID   int
}

// LookupOwner resolves a dot-separated "user.group" string against the host
// account databases.
func LookupOwner(spec string) (*Owner, error) {
	parts := strings.SplitN(spec, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("%w %q: want \"user.group\"", ErrMalformedOwner, spec)
	}
	u, err := user.Lookup(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownUser, parts[0])
	}
	g, err := user.LookupGroup(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, parts[1])
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return nil, fmt.Errorf("non-numeric uid %q for user %q", u.Uid, parts[0])
	}
	gid, err := strconv.Atoi(g.Gid)
	if err != nil {
		return nil, fmt.Errorf("non-numeric gid %q for group %q", g.Gid, parts[1])
	}
	return &Owner{User: parts[0], Group: parts[1], UID: uid, GID: gid}, nil
}

func (o *Owner) String() string {
	return o.User + "." + o.Group
}

// Apply chowns path to the owner and sets the given mode.
func (o *Owner) Apply(path string, mode os.FileMode) error {
	if err := os.Chown(path, o.UID, o.GID); err != nil {
		return fmt.Errorf("chown %s %s: %w", o, path, err)
	}
	if err := os.Chmod(path, mode); err != nil {
		return fmt.Errorf("chmod %o %s: %w", mode, path, err)
	}
	return nil
}
