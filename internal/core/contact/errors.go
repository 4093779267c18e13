package contact

import "errors"

var (
	ErrUnresolvedPair = errors.New("collision pair has no contact body")
	ErrRoleConflict   = errors.New("collider already registered with another role")
	ErrEmptyZone      = errors.New("zone name is empty")
)
