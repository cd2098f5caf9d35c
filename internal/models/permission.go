package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownPermissionField = errors.New("unknown permission field")

const (
	PermissionAllow = "allow"
	PermissionAdmin = "admin"
)

// PermissionUpdate is an admin toggle on a UserDetail. The only variants are
// SetAllow and SetAdmin.
type PermissionUpdate interface {
	Field() string
	Value() bool
	Apply(u *UserDetail)
	permissionUpdate()
}

type SetAllow bool

func (s SetAllow) Field() string       { return PermissionAllow }
func (s SetAllow) Value() bool         { return bool(s) }
func (s SetAllow) Apply(u *UserDetail) { u.Allow = bool(s) }
func (SetAllow) permissionUpdate()     {}

type SetAdmin bool

func (s SetAdmin) Field() string       { return PermissionAdmin }
func (s SetAdmin) Value() bool         { return bool(s) }
func (s SetAdmin) Apply(u *UserDetail) { u.Admin = bool(s) }
func (SetAdmin) permissionUpdate()     {}

type permissionUpdateWire struct {
	Field string `json:"field"`
	Value *bool  `json:"value"`
}

// ParsePermissionUpdate decodes {"field": "allow"|"admin", "value": bool}.
func ParsePermissionUpdate(data []byte) (PermissionUpdate, error) {
	var w permissionUpdateWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	if w.Value == nil {
		return nil, errors.New("permission value is required")
	}
	return NewPermissionUpdate(w.Field, *w.Value)
}

func NewPermissionUpdate(field string, value bool) (PermissionUpdate, error) {
	switch field {
	case PermissionAllow:
		return SetAllow(value), nil
	case PermissionAdmin:
		return SetAdmin(value), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPermissionField, field)
	}
}

func MarshalPermissionUpdate(u PermissionUpdate) ([]byte, error) {
	v := u.Value()
	return json.Marshal(permissionUpdateWire{Field: u.Field(), Value: &v})
}
