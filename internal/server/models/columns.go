package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/homedock/internal/server/rbac"
)

// RoleNames is an ordered list of role names stored as a JSON array.
type RoleNames []string

func (r RoleNames) Value() (driver.Value, error) {
	if r == nil {
		r = RoleNames{}
	}
	return marshalColumn([]string(r))
}

func (r *RoleNames) Scan(src any) error {
	var out []string
	if err := scanColumn(src, &out); err != nil {
		return fmt.Errorf("scan roles: %w", err)
	}
	*r = out
	return nil
}

func (r RoleNames) Strings() []string {
	return append([]string(nil), r...)
}

// PermissionList is a list of permissions stored as a JSON array.
type PermissionList []rbac.Permission

func (p PermissionList) Value() (driver.Value, error) {
	if p == nil {
		p = PermissionList{}
	}
	return marshalColumn([]rbac.Permission(p))
}

func (p *PermissionList) Scan(src any) error {
	var out []rbac.Permission
	if err := scanColumn(src, &out); err != nil {
		return fmt.Errorf("scan permissions: %w", err)
	}
	*p = out
	return nil
}

func (p PermissionList) Strings() []string {
	out := make([]string, len(p))
	for i, perm := range p {
		out[i] = string(perm)
	}
	return out
}

// Metadata is free-form, unencrypted credential metadata stored as a JSON
// object. A nil Metadata is stored as NULL.
type Metadata map[string]any

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return marshalColumn(map[string]any(m))
}

func (m *Metadata) Scan(src any) error {
	if src == nil {
		*m = nil
		return nil
	}
	var out map[string]any
	if err := scanColumn(src, &out); err != nil {
		return fmt.Errorf("scan metadata: %w", err)
	}
	*m = out
	return nil
}

func marshalColumn(v any) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func scanColumn(src any, dst any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		return nil
	case string:
		b = []byte(v)
	case []byte:
		b = v
	default:
		return fmt.Errorf("unsupported column type %T", src)
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, dst)
}
