package kering

import (
	"fmt"
	"reflect"
)

const (
	VersionMajor = 1
	VersionMinor = 0
)

// Versionage is a protocol version tuple.
type Versionage struct {
	Major int
	Minor int
}

// Version returns the current KERI protocol version.
func Version() Versionage {
	return Versionage{Major: VersionMajor, Minor: VersionMinor}
}

func (v Versionage) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Separator splits a message header block from its attachments.
const Separator = "\r\n\r\n"

// SeparatorBytes returns a fresh copy of Separator.
func SeparatorBytes() []byte {
	return []byte(Separator)
}

// Scheme is a transport scheme name.
type Scheme string

const (
	SchemeTCP   Scheme = "tcp"
	SchemeHTTP  Scheme = "http"
	SchemeHTTPS Scheme = "https"
)

var schemes = [...]Scheme{SchemeTCP, SchemeHTTP, SchemeHTTPS}

// Schemes returns the valid transport schemes.
func Schemes() []Scheme {
	out := make([]Scheme, len(schemes))
	copy(out, schemes[:])
	return out
}

func IsScheme(s string) bool {
	for _, v := range schemes {
		if string(v) == s {
			return true
		}
	}
	return false
}

// Role is a participant role name.
type Role string

const (
	RoleController Role = "controller"
	RoleWitness    Role = "witness"
	RoleRegistrar  Role = "registrar"
	RoleWatcher    Role = "watcher"
	RoleJudge      Role = "judge"
	RoleJuror      Role = "juror"
)

var roles = [...]Role{RoleController, RoleWitness, RoleRegistrar, RoleWatcher, RoleJudge, RoleJuror}

// Roles returns the valid participant roles.
func Roles() []Role {
	out := make([]Role, len(roles))
	copy(out, roles[:])
	return out
}

func IsRole(s string) bool {
	for _, v := range roles {
		if string(v) == s {
			return true
		}
	}
	return false
}

var (
	truthy = [...]any{true, 1, "?1", "yes", "true", "True", "on"}
	falsy  = [...]any{false, 0, "?0", "no", "false", "False", "off"}
)

// Truthy returns the literals accepted as true.
func Truthy() []any {
	out := make([]any, len(truthy))
	copy(out, truthy[:])
	return out
}

// Falsy returns the literals accepted as false.
func Falsy() []any {
	out := make([]any, len(falsy))
	copy(out, falsy[:])
	return out
}

// IsTruthy is a membership test against Truthy. Integers of any width match
// their numeric value; no other normalization is done, so "TRUE" and "1"
// are not members.
func IsTruthy(v any) bool {
	return member(truthy[:], v)
}

// IsFalsy is a membership test against Falsy.
func IsFalsy(v any) bool {
	return member(falsy[:], v)
}

// ParseBool maps a truthy or falsy literal to its value. Anything else is a
// configuration error.
func ParseBool(v any) (bool, error) {
	switch {
	case IsTruthy(v):
		return true, nil
	case IsFalsy(v):
		return false, nil
	default:
		return false, Newf(ErrConfiguration, "not a boolean literal: %#v", v)
	}
}

func member(set []any, v any) bool {
	if n, ok := asInt(v); ok {
		for _, s := range set {
			if i, ok := s.(int); ok && int64(i) == n {
				return true
			}
		}
		return false
	}
	for _, s := range set {
		if _, ok := s.(int); ok {
			continue
		}
		if s == v {
			return true
		}
	}
	return false
}

func asInt(v any) (int64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > 1<<62 {
			return 0, false
		}
		return int64(u), true
	default:
		return 0, false
	}
}
