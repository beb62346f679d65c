package message

import (
	"sort"
	"strings"
)

const (
	UserInfoPrefix   = "user_info_"
	DeviceInfoPrefix = "device_info_"
)

// Top-level keys of an event object. Property keys must never collide with
// these, see IsReservedKeyword.
const (
	KeyEventName = "_en"
	KeyUserAgent = "_via_ua"
	KeyTimestamp = "_ts"
	KeyUserType  = "_ut"
	KeyUserID    = "_ui"
	KeyUserLogin = "_ul"
)

const UserTypeAnon = "anon"

// AliasUserEventName is the event that merges an anonymous identity into an
// authenticated one on the server. Its anonymous id property is camelCase.
const AliasUserEventName = "_aliasUser"

const (
	aliasAnonIDFlatKey = "anonid"
	AliasAnonIDKey     = "anonId"
)

var reservedKeys = map[string]struct{}{
	KeyEventName: {},
	KeyUserAgent: {},
	KeyTimestamp: {},
	KeyUserType:  {},
	KeyUserID:    {},
	KeyUserLogin: {},
}

// IsReservedKeyword reports whether key, compared case-insensitively, is one
// of the top-level event keys or starts with a property-group prefix.
func IsReservedKeyword(key string) bool {
	lower := strings.ToLower(key)
	if _, ok := reservedKeys[lower]; ok {
		return true
	}
	return strings.HasPrefix(lower, UserInfoPrefix) || strings.HasPrefix(lower, DeviceInfoPrefix)
}

// ReservedKeys returns the keys of props that IsReservedKeyword rejects, sorted.
func ReservedKeys(props map[string]any) []string {
	var out []string
	for k := range props {
		if IsReservedKeyword(k) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
