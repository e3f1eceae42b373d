// Package userref defines the canonical, server-qualified user identity used
// across the local store and external authentication servers.
//
// Local accounts carry a 32-bit uid widened into the 128-bit identifier space;
// external accounts carry a full 128-bit identifier (a UUID reinterpreted as
// an integer). The canonical textual form is
//
//	local@<decimal-uid>
//	<server>@<32 lowercase hex digits>
//
// Parsing the canonical form of any valid UserRef reproduces it exactly.
package userref

import (
	"encoding/binary"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// LocalServer is the reserved server name for accounts in the local store.
const LocalServer = "local"

// UserRef is a value type and is freely copied.
type UserRef struct {
	Server string
	ID     uuid.UUID
}

// NewLocal builds a UserRef for a local account. The 32-bit uid occupies the
// low bytes of the identifier, the rest stays zero.
func NewLocal(uid uint32) UserRef {
	var id uuid.UUID
	binary.BigEndian.PutUint32(id[12:16], uid)
	return UserRef{Server: LocalServer, ID: id}
}

// NewExternal builds a UserRef for an account on a remote server.
func NewExternal(server string, id uuid.UUID) UserRef {
	return UserRef{Server: server, ID: id}
}

// IsLocal reports whether the ref points into the local store.
func (r UserRef) IsLocal() bool {
	return r.Server == LocalServer
}

// LocalUID returns the 32-bit local uid. The second return value is false for
// external refs and for local refs whose identifier does not fit in 32 bits.
func (r UserRef) LocalUID() (uint32, bool) {
	if !r.IsLocal() {
		return 0, false
	}
	for _, b := range r.ID[:12] {
		if b != 0 {
			return 0, false
		}
	}
	return binary.BigEndian.Uint32(r.ID[12:16]), true
}

// Valid reports whether the ref satisfies its invariants: a non-empty server
// name without '@' or whitespace, and for local refs an identifier that fits
// in 32 bits.
func (r UserRef) Valid() bool {
	if !validServer(r.Server) {
		return false
	}
	if r.IsLocal() {
		_, ok := r.LocalUID()
		return ok
	}
	return true
}

// String renders the canonical textual form. Invalid refs render as an empty
// string so they never masquerade as a usable identity.
func (r UserRef) String() string {
	if !r.Valid() {
		return ""
	}
	if uid, ok := r.LocalUID(); ok {
		return LocalServer + "@" + strconv.FormatUint(uint64(uid), 10)
	}
	return r.Server + "@" + hex.EncodeToString(r.ID[:])
}

// Parse is the total inverse of String. It never panics; malformed input
// yields ok == false.
func Parse(s string) (UserRef, bool) {
	at := strings.LastIndexByte(s, '@')
	if at <= 0 || at == len(s)-1 {
		return UserRef{}, false
	}
	server, rest := s[:at], s[at+1:]
	if !validServer(server) {
		return UserRef{}, false
	}

	if server == LocalServer {
		uid, err := strconv.ParseUint(rest, 10, 32)
		if err != nil {
			return UserRef{}, false
		}
		// Reject non-canonical spellings such as leading zeros so that the
		// round-trip law holds exactly.
		if strconv.FormatUint(uid, 10) != rest {
			return UserRef{}, false
		}
		return NewLocal(uint32(uid)), true
	}

	if len(rest) != 32 || strings.ToLower(rest) != rest {
		return UserRef{}, false
	}
	raw, err := hex.DecodeString(rest)
	if err != nil {
		return UserRef{}, false
	}
	var id uuid.UUID
	copy(id[:], raw)
	return UserRef{Server: server, ID: id}, true
}

func validServer(server string) bool {
	if server == "" {
		return false
	}
	for _, c := range server {
		if c == '@' || c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			return false
		}
	}
	return true
}
