package userref

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalRoundTrip(t *testing.T) {
	t.Parallel()

	for _, uid := range []uint32{0, 1, 42, 1<<32 - 1} {
		r := NewLocal(uid)
		s := r.String()

		parsed, ok := Parse(s)
		require.True(t, ok, "Parse(%q)", s)
		assert.Equal(t, r, parsed)

		got, ok := parsed.LocalUID()
		require.True(t, ok)
		assert.Equal(t, uid, got)
	}
}

func TestExternalRoundTrip(t *testing.T) {
	t.Parallel()

	id := uuid.MustParse("01234567-89ab-cdef-0123-456789abcdef")
	r := NewExternal("auth.example.org", id)

	s := r.String()
	assert.Equal(t, "auth.example.org@0123456789abcdef0123456789abcdef", s)

	parsed, ok := Parse(s)
	require.True(t, ok)
	assert.Equal(t, r, parsed)
	assert.False(t, parsed.IsLocal())

	_, isLocal := parsed.LocalUID()
	assert.False(t, isLocal)
}

func TestParse_MalformedIsTotal(t *testing.T) {
	t.Parallel()

	for _, s := range []string{
		"",
		"@",
		"local@",
		"@123",
		"local@abc",
		"local@-1",
		"local@4294967296",          // does not fit in 32 bits
		"local@007",                 // non-canonical decimal
		"srv@0123",                  // wrong hex length
		"srv@0123456789ABCDEF0123456789ABCDEF", // uppercase hex
		"srv@zz23456789abcdef0123456789abcdef", // not hex
		"bad server@0123456789abcdef0123456789abcdef",
		"no-separator",
	} {
		_, ok := Parse(s)
		assert.False(t, ok, "Parse(%q) should fail", s)
	}
}

func TestLocalWideningStaysIn32Bits(t *testing.T) {
	t.Parallel()

	r := NewLocal(7)
	assert.True(t, r.Valid())
	assert.Equal(t, "local@7", r.String())

	// A hand-built local ref with high bits set is invalid and must not format.
	bad := UserRef{Server: LocalServer, ID: uuid.MustParse("01000000-0000-0000-0000-000000000007")}
	assert.False(t, bad.Valid())
	assert.Equal(t, "", bad.String())
}
