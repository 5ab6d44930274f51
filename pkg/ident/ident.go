// Package ident generates the short opaque identifiers used for tree nodes
// and line comments.
package ident

import (
	"encoding/binary"
	"strconv"

	"github.com/google/uuid"
)

// Length is the number of base36 characters in a generated id.
const Length = 7

// NewID returns a short, unique-enough base36 id. The only state it uses is
// the random source behind uuid.New.
func NewID() string {
	u := uuid.New()

	// 64 random bits always render to at least Length base36 digits unless the
	// leading bits are zero, so left-pad to keep ids a fixed width.
	s := strconv.FormatUint(binary.BigEndian.Uint64(u[:8]), 36)
	for len(s) < Length {
		s = "0" + s
	}

	return s[:Length]
}

// NewEventID returns a full uuid string for identifiers that leave the process
// (events, remote document ids).
func NewEventID() string {
	return uuid.NewString()
}
