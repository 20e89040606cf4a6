package relay

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// IDLength is the number of characters in a generated session identifier.
const IDLength = 9

// IDGenerator produces session identifiers for new connections.
type IDGenerator func() string

// idSpace is 36^IDLength, the number of distinct identifiers.
const idSpace uint64 = 36 * 36 * 36 * 36 * 36 * 36 * 36 * 36 * 36

// NewID returns a short base-36 identifier drawn from a random UUID. Every
// character position is uniformly distributed over [0-9a-z].
// Identifiers are not checked against live sessions; collisions are possible
// but unlikely at the expected number of concurrent peers.
func NewID() string {
	u := uuid.New()
	return formatID(binary.BigEndian.Uint64(u[8:]))
}

// formatID maps v onto a zero-padded IDLength-digit base-36 string.
func formatID(v uint64) string {
	id := strconv.FormatUint(v%idSpace, 36)
	if len(id) < IDLength {
		id = strings.Repeat("0", IDLength-len(id)) + id
	}
	return id
}
