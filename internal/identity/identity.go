// Package identity derives stable chunk identifiers.
//
// A chunk is identified by the file it came from, its position in that file
// and the tenant that owns it. The text of the chunk is not part of the
// identity, so re-ingesting an edited file overwrites the vectors stored
// at the same positions instead of adding new ones.
package identity

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// separator joins the identity fields. It cannot appear in tenant ids and is
// not expected in filenames.
const separator = "\x1f"

// namespace scopes chunk ids so that they never coincide with UUIDv5 values
// derived for other purposes. Changing it changes every stored id.
var namespace = uuid.MustParse("5b0e3c0a-2d1f-4a53-9c1e-7f6a8d2b4e10")

// ChunkID returns the deterministic id of chunk chunkIndex of filename for tenantID.
// The result is a UUID string (version 5), accepted as a point id by every
// collection store backend.
func ChunkID(filename string, chunkIndex int, tenantID string) string {
	var b strings.Builder
	b.Grow(len(filename) + len(tenantID) + 2*len(separator) + 8)
	b.WriteString(filename)
	b.WriteString(separator)
	b.WriteString(strconv.Itoa(chunkIndex))
	b.WriteString(separator)
	b.WriteString(tenantID)
	return uuid.NewSHA1(namespace, []byte(b.String())).String()
}
