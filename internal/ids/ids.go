// Package ids generates identifiers for bridge-owned handles and native requests.
package ids

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// New returns a new lowercase ULID string.
func New() string {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return strings.ToLower(ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String())
}

// WithPrefix returns prefix-<ulid>, e.g. "marker-01j9...".
func WithPrefix(prefix string) string {
	return prefix + "-" + New()
}
