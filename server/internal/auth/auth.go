package auth

import (
	"crypto/subtle"
	"strings"
)

// ModeAPIKey is the only mode that enforces a key.
const ModeAPIKey = "apikey"

// Guard validates API keys presented in gRPC metadata or HTTP headers.
type Guard struct {
	mode   string
	header string
	key    string
}

// New returns a Guard. header is matched case-insensitively; gRPC metadata
// keys are lowercased by the library so it is stored lowercase.
func New(mode, header, key string) Guard {
	return Guard{mode: mode, header: strings.ToLower(header), key: key}
}

// Enabled reports whether calls must carry a key.
func (g Guard) Enabled() bool {
	return g.mode == ModeAPIKey && g.key != ""
}

// Header returns the header or metadata key the Guard reads.
func (g Guard) Header() string {
	return g.header
}

// valid compares got against the expected key in constant time.
func (g Guard) valid(got string) bool {
	if got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(g.key)) == 1
}
