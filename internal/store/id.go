package store

import "github.com/google/uuid"

// newSessionID returns a random, globally unique session identifier in the
// form sess_<uuid>.
func newSessionID() string {
	return "sess_" + uuid.NewString()
}
