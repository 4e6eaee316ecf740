package cache

import (
	"fmt"

	"github.com/google/uuid"
)

// JobStatusKey scopes the status entry to its owner, so a lookup with the
// wrong user misses instead of leaking another user's job state.
func JobStatusKey(userID uuid.UUID, jobID string) string {
	return fmt.Sprintf("job:%s:%s", userID, jobID)
}
