package testutil

import (
	"strings"

	"github.com/google/uuid"
)

// RandomEmail returns a unique email address for test isolation.
func RandomEmail(prefix string) string {
	return prefix + "-" + strings.Split(uuid.NewString(), "-")[0] + "@example.com"
}
