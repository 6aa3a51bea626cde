package envutil

import (
	"os"
	"strings"
)

// IsDev reports whether the process runs in development mode.
// Controls cookie Secure flags and the dev identity provider.
func IsDev() bool {
	return strings.EqualFold(os.Getenv("NINA_ENV"), "development")
}
