package shared

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewDocumentNumber builds a unique document number such as "PUR-9F3C2A1B04D7".
// Callers may still supply their own numbers; this is the fallback used when
// a request arrives without one.
func NewDocumentNumber(prefix string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s-%s", prefix, strings.ToUpper(raw[:12]))
}
