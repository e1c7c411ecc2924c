// CLAUDE:SUMMARY Capture failure taxonomy and warning summaries.
package capture

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hazyhaar/convocap/turn"
)

// ErrNoContent means no turns could be derived from the page; fatal for
// the run.
var ErrNoContent = errors.New("capture: no content extracted from page")

// maxWarningNames caps how many attachment names a warning lists.
const maxWarningNames = 3

// FailureWarning summarizes residual failed attachments as a
// human-readable string, or "" when nothing failed. Used in tolerant
// mode where the capture proceeds with partial results.
func FailureWarning(turns []turn.Turn) string {
	var names []string
	for _, t := range turns {
		for _, a := range t.Attachments {
			if a.Status != turn.StatusFailed {
				continue
			}
			name := a.Name
			if name == "" {
				name = a.FileID
			}
			if name == "" {
				name = a.OriginalURL
			}
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return ""
	}
	shown := names
	if len(shown) > maxWarningNames {
		shown = shown[:maxWarningNames]
	}
	return fmt.Sprintf("%d attachment(s) could not be downloaded: %s",
		len(names), strings.Join(shown, ", "))
}
