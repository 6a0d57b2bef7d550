// Package diff renders a corrected text as HTML with the inserted characters
// wrapped in <mark> tags, computed against the original.
package diff

import (
	"html"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Highlight diffs original against corrected at character level and returns
// the corrected text as escaped HTML. Characters the correction added are
// wrapped in <mark class="correction">; characters it removed are omitted,
// so the visible text always equals the corrected text.
func Highlight(original, corrected string) string {
	dmp := diffmatchpatch.New()
	// no wall-clock cutoff: the diff must depend only on the inputs, not on
	// how loaded the machine is when a large document comes through
	dmp.DiffTimeout = 0
	diffs := dmp.DiffMain(original, corrected, false)

	var builder strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			builder.WriteString(html.EscapeString(d.Text))
		case diffmatchpatch.DiffInsert:
			builder.WriteString(`<mark class="correction">`)
			builder.WriteString(html.EscapeString(d.Text))
			builder.WriteString(`</mark>`)
		case diffmatchpatch.DiffDelete:
			// dropped: the output mirrors the corrected text
		}
	}
	return builder.String()
}
