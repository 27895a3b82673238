package judge

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// solutionRowRe matches the id attribute of a status table row:
// a fixed "solution-" prefix followed by the numeric submission id.
var solutionRowRe = regexp.MustCompile(`^solution-(\d+)$`)

// ParseSubmissionID scrapes the first status table row out of the listing
// markup and returns its numeric submission id. It returns "" when the table
// is absent, empty, or the row id does not match the expected shape; the
// caller treats a missing id as "submitted but unconfirmed", not an error.
func ParseSubmissionID(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	row := doc.Find("#status-table tbody tr").First()
	id, ok := row.Attr("id")
	if !ok {
		return ""
	}

	m := solutionRowRe.FindStringSubmatch(id)
	if m == nil {
		return ""
	}
	return m[1]
}
