// hours/html.go
package hours

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	blankLines = regexp.MustCompile(`\n{3,}`)
	breakTags  = regexp.MustCompile(`(?i)<br\s*/?>|</p>|</li>|</tr>|</div>`)
)

// TextFromHTML converts an HTML fragment to plain text, keeping line breaks
// from <br>, paragraph, list, row and div boundaries so each line can be
// read as its own statement.
func TextFromHTML(fragment string) string {
	text := breakTags.ReplaceAllString(fragment, "\n")

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return strings.TrimSpace(text)
	}

	plain := doc.Text()
	plain = strings.ReplaceAll(plain, "\r\n", "\n")
	plain = strings.ReplaceAll(plain, "\r", "\n")

	lines := strings.Split(plain, "\n")
	for i, l := range lines {
		lines[i] = strings.Join(strings.Fields(l), " ")
	}
	plain = blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(plain)
}

// TableFromHTML reads a trading-hours table from sel: for each row the first
// cell is the day label and the last cell the hours. Definition lists
// (<dt>label</dt><dd>hours</dd>) are read the same way when no rows exist.
func TableFromHTML(sel *goquery.Selection) Table {
	var t Table
	sel.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("th, td")
		if cells.Length() < 2 {
			return
		}
		label := cellText(cells.First())
		hours := cellText(cells.Last())
		if label == "" && hours == "" {
			return
		}
		t = append(t, Row{Label: label, Hours: hours})
	})
	if len(t) > 0 {
		return t
	}

	sel.Find("dt").Each(func(_ int, dt *goquery.Selection) {
		dd := dt.NextFiltered("dd")
		if dd.Length() == 0 {
			return
		}
		t = append(t, Row{Label: cellText(dt), Hours: cellText(dd)})
	})
	return t
}

func cellText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
