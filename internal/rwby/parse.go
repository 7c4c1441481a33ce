package rwby

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Selectors and the sale-permission attribute observed on pass.rw.by.
// If the site redesigns, this block is the whole blast radius.
const (
	selErrorRegion = "div.error_content, div.error_title"
	selDepartTime  = "div.sch-table__time.train-from-time"
	selScheduleRow = "div.sch-table__row"

	attrSellingAllowed = "data-ticket_selling_allowed"
)

// Parse classifies one fetched schedule page against a target departure
// time ("HH:MM", exact match on the rendered cell text).
//
// It is a pure function of its inputs: same body and target time always
// produce the same Outcome. Parse never fails hard; anything it cannot
// make sense of is KindTransient so the caller retries instead of
// aborting the whole search.
func Parse(body []byte, targetTime string) Outcome {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Outcome{Kind: KindTransient}
	}

	// 1. The site's own error region wins over everything: it means the
	// route/station query itself was rejected.
	if errs := doc.Find(selErrorRegion); errs.Length() > 0 {
		parts := make([]string, 0, errs.Length())
		errs.Each(func(_ int, s *goquery.Selection) {
			if t := strings.TrimSpace(s.Text()); t != "" {
				parts = append(parts, t)
			}
		})
		return Outcome{Kind: KindRouteError, ErrorText: strings.Join(parts, " | ")}
	}

	// 2. Locate the departure-time cell by its rendered text.
	timeCell := findTimeCell(doc, targetTime)
	if timeCell == nil {
		return Outcome{Kind: KindTrainNotFound}
	}

	// 3. Walk up to the enclosing schedule row. Closest() is the "nearest
	// ancestor matching a row marker" query: it tolerates the site adding
	// or removing wrapper elements between the cell and the row, which a
	// fixed-depth parent chain would not.
	row := timeCell.Closest(selScheduleRow)
	if row.Length() == 0 {
		// A time cell outside any row is structure we don't understand.
		return Outcome{Kind: KindTransient}
	}

	allowed, _ := row.Attr(attrSellingAllowed)
	if strings.EqualFold(strings.TrimSpace(allowed), "true") {
		return Outcome{Kind: KindAvailable}
	}
	return Outcome{Kind: KindUnavailable}
}

func findTimeCell(doc *goquery.Document, targetTime string) *goquery.Selection {
	want := strings.TrimSpace(targetTime)
	var found *goquery.Selection
	doc.Find(selDepartTime).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.TrimSpace(s.Text()) == want {
			found = s
			return false
		}
		return true
	})
	return found
}
