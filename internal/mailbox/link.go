package mailbox

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractVerificationLink returns the first anchor href in the HTML body that
// points at the verification endpoint. The HTML parser already resolves
// entities, so hrefs written as ...token=abc&amp;y=1 come out with a plain &.
func ExtractVerificationLink(htmlBody string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		return "", false
	}

	var link string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if strings.Contains(href, "verify?token=") {
			link = href
			return false
		}
		return true
	})
	if link == "" {
		return "", false
	}
	// Bodies that double-encode entities still leave &amp; in the href.
	return strings.ReplaceAll(link, "&amp;", "&"), true
}
