package arxiv

import (
	"encoding/xml"
	"regexp"
	"strings"
	"time"

	"github.com/custodia-labs/papercache/internal/core/domain"
)

// feed is the subset of the Atom response the client reads.
type feed struct {
	XMLName      xml.Name `xml:"http://www.w3.org/2005/Atom feed"`
	TotalResults int      `xml:"http://a9.com/-/spec/opensearch/1.1/ totalResults"`
	Entries      []entry  `xml:"http://www.w3.org/2005/Atom entry"`
}

type entry struct {
	ID         string     `xml:"http://www.w3.org/2005/Atom id"`
	Title      string     `xml:"http://www.w3.org/2005/Atom title"`
	Summary    string     `xml:"http://www.w3.org/2005/Atom summary"`
	Published  string     `xml:"http://www.w3.org/2005/Atom published"`
	Updated    string     `xml:"http://www.w3.org/2005/Atom updated"`
	Authors    []author   `xml:"http://www.w3.org/2005/Atom author"`
	Links      []link     `xml:"http://www.w3.org/2005/Atom link"`
	Categories []category `xml:"http://www.w3.org/2005/Atom category"`
}

type author struct {
	Name string `xml:"http://www.w3.org/2005/Atom name"`
}

type link struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Title string `xml:"title,attr"`
}

type category struct {
	Term string `xml:"term,attr"`
}

// versionSuffix matches the trailing version of an arXiv identifier.
var versionSuffix = regexp.MustCompile(`v\d+$`)

// PaperID extracts the version-less identifier from an entry ID such as
// "http://arxiv.org/abs/2401.01234v2".
func PaperID(entryID string) string {
	id := strings.TrimSpace(entryID)
	if i := strings.Index(id, "/abs/"); i >= 0 {
		id = id[i+len("/abs/"):]
	}
	return versionSuffix.ReplaceAllString(id, "")
}

func (e *entry) toPaper() (domain.Paper, bool) {
	id := PaperID(e.ID)
	if id == "" {
		return domain.Paper{}, false
	}

	paper := domain.Paper{
		ID:          id,
		Title:       collapseSpace(e.Title),
		Abstract:    collapseSpace(e.Summary),
		PublishedAt: parseTime(e.Published),
		UpdatedAt:   parseTime(e.Updated),
		Links:       make(map[string]string),
	}

	for _, a := range e.Authors {
		if name := collapseSpace(a.Name); name != "" {
			paper.Authors = append(paper.Authors, name)
		}
	}

	seen := make(map[string]struct{}, len(e.Categories))
	for _, c := range e.Categories {
		term := strings.TrimSpace(c.Term)
		if term == "" {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		paper.Categories = append(paper.Categories, term)
	}

	for _, l := range e.Links {
		switch {
		case l.Title == "pdf":
			paper.Links["pdf"] = l.Href
		case l.Title == "doi":
			paper.Links["doi"] = l.Href
		case l.Rel == "alternate":
			paper.Links["abs"] = l.Href
		}
	}

	return paper, true
}

// collapseSpace folds the line breaks arXiv inserts into titles and abstracts.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
