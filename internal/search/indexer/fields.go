package indexer

import (
	"net/url"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/ternarybob/quaero/internal/docstore"
)

const (
	titleMaxBytes   = 1024
	bodyMaxBytes    = 64 * 1024
	excerptMaxBytes = 512
)

// extractedFields holds the per-document field values before they're run
// through each field's analyzer for indexing.
type extractedFields struct {
	URL         string
	URLPath     string
	Title       string
	HeadingsH1  string
	HeadingsH2  string
	HeadingsRest string
	Body        string
	Path        string
	Tags        []string
	Language    string
	Excerpt     string
}

var md = goldmark.New()

// extractFields parses markdown content and derives the schema fields per
// spec §4.5: title is the first "# " heading or the metadata title;
// headings are bucketed into h1/h2/h3+; excerpt is the first non-empty
// prose paragraph.
func extractFields(rawURL, mdRelPath, content string, meta *docstore.Metadata) extractedFields {
	doc := md.Parser().Parse(text.NewReader([]byte(content)))

	var h1, h2, rest []string
	var firstHeadingText string
	var firstParagraph string

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			headingText := nodeText(node, []byte(content))
			if headingText == "" {
				return ast.WalkContinue, nil
			}
			if firstHeadingText == "" && node.Level == 1 {
				firstHeadingText = headingText
			}
			switch node.Level {
			case 1:
				h1 = append(h1, headingText)
			case 2:
				h2 = append(h2, headingText)
			default:
				rest = append(rest, headingText)
			}
		case *ast.Paragraph:
			if firstParagraph == "" {
				if t := nodeText(node, []byte(content)); strings.TrimSpace(t) != "" {
					firstParagraph = t
				}
			}
		}
		return ast.WalkContinue, nil
	})

	title := firstHeadingText
	if meta != nil && meta.Title != "" {
		title = meta.Title
	}
	if title == "" {
		title = mdRelPath
	}
	title = truncateBytes(title, titleMaxBytes)

	language := "en"
	if meta != nil && meta.Language != "" {
		language = meta.Language
	}

	var tags []string
	if meta != nil {
		tags = meta.Tags
	}

	excerpt := truncateBytes(firstParagraph, excerptMaxBytes)

	body := truncateBytes(content, bodyMaxBytes)

	return extractedFields{
		URL:          rawURL,
		URLPath:      urlPathOf(rawURL),
		Title:        title,
		HeadingsH1:   strings.Join(h1, " "),
		HeadingsH2:   strings.Join(h2, " "),
		HeadingsRest: strings.Join(rest, " "),
		Body:         body,
		Path:         mdRelPath,
		Tags:         tags,
		Language:     language,
		Excerpt:      excerpt,
	}
}

func nodeText(n ast.Node, source []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			b.Write(t.Segment.Value(source))
			continue
		}
		b.WriteString(nodeText(c, source))
	}
	return strings.TrimSpace(b.String())
}

func urlPathOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Path
}

func truncateBytes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
