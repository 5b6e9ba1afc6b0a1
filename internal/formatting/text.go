package formatting

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

	hashtagPattern  = regexp.MustCompile(`#[\w-]+`)
	sentenceEnd     = regexp.MustCompile(`([.!?])\s+`)
	htmlBodyPattern = regexp.MustCompile(`(?s)^\s*<[a-zA-Z][^>]*>.*</[a-zA-Z]+>\s*$`)
)

// tailwindClasses is applied in order; selectors match elements, not prefixes
var tailwindClasses = []struct {
	selector string
	classes  string
}{
	{"h1", "text-4xl font-bold mb-6"},
	{"h2", "text-3xl font-bold mb-4"},
	{"h3", "text-2xl font-bold mb-3"},
	{"p", "mb-4"},
	{"ul", "list-disc ml-6 mb-4"},
	{"ol", "list-decimal ml-6 mb-4"},
	{"li", "mb-2"},
	{"a", "text-blue-600 hover:text-blue-800 underline"},
}

// MarkdownToHTML renders GitHub-flavoured markdown to an HTML fragment
func MarkdownToHTML(src string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return buf.String(), nil
}

// AddTailwindClasses decorates an HTML fragment with the site's typography classes
func AddTailwindClasses(fragment string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	for _, tc := range tailwindClasses {
		doc.Find(tc.selector).AddClass(strings.Fields(tc.classes)...)
	}
	html, err := doc.Find("body").Html()
	if err != nil {
		return "", fmt.Errorf("failed to serialize HTML: %w", err)
	}
	return html, nil
}

// StripHTML returns the text content of an HTML fragment
func StripHTML(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	return strings.TrimSpace(doc.Text())
}

// PlainText renders markdown and returns its visible text
func PlainText(src string) (string, error) {
	html, err := MarkdownToHTML(src)
	if err != nil {
		return "", err
	}
	return StripHTML(html), nil
}

// TextBody returns the body as markdown text. Bodies stored as HTML are
// converted so text-only platforms never see markup.
func TextBody(body string) (string, error) {
	if !htmlBodyPattern.MatchString(body) {
		return body, nil
	}
	converter := md.NewConverter("", true, nil)
	text, err := converter.ConvertString(body)
	if err != nil {
		return "", fmt.Errorf("converting HTML to markdown: %w", err)
	}
	return text, nil
}

// TruncateText shortens text to at most maxLength runes, optionally ending in "..."
func TruncateText(text string, maxLength int, addEllipsis bool) string {
	if utf8.RuneCountInString(text) <= maxLength {
		return text
	}
	keep := maxLength
	if addEllipsis {
		keep -= 3
	}
	if keep < 0 {
		keep = 0
	}
	truncated := strings.TrimSpace(string([]rune(text)[:keep]))
	if addEllipsis {
		return truncated + "..."
	}
	return truncated
}

// ExtractHashtags returns hashtags in order of appearance. limit <= 0 means all.
func ExtractHashtags(content string, limit int) []string {
	n := -1
	if limit > 0 {
		n = limit
	}
	return hashtagPattern.FindAllString(content, n)
}

// AddLineBreaks puts a blank line after each sentence
func AddLineBreaks(text string) string {
	return sentenceEnd.ReplaceAllString(text, "$1\n\n")
}

// CreateCTA returns the trailing call-to-action block, or "" when disabled
func CreateCTA(opts Options) string {
	text := strings.TrimSpace(opts.CTAText)
	if !opts.AddCTA || text == "" {
		return ""
	}
	if opts.CTAURL != "" {
		return "\n\n" + text + "\n" + opts.CTAURL
	}
	return "\n\n" + text
}

// SEOMetadata holds search metadata derived from a body
type SEOMetadata struct {
	TitleTag        string   `json:"titleTag"`
	MetaDescription string   `json:"metaDescription"`
	Keywords        []string `json:"keywords"`
}

// GenerateSEOMetadata derives a title tag, a 160-rune description and the ten
// most frequent words longer than three letters. Ties keep first appearance.
func GenerateSEOMetadata(plainText, title string) SEOMetadata {
	words := strings.FieldsFunc(strings.ToLower(plainText), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})

	freq := map[string]int{}
	var order []string
	for _, w := range words {
		if utf8.RuneCountInString(w) <= 3 {
			continue
		}
		if freq[w] == 0 {
			order = append(order, w)
		}
		freq[w]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return freq[order[i]] > freq[order[j]]
	})
	if len(order) > 10 {
		order = order[:10]
	}

	titleTag := title
	if titleTag == "" {
		titleTag = TruncateText(plainText, 60, false)
	}
	return SEOMetadata{
		TitleTag:        titleTag,
		MetaDescription: TruncateText(plainText, 160, false),
		Keywords:        order,
	}
}
