package formatting

import (
	"embed"
	"fmt"
	"html/template"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/content-publisher/internal/types"
)

//go:embed templates/email.html
var templateFS embed.FS

var emailTemplate = template.Must(template.ParseFS(templateFS, "templates/email.html"))

// Platform character limits and hashtag caps
const (
	facebookLimit      = 63206
	twitterLimit       = 280
	linkedInLimit      = 2200
	adHeadlineLimit    = 60
	adBodyLimit        = 150
	descriptionLimit   = 150
	facebookHashtags   = 5
	linkedInHashtags   = 3
	bulletPrefix       = "• "
	hashtagSeparator   = " "
	paragraphSeparator = "\n\n"
)

// Metadata carries optional per-platform details alongside formatted output
type Metadata struct {
	Title          string       `json:"title,omitempty"`
	Description    string       `json:"description,omitempty"`
	Tags           []string     `json:"tags,omitempty"`
	SEO            *SEOMetadata `json:"seoMetadata,omitempty"`
	Truncated      bool         `json:"truncated,omitempty"`
	CharacterCount int          `json:"characterCount,omitempty"`
}

// FormattedContent is the rendering of one item for one platform
type FormattedContent struct {
	Platform Platform `json:"platform"`
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// Format renders item for platform. It has no side effects.
func Format(item types.ContentItem, platform Platform, opts Options) (FormattedContent, error) {
	switch platform {
	case PlatformBlog:
		return formatBlog(item)
	case PlatformNewsletter:
		return formatNewsletter(item)
	case PlatformFacebook:
		return formatFacebook(item, opts)
	case PlatformTwitter:
		return formatTwitter(item, opts)
	case PlatformLinkedIn:
		return formatLinkedIn(item, opts)
	case PlatformInstagram:
		return formatInstagram(item, opts)
	case PlatformAd:
		return formatAd(item)
	case PlatformShowNotes:
		return formatShowNotes(item)
	case PlatformWebsite:
		return formatWebsite(item)
	case PlatformSEO:
		return formatSEO(item)
	case PlatformEmail:
		return formatEmail(item, opts)
	default:
		return FormattedContent{}, &UnsupportedPlatformError{Platform: string(platform)}
	}
}

// FormatAll formats item for every named platform, stopping at the first failure
func FormatAll(item types.ContentItem, platforms []string, opts Options) ([]FormattedContent, error) {
	out := make([]FormattedContent, 0, len(platforms))
	for _, name := range platforms {
		p, err := ParsePlatform(name)
		if err != nil {
			return nil, err
		}
		formatted, err := Format(item, p, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to format %s for %s: %w", item.ID, p, err)
		}
		out = append(out, formatted)
	}
	return out, nil
}

// RouteContent returns the item's platforms extended by its routing tags.
// Order is stable: declared platforms first, then tag additions.
func RouteContent(item types.ContentItem) []string {
	seen := map[string]bool{}
	var out []string
	add := func(platforms ...Platform) {
		for _, p := range platforms {
			if !seen[string(p)] {
				seen[string(p)] = true
				out = append(out, string(p))
			}
		}
	}
	for _, p := range item.Platforms {
		add(Platform(p))
	}

	for _, tag := range item.Tags {
		switch strings.ToLower(tag) {
		case "founderstory":
			add(PlatformBlog, PlatformLinkedIn)
		case "reputationdefense":
			add(PlatformBlog, PlatformLinkedIn, PlatformSEO)
		case "podcast":
			add(PlatformShowNotes, PlatformWebsite)
		case "newsletter":
			add(PlatformNewsletter, PlatformEmail)
		case "social":
			add(PlatformTwitter, PlatformFacebook, PlatformInstagram)
		}
	}
	return out
}

// RenderPage renders an item body as styled HTML for a published page
func RenderPage(body string) (string, error) {
	html, err := MarkdownToHTML(body)
	if err != nil {
		return "", err
	}
	return AddTailwindClasses(html)
}

func titleOf(item types.ContentItem) string {
	if item.Title == nil {
		return ""
	}
	return *item.Title
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func formatBlog(item types.ContentItem) (FormattedContent, error) {
	html, err := RenderPage(item.Content)
	if err != nil {
		return FormattedContent{}, err
	}
	return FormattedContent{
		Platform: PlatformBlog,
		Content:  html,
		Metadata: Metadata{Title: titleOf(item), Tags: item.Tags},
	}, nil
}

func formatWebsite(item types.ContentItem) (FormattedContent, error) {
	html, err := RenderPage(item.Content)
	if err != nil {
		return FormattedContent{}, err
	}
	return FormattedContent{
		Platform: PlatformWebsite,
		Content:  html,
		Metadata: Metadata{Title: titleOf(item)},
	}, nil
}

func formatNewsletter(item types.ContentItem) (FormattedContent, error) {
	html, err := MarkdownToHTML(item.Content)
	if err != nil {
		return FormattedContent{}, err
	}
	return FormattedContent{
		Platform: PlatformNewsletter,
		Content:  html,
		Metadata: Metadata{
			Title:       titleOf(item),
			Description: TruncateText(StripHTML(html), descriptionLimit, false),
		},
	}, nil
}

func formatFacebook(item types.ContentItem, opts Options) (FormattedContent, error) {
	body, err := TextBody(item.Content)
	if err != nil {
		return FormattedContent{}, err
	}
	formatted := TruncateText(body, facebookLimit, true)
	hashtags := strings.Join(ExtractHashtags(body, opts.hashtagCap(facebookHashtags)), hashtagSeparator)

	return FormattedContent{
		Platform: PlatformFacebook,
		Content:  formatted + paragraphSeparator + hashtags + CreateCTA(opts),
		Metadata: Metadata{CharacterCount: runeLen(formatted)},
	}, nil
}

func formatTwitter(item types.ContentItem, opts Options) (FormattedContent, error) {
	body, err := TextBody(item.Content)
	if err != nil {
		return FormattedContent{}, err
	}
	cta := CreateCTA(opts)
	maxLength := twitterLimit - runeLen(cta)
	formatted := TruncateText(body, maxLength, true)

	return FormattedContent{
		Platform: PlatformTwitter,
		Content:  formatted + cta,
		Metadata: Metadata{
			Truncated:      runeLen(body) > maxLength,
			CharacterCount: runeLen(formatted),
		},
	}, nil
}

func formatLinkedIn(item types.ContentItem, opts Options) (FormattedContent, error) {
	body, err := TextBody(item.Content)
	if err != nil {
		return FormattedContent{}, err
	}
	formatted := TruncateText(body, linkedInLimit, true)
	tags := ExtractHashtags(body, opts.hashtagCap(linkedInHashtags))

	return FormattedContent{
		Platform: PlatformLinkedIn,
		Content:  formatted + paragraphSeparator + strings.Join(tags, hashtagSeparator) + CreateCTA(opts),
		Metadata: Metadata{CharacterCount: runeLen(formatted), Tags: tags},
	}, nil
}

func formatInstagram(item types.ContentItem, opts Options) (FormattedContent, error) {
	body, err := TextBody(item.Content)
	if err != nil {
		return FormattedContent{}, err
	}
	formatted := AddLineBreaks(body)
	hashtags := strings.Join(ExtractHashtags(body, opts.MaxHashtags), hashtagSeparator)

	return FormattedContent{
		Platform: PlatformInstagram,
		Content:  formatted + paragraphSeparator + hashtags,
		Metadata: Metadata{CharacterCount: runeLen(formatted)},
	}, nil
}

func formatAd(item types.ContentItem) (FormattedContent, error) {
	body, err := TextBody(item.Content)
	if err != nil {
		return FormattedContent{}, err
	}
	lines := strings.Split(body, "\n")
	headline := TruncateText(lines[0], adHeadlineLimit, false)
	copyText := TruncateText(strings.Join(lines[1:], " "), adBodyLimit, false)
	cta := lines[len(lines)-1]

	return FormattedContent{
		Platform: PlatformAd,
		Content:  headline + paragraphSeparator + copyText + paragraphSeparator + cta,
		Metadata: Metadata{Title: headline},
	}, nil
}

func formatShowNotes(item types.ContentItem) (FormattedContent, error) {
	body, err := TextBody(item.Content)
	if err != nil {
		return FormattedContent{}, err
	}
	var bullets []string
	for _, line := range strings.Split(body, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			bullets = append(bullets, bulletPrefix+line)
		}
	}
	return FormattedContent{
		Platform: PlatformShowNotes,
		Content:  strings.Join(bullets, "\n"),
	}, nil
}

func formatSEO(item types.ContentItem) (FormattedContent, error) {
	html, err := MarkdownToHTML(item.Content)
	if err != nil {
		return FormattedContent{}, err
	}
	seo := GenerateSEOMetadata(StripHTML(html), titleOf(item))

	return FormattedContent{
		Platform: PlatformSEO,
		Content:  html,
		Metadata: Metadata{Title: titleOf(item), SEO: &seo},
	}, nil
}

func formatEmail(item types.ContentItem, opts Options) (FormattedContent, error) {
	html, err := MarkdownToHTML(item.Content)
	if err != nil {
		return FormattedContent{}, err
	}

	data := struct {
		Body    template.HTML
		CTAText string
		CTAURL  string
	}{
		// goldmark output with raw HTML disabled
		Body: template.HTML(html), //nolint:gosec
	}
	if opts.AddCTA {
		data.CTAText = strings.TrimSpace(opts.CTAText)
		data.CTAURL = opts.CTAURL
	}

	var sb strings.Builder
	if err := emailTemplate.Execute(&sb, data); err != nil {
		return FormattedContent{}, fmt.Errorf("failed to render email template: %w", err)
	}

	return FormattedContent{
		Platform: PlatformEmail,
		Content:  sb.String(),
		Metadata: Metadata{
			Title:       titleOf(item),
			Description: TruncateText(StripHTML(html), descriptionLimit, false),
		},
	}, nil
}

// Dispatcher binds a set of options to the package formatters
type Dispatcher struct {
	Options Options
}

// NewDispatcher returns a Dispatcher using opts
func NewDispatcher(opts Options) *Dispatcher {
	return &Dispatcher{Options: opts}
}

// FormatAll formats item for each named platform
func (d *Dispatcher) FormatAll(item types.ContentItem, platforms []string) ([]FormattedContent, error) {
	return FormatAll(item, platforms, d.Options)
}

// RenderPage renders the item body as a styled HTML fragment
func (d *Dispatcher) RenderPage(item types.ContentItem) (string, error) {
	return RenderPage(item.Content)
}
