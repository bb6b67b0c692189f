// Package sanitize cleans non-code snippet content before it is written
// into a page.
package sanitize

import (
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/roach88/snipd/internal/ir"
)

var (
	styleWrapper  = regexp.MustCompile(`(?is)<style[^>]*>(.*?)</style>`)
	scriptWrapper = regexp.MustCompile(`(?is)<script[^>]*>(.*?)</script>`)
	styleClose    = regexp.MustCompile(`(?i)</(style)`)
	scriptClose   = regexp.MustCompile(`(?i)</(script)`)

	cssDangerous = []*regexp.Regexp{
		regexp.MustCompile(`(?i)expression\s*\(`),
		regexp.MustCompile(`(?i)javascript\s*:`),
		regexp.MustCompile(`(?i)data\s*:`),
		regexp.MustCompile(`(?i)vbscript\s*:`),
		regexp.MustCompile(`(?i)@import[^;]*;`),
		regexp.MustCompile(`(?i)url\s*\(\s*["']?\s*javascript:`),
	}

	jsDangerous = []*regexp.Regexp{
		regexp.MustCompile(`(?i)javascript\s*:`),
		regexp.MustCompile(`(?i)data\s*:`),
		regexp.MustCompile(`(?i)vbscript\s*:`),
		regexp.MustCompile(`(?i)on\w+\s*=`),
	}

	htmlDangerous = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
		regexp.MustCompile(`(?is)<iframe[^>]*>.*?</iframe>`),
		regexp.MustCompile(`(?is)<object[^>]*>.*?</object>`),
		regexp.MustCompile(`(?is)<embed[^>]*>`),
		regexp.MustCompile(`(?i)on\w+\s*=\s*["'][^"']*["']`),
	}
)

var (
	policyOnce sync.Once
	markup     *bluemonday.Policy
	strict     *bluemonday.Policy
)

func policies() (*bluemonday.Policy, *bluemonday.Policy) {
	policyOnce.Do(func() {
		markup = bluemonday.UGCPolicy()
		markup.AllowAttrs("rel", "href", "type", "media").OnElements("link")
		markup.AllowAttrs("name", "content", "property").OnElements("meta")
		markup.AllowAttrs("class", "id").Globally()

		strict = bluemonday.StrictPolicy()
	})
	return markup, strict
}

// Content sanitizes text for emission as the given kind. Code is returned
// unchanged; it is never emitted.
func Content(kind ir.Kind, text string) string {
	switch kind {
	case ir.KindCode:
		return text
	case ir.KindCSS:
		return CSS(text)
	case ir.KindJS:
		return JS(text)
	default:
		return HTML(text)
	}
}

// CSS strips wrapping style tags, script vectors and any markup.
func CSS(css string) string {
	css = strings.ReplaceAll(css, "\x00", "")
	css = styleWrapper.ReplaceAllString(css, "$1")
	for _, re := range cssDangerous {
		css = re.ReplaceAllString(css, "")
	}
	_, strict := policies()
	css = html.UnescapeString(strict.Sanitize(css))
	// Decoded entities may spell a closing tag.
	css = styleClose.ReplaceAllString(css, `<\/$1`)
	return clean(css)
}

// JS strips wrapping script tags and script vectors that could escape the
// surrounding script element.
func JS(js string) string {
	js = strings.ReplaceAll(js, "\x00", "")
	js = scriptWrapper.ReplaceAllString(js, "$1")
	for _, re := range jsDangerous {
		js = re.ReplaceAllString(js, "")
	}
	js = html.UnescapeString(js)
	js = scriptClose.ReplaceAllString(js, `<\/$1`)
	return clean(js)
}

// HTML removes active content and filters the rest through a user content
// policy. Entities are left encoded.
func HTML(markupText string) string {
	markupText = strings.ReplaceAll(markupText, "\x00", "")
	for _, re := range htmlDangerous {
		markupText = re.ReplaceAllString(markupText, "")
	}
	markup, _ := policies()
	return clean(markup.Sanitize(markupText))
}

func clean(s string) string {
	s = strings.ToValidUTF8(s, "")
	return strings.TrimSpace(s)
}
