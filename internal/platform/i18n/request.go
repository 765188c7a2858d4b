package i18n

import (
	"net/http"

	"golang.org/x/text/language"
)

// supportedTags lists the display languages with the fallback first; the
// matcher treats the first tag as its default.
func supportedTags(fallback string) ([]language.Tag, []string) {
	codes := []string{fallback}
	for _, code := range []string{Arabic, French, English} {
		if code != fallback {
			codes = append(codes, code)
		}
	}
	tags := make([]language.Tag, len(codes))
	for i, code := range codes {
		tags[i] = language.Make(code)
	}
	return tags, codes
}

// FromRequest picks the display language for r: the "lang" query parameter,
// then the best Accept-Language match by q-weight, then the fallback.
func (c *Catalog) FromRequest(r *http.Request) string {
	if lang := r.URL.Query().Get("lang"); lang != "" {
		return c.Normalize(lang)
	}
	accept := r.Header.Get("Accept-Language")
	if accept == "" {
		return c.fallback
	}
	wanted, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(wanted) == 0 {
		return c.fallback
	}
	_, index, confidence := c.matcher.Match(wanted...)
	if confidence == language.No {
		return c.fallback
	}
	return c.codes[index]
}
