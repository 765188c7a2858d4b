// Package i18n holds the fixed label and message tables used by documents,
// exports, emails and dashboard notifications. Lookups fall back from the
// requested language to the catalog default and finally to the raw code.
package i18n

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Supported languages.
const (
	Arabic  = "ar"
	French  = "fr"
	English = "en"
)

// Label categories.
const (
	CategoryForm      = "form"
	CategoryFrequency = "frequency"
	CategoryAction    = "action"
	CategoryEntity    = "entity"
	CategoryRole      = "role"
	CategoryText      = "text"
)

type table map[string]map[string]string

// Catalog resolves (category, code, language) to a display string.
type Catalog struct {
	fallback string
	tables   map[string]table
	matcher  language.Matcher
	codes    []string
}

// New returns a catalog with the built-in tables. An unsupported fallback
// is replaced by French.
func New(fallback string) *Catalog {
	if !Supported(fallback) {
		fallback = French
	}
	tags, codes := supportedTags(fallback)
	return &Catalog{
		fallback: fallback,
		matcher:  language.NewMatcher(tags),
		codes:    codes,
		tables: map[string]table{
			CategoryForm:      forms,
			CategoryFrequency: frequencies,
			CategoryAction:    actions,
			CategoryEntity:    entities,
			CategoryRole:      roles,
			CategoryText:      texts,
		},
	}
}

// Fallback returns the catalog's default language.
func (c *Catalog) Fallback() string { return c.fallback }

// Normalize maps a language tag such as "fr-FR" or "AR" to a supported
// code, or the fallback.
func (c *Catalog) Normalize(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	if Supported(lang) {
		return lang
	}
	return c.fallback
}

// Label returns the label for code in category. An empty code yields "".
func (c *Catalog) Label(category, code, lang string) string {
	if code == "" {
		return ""
	}
	entry, ok := c.tables[category][code]
	if !ok {
		return code
	}
	if s, ok := entry[lang]; ok {
		return s
	}
	if s, ok := entry[c.fallback]; ok {
		return s
	}
	return code
}

// Text formats the message key with args.
func (c *Catalog) Text(key, lang string, args ...interface{}) string {
	msg := c.Label(CategoryText, key, lang)
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}

// Supported reports whether lang is one of ar, fr, en.
func Supported(lang string) bool {
	return lang == Arabic || lang == French || lang == English
}

// Dir returns the text direction for lang.
func Dir(lang string) string {
	if lang == Arabic {
		return "rtl"
	}
	return "ltr"
}
