package i18n

import (
	"fmt"
	"time"
)

var monthNames = map[string][12]string{
	Arabic:  {"يناير", "فبراير", "مارس", "أبريل", "مايو", "يونيو", "يوليو", "أغسطس", "سبتمبر", "أكتوبر", "نوفمبر", "ديسمبر"},
	French:  {"janvier", "février", "mars", "avril", "mai", "juin", "juillet", "août", "septembre", "octobre", "novembre", "décembre"},
	English: {"January", "February", "March", "April", "May", "June", "July", "August", "September", "October", "November", "December"},
}

// FormatDate renders t as a long date: "17 octobre 2026", "October 17, 2026"
// or "17 أكتوبر 2026".
func (c *Catalog) FormatDate(t time.Time, lang string) string {
	lang = c.Normalize(lang)
	month := monthNames[lang][t.Month()-1]
	if lang == English {
		return fmt.Sprintf("%s %d, %d", month, t.Day(), t.Year())
	}
	return fmt.Sprintf("%d %s %d", t.Day(), month, t.Year())
}

// FormatDateTime renders t as a numeric timestamp in the order customary
// for lang.
func (c *Catalog) FormatDateTime(t time.Time, lang string) string {
	if c.Normalize(lang) == English {
		return t.Format("01/02/2006 15:04")
	}
	return t.Format("02/01/2006 15:04")
}

// MonthShort returns a short month label such as "oct." or "Oct".
func (c *Catalog) MonthShort(m time.Month, lang string) string {
	lang = c.Normalize(lang)
	name := []rune(monthNames[lang][m-1])
	if lang == Arabic || len(name) <= 4 {
		return string(name)
	}
	if lang == French {
		return string(name[:4]) + "."
	}
	return string(name[:3])
}
