// Package models defines the core domain models for conversational workflow execution.
package models

// Locale identifies one of the supported conversation languages.
type Locale string

const (
	LocaleFrench  Locale = "fr"
	LocaleEnglish Locale = "en"
	LocaleHebrew  Locale = "he"
)

// DefaultLocale is used whenever a text has no translation for the requested locale.
const DefaultLocale = LocaleFrench

// SupportedLocales lists every locale content authors must provide.
var SupportedLocales = []Locale{LocaleFrench, LocaleEnglish, LocaleHebrew}

// MultilingualText maps a locale to its translated text.
type MultilingualText map[Locale]string

// Resolve returns the text for the given locale, falling back to the default
// locale, then English, then any non-empty translation. Returns "" only when
// the text is empty in every locale.
func (t MultilingualText) Resolve(locale Locale) string {
	if t == nil {
		return ""
	}

	if s, ok := t[locale]; ok && s != "" {
		return s
	}

	if s, ok := t[DefaultLocale]; ok && s != "" {
		return s
	}

	if s, ok := t[LocaleEnglish]; ok && s != "" {
		return s
	}

	for _, s := range t {
		if s != "" {
			return s
		}
	}

	return ""
}

// IsEmpty reports whether no locale has a translation.
func (t MultilingualText) IsEmpty() bool {
	for _, s := range t {
		if s != "" {
			return false
		}
	}

	return true
}
