package args

import (
	"strings"

	"golang.org/x/text/language"
)

// localeBase is the prefix of flat per-locale keys for a translated field:
// "titleMap" and "title" both gather "title_en_US", "title_de_DE", ...
func localeBase(name string) string {
	if base := strings.TrimSuffix(name, "Map"); base != "" {
		return base
	}
	return name
}

// validLocale reports whether id names a locale. Both portal style
// ("en_US") and BCP 47 style ("en-US") are accepted.
func validLocale(id string) bool {
	if id == "" {
		return false
	}
	_, err := language.Parse(strings.ReplaceAll(id, "_", "-"))
	return err == nil
}

func coerceToLocaleMap(value any) (map[string]string, bool) {
	out := map[string]string{}
	switch v := value.(type) {
	case map[string]string:
		for k, s := range v {
			if validLocale(k) {
				out[k] = s
			}
		}
		return out, true
	case map[string]any:
		for k, item := range v {
			if !validLocale(k) {
				continue
			}
			if s, ok := coerceToString(item); ok {
				out[k] = s
			}
		}
		return out, true
	}
	return out, false
}

// gatherLocaleMap merges an explicit map stored under name (or its base name)
// with the flat keys "<base>_<locale>" of the given locales. Flat keys win on
// conflict.
func (b Bag) gatherLocaleMap(name string, locales []string) (map[string]string, bool) {
	out := map[string]string{}
	found := false
	base := localeBase(name)
	for _, key := range []string{base, name} {
		if raw, ok := b[key]; ok && raw != nil {
			if m, ok := coerceToLocaleMap(raw); ok {
				for k, s := range m {
					out[k] = s
				}
				found = true
			}
		}
	}
	for _, locale := range locales {
		raw, ok := b[LocaleKey(name, locale)]
		if !ok || raw == nil {
			continue
		}
		if s, ok := coerceToString(raw); ok {
			out[locale] = s
			found = true
		}
	}
	return out, found
}

// LocaleKey returns the flat argument key carrying the text of one locale of
// the translated field name, e.g. LocaleKey("titleMap", "en_US") is
// "title_en_US".
func LocaleKey(name, locale string) string {
	return localeBase(name) + "_" + locale
}
