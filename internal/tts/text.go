package tts

import (
	"regexp"
	"strings"

	"golang.org/x/text/language"
)

var (
	punctPattern      = regexp.MustCompile(`([.,!?])([^\s\d.,!?])`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// NormalizeText prepares a script for synthesis: sentence punctuation is
// followed by a space so engines pause on it, whitespace runs collapse to one
// space, and the result is trimmed. Decimal numbers are left alone.
func NormalizeText(s string) string {
	s = punctPattern.ReplaceAllString(s, "$1 $2")
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// primarySubtag returns the lowercase language subtag of tag ("en-US" -> "en").
func primarySubtag(tag string) string {
	if tag == "" {
		return ""
	}
	t, err := language.Parse(tag)
	if err != nil {
		return strings.ToLower(strings.SplitN(tag, "-", 2)[0])
	}
	base, _ := t.Base()
	return base.String()
}

// defaultRegions completes a bare language subtag for backends that need a
// full locale.
var defaultRegions = map[string]string{
	"en": "en-US",
	"es": "es-ES",
	"fr": "fr-FR",
	"de": "de-DE",
	"it": "it-IT",
	"pt": "pt-BR",
	"ru": "ru-RU",
	"ja": "ja-JP",
	"ko": "ko-KR",
	"zh": "cmn-CN",
}

// locale returns a region-qualified locale for tag, e.g. "fr" -> "fr-FR".
// Tags that already carry a region are returned in canonical form.
func locale(tag string) string {
	if tag == "" {
		return "en-US"
	}
	t, err := language.Parse(tag)
	if err == nil {
		if region, conf := t.Region(); conf == language.Exact {
			base, _ := t.Base()
			return base.String() + "-" + region.String()
		}
	}
	if l, ok := defaultRegions[primarySubtag(tag)]; ok {
		return l
	}
	return tag
}
