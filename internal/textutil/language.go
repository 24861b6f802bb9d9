package textutil

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// LanguageName renders an ISO 639 stream tag ("eng", "jpn", "pt-BR") as an
// English display name. Undetermined or unparsable tags yield "Unknown".
func LanguageName(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" || strings.EqualFold(tag, "und") {
		return "Unknown"
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		return tag
	}
	if name := display.English.Tags().Name(parsed); name != "" {
		return name
	}
	return tag
}
