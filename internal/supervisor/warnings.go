package supervisor

import (
	"regexp"
	"strings"
)

// Warning is a non-fatal encoder diagnostic.
type Warning struct {
	Code string `json:"code"`
	Line string `json:"line"`
	Hint string `json:"hint,omitempty"`
}

// WarningRule matches one family of non-fatal stderr lines.
type WarningRule struct {
	Code    string
	Pattern *regexp.Regexp
	Hint    string
}

// DefaultWarningRules covers subtitle rendering noise that does not affect
// the output container.
var DefaultWarningRules = []WarningRule{
	{
		Code:    "libass_wrap_unicode",
		Pattern: regexp.MustCompile(`ASS_FEATURE_WRAP_UNICODE`),
		Hint:    "the installed libass is outdated; subtitles still render but line wrapping may differ",
	},
	{
		Code:    "font_glyph_missing",
		Pattern: regexp.MustCompile(`(?i)glyph 0x[0-9a-f]+ not found`),
		Hint:    "a subtitle font lacks some characters",
	},
	{
		Code:    "font_select",
		Pattern: regexp.MustCompile(`(?i)fontselect|font provider|using default font family`),
		Hint:    "subtitle fonts were substituted",
	},
	{
		Code:    "libass",
		Pattern: regexp.MustCompile(`(?i)^\[(?:libass|Parsed_subtitles)[^\]]*\]`),
	},
}

// MatchWarning returns the first rule matching line.
func MatchWarning(rules []WarningRule, line string) (Warning, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Warning{}, false
	}
	for _, rule := range rules {
		if rule.Pattern.MatchString(line) {
			return Warning{Code: rule.Code, Line: line, Hint: rule.Hint}, true
		}
	}
	return Warning{}, false
}
