package outcome

import (
	"regexp"
	"strings"
)

// Rule maps a recognisable diagnostic line to a failure kind.
type Rule struct {
	Kind    Kind
	Pattern *regexp.Regexp
	// Detail replaces the matched line in the outcome when set.
	Detail string
	Hint   string
	// Fallback rules match generic trailers such as "Conversion failed!" and
	// only apply when no other rule matches any line.
	Fallback bool
}

// noisePattern matches diagnostics ffmpeg prints on healthy runs too; they
// never decide a failure kind.
var noisePattern = regexp.MustCompile(`(?i)^fontconfig (?:error|warning)`)

// DefaultRules classify log lines newest first; for each line the first
// matching rule wins. Callers extend classification with NewReporter.
var DefaultRules = []Rule{
	{
		Kind:    KindMissingTool,
		Pattern: regexp.MustCompile(`(?i)executable file not found|ffmpeg: (?:command )?not found`),
	},
	{
		Kind:    KindPermissionDenied,
		Pattern: regexp.MustCompile(`(?i)permission denied|operation not permitted|read-only file system`),
	},
	{
		Kind:    KindInvalidInput,
		Pattern: regexp.MustCompile(`(?i)no such file or directory|no such file`),
	},
	{
		Kind: KindInvalidInput,
		Pattern: regexp.MustCompile(`(?i)invalid data found when processing input|` +
			`moov atom not found|could not find codec parameters|` +
			`does not contain any stream|stream specifier .* matches no streams|` +
			`unknown format`),
	},
	{
		Kind:    KindEncoderError,
		Pattern: regexp.MustCompile(`ASS_FEATURE_WRAP_UNICODE`),
		Detail:  "subtitle rendering failed: the installed libass does not support ASS_FEATURE_WRAP_UNICODE",
		Hint:    "update ffmpeg/libass, or clip without burned-in subtitles or into mkv",
	},
	{
		Kind: KindEncoderError,
		Pattern: regexp.MustCompile(`(?i)unknown encoder|error while opening encoder|` +
			`incorrect codec parameters|no space left on device`),
	},
	{
		Kind: KindEncoderError,
		Pattern: regexp.MustCompile(`(?i)error initializing (?:output stream|filter)|conversion failed|` +
			`error (?:while )?(?:encoding|filtering|decoding)`),
		Fallback: true,
	},
}

var relevantPattern = regexp.MustCompile(`(?i)error|failed|invalid|not found|no such file|denied`)

// relevantLines picks up to three keyword lines from the last ten log lines,
// falling back to the last five lines when none match.
func relevantLines(log []string) []string {
	var nonEmpty []string
	for _, line := range log {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			nonEmpty = append(nonEmpty, trimmed)
		}
	}
	tail := nonEmpty[max(0, len(nonEmpty)-10):]

	var picked []string
	for _, line := range tail {
		if relevantPattern.MatchString(line) {
			picked = append(picked, line)
		}
	}
	if len(picked) > 0 {
		return picked[max(0, len(picked)-3):]
	}
	return nonEmpty[max(0, len(nonEmpty)-5):]
}
