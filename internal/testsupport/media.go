package testsupport

import (
	"context"
	"encoding/json"
	"strconv"

	"clipper/internal/media/ffprobe"
)

// FFmpegSuccessScript reports one progress line and writes a small file to
// its last argument, mimicking a successful encode.
const FFmpegSuccessScript = `#!/bin/sh
for last; do :; done
echo "frame=   10 fps=0.0 q=28.0 size=       0kB time=00:00:01.00 bitrate=N/A speed=2.0x" >&2
printf 'clip' > "$last"
exit 0
`

// FFmpegFailureScript prints an input error and exits non-zero.
const FFmpegFailureScript = `#!/bin/sh
echo "input.mkv: No such file or directory" >&2
exit 1
`

// FFmpegSlowScript runs until it is signalled.
const FFmpegSlowScript = `#!/bin/sh
for last; do :; done
printf 'partial' > "$last"
echo "time=00:00:00.50 speed=1.0x" >&2
exec sleep 30
`

// ProbeResult builds an ffprobe result with one video stream plus the given
// audio and subtitle codecs.
func ProbeResult(durationSeconds float64, width, height int, audio, subtitles []string) ffprobe.Result {
	result := ffprobe.Result{
		Format: ffprobe.Format{
			Duration:   strconv.FormatFloat(durationSeconds, 'f', -1, 64),
			FormatName: "matroska,webm",
		},
		Streams: []ffprobe.Stream{{
			Index:        0,
			CodecName:    "h264",
			CodecType:    "video",
			Width:        width,
			Height:       height,
			RFrameRate:   "30/1",
			AvgFrameRate: "30/1",
		}},
	}
	next := 1
	for _, codec := range audio {
		result.Streams = append(result.Streams, ffprobe.Stream{
			Index:     next,
			CodecName: codec,
			CodecType: "audio",
			Channels:  2,
			Tags:      map[string]string{"language": "eng"},
		})
		next++
	}
	for _, codec := range subtitles {
		result.Streams = append(result.Streams, ffprobe.Stream{
			Index:     next,
			CodecName: codec,
			CodecType: "subtitle",
			Tags:      map[string]string{"language": "eng"},
		})
		next++
	}
	result.Format.NBStreams = len(result.Streams)
	return result
}

// StaticProbe returns a ProbeFunc that always yields result.
func StaticProbe(result ffprobe.Result) ffprobe.ProbeFunc {
	return func(context.Context, string, string) (ffprobe.Result, error) {
		return result, nil
	}
}

// FFprobeScript returns a shell script that prints result as ffprobe JSON
// regardless of its arguments.
func FFprobeScript(result ffprobe.Result) string {
	data, err := json.Marshal(result)
	if err != nil {
		panic(err)
	}
	return "#!/bin/sh\ncat <<'JSON'\n" + string(data) + "\nJSON\n"
}
