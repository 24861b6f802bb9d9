package verify

import (
	"context"
	"fmt"

	vidio "github.com/AlexEidt/Vidio"

	"clipper/internal/fileutil"
	"clipper/internal/services"
)

// Info describes a decoded output file.
type Info struct {
	Width    int
	Height   int
	FPS      float64
	Duration float64
	Codec    string
	// FirstFrame reports whether a frame was decoded.
	FirstFrame bool
}

// OpenFunc inspects path. The default uses Vidio, which shells out to the
// ffmpeg and ffprobe found on PATH.
type OpenFunc func(path string) (Info, error)

// Verifier checks that an encoder produced a playable video.
type Verifier struct {
	open OpenFunc
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithOpener replaces the Vidio-backed inspector.
func WithOpener(open OpenFunc) Option {
	return func(v *Verifier) {
		if open != nil {
			v.open = open
		}
	}
}

// New returns a Verifier.
func New(opts ...Option) *Verifier {
	v := &Verifier{open: Inspect}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify fails unless path is a non-empty file that decodes to at least one
// frame with positive dimensions.
func (v *Verifier) Verify(ctx context.Context, path string) error {
	ok, err := fileutil.NonEmptyFile(path)
	if err != nil {
		return services.Wrap(services.ErrValidation, "verify", "stat output", path, err)
	}
	if !ok {
		return services.Wrap(services.ErrValidation, "verify", "stat output", path+" is empty", nil)
	}

	type result struct {
		info Info
		err  error
	}
	done := make(chan result, 1)
	go func() {
		info, err := v.open(path)
		done <- result{info: info, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		return services.Wrap(services.ErrTimeout, "verify", "decode output", path, ctx.Err())
	}
	if res.err != nil {
		return services.Wrap(services.ErrValidation, "verify", "decode output", path, res.err)
	}
	if res.info.Width <= 0 || res.info.Height <= 0 {
		return services.Wrap(services.ErrValidation, "verify", "decode output",
			fmt.Sprintf("%s has no video geometry (%dx%d)", path, res.info.Width, res.info.Height), nil)
	}
	if !res.info.FirstFrame {
		return services.Wrap(services.ErrValidation, "verify", "decode output", path+" has no decodable frames", nil)
	}
	return nil
}

// Inspect opens path with Vidio and decodes the first frame.
func Inspect(path string) (Info, error) {
	video, err := vidio.NewVideo(path)
	if err != nil {
		return Info{}, err
	}
	defer video.Close()

	info := Info{
		Width:    video.Width(),
		Height:   video.Height(),
		FPS:      video.FPS(),
		Duration: video.Duration(),
		Codec:    video.Codec(),
	}
	info.FirstFrame = video.Read()
	return info, nil
}
