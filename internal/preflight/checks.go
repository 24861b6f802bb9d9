package preflight

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"

	"clipper/internal/config"
	"clipper/internal/deps"
	"clipper/internal/services"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// EnsureWritableDir creates dir when missing and confirms the current user can
// create files inside it. Failures carry services.ErrPermission when access is
// the problem so callers can report PermissionDenied.
func EnsureWritableDir(dir string) error {
	if dir == "" {
		return services.Wrap(services.ErrValidation, "preflight", "output dir", "no output directory", nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return services.Wrap(services.ErrPermission, "preflight", "output dir", dir, err)
		}
		return services.Wrap(services.ErrValidation, "preflight", "output dir", dir, err)
	}
	if err := unix.Access(dir, unix.W_OK|unix.X_OK); err != nil {
		return services.Wrap(services.ErrPermission, "preflight", "output dir", dir, err)
	}
	return nil
}

// CheckTools reports availability of ffmpeg and ffprobe, honouring the
// bundled binary directory.
func CheckTools(cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Required for encoding",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Required for media inspection",
		},
	}
	return deps.CheckBinaries(cfg.Paths.BinDir, requirements)
}

// ResolveFFmpeg returns the encoder path or an ErrExternalTool error.
func ResolveFFmpeg(cfg *config.Config) (string, error) {
	path, err := deps.Resolve(cfg.Paths.BinDir, cfg.FFmpegBinary())
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "preflight", "resolve ffmpeg", cfg.FFmpegBinary(), err)
	}
	return path, nil
}

// ResolveFFprobe returns the probe tool path or an ErrExternalTool error.
func ResolveFFprobe(cfg *config.Config) (string, error) {
	path, err := deps.Resolve(cfg.Paths.BinDir, cfg.FFprobeBinary())
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "preflight", "resolve ffprobe", cfg.FFprobeBinary(), err)
	}
	return path, nil
}
