package main

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"clipper/internal/api"
	"clipper/internal/config"
	"clipper/internal/logging"
	"clipper/internal/media/ffprobe"
	"clipper/internal/probecache"
	"clipper/internal/workflow"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.Logging.Level = strings.TrimSpace(*c.logLevelFlag)
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

// fileLogger logs only to clipper.log so console output stays readable for
// interactive commands.
func (c *commandContext) fileLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{filepath.Join(cfg.Paths.LogDir, "clipper.log")},
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

// newManager builds a workflow manager, wrapping the prober with the sqlite
// cache when enabled. The returned closer releases the cache.
func (c *commandContext) newManager(logger *slog.Logger) (*workflow.Manager, io.Closer, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	var opts []workflow.ManagerOption
	var closer io.Closer = nopCloser{}
	if cfg.ProbeCache.Enabled {
		cache, err := probecache.Open(cfg.ProbeCache.Path, logger)
		if err != nil {
			logging.WarnWithContext(logger, "probe cache unavailable", "probe_cache_open",
				logging.Error(err),
				logging.String(logging.FieldImpact, "media files are probed on every request"),
			)
		} else {
			opts = append(opts, workflow.WithProbe(cache.Wrap(ffprobe.Inspect)))
			closer = cache
		}
	}
	return workflow.NewManager(cfg, logger, opts...), closer, nil
}

func (c *commandContext) apiClient(bind string) (*api.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(bind) == "" {
		bind = cfg.API.Bind
	}
	return api.NewClient(bind, cfg.API.Token), nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
