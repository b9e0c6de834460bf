// Package config assembles the runtime configuration from flags, an optional
// tuning file and environment variables.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mattn/go-isatty"

	"camwatch/internal/auth"
	"camwatch/internal/camera"
	"camwatch/internal/motion"
	"camwatch/internal/telegram"
)

// EnvPrefix prefixes every environment variable except the auth and
// Telegram ones.
const EnvPrefix = "CAMWATCH_"

// Config is the complete runtime configuration.
type Config struct {
	Device int
	// Resolution is the requested capture size. It is only meaningful when
	// ResolutionSet is true; otherwise the operator is asked or the default
	// is used.
	Resolution    camera.Resolution
	ResolutionSet bool

	BaseDir     string
	Ext         string
	FourCC      string
	FallbackFPS float64

	Motion     motion.Config
	TuningPath string

	HTTPAddr      string
	GRPCAddr      string
	DBPath        string
	Window        bool
	StreamQuality int
	Retention     time.Duration
	PruneInterval time.Duration
	Debug         bool

	Auth     auth.Options
	Telegram telegram.Config
}

// Load parses args (without the program name). Precedence is flag, then
// tuning file, then environment, then built-in default.
func Load(args []string, getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	env := func(name string) string { return getenv(EnvPrefix + name) }

	defaults := motion.DefaultConfig()
	var errs []error
	envInt := func(name string, def int) int {
		v := env(name)
		if v == "" {
			return def
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s%s %q: %w", EnvPrefix, name, v, err))
			return def
		}
		return n
	}
	envFloat := func(name string, def float64) float64 {
		v := env(name)
		if v == "" {
			return def
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s%s %q: %w", EnvPrefix, name, v, err))
			return def
		}
		return f
	}
	envBool := func(name string) bool {
		v := env(name)
		if v == "" {
			return false
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s%s %q: %w", EnvPrefix, name, v, err))
		}
		return b
	}
	envString := func(name, def string) string {
		if v := env(name); v != "" {
			return v
		}
		return def
	}
	envDuration := func(name string, def time.Duration) time.Duration {
		v := env(name)
		if v == "" {
			return def
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s%s %q: %w", EnvPrefix, name, v, err))
			return def
		}
		return d
	}

	cfg := &Config{}
	var resolution string

	fs := flag.NewFlagSet("camwatch", flag.ContinueOnError)
	fs.IntVar(&cfg.Device, "device", envInt("DEVICE", 0), "Capture device index")
	fs.StringVar(&resolution, "resolution", env("RESOLUTION"), "Capture resolution WIDTHxHEIGHT (prompted when empty and stdin is a terminal)")
	fs.StringVar(&cfg.BaseDir, "base-dir", envString("BASE_DIR", "."), "Directory holding the per-day output directories")
	fs.StringVar(&cfg.Ext, "ext", envString("EXT", "avi"), "Output file extension")
	fs.StringVar(&cfg.FourCC, "fourcc", envString("FOURCC", "MJPG"), "Output codec FourCC")
	fs.Float64Var(&cfg.FallbackFPS, "fps", envFloat("FPS", DefaultFallbackFPS), "Output frame rate when the device reports none")
	fs.Float64Var(&cfg.Motion.MinArea, "min-area", envFloat("MIN_AREA", defaults.MinArea), "Minimum contour area reported as motion")
	fs.IntVar(&cfg.Motion.Threshold, "threshold", envInt("THRESHOLD", defaults.Threshold), "Per-pixel intensity change threshold (0-255)")
	fs.IntVar(&cfg.Motion.DilateIterations, "dilate", envInt("DILATE", defaults.DilateIterations), "Dilation passes over the change mask")
	fs.IntVar(&cfg.Motion.BlurKernel, "blur", envInt("BLUR", defaults.BlurKernel), "Gaussian blur kernel size (odd)")
	fs.StringVar(&cfg.TuningPath, "tuning", env("TUNING"), "Path to a tuning JSON file")
	fs.StringVar(&cfg.HTTPAddr, "http", envString("HTTP", ":8080"), "Operator HTTP listen address (empty disables)")
	fs.StringVar(&cfg.GRPCAddr, "grpc", env("GRPC"), "gRPC health listen address (empty disables)")
	fs.StringVar(&cfg.DBPath, "db", envString("DB", "camwatch.db"), "SQLite catalog path (empty disables)")
	fs.BoolVar(&cfg.Window, "window", envBool("WINDOW"), "Show the stages in desktop windows; Esc stops")
	fs.IntVar(&cfg.StreamQuality, "stream-quality", envInt("STREAM_QUALITY", DefaultStreamQuality), "JPEG quality of operator streams")
	fs.DurationVar(&cfg.Retention, "retention", envDuration("RETENTION", DefaultRetention), "How long motion events are kept")
	fs.DurationVar(&cfg.PruneInterval, "prune-interval", envDuration("PRUNE_INTERVAL", DefaultPruneInterval), "How often expired motion events are deleted")
	fs.BoolVar(&cfg.Debug, "debug", envBool("DEBUG"), "Log every processed frame")

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if cfg.TuningPath != "" {
		tuning, err := LoadTuningConfig(cfg.TuningPath)
		if err != nil {
			return nil, err
		}
		cfg.applyTuning(tuning, set)
	}

	if resolution != "" {
		r, err := camera.ParseResolution(resolution)
		if err != nil {
			return nil, err
		}
		cfg.Resolution = r
		cfg.ResolutionSet = true
	} else {
		cfg.Resolution = camera.DefaultResolution
	}

	cfg.Auth = auth.Options{
		Enabled:  getenv("AUTH_ENABLED") == "true",
		Username: getenv("AUTH_USERNAME"),
		Password: getenv("AUTH_PASSWORD"),
		JWT:      auth.JWTOptions{Secret: getenv("JWT_SECRET")},
	}
	if exp := getenv("JWT_EXPIRY"); exp != "" {
		d, err := time.ParseDuration(exp)
		if err != nil {
			return nil, fmt.Errorf("invalid JWT_EXPIRY %q: %w", exp, err)
		}
		cfg.Auth.JWT.Expiry = d
	}

	cfg.Telegram = telegram.Config{
		BotToken: getenv("TELEGRAM_BOT_TOKEN"),
		ChatID:   getenv("TELEGRAM_CHAT_ID"),
	}
	if cd := getenv("TELEGRAM_COOLDOWN"); cd != "" {
		d, err := time.ParseDuration(cd)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_COOLDOWN %q: %w", cd, err)
		}
		cfg.Telegram.Cooldown = d
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyTuning copies tuning values for every option not given as a flag.
func (c *Config) applyTuning(t *TuningConfig, set map[string]bool) {
	m := t.Motion(c.Motion)
	if !set["threshold"] {
		c.Motion.Threshold = m.Threshold
	}
	if !set["dilate"] {
		c.Motion.DilateIterations = m.DilateIterations
	}
	if !set["min-area"] {
		c.Motion.MinArea = m.MinArea
	}
	if !set["blur"] {
		c.Motion.BlurKernel = m.BlurKernel
	}
	if !set["fps"] && t.FallbackFPS != nil {
		c.FallbackFPS = t.GetFallbackFPS()
	}
	if !set["stream-quality"] && t.StreamQuality != nil {
		c.StreamQuality = t.GetStreamQuality()
	}
	if !set["retention"] && t.Retention != nil {
		c.Retention = t.GetRetention()
	}
	if !set["prune-interval"] && t.PruneInterval != nil {
		c.PruneInterval = t.GetPruneInterval()
	}
}

// Validate checks the assembled configuration.
func (c *Config) Validate() error {
	if c.Device < 0 {
		return fmt.Errorf("device index must be non-negative, got %d", c.Device)
	}
	if c.BaseDir == "" {
		return errors.New("base directory must not be empty")
	}
	if len(c.FourCC) != 4 {
		return fmt.Errorf("fourcc must be four characters, got %q", c.FourCC)
	}
	if c.FallbackFPS <= 0 {
		return fmt.Errorf("fps must be positive, got %v", c.FallbackFPS)
	}
	if c.StreamQuality < 1 || c.StreamQuality > 100 {
		return fmt.Errorf("stream quality must be between 1 and 100, got %d", c.StreamQuality)
	}
	if c.Retention <= 0 || c.PruneInterval <= 0 {
		return errors.New("retention and prune interval must be positive")
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if c.Telegram.Enabled() {
		if err := c.Telegram.Validate(); err != nil {
			return err
		}
	}
	return c.Motion.Validate()
}

// Interactive reports whether f is a terminal an operator can answer
// prompts on.
func Interactive(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ShouldPrompt reports whether the resolution has to be asked for.
func (c *Config) ShouldPrompt(stdin *os.File) bool {
	return !c.ResolutionSet && Interactive(stdin)
}
