package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/netsentry/netsentry/internal/health"
	"github.com/netsentry/netsentry/internal/probe"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultHTTPPort       = 8080
	DefaultMaxHosts       = 254
	DefaultConcurrency    = 30
	DefaultProbeTimeout   = 1 * time.Second
	DefaultSweepTimeout   = 2 * time.Minute
	DefaultSampleInterval = 5 * time.Second
	DefaultSampleTimeout  = 2 * time.Second
	DefaultTarget         = "8.8.8.8"
	DefaultWifiTimeout    = 10 * time.Second
)

// Config is the top-level configuration for netsentryd. Fields map 1:1 to
// config.example.yaml.
type Config struct {
	Scan   ScanConfig   `yaml:"scan"`
	Health HealthConfig `yaml:"health"`
	Wifi   WifiConfig   `yaml:"wifi"`
	Server ServerConfig `yaml:"server"`
	Alerts AlertsConfig `yaml:"alerts"`
}

// ScanConfig controls device discovery sweeps.
type ScanConfig struct {
	// Range is the CIDR to sweep. Empty means derive the /24 from the
	// machine's outbound interface address.
	Range string `yaml:"range"`

	// Strategy selects the probe method: auto | arp | ping.
	Strategy string `yaml:"strategy"`

	// Interface pins the ARP prober to a named interface. Empty picks the
	// first usable one.
	Interface string `yaml:"interface"`

	// MaxHosts caps how many addresses one sweep enumerates.
	MaxHosts int `yaml:"max_hosts"`

	// Concurrency is the probe worker count per sweep.
	Concurrency int `yaml:"concurrency"`

	// ProbeTimeout bounds a single address probe.
	ProbeTimeout time.Duration `yaml:"probe_timeout"`

	// SweepTimeout bounds the whole sweep.
	SweepTimeout time.Duration `yaml:"sweep_timeout"`
}

// HealthConfig controls the connectivity sampler and scoring.
type HealthConfig struct {
	// Target is the address sampled for latency (default 8.8.8.8).
	Target string `yaml:"target"`

	// Interval is the spacing between samples.
	Interval time.Duration `yaml:"interval"`

	// ProbeTimeout bounds one sample probe.
	ProbeTimeout time.Duration `yaml:"probe_timeout"`

	// WindowSize is how many snapshots the rolling window retains.
	WindowSize int `yaml:"window_size"`

	// BatchSize is how many recent samples one score is computed over.
	BatchSize int `yaml:"batch_size"`

	// References are host:port addresses dialled to decide internet
	// reachability. Empty uses the built-in resolver set.
	References []string `yaml:"references"`

	// Policy overrides parts of the scoring policy. Absent sections keep
	// the built-in anchors and weights.
	Policy PolicyConfig `yaml:"policy"`
}

// PolicyConfig is the YAML shape of scoring-policy overrides.
type PolicyConfig struct {
	LatencyCurve []CurvePoint  `yaml:"latency_curve"`
	JitterCurve  []CurvePoint  `yaml:"jitter_curve"`
	Weights      WeightsConfig `yaml:"weights"`
}

// CurvePoint is one anchor of a piecewise-linear scoring curve.
type CurvePoint struct {
	UpToMs float64 `yaml:"up_to_ms"`
	Score  float64 `yaml:"score"`
}

// WeightsConfig holds component weights; all four must be set together.
type WeightsConfig struct {
	Latency float64 `yaml:"latency"`
	Loss    float64 `yaml:"loss"`
	Jitter  float64 `yaml:"jitter"`
	Uptime  float64 `yaml:"uptime"`
}

func (w WeightsConfig) isZero() bool {
	return w.Latency == 0 && w.Loss == 0 && w.Jitter == 0 && w.Uptime == 0
}

// BuildPolicy merges the overrides onto the built-in policy and validates
// the result.
func (p PolicyConfig) BuildPolicy() (health.Policy, error) {
	pol := health.DefaultPolicy()
	if len(p.LatencyCurve) > 0 {
		pol.LatencyCurve = curvePoints(p.LatencyCurve)
	}
	if len(p.JitterCurve) > 0 {
		pol.JitterCurve = curvePoints(p.JitterCurve)
	}
	if !p.Weights.isZero() {
		pol.Weights = health.Weights{
			Latency: p.Weights.Latency,
			Loss:    p.Weights.Loss,
			Jitter:  p.Weights.Jitter,
			Uptime:  p.Weights.Uptime,
		}
	}
	if err := pol.Validate(); err != nil {
		return health.Policy{}, err
	}
	return pol, nil
}

func curvePoints(in []CurvePoint) []health.CurvePoint {
	out := make([]health.CurvePoint, len(in))
	for i, cp := range in {
		out[i] = health.CurvePoint{UpToMs: cp.UpToMs, Score: cp.Score}
	}
	return out
}

// WifiConfig controls the wireless scanner.
type WifiConfig struct {
	// Timeout bounds one platform enumeration command.
	Timeout time.Duration `yaml:"timeout"`
}

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API and WebSocket hub listen on.
	HTTPPort int `yaml:"http_port"`

	// Auth configures how the server authenticates incoming REST clients.
	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig controls client authentication for the HTTP surface.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the environment variable holding the expected API key.
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header to read the key from. Defaults to
	// "x-api-key" when empty.
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// AlertsConfig holds alerting rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines one threshold-based alert condition.
type AlertRule struct {
	// Name is the human-readable alert identifier, used as the
	// deduplication key.
	Name string `yaml:"name"`

	// Condition is a simple expression: "score < 40", "latency_ms > 200",
	// "packet_loss > 20", "category == Poor".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	// Defaults to 15 minutes if zero.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | pagerduty | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable holding the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Load reads and parses the config file at path. Missing fields are filled
// with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Scan: ScanConfig{
			Strategy:     "auto",
			MaxHosts:     DefaultMaxHosts,
			Concurrency:  DefaultConcurrency,
			ProbeTimeout: DefaultProbeTimeout,
			SweepTimeout: DefaultSweepTimeout,
		},
		Health: HealthConfig{
			Target:       DefaultTarget,
			Interval:     DefaultSampleInterval,
			ProbeTimeout: DefaultSampleTimeout,
			WindowSize:   health.DefaultWindowSize,
			BatchSize:    health.DefaultBatchSize,
		},
		Wifi: WifiConfig{
			Timeout: DefaultWifiTimeout,
		},
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if _, err := probe.ParseStrategy(cfg.Scan.Strategy); err != nil {
		return err
	}
	if cfg.Scan.MaxHosts <= 0 {
		return fmt.Errorf("scan.max_hosts must be positive")
	}
	if cfg.Scan.Concurrency <= 0 {
		return fmt.Errorf("scan.concurrency must be positive")
	}
	if cfg.Scan.ProbeTimeout <= 0 || cfg.Scan.SweepTimeout <= 0 {
		return fmt.Errorf("scan timeouts must be positive")
	}
	if cfg.Health.Target == "" {
		return fmt.Errorf("health.target must not be empty")
	}
	if cfg.Health.Interval <= 0 {
		return fmt.Errorf("health.interval must be positive")
	}
	if cfg.Health.WindowSize <= 0 || cfg.Health.BatchSize <= 0 {
		return fmt.Errorf("health window_size and batch_size must be positive")
	}
	if _, err := cfg.Health.Policy.BuildPolicy(); err != nil {
		return fmt.Errorf("health.policy: %w", err)
	}
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	switch cfg.Server.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", cfg.Server.Auth.Mode)
	}
	return nil
}
