package config

import (
	"os"
	"regexp"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	DefaultPollInterval        = 5 * time.Second
	DefaultMaxAttempts         = 5
	DefaultRetryDelay          = time.Second
	DefaultMaxRetryDelay       = 30 * time.Second
	DefaultDispatchDelay       = 500 * time.Millisecond
	DefaultHealthCheckInterval = time.Minute
	DefaultFailureThreshold    = 5
	DefaultAttributionWindow   = 5 * time.Second
	DefaultSafetyMargin        = 10
	DefaultStatusAddr          = ":3000"
	DefaultExplorerURL         = "https://bscscan.com"
	DefaultDepositFallback     = "1000+"
	DefaultProjectName         = "AUTOPOOLFUND"
	DefaultTagline             = "Secured · Trusted · Verified • Audited"
)

const (
	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"
)

type Pagerduty struct {
	RoutingKey string `yaml:"routing_key"`
	Service    string `yaml:"service"`
	Group      string `yaml:"group"`
}

func (p Pagerduty) Empty() bool {
	return p.RoutingKey == ""
}

type Slack struct {
	WebhookURL string `yaml:"webhook_url"`
	Channel    string `yaml:"channel"`
	Token      string `yaml:"token"`
}

func (s Slack) Empty() bool {
	return len(s.WebhookURL) == 0 && len(s.Channel) == 0 && len(s.Token) == 0
}

// Chain describes where the contract lives and how to reach it.
type Chain struct {
	RPCURLs         []string `yaml:"rpc_urls"`
	FallbackRPCURLs []string `yaml:"fallback_rpc_urls"`
	ContractAddress string   `yaml:"contract_address"`
	NetworkName     string   `yaml:"network_name"`
}

type Events struct {
	EnableJoin    bool          `yaml:"enable_join"`
	EnableRejoin  bool          `yaml:"enable_rejoin"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	MaxAttempts   int           `yaml:"max_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
	MaxRetryDelay time.Duration `yaml:"max_retry_delay"`
	// Backoff is either "fixed" or "exponential".
	Backoff string `yaml:"backoff"`
	// DispatchDelay spaces out notifications; an explicit 0s disables pacing.
	DispatchDelay time.Duration `yaml:"dispatch_delay"`
	SafetyMargin  uint64        `yaml:"safety_margin"`
}

type Health struct {
	Interval          time.Duration `yaml:"interval"`
	FailureThreshold  int           `yaml:"failure_threshold"`
	AttributionWindow time.Duration `yaml:"attribution_window"`
	// ProbeTimeout bounds a single probe; zero leaves it to the transport.
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
	// StallAfter marks an endpoint unhealthy when its head has not moved for this long; zero disables it.
	StallAfter time.Duration `yaml:"stall_after"`
}

type Notifications struct {
	Enabled         bool   `yaml:"enabled"`
	Slack           Slack  `yaml:"slack"`
	ImagePath       string `yaml:"image_path"`
	ExplorerURL     string `yaml:"explorer_url"`
	WebsiteURL      string `yaml:"website_url"`
	ProjectName     string `yaml:"project_name"`
	Tagline         string `yaml:"tagline"`
	JoinFee         string `yaml:"join_fee"`
	RejoinFee       string `yaml:"rejoin_fee"`
	Currency        string `yaml:"currency"`
	DepositFallback string `yaml:"deposit_fallback"`
}

type Config struct {
	Chain         Chain         `yaml:"chain"`
	Events        Events        `yaml:"events"`
	Health        Health        `yaml:"health"`
	Notifications Notifications `yaml:"notifications"`
	StatusAddr    string        `yaml:"status_addr"`
	Pagerduty     Pagerduty     `yaml:"pagerduty"`
	Slack         Slack         `yaml:"slack"`
	Verbosity     string        `yaml:"verbosity"`

	Log logrus.Ext1FieldLogger `yaml:"-"` // Log field is not serialized to YAML, used for logging
}

// LoadConfig reads a YAML file, expanding ${VAR} references from the environment
// (optionally seeded from .env.local and .env).
func LoadConfig(file string) (*Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", file)
	}
	conf, err := Parse([]byte(expandEnv(string(data))))
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	lvl, err := logrus.ParseLevel(conf.Verbosity)
	if err != nil {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(lvl)
	}
	conf.Log = logger

	return conf, conf.Validate()
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR} with its value. A bare $ is left alone.
func expandEnv(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		return os.Getenv(envRef.FindStringSubmatch(ref)[1])
	})
}

// Parse decodes YAML and applies defaults. It does not validate.
func Parse(data []byte) (*Config, error) {
	conf := &Config{
		Events: Events{
			EnableJoin:    true,
			EnableRejoin:  true,
			DispatchDelay: DefaultDispatchDelay,
			SafetyMargin:  DefaultSafetyMargin,
		},
		Notifications: Notifications{Enabled: true},
	}
	if err := yaml.Unmarshal(data, conf); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}
	conf.ApplyDefaults()
	return conf, nil
}

func (c *Config) ApplyDefaults() {
	if c.Events.PollInterval <= 0 {
		c.Events.PollInterval = DefaultPollInterval
	}
	if c.Events.MaxAttempts <= 0 {
		c.Events.MaxAttempts = DefaultMaxAttempts
	}
	if c.Events.RetryDelay <= 0 {
		c.Events.RetryDelay = DefaultRetryDelay
	}
	if c.Events.MaxRetryDelay <= 0 {
		c.Events.MaxRetryDelay = DefaultMaxRetryDelay
	}
	if c.Events.Backoff == "" {
		c.Events.Backoff = BackoffFixed
	}
	if c.Events.DispatchDelay < 0 {
		c.Events.DispatchDelay = 0
	}
	if c.Health.Interval <= 0 {
		c.Health.Interval = DefaultHealthCheckInterval
	}
	if c.Health.FailureThreshold <= 0 {
		c.Health.FailureThreshold = DefaultFailureThreshold
	}
	if c.Health.AttributionWindow <= 0 {
		c.Health.AttributionWindow = DefaultAttributionWindow
	}
	if c.Notifications.ExplorerURL == "" {
		c.Notifications.ExplorerURL = DefaultExplorerURL
	}
	if c.Notifications.ProjectName == "" {
		c.Notifications.ProjectName = DefaultProjectName
	}
	if c.Notifications.Tagline == "" {
		c.Notifications.Tagline = DefaultTagline
	}
	if c.Notifications.Currency == "" {
		c.Notifications.Currency = "USDT"
	}
	if c.Notifications.JoinFee == "" {
		c.Notifications.JoinFee = "10"
	}
	if c.Notifications.RejoinFee == "" {
		c.Notifications.RejoinFee = "10"
	}
	if c.Notifications.DepositFallback == "" {
		c.Notifications.DepositFallback = DefaultDepositFallback
	}
	if c.StatusAddr == "" {
		c.StatusAddr = DefaultStatusAddr
	}
}

func (c *Config) Validate() error {
	if len(c.Chain.RPCURLs) == 0 && len(c.Chain.FallbackRPCURLs) == 0 {
		return errors.New("at least one rpc url or fallback rpc url is required")
	}
	if !common.IsHexAddress(c.Chain.ContractAddress) {
		return errors.Newf("invalid contract address %q", c.Chain.ContractAddress)
	}
	if !c.Events.EnableJoin && !c.Events.EnableRejoin {
		return errors.New("no event kind enabled")
	}
	switch c.Events.Backoff {
	case BackoffFixed, BackoffExponential:
	default:
		return errors.Newf("unknown backoff policy %q", c.Events.Backoff)
	}
	return nil
}

func (c *Config) ContractAddress() common.Address {
	return common.HexToAddress(c.Chain.ContractAddress)
}
