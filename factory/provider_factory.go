package factory

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/opd-ai/corecrypto/interfaces"
	"github.com/opd-ai/corecrypto/provider"
	"github.com/sirupsen/logrus"
)

// Environment variables read by NewProviderFactory.
const (
	EnvProvider           = "CORECRYPTO_PROVIDER"
	EnvMaxSkewSeconds     = "CORECRYPTO_MAX_SKEW_SECONDS"
	EnvRekeyGraceMillis   = "CORECRYPTO_REKEY_GRACE_MS"
	EnvRequireChannelAuth = "CORECRYPTO_REQUIRE_CHANNEL_AUTH"
)

// Default configuration values.
const (
	DefaultMaxSkewSeconds   = 300
	DefaultRekeyGraceMillis = 30000
)

// ProviderFactory creates curve providers and hands out the core
// configuration. It is safe for concurrent use; all methods are protected by
// an internal mutex.
type ProviderFactory struct {
	mu            sync.RWMutex
	defaultConfig *interfaces.CoreConfig
}

// ConfigOption customizes a configuration copy.
type ConfigOption func(*interfaces.CoreConfig)

// NewProviderFactory creates a factory from defaults overridden by the
// CORECRYPTO_* environment variables. Invalid values are logged and ignored.
func NewProviderFactory() *ProviderFactory {
	defaultConfig := createDefaultConfig()
	applyEnvironmentOverrides(defaultConfig)
	logConfigurationInfo(defaultConfig)

	return &ProviderFactory{
		defaultConfig: defaultConfig,
	}
}

// createDefaultConfig returns the built-in configuration.
//
// Default Value Rationale:
//   - Provider: pure - the module's own arithmetic, no platform dependency
//   - MaxSkewSeconds: 300 - five minutes either side of the local clock
//   - RekeyGracePeriod: 30000ms - in-flight records survive a rekey
//   - RequireChannelAuth: false - anonymous channels unless asked otherwise
func createDefaultConfig() *interfaces.CoreConfig {
	return &interfaces.CoreConfig{
		Provider:           interfaces.ProviderPure,
		MaxSkewSeconds:     DefaultMaxSkewSeconds,
		RekeyGracePeriod:   DefaultRekeyGraceMillis,
		RequireChannelAuth: false,
	}
}

func applyEnvironmentOverrides(config *interfaces.CoreConfig) {
	parseProviderSetting(config)
	parseSkewSetting(config)
	parseGraceSetting(config)
	parseChannelAuthSetting(config)
}

// parseProviderSetting reads CORECRYPTO_PROVIDER; only "pure" and
// "platform" are accepted.
func parseProviderSetting(config *interfaces.CoreConfig) {
	value := os.Getenv(EnvProvider)
	if value == "" {
		return
	}
	kind := interfaces.ProviderKind(value)
	if kind != interfaces.ProviderPure && kind != interfaces.ProviderPlatform {
		logrus.WithFields(logrus.Fields{
			"function":    "parseProviderSetting",
			"env_var":     EnvProvider,
			"value":       value,
			"using_value": config.Provider,
		}).Warn("Unknown CORECRYPTO_PROVIDER value, using default")
		return
	}
	config.Provider = kind
}

// parseBoundedInt parses an integer environment variable and checks it
// against [lo, hi]. ok is false when the variable is unset or invalid.
func parseBoundedInt(function, envVar string, lo, hi, current int) (value int, ok bool) {
	raw := os.Getenv(envVar)
	if raw == "" {
		return 0, false
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    function,
			"env_var":     envVar,
			"value":       raw,
			"error":       err.Error(),
			"using_value": current,
		}).Warn("Failed to parse environment variable, using default")
		return 0, false
	}
	if value < lo || value > hi {
		logrus.WithFields(logrus.Fields{
			"function":    function,
			"env_var":     envVar,
			"value":       value,
			"min":         lo,
			"max":         hi,
			"using_value": current,
		}).Warn("Environment variable out of bounds, using default")
		return 0, false
	}
	return value, true
}

// parseSkewSetting reads CORECRYPTO_MAX_SKEW_SECONDS within
// [MinMaxSkewSeconds, MaxMaxSkewSeconds].
func parseSkewSetting(config *interfaces.CoreConfig) {
	if v, ok := parseBoundedInt("parseSkewSetting", EnvMaxSkewSeconds,
		interfaces.MinMaxSkewSeconds, interfaces.MaxMaxSkewSeconds, config.MaxSkewSeconds); ok {
		config.MaxSkewSeconds = v
	}
}

// parseGraceSetting reads CORECRYPTO_REKEY_GRACE_MS within
// [MinRekeyGracePeriod, MaxRekeyGracePeriod].
func parseGraceSetting(config *interfaces.CoreConfig) {
	if v, ok := parseBoundedInt("parseGraceSetting", EnvRekeyGraceMillis,
		interfaces.MinRekeyGracePeriod, interfaces.MaxRekeyGracePeriod, config.RekeyGracePeriod); ok {
		config.RekeyGracePeriod = v
	}
}

func parseChannelAuthSetting(config *interfaces.CoreConfig) {
	raw := os.Getenv(EnvRequireChannelAuth)
	if raw == "" {
		return
	}
	require, err := strconv.ParseBool(raw)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "parseChannelAuthSetting",
			"env_var":     EnvRequireChannelAuth,
			"value":       raw,
			"error":       err.Error(),
			"using_value": config.RequireChannelAuth,
		}).Warn("Failed to parse CORECRYPTO_REQUIRE_CHANNEL_AUTH environment variable, using default")
		return
	}
	config.RequireChannelAuth = require
}

func logConfigurationInfo(config *interfaces.CoreConfig) {
	logrus.WithFields(logrus.Fields{
		"function":             "NewProviderFactory",
		"provider":             config.Provider,
		"max_skew_seconds":     config.MaxSkewSeconds,
		"rekey_grace_ms":       config.RekeyGracePeriod,
		"require_channel_auth": config.RequireChannelAuth,
	}).Debug("Created provider factory with configuration")
}

// CreateProvider returns the provider selected by the current configuration.
func (f *ProviderFactory) CreateProvider() (interfaces.ICurveProvider, error) {
	return f.CreateProviderWithConfig(nil)
}

// CreateProviderWithConfig returns the provider selected by config, or by
// the factory configuration when config is nil.
func (f *ProviderFactory) CreateProviderWithConfig(config *interfaces.CoreConfig) (interfaces.ICurveProvider, error) {
	if config == nil {
		config = f.GetCurrentConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function": "CreateProviderWithConfig",
		"provider": config.Provider,
	}).Debug("Creating curve provider")

	return provider.New(config.Provider)
}

// WithProvider selects the provider kind.
func WithProvider(kind interfaces.ProviderKind) ConfigOption {
	return func(c *interfaces.CoreConfig) {
		c.Provider = kind
	}
}

// WithMaxSkewSeconds sets the signed packet skew window.
func WithMaxSkewSeconds(seconds int) ConfigOption {
	return func(c *interfaces.CoreConfig) {
		c.MaxSkewSeconds = seconds
	}
}

// WithRekeyGracePeriod sets the rekey grace window in milliseconds.
func WithRekeyGracePeriod(millis int) ConfigOption {
	return func(c *interfaces.CoreConfig) {
		c.RekeyGracePeriod = millis
	}
}

// WithChannelAuth makes channels require signed handshakes.
func WithChannelAuth(required bool) ConfigOption {
	return func(c *interfaces.CoreConfig) {
		c.RequireChannelAuth = required
	}
}

// ConfigWith returns a copy of the current configuration with opts applied.
// The result is validated.
func (f *ProviderFactory) ConfigWith(opts ...ConfigOption) (*interfaces.CoreConfig, error) {
	config := f.GetCurrentConfig()
	for _, opt := range opts {
		opt(config)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// SwitchToPure makes later CreateProvider calls return the pure provider.
func (f *ProviderFactory) SwitchToPure() {
	f.switchProvider("SwitchToPure", interfaces.ProviderPure)
}

// SwitchToPlatform makes later CreateProvider calls return the platform
// provider.
func (f *ProviderFactory) SwitchToPlatform() {
	f.switchProvider("SwitchToPlatform", interfaces.ProviderPlatform)
}

func (f *ProviderFactory) switchProvider(function string, kind interfaces.ProviderKind) {
	f.mu.Lock()
	defer f.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": function,
		"previous": f.defaultConfig.Provider,
		"current":  kind,
	}).Info("Switching curve provider")

	f.defaultConfig.Provider = kind
}

// GetCurrentConfig returns a copy of the current default configuration.
func (f *ProviderFactory) GetCurrentConfig() *interfaces.CoreConfig {
	f.mu.RLock()
	defer f.mu.RUnlock()

	config := *f.defaultConfig
	return &config
}

// UpdateConfig validates config and makes a copy of it the default.
func (f *ProviderFactory) UpdateConfig(config *interfaces.CoreConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":     "UpdateConfig",
		"old_provider": f.defaultConfig.Provider,
		"new_provider": config.Provider,
		"old_skew":     f.defaultConfig.MaxSkewSeconds,
		"new_skew":     config.MaxSkewSeconds,
	}).Info("Updating factory configuration")

	updated := *config
	f.defaultConfig = &updated
	return nil
}
