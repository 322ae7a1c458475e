package configuration

import (
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/jeremywohl/flatten"
	"github.com/metal-toolbox/bootorder/internal/model"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

var (
	defaultIntersightEndpoint = "https://intersight.com/api/v1"
	defaultIntersightTimeout  = 60 * time.Second
	defaultIntersightRetryMax = 3
	defaultProfilingEndpoint  = "localhost:9091"
)

// Configuration holds application configuration read from a YAML or set by env variables.
// nolint:govet // prefer readability over field alignment optimization for this case.
type Configuration struct {
	// LogLevel is the app verbose logging level.
	// one of - info, debug, trace
	LogLevel string `mapstructure:"log_level"`

	// DryRun reconciles against an in-memory store instead of Intersight.
	DryRun bool `mapstructure:"dry_run"`

	// IntersightOptions defines the Intersight API client configuration parameters.
	IntersightOptions IntersightOptions `mapstructure:"intersight"`

	// MetricsEndpoint is the address prometheus metrics are served on, disabled when empty.
	MetricsEndpoint string `mapstructure:"metrics_endpoint"`

	EnableProfiling   bool   `mapstructure:"enable_profiling"`
	ProfilingEndpoint string `mapstructure:"profiling_endpoint"`
}

// IntersightOptions defines configuration for the Intersight API client.
// https://intersight.com/apidocs
type IntersightOptions struct {
	Endpoint           string        `mapstructure:"endpoint"`
	Timeout            time.Duration `mapstructure:"timeout"`
	RetryMax           int           `mapstructure:"retry_max"`
	Insecure           bool          `mapstructure:"insecure"`
	DisableOAuth       bool          `mapstructure:"disable_oauth"`
	OidcIssuerEndpoint string        `mapstructure:"oidc_issuer_endpoint"`
	TokenURL           string        `mapstructure:"token_url"`
	OidcClientID       string        `mapstructure:"oidc_client_id"`
	OidcClientSecret   string        `mapstructure:"oidc_client_secret"`
	OidcClientScopes   []string      `mapstructure:"oidc_client_scopes"`

	// Organizations seeds the in-memory store in dry run mode.
	Organizations []string `mapstructure:"organizations"`
}

func newIntersightOptions() IntersightOptions {
	return IntersightOptions{
		Endpoint:      defaultIntersightEndpoint,
		Timeout:       defaultIntersightTimeout,
		RetryMax:      defaultIntersightRetryMax,
		Organizations: []string{"default"},
	}
}

// New creates a configuration struct holding the defaults.
func New() *Configuration {
	config := &Configuration{
		LogLevel:          "info",
		ProfilingEndpoint: defaultProfilingEndpoint,
	}

	// nested defaults are set here so envBindVars sees every key
	config.IntersightOptions = newIntersightOptions()

	return config
}

func (c *Configuration) AsLogFields() []any {
	return []any{
		"logLevel", c.LogLevel,
		"dryRun", c.DryRun,
		"intersightEndpoint", c.IntersightOptions.Endpoint,
		"disableOAuth", c.IntersightOptions.DisableOAuth,
		"retryMax", c.IntersightOptions.RetryMax,
		"metricsEndpoint", c.MetricsEndpoint,
		"enableProfiling", c.EnableProfiling,
	}
}

// LoadArgs applies the command line flags the user set, unset flags are
// zero valued and leave the file and env values in place.
func (c *Configuration) LoadArgs(args *model.Args) {
	if args.LogLevel != "" {
		c.LogLevel = args.LogLevel
	}

	if args.EnableProfiling {
		c.EnableProfiling = true
	}

	if args.DryRun {
		c.DryRun = true
	}
}

// Load the application configuration
// Reads in the configFile when available and overrides from environment variables.
func Load(args *model.Args) (*Configuration, error) {
	viperConfig := viper.New()
	viperConfig.SetConfigType("yaml")
	viperConfig.SetEnvPrefix(model.AppName)
	viperConfig.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viperConfig.AutomaticEnv()

	if args.ConfigFile != "" {
		fh, err := os.Open(args.ConfigFile)
		if err != nil {
			return nil, errors.Wrap(model.ErrConfig, err.Error())
		}
		defer fh.Close()

		if err = viperConfig.ReadConfig(fh); err != nil {
			return nil, errors.Wrap(model.ErrConfig, "ReadConfig error: "+err.Error())
		}
	}

	config := New()

	if err := config.envBindVars(viperConfig); err != nil {
		return nil, errors.Wrap(model.ErrConfig, "env var bind error: "+err.Error())
	}

	if err := viperConfig.Unmarshal(config); err != nil {
		return nil, errors.Wrap(model.ErrConfig, "Unmarshal error: "+err.Error())
	}

	// flags win over file and env
	config.LoadArgs(args)

	if err := config.envVarIntersightOverrides(viperConfig); err != nil {
		return nil, errors.Wrap(model.ErrConfig, "intersight env overrides error: "+err.Error())
	}

	return config, nil
}

// envBindVars binds environment variables to the struct
// without a configuration file being unmarshalled,
// this is a workaround for a viper bug,
//
// This can be replaced by the solution in https://github.com/spf13/viper/pull/1429
// once that PR is merged.
func (c *Configuration) envBindVars(viperConfig *viper.Viper) error {
	envKeysMap := map[string]interface{}{}
	if err := mapstructure.Decode(c, &envKeysMap); err != nil {
		return err
	}

	// Flatten nested conf map
	flat, err := flatten.Flatten(envKeysMap, "", flatten.DotStyle)
	if err != nil {
		return errors.Wrap(err, "Unable to flatten configuration")
	}

	for k := range flat {
		if err := viperConfig.BindEnv(k); err != nil {
			return errors.Wrap(model.ErrConfig, "env var bind error: "+err.Error())
		}
	}

	return nil
}

// nolint:gocyclo // parameter validation is cyclomatic
func (c *Configuration) envVarIntersightOverrides(viperConfig *viper.Viper) error {
	opts := &c.IntersightOptions

	if viperConfig.GetString("intersight.endpoint") != "" {
		opts.Endpoint = viperConfig.GetString("intersight.endpoint")
	}

	endpoint, err := url.Parse(opts.Endpoint)
	if err != nil {
		return errors.New("intersight endpoint URL error: " + err.Error())
	}

	if endpoint.Scheme == "" || endpoint.Host == "" {
		return errors.New("intersight endpoint URL must be absolute: " + opts.Endpoint)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = defaultIntersightTimeout
	}

	if opts.RetryMax < 0 {
		return errors.New("intersight retry_max must not be negative")
	}

	// the in-memory store needs no credentials
	if c.DryRun || opts.DisableOAuth {
		return nil
	}

	if opts.OidcIssuerEndpoint == "" && opts.TokenURL == "" {
		return errors.New("intersight oidc_issuer_endpoint or token_url not defined")
	}

	if opts.OidcClientID == "" {
		return errors.New("intersight oidc_client_id not defined")
	}

	if opts.OidcClientSecret == "" {
		return errors.New("intersight oidc_client_secret not defined")
	}

	return nil
}
