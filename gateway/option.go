package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/n9te9/go-graphql-supergraph-mesh/federation/executor"
	"github.com/n9te9/go-graphql-supergraph-mesh/federation/subgraph"
)

// SubgraphOption is the per-subgraph configuration, matched by the subgraph's real name.
type SubgraphOption struct {
	Name                  string               `yaml:"name"`
	Endpoint              string               `yaml:"endpoint"`
	OperationHeaders      map[string]string    `yaml:"operation_headers"`
	Headers               map[string]string    `yaml:"headers"`
	Timeout               string               `yaml:"timeout"`
	Retry                 executor.RetryOption `yaml:"retry"`
	UseGETForQueries      bool                 `yaml:"use_get_for_queries"`
	TLSInsecureSkipVerify bool                 `yaml:"tls_insecure_skip_verify"`
}

type MeshOption struct {
	Source             string            `yaml:"source"`
	BaseDir            string            `yaml:"base_dir"`
	SourcePollInterval string            `yaml:"source_poll_interval"`
	SchemaHeaders      map[string]string `yaml:"schema_headers"`
	OperationHeaders   map[string]string `yaml:"operation_headers"`
	Batch              *bool             `yaml:"batch" default:"true"`
	Subgraphs          []SubgraphOption  `yaml:"subgraphs"`

	Server        ServerSetting        `yaml:"server"`
	Opentelemetry OpentelemetrySetting `yaml:"opentelemetry"`
	Log           LogSetting           `yaml:"log"`
}

type ServerSetting struct {
	Port            int    `yaml:"port" default:"8080"`
	ShutdownTimeout string `yaml:"shutdown_timeout" default:"5s"`
}

type OpentelemetrySetting struct {
	ServiceName    string                      `yaml:"service_name" default:"supergraph-mesh"`
	TracingSetting OpentelemetryTracingSetting `yaml:"tracing"`
}

type OpentelemetryTracingSetting struct {
	Enable bool `yaml:"enable" default:"false"`
	// Endpoint overrides the OTLP exporter URL; empty uses the OTEL_EXPORTER_* defaults.
	Endpoint string `yaml:"endpoint"`
}

type LogSetting struct {
	Level       string `yaml:"level" default:"info"`
	Development bool   `yaml:"development" default:"false"`
}

// LoadOption reads a YAML mesh configuration. A relative base_dir, or a missing one, is
// resolved against the directory of path.
func LoadOption(path string) (*MeshOption, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	option, err := ParseOption(src)
	if err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	if option.BaseDir == "" {
		option.BaseDir = dir
	} else if !filepath.IsAbs(option.BaseDir) {
		option.BaseDir = filepath.Join(dir, option.BaseDir)
	}

	return option, nil
}

// ParseOption decodes and validates a YAML mesh configuration.
func ParseOption(src []byte) (*MeshOption, error) {
	var option MeshOption
	if err := yaml.Unmarshal(src, &option); err != nil {
		return nil, err
	}

	option.applyDefaults()
	if err := option.Validate(); err != nil {
		return nil, err
	}

	return &option, nil
}

func (o *MeshOption) applyDefaults() {
	if o.Batch == nil {
		enabled := true
		o.Batch = &enabled
	}
	if o.Server.Port == 0 {
		o.Server.Port = 8080
	}
	if o.Server.ShutdownTimeout == "" {
		o.Server.ShutdownTimeout = "5s"
	}
	if o.Opentelemetry.ServiceName == "" {
		o.Opentelemetry.ServiceName = "supergraph-mesh"
	}
	if o.Log.Level == "" {
		o.Log.Level = "info"
	}
}

// Validate reports configuration errors.
func (o *MeshOption) Validate() error {
	var errs []error
	if o.Source == "" {
		errs = append(errs, errors.New("source is required"))
	}
	if _, err := parseDuration(o.SourcePollInterval); err != nil {
		errs = append(errs, fmt.Errorf("source_poll_interval: %w", err))
	}
	if _, err := parseDuration(o.Server.ShutdownTimeout); err != nil {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout: %w", err))
	}

	seen := make(map[string]bool, len(o.Subgraphs))
	for i, s := range o.Subgraphs {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("subgraphs[%d]: name is required", i))
			continue
		}
		if seen[s.Name] {
			errs = append(errs, fmt.Errorf("subgraphs[%d]: duplicate name %q", i, s.Name))
		}
		seen[s.Name] = true

		if _, err := parseDuration(s.Timeout); err != nil {
			errs = append(errs, fmt.Errorf("subgraphs[%d].timeout: %w", i, err))
		}
		if _, err := parseDuration(s.Retry.Backoff); err != nil {
			errs = append(errs, fmt.Errorf("subgraphs[%d].retry.backoff: %w", i, err))
		}
	}

	return errors.Join(errs...)
}

// BatchEnabled reports whether requests to subgraphs may be batched. Defaults to true.
func (o *MeshOption) BatchEnabled() bool {
	return o.Batch == nil || *o.Batch
}

// PollInterval returns how often the source should be reloaded, zero meaning never.
func (o *MeshOption) PollInterval() time.Duration {
	d, _ := parseDuration(o.SourcePollInterval)
	return d
}

// ShutdownTimeout returns the graceful shutdown timeout.
func (o *MeshOption) ShutdownTimeout() time.Duration {
	d, _ := parseDuration(o.Server.ShutdownTimeout)
	if d <= 0 {
		return 5 * time.Second
	}
	return d
}

// subgraphConfigs converts the subgraph options into factory configurations.
// client, when set, is shared by every subgraph transport.
func (o *MeshOption) subgraphConfigs(client *http.Client, tracing bool) []subgraph.Config {
	configs := make([]subgraph.Config, 0, len(o.Subgraphs))
	for _, s := range o.Subgraphs {
		timeout, _ := parseDuration(s.Timeout)

		transport := executor.Options{
			Timeout:               timeout,
			Retry:                 s.Retry,
			UseGETForQueries:      s.UseGETForQueries,
			TLSInsecureSkipVerify: s.TLSInsecureSkipVerify,
			EnableTracing:         tracing,
		}
		if len(s.Headers) > 0 {
			transport.Headers = make(http.Header, len(s.Headers))
			for k, v := range s.Headers {
				transport.Headers.Set(k, v)
			}
		}
		if client != nil {
			c := *client
			if timeout > 0 {
				c.Timeout = timeout
			}
			transport.Client = &c
		}

		configs = append(configs, subgraph.Config{
			Name:             s.Name,
			Endpoint:         s.Endpoint,
			OperationHeaders: s.OperationHeaders,
			Transport:        transport,
		})
	}
	return configs
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
