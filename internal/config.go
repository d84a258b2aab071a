package internal

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config is the full configuration for one smoke run.
type Config struct {
	// OAuth holds the client-credentials grant settings.
	OAuth OAuthConfig `yaml:"oauth"`
	// API holds the hosting provider REST API settings.
	API APIConfig `yaml:"api"`
	// Storage holds the relational store settings.
	Storage StorageConfig `yaml:"storage"`
	// Delivery holds the simulated webhook delivery settings.
	Delivery DeliveryConfig `yaml:"delivery"`
	// Flow holds the per-run constants of the smoke sequence.
	Flow FlowConfig `yaml:"flow"`
}

// OAuthConfig configures token acquisition against the provider.
type OAuthConfig struct {
	ClientID     string `yaml:"client_id" envconfig:"OAUTH_CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" envconfig:"OAUTH_CLIENT_SECRET"`
	TokenURL     string `yaml:"token_url" envconfig:"OAUTH_TOKEN_URL"`
}

// APIConfig configures the provider REST surface.
type APIConfig struct {
	BaseURL string `yaml:"base_url" envconfig:"API_BASE_URL"`
}

// StorageConfig configures the relational store. Either a full DSN or the
// discrete connection parameters may be supplied.
type StorageConfig struct {
	Driver     string `yaml:"driver" envconfig:"DB_DRIVER"`
	DSN        string `yaml:"dsn" envconfig:"DB_DSN"`
	Host       string `yaml:"host" envconfig:"DB_HOST"`
	Port       string `yaml:"port" envconfig:"DB_PORT"`
	Name       string `yaml:"name" envconfig:"DB_NAME"`
	User       string `yaml:"user" envconfig:"DB_USER"`
	Password   string `yaml:"password" envconfig:"DB_PASSWORD"`
	ReposTable string `yaml:"repos_table" envconfig:"DB_REPOS_TABLE"`
	HunksTable string `yaml:"hunks_table" envconfig:"DB_HUNKS_TABLE"`
}

// DeliveryConfig configures how the simulated webhook event is delivered.
type DeliveryConfig struct {
	Driver    string            `yaml:"driver" envconfig:"DELIVERY_DRIVER"`
	HTTP      HTTPDelivery      `yaml:"http"`
	SQL       SQLDelivery       `yaml:"sql"`
	GoChannel GoChannelDelivery `yaml:"gochannel"`
}

// HTTPDelivery holds configuration for the HTTP delivery driver.
type HTTPDelivery struct {
	Mode    string `yaml:"mode" envconfig:"DELIVERY_HTTP_MODE"`
	BaseURL string `yaml:"base_url" envconfig:"DELIVERY_HTTP_BASE_URL"`
}

// SQLDelivery holds configuration for the SQL delivery driver.
type SQLDelivery struct {
	Driver           string `yaml:"driver" envconfig:"DELIVERY_SQL_DRIVER"`
	DSN              string `yaml:"dsn" envconfig:"DELIVERY_SQL_DSN"`
	Dialect          string `yaml:"dialect" envconfig:"DELIVERY_SQL_DIALECT"`
	InitializeSchema bool   `yaml:"initialize_schema" envconfig:"DELIVERY_SQL_INITIALIZE_SCHEMA"`
}

// GoChannelDelivery holds configuration for the in-process delivery driver.
type GoChannelDelivery struct {
	OutputChannelBuffer int64 `yaml:"output_buffer" envconfig:"DELIVERY_GOCHANNEL_OUTPUT_BUFFER"`
	Persistent          bool  `yaml:"persistent" envconfig:"DELIVERY_GOCHANNEL_PERSISTENT"`
}

// FlowConfig holds the constants of the smoke sequence. Every field has a
// default matching the canonical test flow, so a minimal configuration only
// needs credentials, the store, and the webhook receiver.
type FlowConfig struct {
	Workspace         string `yaml:"workspace" envconfig:"WORKSPACE"`
	RepoName          string `yaml:"repo_name" envconfig:"REPO_NAME"`
	Provider          string `yaml:"provider" envconfig:"PROVIDER"`
	WebhookURL        string `yaml:"webhook_url" envconfig:"WEBHOOK_URL"`
	SourceBranch      string `yaml:"source_branch" envconfig:"SOURCE_BRANCH"`
	DestinationBranch string `yaml:"destination_branch" envconfig:"DESTINATION_BRANCH"`
	FileName          string `yaml:"file_name" envconfig:"FILE_NAME"`
	FileContent       string `yaml:"file_content" envconfig:"FILE_CONTENT"`
	CommitMessage     string `yaml:"commit_message" envconfig:"COMMIT_MESSAGE"`
	PRTitle           string `yaml:"pr_title" envconfig:"PR_TITLE"`
	PRReason          string `yaml:"pr_reason" envconfig:"PR_REASON"`
	PollDelayMS       int64  `yaml:"poll_delay_ms" envconfig:"POLL_DELAY_MS"`
}

// LoadConfig loads the configuration from a YAML file. It expands environment
// variables and applies default values.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return cfg, err
	}

	applyDefaults(&cfg)
	return cfg, nil
}

// ConfigFromEnv builds the configuration from PRSMOKE_* environment variables
// and applies default values.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("prsmoke", &cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	return cfg, nil
}

// Validate reports the first missing required setting.
func (c Config) Validate() error {
	if c.OAuth.ClientID == "" || c.OAuth.ClientSecret == "" {
		return errors.New("oauth client_id and client_secret are required")
	}
	if c.Flow.WebhookURL == "" && strings.EqualFold(c.Delivery.Driver, "http") {
		return errors.New("flow webhook_url is required for http delivery")
	}
	if _, err := c.Storage.ResolveDSN(); err != nil {
		return err
	}
	return nil
}

// ResolveDSN returns the configured DSN, assembling one from the discrete
// connection parameters when no full DSN is given.
func (s StorageConfig) ResolveDSN() (string, error) {
	if s.DSN != "" {
		return s.DSN, nil
	}
	switch strings.ToLower(s.Driver) {
	case "postgres", "postgresql", "pgx":
		if s.Host == "" || s.Name == "" {
			return "", errors.New("storage host and name are required when no dsn is given")
		}
		parts := []string{fmt.Sprintf("host=%s", s.Host)}
		if s.Port != "" {
			parts = append(parts, fmt.Sprintf("port=%s", s.Port))
		}
		parts = append(parts, fmt.Sprintf("dbname=%s", s.Name))
		if s.User != "" {
			parts = append(parts, fmt.Sprintf("user=%s", s.User))
		}
		if s.Password != "" {
			parts = append(parts, fmt.Sprintf("password=%s", s.Password))
		}
		return strings.Join(parts, " "), nil
	case "mysql":
		if s.Host == "" || s.Name == "" {
			return "", errors.New("storage host and name are required when no dsn is given")
		}
		addr := s.Host
		if s.Port != "" {
			addr = addr + ":" + s.Port
		}
		return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true", s.User, s.Password, addr, s.Name), nil
	default:
		return "", fmt.Errorf("storage dsn is required for driver %q", s.Driver)
	}
}

func applyDefaults(cfg *Config) {
	if cfg.OAuth.TokenURL == "" {
		cfg.OAuth.TokenURL = "https://bitbucket.org/site/oauth2/access_token"
	}
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = "https://api.bitbucket.org/2.0"
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "postgres"
	}
	if cfg.Storage.Port == "" {
		cfg.Storage.Port = "5432"
	}
	if cfg.Storage.ReposTable == "" {
		cfg.Storage.ReposTable = "repos"
	}
	if cfg.Storage.HunksTable == "" {
		cfg.Storage.HunksTable = "hunks"
	}
	if cfg.Delivery.Driver == "" {
		cfg.Delivery.Driver = "http"
	}
	if cfg.Delivery.HTTP.Mode == "" {
		cfg.Delivery.HTTP.Mode = "topic_url"
	}
	if cfg.Delivery.GoChannel.OutputChannelBuffer == 0 {
		cfg.Delivery.GoChannel.OutputChannelBuffer = 64
	}
	if cfg.Flow.Workspace == "" {
		cfg.Flow.Workspace = "alokit-innovations-test"
	}
	if cfg.Flow.RepoName == "" {
		cfg.Flow.RepoName = "on-prem-bitbucket-test-repo"
	}
	if cfg.Flow.Provider == "" {
		cfg.Flow.Provider = "bitbucket"
	}
	if cfg.Flow.SourceBranch == "" {
		cfg.Flow.SourceBranch = "feature/dummy"
	}
	if cfg.Flow.DestinationBranch == "" {
		cfg.Flow.DestinationBranch = "main"
	}
	if cfg.Flow.FileName == "" {
		cfg.Flow.FileName = "dummy_file.txt"
	}
	if cfg.Flow.FileContent == "" {
		cfg.Flow.FileContent = `print("This is a modified dummy file")`
	}
	if cfg.Flow.CommitMessage == "" {
		cfg.Flow.CommitMessage = "Add/Update file"
	}
	if cfg.Flow.PRTitle == "" {
		cfg.Flow.PRTitle = "Dummy PR"
	}
	if cfg.Flow.PRReason == "" {
		cfg.Flow.PRReason = "Merging modified dummy feature"
	}
	if cfg.Flow.PollDelayMS == 0 {
		cfg.Flow.PollDelayMS = 180000
	}
}
