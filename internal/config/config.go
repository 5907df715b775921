package config

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/go-github/v59/github"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const (
	DefaultPluginRegistryURL = "https://cdn.jsdelivr.net/gh/obsidianmd/obsidian-releases/community-plugins.json"
	DefaultThemeRegistryURL  = "https://cdn.jsdelivr.net/gh/obsidianmd/obsidian-releases/community-css-themes.json"
)

type Config struct {
	Stage               string        `envconfig:"STAGE" default:"dev"`
	VaultDir            string        `envconfig:"VAULT_DIR" default:"."`
	ConfigDir           string        `envconfig:"CONFIG_DIR" default:".obsidian"`
	SettingsPluginID    string        `envconfig:"SETTINGS_PLUGIN_ID" default:"plugin-manager"`
	PluginRegistryURL   string        `envconfig:"PLUGIN_REGISTRY_URL" default:"https://cdn.jsdelivr.net/gh/obsidianmd/obsidian-releases/community-plugins.json"`
	ThemeRegistryURL    string        `envconfig:"THEME_REGISTRY_URL" default:"https://cdn.jsdelivr.net/gh/obsidianmd/obsidian-releases/community-css-themes.json"`
	GitHubAPIURL        string        `envconfig:"GITHUB_API_URL" default:"https://api.github.com/"`
	GitHubDownloadURL   string        `envconfig:"GITHUB_DOWNLOAD_URL" default:"https://github.com"`
	GitHubToken         string        `envconfig:"GITHUB_TOKEN"`
	HTTPTimeout         time.Duration `envconfig:"HTTP_TIMEOUT" default:"1m"`
	HTTPRetryMax        int           `envconfig:"HTTP_RETRY_MAX" default:"0"`
	UpdateConcurrency   int64         `envconfig:"UPDATE_CONCURRENCY" default:"4"`
	RegistryCacheTTL    time.Duration `envconfig:"REGISTRY_CACHE_TTL" default:"5m"`
	BackupBackend       string        `envconfig:"BACKUP_BACKEND" default:"local"`
	S3Bucket            string        `envconfig:"S3_BUCKET"`
	S3Endpoint          string        `envconfig:"S3_ENDPOINT"`
	S3Region            string        `envconfig:"S3_REGION" default:"auto"`
	S3AccessKeyID       string        `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey   string        `envconfig:"S3_SECRET_ACCESS_KEY"`
	HistoryBackend      string        `envconfig:"HISTORY_BACKEND" default:"sqlite"`
	FirestoreProjectID  string        `envconfig:"FIRESTORE_PROJECT_ID"`
	Port                string        `envconfig:"PORT" default:"8080"`
	BindAddress         string        `envconfig:"BIND_ADDRESS" default:"127.0.0.1"`
	AdminAccessToken    string        `envconfig:"ADMIN_ACCESS_TOKEN"`
	DisableRequestCache bool          `envconfig:"DISABLE_REQUEST_CACHE"`
	DisableMetrics      bool          `envconfig:"DISABLE_METRICS"`
	MetricsProjectID    string        `envconfig:"METRICS_PROJECT_ID"`
	LogLevel            string        `envconfig:"LOG_LEVEL" default:"info"`
	Version             string        `ignored:"true"`
}

func NewConfigFromEnv() (*Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) GetServerAddr() string {
	return c.BindAddress + ":" + c.Port
}

// ConfigPath joins elem onto the vault's config directory. The result is
// relative to the vault root.
func (c *Config) ConfigPath(elem ...string) string {
	return path.Join(append([]string{c.ConfigDir}, elem...)...)
}

func (c *Config) SettingsPath() string {
	return c.ConfigPath("plugins", c.SettingsPluginID, "data.json")
}

func (c *Config) NewLogger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		log.Warnf("invalid log level %q, using info", c.LogLevel)
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

// CreateGitHubClient builds a GitHub API client on top of httpClient. When a
// token is configured requests are authenticated through oauth2.
func (c *Config) CreateGitHubClient(httpClient *http.Client) (*github.Client, error) {
	if c.GitHubToken != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.GitHubToken}))
	}
	ghClient := github.NewClient(httpClient)
	apiURL := c.GitHubAPIURL
	if !strings.HasSuffix(apiURL, "/") {
		apiURL += "/"
	}
	baseURL, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid GitHub API URL %q: %w", c.GitHubAPIURL, err)
	}
	ghClient.BaseURL = baseURL
	return ghClient, nil
}

func (c *Config) s3EndpointResolver(_, _ string, _ ...interface{}) (aws.Endpoint, error) {
	return aws.Endpoint{
		URL:               c.S3Endpoint,
		HostnameImmutable: true,
	}, nil
}

func (c *Config) CreateS3Client() (*s3.Client, error) {
	if c.S3Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is missing")
	}
	opts := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(c.S3Region),
	}
	if c.S3AccessKeyID != "" {
		opts = append(opts, awsConfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.S3AccessKeyID,
			c.S3SecretAccessKey,
			"",
		)))
	}
	if c.S3Endpoint != "" {
		opts = append(opts, awsConfig.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(c.s3EndpointResolver)))
	}
	s3Cfg, err := awsConfig.LoadDefaultConfig(context.TODO(), opts...)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(s3Cfg), nil
}
