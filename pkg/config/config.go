package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the booru fetch pipeline
type Config struct {
	// Booru API endpoint, credentials and search query
	Booru BooruConfig `yaml:"booru" json:"booru"`

	// Post acceptance policy
	Filter FilterConfig `yaml:"filter" json:"filter"`

	// Download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Sidecar normalization settings
	Sidecar SidecarConfig `yaml:"sidecar" json:"sidecar"`

	// Retry policy for HTTP fetches
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Rate limiting for media downloads
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// BooruConfig holds the API endpoint, credentials, and paging parameters
type BooruConfig struct {
	APIURL    string        `yaml:"api_url" json:"api_url"`
	Login     string        `yaml:"login" json:"login"`
	APIKey    string        `yaml:"api_key" json:"api_key"`
	Tags      string        `yaml:"tags" json:"tags"`
	PageSize  int           `yaml:"page_size" json:"page_size"`
	StartPage int           `yaml:"start_page" json:"start_page"`
	EndPage   int           `yaml:"end_page" json:"end_page"`   // exclusive, 0 = unbounded
	MaxPages  int           `yaml:"max_pages" json:"max_pages"` // 0 = unbounded
	PageDelay time.Duration `yaml:"page_delay" json:"page_delay"`
}

// FilterConfig holds the acceptance policy bounds.
// Zero values mean "no bound" except for the dimension fields, which always
// apply (defaults are permissive).
type FilterConfig struct {
	Blacklist []string `yaml:"blacklist" json:"blacklist"`
	MinWidth  int      `yaml:"min_width" json:"min_width"`
	MinHeight int      `yaml:"min_height" json:"min_height"`
	MaxWidth  int      `yaml:"max_width" json:"max_width"`
	MaxHeight int      `yaml:"max_height" json:"max_height"`
	MinID     int64    `yaml:"min_id" json:"min_id"`
	MaxID     int64    `yaml:"max_id" json:"max_id"`
	MinDate   string   `yaml:"min_date" json:"min_date"` // YYYY-MM-DD, empty = none
	MaxDate   string   `yaml:"max_date" json:"max_date"`
	MinScore  *int     `yaml:"min_score" json:"min_score"`
	MaxScore  *int     `yaml:"max_score" json:"max_score"`
	Ratings   []string `yaml:"ratings" json:"ratings"` // empty = all ratings allowed
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	Concurrency int           `yaml:"concurrency" json:"concurrency"` // 0 = NumCPU-1
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	Directory string `yaml:"directory" json:"directory"`
	EmbedTags bool   `yaml:"embed_tags" json:"embed_tags"` // tag-embedding file names
}

// SidecarConfig holds the post-run sidecar normalization settings
type SidecarConfig struct {
	PromoteSearchTags bool   `yaml:"promote_search_tags" json:"promote_search_tags"`
	TriggerWords      string `yaml:"trigger_words" json:"trigger_words"`
}

// RetryConfig holds the retry policy for HTTP fetches
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	Delay       time.Duration `yaml:"delay" json:"delay"`
	Backoff     string        `yaml:"backoff" json:"backoff"` // constant, linear, or exponential
}

// RateLimitConfig holds rate limiting configuration for media downloads
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"` // empty = <output dir>/log/log.txt
}

// defaultBlacklist excludes text, translation, and image-metadata tag
// families that make posts unsuitable as training material.
var defaultBlacklist = []string{
	"translated", "translation_request", "check_translation",
	"alternate_language", "hard-translated", "partially_translated",
	"poorly_translated", "reverse_translation",
	"lowres", "traditional_media", "animated", "animated_gif",
	"watermark", "copyright_notice", "artist_name", "signature",
	"character_signature", "twitter_username", "web_address",
	"character_name", "circle_name", "commissioner_name", "company_name",
	"completion_time", "copyright_name", "dated", "group_name", "logo",
	"content_rating", "song_name", "weapon_name",
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Booru: BooruConfig{
			APIURL:    "https://danbooru.donmai.us/posts.json",
			PageSize:  200,
			StartPage: 1,
			PageDelay: 1 * time.Second,
		},
		Filter: FilterConfig{
			Blacklist: append([]string(nil), defaultBlacklist...),
			MinWidth:  480,
			MinHeight: 480,
			MaxWidth:  32000,
			MaxHeight: 32000,
		},
		Download: DownloadConfig{
			Concurrency: 0, // auto
			Timeout:     10 * time.Second,
		},
		Output: OutputConfig{
			Directory: "./booru_downloads",
			EmbedTags: false,
		},
		Sidecar: SidecarConfig{
			PromoteSearchTags: true,
			TriggerWords:      "",
		},
		Retry: RetryConfig{
			MaxAttempts: 5,
			Delay:       2 * time.Second,
			Backoff:     "constant",
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromFile loads configuration from a YAML file.
// Missing file is not an error when path is empty; the defaults stand.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		// Look for config in default locations
		for _, candidate := range defaultConfigPaths() {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func defaultConfigPaths() []string {
	paths := []string{"boorufetch.yaml", ".boorufetch.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "boorufetch", "config.yaml"),
			filepath.Join(home, ".boorufetch.yaml"),
		)
	}
	return paths
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if login := os.Getenv("BOORUFETCH_LOGIN"); login != "" {
		c.Booru.Login = login
	}
	if apiKey := os.Getenv("BOORUFETCH_API_KEY"); apiKey != "" {
		c.Booru.APIKey = apiKey
	}
	if tags := os.Getenv("BOORUFETCH_TAGS"); tags != "" {
		c.Booru.Tags = tags
	}
	if apiURL := os.Getenv("BOORUFETCH_API_URL"); apiURL != "" {
		c.Booru.APIURL = apiURL
	}
	if outputDir := os.Getenv("BOORUFETCH_OUTPUT_DIR"); outputDir != "" {
		c.Output.Directory = outputDir
	}
	if concurrency := os.Getenv("BOORUFETCH_CONCURRENCY"); concurrency != "" {
		if val, err := strconv.Atoi(concurrency); err == nil && val > 0 {
			c.Download.Concurrency = val
		}
	}
	if trigger := os.Getenv("BOORUFETCH_TRIGGER_WORDS"); trigger != "" {
		c.Sidecar.TriggerWords = trigger
	}
	if level := os.Getenv("BOORUFETCH_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	return nil
}

// validRatings are the single-letter category codes the API uses.
var validRatings = map[string]bool{
	"g": true, // general
	"s": true, // sensitive
	"q": true, // questionable
	"e": true, // explicit
}

// Validate checks the configuration for inconsistencies
func (c *Config) Validate() error {
	var errs []error

	if c.Booru.APIURL == "" {
		errs = append(errs, errors.New("booru API URL is required"))
	}
	if c.Booru.Tags == "" {
		errs = append(errs, errors.New("search tags are required"))
	}
	if c.Booru.PageSize <= 0 || c.Booru.PageSize > 200 {
		errs = append(errs, errors.New("page size must be between 1 and 200"))
	}
	if c.Booru.StartPage < 1 {
		errs = append(errs, errors.New("start page must be at least 1"))
	}
	if c.Booru.EndPage != 0 && c.Booru.EndPage <= c.Booru.StartPage {
		errs = append(errs, errors.New("end page must be greater than start page"))
	}
	if c.Booru.MaxPages < 0 {
		errs = append(errs, errors.New("max pages cannot be negative"))
	}
	if c.Booru.PageDelay < 0 {
		errs = append(errs, errors.New("page delay cannot be negative"))
	}

	if c.Filter.MinWidth < 0 || c.Filter.MinHeight < 0 {
		errs = append(errs, errors.New("minimum dimensions cannot be negative"))
	}
	if c.Filter.MaxWidth <= c.Filter.MinWidth {
		errs = append(errs, errors.New("max width must be greater than min width"))
	}
	if c.Filter.MaxHeight <= c.Filter.MinHeight {
		errs = append(errs, errors.New("max height must be greater than min height"))
	}
	if c.Filter.MaxID != 0 && c.Filter.MaxID < c.Filter.MinID {
		errs = append(errs, errors.New("max id cannot be below min id"))
	}
	if c.Filter.MinScore != nil && c.Filter.MaxScore != nil && *c.Filter.MaxScore < *c.Filter.MinScore {
		errs = append(errs, errors.New("max score cannot be below min score"))
	}
	for _, r := range c.Filter.Ratings {
		if !validRatings[strings.ToLower(r)] {
			errs = append(errs, fmt.Errorf("invalid rating %q (expected one of g, s, q, e)", r))
		}
	}
	for _, d := range []string{c.Filter.MinDate, c.Filter.MaxDate} {
		if d == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", d); err != nil {
			errs = append(errs, fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", d))
		}
	}

	if c.Download.Concurrency < 0 {
		errs = append(errs, errors.New("concurrency cannot be negative"))
	}
	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}

	if c.Output.Directory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry attempts must be at least 1"))
	}
	if c.Retry.Delay < 0 {
		errs = append(errs, errors.New("retry delay cannot be negative"))
	}
	switch strings.ToLower(c.Retry.Backoff) {
	case "", "constant", "linear", "exponential":
	default:
		errs = append(errs, errors.New("retry backoff must be constant, linear, or exponential"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if tags, ok := flags["tags"].(string); ok && tags != "" {
		c.Booru.Tags = tags
	}
	if login, ok := flags["login"].(string); ok && login != "" {
		c.Booru.Login = login
	}
	if apiKey, ok := flags["api-key"].(string); ok && apiKey != "" {
		c.Booru.APIKey = apiKey
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.Directory = outputDir
	}
	if startPage, ok := flags["start-page"].(int); ok && startPage > 0 {
		c.Booru.StartPage = startPage
	}
	if endPage, ok := flags["end-page"].(int); ok && endPage > 0 {
		c.Booru.EndPage = endPage
	}
	if maxPages, ok := flags["max-pages"].(int); ok && maxPages > 0 {
		c.Booru.MaxPages = maxPages
	}
	if concurrency, ok := flags["concurrency"].(int); ok && concurrency > 0 {
		c.Download.Concurrency = concurrency
	}
	if trigger, ok := flags["trigger-words"].(string); ok && trigger != "" {
		c.Sidecar.TriggerWords = trigger
	}
	if embedTags, ok := flags["embed-tags"].(bool); ok {
		c.Output.EmbedTags = embedTags
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// LogFile resolves the activity log path, defaulting to a log subdirectory
// of the output directory.
func (c *Config) LogFile() string {
	if c.Logging.File != "" {
		return c.Logging.File
	}
	return filepath.Join(c.Output.Directory, "log", "log.txt")
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	if home, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(home, ".boorufetch.env"))
	}

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
