package common

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
)

// Config is the top-level deployment configuration, loaded from
// deployment.json per spec §6. It couples one Infrastructure block with
// the list of per-tenant TenantConfig entries.
type Config struct {
	Environment    string               `json:"environment"`
	Infrastructure InfrastructureConfig `json:"infrastructure"`
	Logging        LoggingConfig        `json:"logging"`
	Tenants        []TenantConfig       `json:"tenants"`
}

// InfrastructureConfig is the deployment.json "infrastructure" block.
type InfrastructureConfig struct {
	HTTPTimeoutS           int                         `json:"http_timeout"`
	MaxConcurrentRequests  int                         `json:"max_concurrent_requests"`
	OperationMode          string                      `json:"operation_mode"` // "online" or "offline"
	LogLevel               string                      `json:"log_level"`
	MCPPort                int                         `json:"mcp_port"`
	ArticleExtractorFallback ArticleExtractorFallback `json:"article_extractor_fallback"`
}

// ArticleExtractorFallback configures the offsite article-extraction
// service used when primary HTML extraction yields an empty result.
type ArticleExtractorFallback struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
}

// LoggingConfig is the console/file writer configuration SetupLogger
// consumes.
type LoggingConfig struct {
	Level         string   `json:"level"`
	Format        string   `json:"format"`
	Output        []string `json:"output"`
	TimeFormat    string   `json:"time_format"`
	ClientDebug   bool     `json:"client_debug"`
	MinEventLevel string   `json:"min_event_level"`
}

// SearchBoosts is the deployment.json "search.boosts" map — field name to
// BM25F field weight, per spec §4.3.
type SearchBoosts map[string]float64

// RankingConfig is the deployment.json "search.ranking" block.
type RankingConfig struct {
	BM25K1              float64 `json:"bm25_k1"`
	BM25B               float64 `json:"bm25_b"`
	EnableProximityBonus bool   `json:"enable_proximity_bonus"`
}

// SnippetConfig is the deployment.json "search.snippet" block, per spec
// §4.12's sentence-aware snippet builder.
type SnippetConfig struct {
	FragmentCharLimit int    `json:"fragment_char_limit"`
	Style             string `json:"style"` // "plain" or "html"
	MaxFragments      int    `json:"max_fragments"`
}

// TenantSearchConfig is the deployment.json tenant "search" block.
type TenantSearchConfig struct {
	Enabled         bool          `json:"enabled"`
	Engine          string        `json:"engine"`
	AnalyzerProfile string        `json:"analyzer_profile"`
	Boosts          SearchBoosts  `json:"boosts"`
	Ranking         RankingConfig `json:"ranking"`
	Snippet         SnippetConfig `json:"snippet"`
}

// TenantConfig is one entry of the deployment.json "tenants" array, per
// spec §6.
type TenantConfig struct {
	Codename             string   `json:"codename"`
	DocsName             string   `json:"docs_name"`
	SourceType           string   `json:"source_type"` // "crawler", "git", or "filesystem"
	DocsRootDir          string   `json:"docs_root_dir,omitempty"`
	DocsSitemapURL       string   `json:"docs_sitemap_url,omitempty"`
	DocsEntryURL         string   `json:"docs_entry_url,omitempty"`
	URLWhitelistPrefixes []string `json:"url_whitelist_prefixes,omitempty"`
	URLBlacklistPrefixes []string `json:"url_blacklist_prefixes,omitempty"`
	GitRepoURL           string   `json:"git_repo_url,omitempty"`
	GitBranch            string   `json:"git_branch,omitempty"`
	GitSubpaths          []string `json:"git_subpaths,omitempty"`
	StripPrefix          string   `json:"strip_prefix,omitempty"`
	AuthTokenEnv         string   `json:"auth_token_env,omitempty"`
	RefreshSchedule      string   `json:"refresh_schedule,omitempty"` // standard 5-field cron

	Search TenantSearchConfig `json:"search"`
}

const (
	sourceTypeCrawler    = "crawler"
	sourceTypeGit        = "git"
	sourceTypeFilesystem = "filesystem"
)

// NewDefaultConfig returns infrastructure/logging defaults merged under
// whatever deployment.json supplies. Technical parameters are hardcoded
// here for production stability; only user-facing settings belong in
// deployment.json.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "production",
		Infrastructure: InfrastructureConfig{
			HTTPTimeoutS:          30,
			MaxConcurrentRequests: 10,
			OperationMode:         "online",
			LogLevel:              "info",
			MCPPort:               8723,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05.000",
		},
	}
}

// LoadFromFile loads deployment.json and applies environment overrides.
// This is the single config entrypoint used throughout cmd/.
func LoadFromFile(path string) (*Config, error) {
	config := NewDefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("read %s: %v", path, err)}
	}
	if err := json.Unmarshal(data, config); err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("parse %s: %v", path, err)}
	}

	applyEnvOverrides(config)

	if err := ValidateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

// ValidateConfig enforces spec §6's load-time rules: duplicate codenames
// are an error, and each tenant must carry the fields its source_type
// requires.
func ValidateConfig(config *Config) error {
	seen := make(map[string]bool, len(config.Tenants))
	for _, t := range config.Tenants {
		if t.Codename == "" {
			return &ConfigError{Reason: "tenant missing required field \"codename\""}
		}
		if seen[t.Codename] {
			return &ConfigError{Reason: fmt.Sprintf("duplicate tenant codename %q", t.Codename)}
		}
		seen[t.Codename] = true

		if err := validateTenantSourceFields(t); err != nil {
			return err
		}
		if t.RefreshSchedule != "" {
			if err := ValidateJobSchedule(t.RefreshSchedule); err != nil {
				return &ConfigError{Reason: fmt.Sprintf("tenant %q: %v", t.Codename, err)}
			}
		}
	}
	return nil
}

func validateTenantSourceFields(t TenantConfig) error {
	switch t.SourceType {
	case sourceTypeCrawler:
		if t.DocsEntryURL == "" && t.DocsSitemapURL == "" {
			return &ConfigError{Reason: fmt.Sprintf("tenant %q: source_type \"crawler\" requires docs_entry_url or docs_sitemap_url", t.Codename)}
		}
	case sourceTypeGit:
		if t.GitRepoURL == "" {
			return &ConfigError{Reason: fmt.Sprintf("tenant %q: source_type \"git\" requires git_repo_url", t.Codename)}
		}
	case sourceTypeFilesystem:
		if t.DocsRootDir == "" {
			return &ConfigError{Reason: fmt.Sprintf("tenant %q: source_type \"filesystem\" requires docs_root_dir", t.Codename)}
		}
	case "":
		return &ConfigError{Reason: fmt.Sprintf("tenant %q missing required field \"source_type\"", t.Codename)}
	default:
		return &ConfigError{Reason: fmt.Sprintf("tenant %q: unknown source_type %q", t.Codename, t.SourceType)}
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to config,
// taking highest priority over the file and the built-in defaults.
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("QUAERO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}
	if mode := os.Getenv("QUAERO_OPERATION_MODE"); mode != "" {
		config.Infrastructure.OperationMode = mode
	}
	if level := os.Getenv("QUAERO_LOG_LEVEL"); level != "" {
		config.Infrastructure.LogLevel = level
		config.Logging.Level = level
	}
	if port := os.Getenv("QUAERO_MCP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Infrastructure.MCPPort = p
		}
	}
}

// ApplyFlagOverrides applies CLI flag overrides (highest priority).
func ApplyFlagOverrides(config *Config, mcpPort int) {
	if mcpPort > 0 {
		config.Infrastructure.MCPPort = mcpPort
	}
}

// ValidateJobSchedule validates a standard 5-field cron expression; config
// validation calls it for each refresh schedule (services/scheduler.New
// parses the expression itself with cron.ParseStandard).
func ValidateJobSchedule(schedule string) error {
	if schedule == "" {
		return fmt.Errorf("schedule cannot be empty")
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	return nil
}

// IsProduction reports whether Environment is "production" (the default).
func (c *Config) IsProduction() bool {
	return c.Environment == "" || c.Environment == "production"
}

// AllowTestURLs reports whether non-production URL patterns (localhost,
// 127.0.0.1, etc.) should be accepted without warning.
func (c *Config) AllowTestURLs() bool {
	return !c.IsProduction()
}

// HTTPTimeout returns the infrastructure HTTP timeout as a Duration.
func (c *Config) HTTPTimeout() time.Duration {
	if c.Infrastructure.HTTPTimeoutS <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Infrastructure.HTTPTimeoutS) * time.Second
}
