// Package config provides configuration management for lexindex.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/lexindex/configs"
)

// ProjectFileName is the per-directory configuration file.
const ProjectFileName = "lexindex.yaml"

// Config holds all lexindex settings.
type Config struct {
	Version int           `yaml:"version"`
	Roots   []RootConfig  `yaml:"roots"`
	Crawl   CrawlConfig   `yaml:"crawl"`
	Extract ExtractConfig `yaml:"extract"`
	Index   IndexConfig   `yaml:"index"`
	Search  SearchConfig  `yaml:"search"`
	Remote  RemoteConfig  `yaml:"remote"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

// RootConfig is one directory to crawl and the source tag its documents carry.
type RootConfig struct {
	Path   string `yaml:"path"`
	Source string `yaml:"source"`
}

// CrawlConfig bounds the file walk.
type CrawlConfig struct {
	MaxFiles      int `yaml:"max_files"`
	MaxFileSizeMB int `yaml:"max_file_size_mb"`
	// ExcludeDirs are directory names pruned before descending.
	ExcludeDirs []string `yaml:"exclude_dirs"`
	// ExcludePathParts are case-insensitive substrings of the full path.
	ExcludePathParts []string `yaml:"exclude_path_parts"`
	// ExcludeGlobs are doublestar patterns matched against root-relative paths.
	ExcludeGlobs []string `yaml:"exclude_globs"`
	// IgnoreFile is a gitignore-syntax file read from each root. Empty disables it.
	IgnoreFile string `yaml:"ignore_file"`
}

// ExtractConfig controls text extraction and the OCR fallback.
type ExtractConfig struct {
	EnableOCR    bool   `yaml:"enable_ocr"`
	EnablePDFOCR bool   `yaml:"enable_pdf_ocr"`
	OCRLanguages string `yaml:"ocr_languages"`
	RasterDPI    int    `yaml:"raster_dpi"`
	// MinPDFTextChars is the embedded-text length below which a PDF is
	// treated as scanned.
	MinPDFTextChars int    `yaml:"min_pdf_text_chars"`
	ToolTimeout     string `yaml:"tool_timeout"`
	OCRPageWorkers  int    `yaml:"ocr_page_workers"`
	CacheSize       int    `yaml:"cache_size"`
	RasterizerPath  string `yaml:"rasterizer_path"`
	TesseractPath   string `yaml:"tesseract_path"`
}

// IndexConfig controls the embedded backend and the reindex job.
type IndexConfig struct {
	EnableFTS bool `yaml:"enable_fts"`
	// Backend is the embedded backend: "sqlite" or "bleve".
	Backend       string `yaml:"backend"`
	DataDir       string `yaml:"data_dir"`
	Workers       int    `yaml:"workers"`
	StartupDelay  string `yaml:"startup_delay"`
	Watch         bool   `yaml:"watch"`
	WatchDebounce string `yaml:"watch_debounce"`
}

// BM25Weights are per-column weights passed to the FTS5 bm25() function.
type BM25Weights struct {
	Path    float64 `yaml:"path"`
	Title   float64 `yaml:"title"`
	Content float64 `yaml:"content"`
}

// SearchConfig controls query limits, snippets and the scan fallback.
type SearchConfig struct {
	DefaultLimit     int         `yaml:"default_limit"`
	MaxLimit         int         `yaml:"max_limit"`
	ListDefaultLimit int         `yaml:"list_default_limit"`
	ListMaxLimit     int         `yaml:"list_max_limit"`
	SnippetChars     int         `yaml:"snippet_chars"`
	SnippetTokens    int         `yaml:"snippet_tokens"`
	BM25             BM25Weights `yaml:"bm25_weights"`
	MaxTerms         int         `yaml:"max_terms"`
	ScanCandidates   int         `yaml:"scan_candidates"`
	ScanMaxResults   int         `yaml:"scan_max_results"`
	RateLimitPerMin  int         `yaml:"rate_limit_per_min"`
}

// RemoteConfig configures the optional Meilisearch backend.
// The backend is enabled whenever URL is set.
type RemoteConfig struct {
	URL              string `yaml:"url"`
	APIKey           string `yaml:"api_key"`
	Index            string `yaml:"index"`
	Timeout          string `yaml:"timeout"`
	FailureThreshold int    `yaml:"failure_threshold"`
	ResetTimeout     string `yaml:"reset_timeout"`
}

// Enabled reports whether a remote backend is configured.
func (r RemoteConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != ""
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// MountPrefix additionally serves the API under this path.
	MountPrefix string `yaml:"mount_prefix"`
}

// LoggingConfig configures slog output.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	File      string `yaml:"file"`
	MaxSizeMB int    `yaml:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files"`
}

var defaultExcludeDirs = []string{
	".git", ".hg", ".svn", ".venv", "__pycache__", "node_modules",
	"dist", "build", "out", "logs", ".idea", ".vscode", ".DS_Store",
	"yargi_mcp.egg-info", "mevzuat_mcp.egg-info",
}

var defaultExcludePathParts = []string{
	"site-packages", "egg-info", "node_modules", ".venv", "/logs/", `\logs\`,
}

// defaultRoots are tried relative to the working directory when no roots
// are configured. Only directories that exist are used.
var defaultRoots = []RootConfig{
	{Path: "Mevzuat", Source: "mevzuat"},
	{Path: "Yargı", Source: "yargi"},
}

// NewConfig creates a new Config with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Crawl: CrawlConfig{
			MaxFiles:         20000,
			MaxFileSizeMB:    25,
			ExcludeDirs:      append([]string(nil), defaultExcludeDirs...),
			ExcludePathParts: append([]string(nil), defaultExcludePathParts...),
			IgnoreFile:       ".lexindexignore",
		},
		Extract: ExtractConfig{
			EnableOCR:       false,
			EnablePDFOCR:    true,
			OCRLanguages:    "tur+eng",
			RasterDPI:       180,
			MinPDFTextChars: 30,
			ToolTimeout:     "2m",
			OCRPageWorkers:  2,
			CacheSize:       500,
			RasterizerPath:  "pdftoppm",
			TesseractPath:   "tesseract",
		},
		Index: IndexConfig{
			EnableFTS:     true,
			Backend:       "sqlite",
			DataDir:       "data",
			Workers:       4,
			StartupDelay:  "1500ms",
			WatchDebounce: "2s",
		},
		Search: SearchConfig{
			DefaultLimit:     20,
			MaxLimit:         50,
			ListDefaultLimit: 100,
			ListMaxLimit:     500,
			SnippetChars:     240,
			SnippetTokens:    32,
			BM25:             BM25Weights{Path: 1.2, Title: 0.75, Content: 1.0},
			MaxTerms:         8,
			ScanCandidates:   2000,
			ScanMaxResults:   200,
			RateLimitPerMin:  30,
		},
		Remote: RemoteConfig{
			Index:            "legal",
			Timeout:          "5s",
			FailureThreshold: 3,
			ResetTimeout:     "30s",
		},
		Server: ServerConfig{
			Addr:        "127.0.0.1:8787",
			MountPrefix: "/legal",
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "json",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// GetUserConfigPath returns the user-wide configuration file path,
// honoring XDG_CONFIG_HOME.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "lexindex", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "lexindex", "config.yaml")
	}
	return filepath.Join(home, ".config", "lexindex", "config.yaml")
}

// Load loads configuration for the working directory dir.
// It applies, in order of increasing precedence:
//  1. Defaults
//  2. User config (~/.config/lexindex/config.yaml)
//  3. Project config (explicit path, or lexindex.yaml in dir)
//  4. Environment variables, with dir/.env filling unset ones
//
// Relative root and data paths are resolved against dir.
func Load(dir, explicitPath string) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, err
		}
	}

	projectPath := explicitPath
	if projectPath == "" {
		for _, name := range []string{ProjectFileName, "lexindex.yml"} {
			if p := filepath.Join(dir, name); fileExists(p) {
				projectPath = p
				break
			}
		}
	} else if !fileExists(projectPath) {
		return nil, fmt.Errorf("config file not found: %s", projectPath)
	}
	if projectPath != "" {
		if err := cfg.loadYAML(projectPath); err != nil {
			return nil, err
		}
	}

	env, err := newEnvLookup(filepath.Join(dir, ".env"))
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnvOverrides(env); err != nil {
		return nil, err
	}

	cfg.resolvePaths(dir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadYAML decodes path over the current values, so keys absent from the
// file keep their previous value.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// resolvePaths makes root and data paths absolute and fills in default
// roots when none are configured.
func (c *Config) resolvePaths(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}

	if len(c.Roots) == 0 {
		for _, r := range defaultRoots {
			if dirExists(abs(r.Path)) {
				c.Roots = append(c.Roots, RootConfig{Path: abs(r.Path), Source: r.Source})
			}
		}
	}
	for i := range c.Roots {
		c.Roots[i].Path = filepath.Clean(abs(c.Roots[i].Path))
		c.Roots[i].Source = normalizeSource(c.Roots[i].Source)
		if c.Roots[i].Source == "" {
			c.Roots[i].Source = sourceFromPath(c.Roots[i].Path)
		}
	}
	c.Index.DataDir = abs(c.Index.DataDir)
}

// ParseRoots parses "path:source,path:source". The last colon separates the
// source tag so Windows drive letters survive; an entry without a tag is
// labeled after its directory name. Tags are lowercased.
func ParseRoots(list string) []RootConfig {
	var roots []RootConfig
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		path, source := part, ""
		if i := strings.LastIndex(part, ":"); i > 0 && !isDriveColon(part, i) {
			path, source = strings.TrimSpace(part[:i]), normalizeSource(part[i+1:])
		}
		if path == "" {
			continue
		}
		if source == "" {
			source = sourceFromPath(path)
		}
		roots = append(roots, RootConfig{Path: path, Source: source})
	}
	return roots
}

// isDriveColon reports whether the colon at i is the "C:" of a Windows path.
func isDriveColon(s string, i int) bool {
	return i == 1 && len(s) > 2 && (s[2] == '\\' || s[2] == '/')
}

func sourceFromPath(p string) string {
	return normalizeSource(filepath.Base(filepath.Clean(p)))
}

// normalizeSource lowercases a source tag; search filters compare lowercase.
func normalizeSource(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ToolTimeout returns extract.tool_timeout as a duration.
func (c *Config) ToolTimeout() time.Duration {
	return mustDuration(c.Extract.ToolTimeout, 2*time.Minute)
}

// StartupDelay returns index.startup_delay as a duration.
func (c *Config) StartupDelay() time.Duration {
	return mustDuration(c.Index.StartupDelay, 1500*time.Millisecond)
}

// WatchDebounce returns index.watch_debounce as a duration.
func (c *Config) WatchDebounce() time.Duration {
	return mustDuration(c.Index.WatchDebounce, 2*time.Second)
}

// RemoteTimeout returns remote.timeout as a duration.
func (c *Config) RemoteTimeout() time.Duration {
	return mustDuration(c.Remote.Timeout, 5*time.Second)
}

// RemoteResetTimeout returns remote.reset_timeout as a duration.
func (c *Config) RemoteResetTimeout() time.Duration {
	return mustDuration(c.Remote.ResetTimeout, 30*time.Second)
}

// MaxFileSizeBytes returns the crawl size cap in bytes.
func (c *Config) MaxFileSizeBytes() int64 {
	return int64(c.Crawl.MaxFileSizeMB) * 1024 * 1024
}

// mustDuration parses s, falling back to def. Validate rejects bad values
// before they reach here.
func mustDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	for _, r := range c.Roots {
		if strings.TrimSpace(r.Path) == "" {
			return fmt.Errorf("roots: path must not be empty")
		}
		if strings.TrimSpace(r.Source) == "" {
			return fmt.Errorf("roots: source for %s must not be empty", r.Path)
		}
	}

	positive := map[string]int{
		"crawl.max_files":           c.Crawl.MaxFiles,
		"crawl.max_file_size_mb":    c.Crawl.MaxFileSizeMB,
		"extract.raster_dpi":        c.Extract.RasterDPI,
		"extract.ocr_page_workers":  c.Extract.OCRPageWorkers,
		"extract.cache_size":        c.Extract.CacheSize,
		"index.workers":             c.Index.Workers,
		"search.default_limit":      c.Search.DefaultLimit,
		"search.max_limit":          c.Search.MaxLimit,
		"search.list_default_limit": c.Search.ListDefaultLimit,
		"search.list_max_limit":     c.Search.ListMaxLimit,
		"search.snippet_chars":      c.Search.SnippetChars,
		"search.max_terms":          c.Search.MaxTerms,
		"search.scan_candidates":    c.Search.ScanCandidates,
		"search.scan_max_results":   c.Search.ScanMaxResults,
	}
	for name, v := range positive {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, v)
		}
	}
	if c.Extract.MinPDFTextChars < 0 {
		return fmt.Errorf("extract.min_pdf_text_chars must be non-negative, got %d", c.Extract.MinPDFTextChars)
	}
	if c.Search.DefaultLimit > c.Search.MaxLimit {
		return fmt.Errorf("search.default_limit (%d) exceeds search.max_limit (%d)", c.Search.DefaultLimit, c.Search.MaxLimit)
	}
	if c.Search.SnippetTokens < 1 || c.Search.SnippetTokens > 64 {
		return fmt.Errorf("search.snippet_tokens must be between 1 and 64, got %d", c.Search.SnippetTokens)
	}
	if c.Search.BM25.Path < 0 || c.Search.BM25.Title < 0 || c.Search.BM25.Content < 0 {
		return fmt.Errorf("search.bm25_weights must be non-negative")
	}

	switch strings.ToLower(c.Index.Backend) {
	case "sqlite", "bleve":
	default:
		return fmt.Errorf("index.backend must be 'sqlite' or 'bleve', got %s", c.Index.Backend)
	}

	durations := map[string]string{
		"extract.tool_timeout": c.Extract.ToolTimeout,
		"index.startup_delay":  c.Index.StartupDelay,
		"index.watch_debounce": c.Index.WatchDebounce,
		"remote.timeout":       c.Remote.Timeout,
		"remote.reset_timeout": c.Remote.ResetTimeout,
	}
	for name, v := range durations {
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err != nil || d < 0 {
			return fmt.Errorf("%s must be a non-negative duration, got %q", name, v)
		}
	}

	if c.Remote.Enabled() {
		if !strings.HasPrefix(c.Remote.URL, "http://") && !strings.HasPrefix(c.Remote.URL, "https://") {
			return fmt.Errorf("remote.url must start with http:// or https://, got %s", c.Remote.URL)
		}
		if c.Remote.Index == "" {
			return fmt.Errorf("remote.index must not be empty")
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return writeConfigFile(path, data)
}

// WriteTemplate writes the commented default configuration to path.
func WriteTemplate(path string) error {
	return writeConfigFile(path, []byte(configs.ConfigTemplate))
}

func writeConfigFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	return strconv.ParseBool(strings.TrimSpace(v))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
