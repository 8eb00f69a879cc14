package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// envLookup resolves variables from the process environment first and a
// .env file second. The .env values never leak into os.Environ.
type envLookup struct {
	dotenv map[string]string
}

func newEnvLookup(dotenvPath string) (*envLookup, error) {
	l := &envLookup{dotenv: map[string]string{}}
	if !fileExists(dotenvPath) {
		return l, nil
	}
	values, err := godotenv.Read(dotenvPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dotenvPath, err)
	}
	l.dotenv = values
	return l, nil
}

// get returns the first non-empty value among keys.
func (l *envLookup) get(keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := os.LookupEnv(k); ok && v != "" {
			return v, true
		}
		if v, ok := l.dotenv[k]; ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// applyEnvOverrides applies LEXINDEX_* variables. The unprefixed names
// (LEGAL_ROOTS, ENABLE_OCR, MEILISEARCH_URL, ...) are accepted as aliases
// for deployments that already export them.
func (c *Config) applyEnvOverrides(env *envLookup) error {
	if v, ok := env.get("LEXINDEX_ROOTS", "LEGAL_ROOTS"); ok {
		c.Roots = ParseRoots(v)
	}

	bools := []struct {
		keys []string
		dst  *bool
	}{
		{[]string{"LEXINDEX_ENABLE_OCR", "ENABLE_OCR"}, &c.Extract.EnableOCR},
		{[]string{"LEXINDEX_ENABLE_PDF_OCR", "ENABLE_PDF_OCR"}, &c.Extract.EnablePDFOCR},
		{[]string{"LEXINDEX_ENABLE_FTS", "ENABLE_FTS"}, &c.Index.EnableFTS},
		{[]string{"LEXINDEX_WATCH"}, &c.Index.Watch},
	}
	for _, b := range bools {
		if v, ok := env.get(b.keys...); ok {
			parsed, err := parseBool(v)
			if err != nil {
				return fmt.Errorf("%s: invalid boolean %q", b.keys[0], v)
			}
			*b.dst = parsed
		}
	}

	strs := []struct {
		keys []string
		dst  *string
	}{
		{[]string{"LEXINDEX_REMOTE_URL", "MEILISEARCH_URL", "MEILI_URL"}, &c.Remote.URL},
		{[]string{"LEXINDEX_REMOTE_API_KEY", "MEILISEARCH_API_KEY", "MEILI_MASTER_KEY"}, &c.Remote.APIKey},
		{[]string{"LEXINDEX_REMOTE_INDEX"}, &c.Remote.Index},
		{[]string{"LEXINDEX_BACKEND"}, &c.Index.Backend},
		{[]string{"LEXINDEX_DATA_DIR"}, &c.Index.DataDir},
		{[]string{"LEXINDEX_ADDR"}, &c.Server.Addr},
		{[]string{"LEXINDEX_LOG_LEVEL"}, &c.Logging.Level},
		{[]string{"LEXINDEX_LOG_FILE"}, &c.Logging.File},
		{[]string{"LEXINDEX_OCR_LANGUAGES"}, &c.Extract.OCRLanguages},
		{[]string{"LEXINDEX_TOOL_TIMEOUT"}, &c.Extract.ToolTimeout},
	}
	for _, s := range strs {
		if v, ok := env.get(s.keys...); ok {
			*s.dst = v
		}
	}

	ints := []struct {
		keys []string
		dst  *int
	}{
		{[]string{"LEXINDEX_WORKERS"}, &c.Index.Workers},
		{[]string{"LEXINDEX_MIN_PDF_TEXT_CHARS"}, &c.Extract.MinPDFTextChars},
		{[]string{"LEXINDEX_MAX_FILES"}, &c.Crawl.MaxFiles},
	}
	for _, n := range ints {
		if v, ok := env.get(n.keys...); ok {
			parsed, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: invalid integer %q", n.keys[0], v)
			}
			*n.dst = parsed
		}
	}
	return nil
}
