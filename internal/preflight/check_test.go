package preflight

import (
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/lexindex/internal/crawler"
)

func byName(results []CheckResult) map[string]CheckResult {
	out := make(map[string]CheckResult, len(results))
	for _, r := range results {
		out[r.Name] = r
	}
	return out
}

func TestRunAll_HealthySetup(t *testing.T) {
	// Given a readable root and a data dir that does not exist yet
	root := t.TempDir()
	c := New(Options{
		Roots:        []crawler.Root{{Path: root, Source: "mevzuat"}},
		DataDir:      filepath.Join(t.TempDir(), "data", "nested"),
		MinFreeBytes: 1,
		Probes: []Probe{{
			Name:     "index",
			Required: true,
			Run:      func(context.Context) (string, error) { return "3 documents", nil },
		}},
	})

	// When running every check
	results := c.RunAll(context.Background())

	// Then nothing is critical and the probe ran
	got := byName(results)
	assert.Equal(t, StatusPass, got["roots"].Status)
	assert.Equal(t, StatusPass, got["data_dir"].Status)
	assert.NotEqual(t, StatusFail, got["disk_space"].Status)
	assert.Equal(t, "3 documents", got["index"].Message)
	assert.False(t, HasCriticalFailures(results))
	assert.NotEqual(t, "failed", SummaryStatus(results))
}

func TestCheckRoots(t *testing.T) {
	good := t.TempDir()
	missing := filepath.Join(t.TempDir(), "Yargı")

	tests := []struct {
		name  string
		roots []crawler.Root
		want  CheckStatus
	}{
		{"none configured", nil, StatusFail},
		{"all missing", []crawler.Root{{Path: missing, Source: "yargi"}}, StatusFail},
		{"some missing", []crawler.Root{{Path: good, Source: "mevzuat"}, {Path: missing, Source: "yargi"}}, StatusWarn},
		{"all readable", []crawler.Root{{Path: good, Source: "mevzuat"}}, StatusPass},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := New(Options{Roots: tt.roots}).CheckRoots()
			assert.Equal(t, tt.want, res.Status)
			assert.True(t, res.Required)
		})
	}
}

func TestCheckTool(t *testing.T) {
	c := New(Options{})
	c.lookPath = func(name string) (string, error) {
		if name == "tesseract" {
			return "/usr/bin/tesseract", nil
		}
		return "", exec.ErrNotFound
	}

	assert.Equal(t, StatusPass, c.CheckTool(Tool{Name: "tesseract", Binary: "tesseract", Required: true}).Status)

	required := c.CheckTool(Tool{Name: "pdftoppm", Binary: "pdftoppm", Required: true})
	assert.True(t, required.IsCritical())

	optional := c.CheckTool(Tool{Name: "pdftoppm", Binary: "pdftoppm"})
	assert.Equal(t, StatusWarn, optional.Status)
	assert.False(t, optional.IsCritical())
}

func TestProbeFailures(t *testing.T) {
	failing := func(context.Context) (string, error) { return "", errors.New("connection refused") }
	c := New(Options{Probes: []Probe{
		{Name: "remote", Run: failing},
		{Name: "index", Required: true, Run: failing},
	}})

	got := byName(c.RunAll(context.Background()))

	assert.Equal(t, StatusWarn, got["remote"].Status)
	assert.Equal(t, StatusFail, got["index"].Status)
	assert.Equal(t, "connection refused", got["index"].Message)
}

func TestProbe_HonorsTimeout(t *testing.T) {
	c := New(Options{ProbeTimeout: 10 * time.Millisecond})
	res := c.runProbe(context.Background(), Probe{Name: "slow", Run: func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}})

	assert.Equal(t, StatusWarn, res.Status)
	assert.Contains(t, res.Message, "deadline")
}

func TestCheckDiskSpace_FloorTooHigh(t *testing.T) {
	c := New(Options{MinFreeBytes: 1 << 62})

	res := c.CheckDiskSpace(t.TempDir())

	assert.NotEqual(t, StatusPass, res.Status)
}

func TestSummaryStatus(t *testing.T) {
	pass := CheckResult{Status: StatusPass}
	warn := CheckResult{Status: StatusWarn}
	fail := CheckResult{Status: StatusFail, Required: true}

	assert.Equal(t, "ready", SummaryStatus([]CheckResult{pass}))
	assert.Equal(t, "ready_with_warnings", SummaryStatus([]CheckResult{pass, warn}))
	assert.Equal(t, "failed", SummaryStatus([]CheckResult{warn, fail}))
}

func TestCheckStatus_JSON(t *testing.T) {
	b, err := json.Marshal(CheckResult{Name: "roots", Status: StatusWarn})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"status":"WARN"`)

	var back CheckResult
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, StatusWarn, back.Status)
	assert.Error(t, json.Unmarshal([]byte(`{"status":"MAYBE"}`), &back))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 bytes", FormatBytes(512))
	assert.Equal(t, "1.5 KB", FormatBytes(1536))
	assert.Equal(t, "100.0 MB", FormatBytes(MinDiskSpaceBytes))
}
