package preflight

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/lexindex/internal/crawler"
)

// CheckStatus is the outcome of one check.
type CheckStatus int

const (
	StatusPass CheckStatus = iota
	StatusWarn
	StatusFail
)

// String returns PASS, WARN or FAIL.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the status by name in JSON.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses PASS, WARN or FAIL.
func (s *CheckStatus) UnmarshalText(b []byte) error {
	switch string(b) {
	case "PASS":
		*s = StatusPass
	case "WARN":
		*s = StatusWarn
	case "FAIL":
		*s = StatusFail
	default:
		return fmt.Errorf("unknown check status %q", b)
	}
	return nil
}

// CheckResult is the outcome of one check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical reports whether a required check failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Tool is an external binary lexindex shells out to.
type Tool struct {
	Name     string
	Binary   string
	Required bool
}

// Probe is a caller-supplied check. Run returns a short message on
// success.
type Probe struct {
	Name     string
	Required bool
	Run      func(ctx context.Context) (string, error)
}

// Options selects what a Checker looks at.
type Options struct {
	Roots []crawler.Root
	// DataDir is checked for write access and free space. Empty skips both.
	DataDir      string
	MinFreeBytes uint64
	Tools        []Tool
	Probes       []Probe
	// ProbeTimeout bounds each probe. Defaults to 5s.
	ProbeTimeout time.Duration
}

// MinDiskSpaceBytes is the default free-space floor for the data directory.
const MinDiskSpaceBytes = 100 * 1024 * 1024

// MinFileDescriptors is the open-file limit below which a warning is given.
const MinFileDescriptors = 1024

// Checker runs preflight checks.
type Checker struct {
	opts     Options
	lookPath func(string) (string, error)
}

// New creates a Checker.
func New(opts Options) *Checker {
	if opts.MinFreeBytes == 0 {
		opts.MinFreeBytes = MinDiskSpaceBytes
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 5 * time.Second
	}
	return &Checker{opts: opts, lookPath: exec.LookPath}
}

// RunAll runs every check in a fixed order.
func (c *Checker) RunAll(ctx context.Context) []CheckResult {
	results := []CheckResult{c.CheckRoots()}
	if c.opts.DataDir != "" {
		results = append(results,
			c.CheckWritePermissions(c.opts.DataDir),
			c.CheckDiskSpace(c.opts.DataDir))
	}
	results = append(results, c.CheckFileDescriptors())
	for _, t := range c.opts.Tools {
		results = append(results, c.CheckTool(t))
	}
	for _, p := range c.opts.Probes {
		results = append(results, c.runProbe(ctx, p))
	}
	return results
}

// HasCriticalFailures reports whether any required check failed.
func HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus condenses results to ready, ready_with_warnings or failed.
func SummaryStatus(results []CheckResult) string {
	warn := false
	for _, r := range results {
		if r.IsCritical() {
			return "failed"
		}
		if r.Status != StatusPass {
			warn = true
		}
	}
	if warn {
		return "ready_with_warnings"
	}
	return "ready"
}

// CheckRoots passes when every root is a readable directory. Missing
// roots warn unless none is usable.
func (c *Checker) CheckRoots() CheckResult {
	res := CheckResult{Name: "roots", Required: true}
	if len(c.opts.Roots) == 0 {
		res.Status = StatusFail
		res.Message = "no document roots configured or found"
		res.Details = "Create Mevzuat/ or Yargı/ here, or set roots in lexindex.yaml"
		return res
	}

	usable := 0
	var missing []string
	for _, r := range c.opts.Roots {
		if _, err := os.ReadDir(r.Path); err != nil {
			missing = append(missing, fmt.Sprintf("%s (%s)", r.Path, r.Source))
			continue
		}
		usable++
	}
	switch {
	case usable == 0:
		res.Status = StatusFail
		res.Message = "no root is a readable directory"
	case len(missing) > 0:
		res.Status = StatusWarn
		res.Message = fmt.Sprintf("%d of %d roots readable", usable, len(c.opts.Roots))
	default:
		res.Status = StatusPass
		res.Message = fmt.Sprintf("%d roots readable", usable)
	}
	if len(missing) > 0 {
		res.Details = fmt.Sprintf("unreadable: %v", missing)
	}
	return res
}

// CheckWritePermissions creates dir if needed and writes a scratch file.
func (c *Checker) CheckWritePermissions(dir string) CheckResult {
	res := CheckResult{Name: "data_dir", Required: true}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		res.Status = StatusFail
		res.Message = fmt.Sprintf("cannot create %s: %v", dir, err)
		return res
	}
	f, err := os.CreateTemp(dir, ".lexindex-preflight-*")
	if err != nil {
		res.Status = StatusFail
		res.Message = fmt.Sprintf("permission denied: %v", err)
		return res
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)

	res.Status = StatusPass
	res.Message = dir + " is writable"
	return res
}

// CheckDiskSpace checks free space on the filesystem holding path.
func (c *Checker) CheckDiskSpace(path string) CheckResult {
	res := CheckResult{Name: "disk_space", Required: true}
	avail, err := freeBytes(existingAncestor(path))
	if errors.Is(err, errUnsupported) {
		res.Status = StatusWarn
		res.Message = "free space check not supported on this platform"
		return res
	}
	if err != nil {
		res.Status = StatusFail
		res.Message = fmt.Sprintf("failed to check disk space: %v", err)
		return res
	}

	res.Message = fmt.Sprintf("%s free (minimum: %s)", FormatBytes(avail), FormatBytes(c.opts.MinFreeBytes))
	if avail < c.opts.MinFreeBytes {
		res.Status = StatusFail
		return res
	}
	res.Status = StatusPass
	return res
}

// CheckFileDescriptors warns when the open-file limit is low.
func (c *Checker) CheckFileDescriptors() CheckResult {
	res := CheckResult{Name: "file_descriptors"}
	limit, err := openFileLimit()
	if errors.Is(err, errUnsupported) {
		res.Status = StatusPass
		res.Message = "no limit check on this platform"
		return res
	}
	if err != nil {
		res.Status = StatusWarn
		res.Message = fmt.Sprintf("failed to read limit: %v", err)
		return res
	}
	res.Message = fmt.Sprintf("%d (minimum: %d)", limit, MinFileDescriptors)
	if limit < MinFileDescriptors {
		res.Status = StatusWarn
		res.Details = "Run 'ulimit -n 10240' to raise the limit"
		return res
	}
	res.Status = StatusPass
	return res
}

// CheckTool looks t.Binary up on PATH.
func (c *Checker) CheckTool(t Tool) CheckResult {
	res := CheckResult{Name: t.Name, Required: t.Required}
	p, err := c.lookPath(t.Binary)
	if err != nil {
		res.Status = StatusFail
		if !t.Required {
			res.Status = StatusWarn
		}
		res.Message = t.Binary + " not found on PATH"
		return res
	}
	res.Status = StatusPass
	res.Message = p
	return res
}

func (c *Checker) runProbe(ctx context.Context, p Probe) CheckResult {
	res := CheckResult{Name: p.Name, Required: p.Required}
	ctx, cancel := context.WithTimeout(ctx, c.opts.ProbeTimeout)
	defer cancel()

	msg, err := p.Run(ctx)
	if err != nil {
		res.Status = StatusFail
		if !p.Required {
			res.Status = StatusWarn
		}
		res.Message = err.Error()
		return res
	}
	res.Status = StatusPass
	res.Message = msg
	return res
}

// existingAncestor walks up until a path exists, so a data dir that is
// not created yet is measured on the filesystem it would live on.
func existingAncestor(p string) string {
	p = filepath.Clean(p)
	for {
		if _, err := os.Stat(p); !errors.Is(err, fs.ErrNotExist) {
			return p
		}
		parent := filepath.Dir(p)
		if parent == p {
			return p
		}
		p = parent
	}
}

// FormatBytes renders a byte count with a binary unit.
func FormatBytes(n uint64) string {
	const unit = 1024
	switch {
	case n >= unit*unit*unit*unit:
		return fmt.Sprintf("%.1f TB", float64(n)/(unit*unit*unit*unit))
	case n >= unit*unit*unit:
		return fmt.Sprintf("%.1f GB", float64(n)/(unit*unit*unit))
	case n >= unit*unit:
		return fmt.Sprintf("%.1f MB", float64(n)/(unit*unit))
	case n >= unit:
		return fmt.Sprintf("%.1f KB", float64(n)/unit)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}

var errUnsupported = errors.New("unsupported on this platform")
