package ffmpeg

import (
	"context"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// ToolStatus reports the availability of one external tool.
type ToolStatus struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ToolChecker probes the external tools with "-version" and caches the
// result. The health endpoint calls this on every request, but tool
// availability changes rarely, so results are held for a TTL.
type ToolChecker struct {
	mu          sync.RWMutex
	statuses    map[string]ToolStatus
	lastChecked map[string]time.Time
	cacheTTL    time.Duration
}

// NewToolChecker creates a new tool checker.
func NewToolChecker() *ToolChecker {
	return &ToolChecker{
		statuses:    make(map[string]ToolStatus),
		lastChecked: make(map[string]time.Time),
		cacheTTL:    5 * time.Minute,
	}
}

// WithCacheTTL sets the cache TTL for tool checks.
func (c *ToolChecker) WithCacheTTL(ttl time.Duration) *ToolChecker {
	c.cacheTTL = ttl
	return c
}

// Check reports whether the binary at path runs, by invoking it with
// -version under a short timeout.
func (c *ToolChecker) Check(ctx context.Context, name, path string) ToolStatus {
	c.mu.RLock()
	if status, ok := c.statuses[name]; ok && time.Since(c.lastChecked[name]) < c.cacheTTL {
		c.mu.RUnlock()
		return status
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock
	if status, ok := c.statuses[name]; ok && time.Since(c.lastChecked[name]) < c.cacheTTL {
		return status
	}

	status := checkTool(ctx, name, path)
	c.statuses[name] = status
	c.lastChecked[name] = time.Now()
	return status
}

// Clear drops all cached tool statuses.
func (c *ToolChecker) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses = make(map[string]ToolStatus)
	c.lastChecked = make(map[string]time.Time)
}

// checkTool runs "<path> -version" and parses the first output line.
func checkTool(ctx context.Context, name, path string) ToolStatus {
	status := ToolStatus{Name: name, Path: path}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, "-version")
	output, err := cmd.Output()
	if err != nil {
		status.Error = err.Error()
		return status
	}

	status.Available = true
	if lines := strings.SplitN(string(output), "\n", 2); len(lines) > 0 {
		status.Version = parseVersionLine(lines[0])
	}
	return status
}

// parseVersionLine extracts the version token from a "-version" banner such
// as "ffprobe version 6.1.1 Copyright ..." or "mkvpropedit v80.0 ('...')".
func parseVersionLine(line string) string {
	fields := strings.Fields(line)
	for i, field := range fields {
		if field == "version" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	// mkvtoolnix style: second field is "v80.0"
	if len(fields) >= 2 && strings.HasPrefix(fields[1], "v") {
		return strings.TrimPrefix(fields[1], "v")
	}
	return strings.TrimSpace(line)
}
