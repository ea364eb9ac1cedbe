package merge

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/patrickmn/go-cache"

	"vareview/internal/media/ffprobe"
	"vareview/internal/services"
)

// Prober extracts video metadata from a local file.
type Prober interface {
	Probe(ctx context.Context, path string) (ffprobe.Summary, error)
}

type inspectFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// FFprobe probes videos with the ffprobe binary. Results are memoised per
// path, size and modification time so re-merging the same dataset does not
// re-run the binary.
type FFprobe struct {
	binary  string
	cache   *cache.Cache
	inspect inspectFunc
}

// NewFFprobe returns a memoising prober. ttl bounds how long a probe result
// is reused.
func NewFFprobe(binary string, ttl time.Duration) *FFprobe {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &FFprobe{
		binary:  binary,
		cache:   cache.New(ttl, 2*ttl),
		inspect: ffprobe.Inspect,
	}
}

// Probe returns the summary for path.
func (p *FFprobe) Probe(ctx context.Context, path string) (ffprobe.Summary, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ffprobe.Summary{}, services.Wrap(services.ErrNotFound, "merge", "probe video", "Video file unavailable", err)
	}
	key := fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())
	if cached, ok := p.cache.Get(key); ok {
		if summary, ok := cached.(ffprobe.Summary); ok {
			return summary, nil
		}
	}
	result, err := p.inspect(ctx, p.binary, path)
	if err != nil {
		return ffprobe.Summary{}, services.Wrap(services.ErrExternalTool, "merge", "probe video", "ffprobe failed", err)
	}
	summary := result.Summarize()
	p.cache.Set(key, summary, cache.DefaultExpiration)
	return summary, nil
}
