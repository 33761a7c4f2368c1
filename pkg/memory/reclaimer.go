package memory

import (
	"log/slog"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/shirou/gopsutil/v3/process"
)

// Sampler reports the resident set size of the current process in bytes.
type Sampler func() (uint64, error)

type ReclaimerConfig struct {
	Every      int    // reclaim after every N documents
	LimitBytes uint64 // reclaim whenever RSS exceeds this; 0 disables
	Sampler    Sampler
	Logger     *slog.Logger
}

// Reclaimer forces garbage collection between documents to keep peak memory
// bounded on long job lists.
type Reclaimer struct {
	config  ReclaimerConfig
	logger  *slog.Logger
	reclaim func()
	count   int
}

func NewWithConfig(config ReclaimerConfig) *Reclaimer {
	if config.Every <= 0 {
		config.Every = 5
	}
	if config.Sampler == nil {
		config.Sampler = ProcessRSS
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reclaimer{
		config:  config,
		logger:  logger.With("component", "memory"),
		reclaim: FreeMemory,
	}
}

// After is called once a document has been processed. It reports whether
// memory was reclaimed.
func (r *Reclaimer) After(documents int) bool {
	var rss uint64
	overLimit := false
	if r.config.LimitBytes > 0 {
		sample, err := r.config.Sampler()
		if err != nil {
			r.logger.Debug("failed to sample memory", "err", err)
		} else {
			rss = sample
			overLimit = sample > r.config.LimitBytes
		}
	}
	if documents%r.config.Every != 0 && !overLimit {
		return false
	}

	r.reclaim()
	r.count++
	r.logger.Debug("reclaimed memory", "documents", documents, "rss", rss, "over_limit", overLimit)
	return true
}

// Count is the number of reclamations performed.
func (r *Reclaimer) Count() int {
	return r.count
}

// FreeMemory runs a full collection and returns freed pages to the OS.
func FreeMemory() {
	runtime.GC()
	debug.FreeOSMemory()
}

// ProcessRSS samples the resident memory of this process.
func ProcessRSS() (uint64, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, err
	}
	info, err := p.MemoryInfo()
	if err != nil {
		return 0, err
	}
	return info.RSS, nil
}
