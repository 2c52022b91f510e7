package coupon

import (
	"bufio"
	"context"
	"os"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"
)

// CodeSetConfig controls code-list loading and membership rules.
type CodeSetConfig struct {
	// Capacity is the expected number of codes per file.
	Capacity uint
	// FalsePositiveRate for the per-file bloom filters.
	FalsePositiveRate float64
	// MinCodeLen and MaxCodeLen bound acceptable code lengths; codes outside
	// the range are dropped on load and rejected on lookup.
	MinCodeLen int
	MaxCodeLen int
	// MinFiles is the number of source files a code must appear in to count
	// as a member. Capped at the number of loaded files.
	MinFiles int
}

func (c *CodeSetConfig) setDefaults() {
	if c.Capacity == 0 {
		c.Capacity = 1_000_000
	}
	if c.FalsePositiveRate == 0 {
		c.FalsePositiveRate = 0.001
	}
	if c.MinCodeLen == 0 {
		c.MinCodeLen = 8
	}
	if c.MaxCodeLen == 0 {
		c.MaxCodeLen = 10
	}
	if c.MinFiles == 0 {
		c.MinFiles = 2
	}
}

// CodeSet is a probabilistic membership filter over large promo-code lists.
// It answers "definitely not a known code" cheaply; positive answers still
// require a repository lookup. Membership requires a code to appear in at
// least MinFiles of the loaded lists.
type CodeSet struct {
	filters []*bloom.BloomFilter
	cfg     CodeSetConfig
}

// LoadCodeSet builds a CodeSet from gzipped newline-delimited code list
// files, one bloom filter per file, loading the files concurrently.
func LoadCodeSet(ctx context.Context, cfg CodeSetConfig, paths ...string) (*CodeSet, error) {
	if len(paths) == 0 {
		return nil, errors.New("at least one code list file required")
	}
	cfg.setDefaults()
	if cfg.MinFiles > len(paths) {
		cfg.MinFiles = len(paths)
	}

	filters := make([]*bloom.BloomFilter, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			filter, err := loadCodeFilter(ctx, path, cfg)
			if err != nil {
				return errors.Wrapf(err, "load code list %s", path)
			}
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &CodeSet{filters: filters, cfg: cfg}, nil
}

func loadCodeFilter(ctx context.Context, path string, cfg CodeSetConfig) (*bloom.BloomFilter, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	zr, err := pgzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrap(err, "gzip reader")
	}
	defer zr.Close()

	filter := bloom.NewWithEstimates(cfg.Capacity, cfg.FalsePositiveRate)

	sc := bufio.NewScanner(zr)
	n := 0
	for sc.Scan() {
		n++
		if n%1_000_000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		code := strings.TrimSpace(sc.Text())
		if len(code) < cfg.MinCodeLen || len(code) > cfg.MaxCodeLen {
			continue
		}
		filter.AddString(code)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "scan codes")
	}

	return filter, nil
}

// Contains reports whether code is a member of the set. False positives are
// possible at the configured rate; false negatives are not.
func (s *CodeSet) Contains(code string) bool {
	if len(code) < s.cfg.MinCodeLen || len(code) > s.cfg.MaxCodeLen {
		return false
	}

	hits := 0
	for _, filter := range s.filters {
		if filter.TestString(code) {
			hits++
		}
	}
	return hits >= s.cfg.MinFiles
}
