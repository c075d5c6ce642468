// Command promo-ingest imports bulk promocode feeds. Partner feeds are
// large gzip-compressed code lists with noise; a code is trusted only when
// it appears in at least two independent feeds. The cross-feed check uses
// one bloom filter per feed so the whole run stays in bounded memory.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/appetit/checkout/internal/postgres"
)

const (
	bloomCapacity = 120_000_000
	bloomFPR      = 0.001
	numFeeds      = 3
	progressEvery = 10_000_000
	minCodeLen    = 8
	maxCodeLen    = 10
)

// codeRule is the discount attached to a known imported code. Unknown
// codes get the default 10% rule.
type codeRule struct {
	kind  string
	value string
}

var codeRules = map[string]codeRule{
	"HALFMEAL": {kind: "percent", value: "50"},
	"FREERIDE": {kind: "percent", value: "100"},
	"TENGE500": {kind: "amount", value: "500"},
	"LUNCHTIM": {kind: "percent", value: "18"},
}

var defaultRule = codeRule{kind: "percent", value: "10"}

func main() {
	var (
		feedDir     string
		databaseURL string
	)

	flag.StringVar(&feedDir, "feed-dir", "feeds", "directory containing promofeedN.gz files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, feedDir, databaseURL); err != nil {
		slog.Error("promo ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("promo ingest completed successfully")
}

func run(ctx context.Context, feedDir, databaseURL string) error {
	feeds := make([]string, numFeeds)
	for i := range numFeeds {
		feeds[i] = filepath.Join(feedDir, fmt.Sprintf("promofeed%d.gz", i+1))
	}
	for _, f := range feeds {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check feed %s", f)
		}
	}

	slog.Info("pass 1: building bloom filters", slog.Int("feeds", numFeeds))

	filters, err := buildFilters(ctx, feeds)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	slog.Info("pass 2: cross-checking feeds")

	codes, err := trustedCodes(ctx, feeds, filters)
	if err != nil {
		return errors.Wrap(err, "find trusted codes")
	}

	slog.Info("trusted codes found", slog.Int("count", len(codes)))
	if len(codes) == 0 {
		return nil
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	return errors.Wrap(writePromocodes(ctx, pool, codes), "write promocodes")
}

// buildFilters streams each feed once and fills one filter per feed.
func buildFilters(ctx context.Context, feeds []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(feeds))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range feeds {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
			var count uint64

			if err := streamFeed(ctx, path, func(code string) {
				if len(code) < minCodeLen || len(code) > maxCodeLen {
					return
				}
				filter.AddString(code)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.Int("feed", i+1), slog.Uint64("codes", count))
				}
			}); err != nil {
				return errors.Wrapf(err, "feed %d", i+1)
			}

			slog.Info("pass 1 complete", slog.Int("feed", i+1), slog.Uint64("codes", count))
			filters[i] = filter
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// trustedCodes re-streams each feed and keeps codes that hit at least one
// other feed's filter. A per-feed bitmask is merged afterwards; two or
// more set bits means the code is trusted.
func trustedCodes(ctx context.Context, feeds []string, filters []*bloom.BloomFilter) ([]string, error) {
	perFeed := make([]map[string]uint, len(feeds))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range feeds {
		g.Go(func() error {
			candidates := make(map[string]uint)
			feedBit := uint(1) << uint(i)

			if err := streamFeed(ctx, path, func(code string) {
				if len(code) < minCodeLen || len(code) > maxCodeLen {
					return
				}
				for j, f := range filters {
					if j == i {
						continue
					}
					if f.TestString(code) {
						candidates[code] |= feedBit
						break
					}
				}
			}); err != nil {
				return errors.Wrapf(err, "feed %d", i+1)
			}

			slog.Info("pass 2 complete", slog.Int("feed", i+1), slog.Int("candidates", len(candidates)))
			perFeed[i] = candidates
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint)
	for _, candidates := range perFeed {
		for code, mask := range candidates {
			merged[code] |= mask
		}
	}

	var trusted []string
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			trusted = append(trusted, code)
		}
	}
	return trusted, nil
}

// streamFeed reads a gzip-compressed feed line by line.
func streamFeed(ctx context.Context, path string, fn func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(scanner.Text())
	}
	return errors.Wrapf(scanner.Err(), "scan %s", path)
}

func writePromocodes(ctx context.Context, pool *pgxpool.Pool, codes []string) error {
	slog.Info("writing promocodes", slog.Int("count", len(codes)))

	for i, code := range codes {
		rule, ok := codeRules[code]
		if !ok {
			rule = defaultRule
		}

		value, err := decimal.NewFromString(rule.value)
		if err != nil {
			return errors.Wrapf(err, "parse value for code %s", code)
		}

		_, err = pool.Exec(ctx, `
			INSERT INTO promocodes (code, kind, value, active)
			VALUES ($1, $2, $3, TRUE)
			ON CONFLICT (code) DO UPDATE SET kind = $2, value = $3, active = TRUE`,
			code, rule.kind, value)
		if err != nil {
			return errors.Wrapf(err, "upsert promocode %s", code)
		}

		if (i+1)%100 == 0 || i+1 == len(codes) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(codes)))
		}
	}
	return nil
}
