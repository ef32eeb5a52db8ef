// Command coupon-ingest bulk-imports coupons from gzipped JSON-lines dumps.
// Files are decompressed and parsed concurrently; a bloom filter screens out
// duplicate codes across all inputs before rows are batched into PostgreSQL.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/marketloop/storefront/internal/domain/coupon"
	"github.com/marketloop/storefront/internal/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	batchSize     = 500
	progressEvery = 100_000
)

func main() {
	var databaseURL string
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	files := flag.Args()
	if len(files) == 0 {
		slog.Error("usage: coupon-ingest [flags] dump1.jsonl.gz [dump2.jsonl.gz ...]")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, files); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon ingest completed successfully")
}

func run(ctx context.Context, databaseURL string, files []string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	repo := postgres.NewCouponRepository(postgres.NewDB(pool))

	// One parser goroutine per file funnels parsed coupons into a single
	// writer, which owns the bloom filter and the insert batches. A writer
	// failure cancels the group, unblocking any parser mid-send.
	parsed := make(chan coupon.Coupon, batchSize)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return writeCoupons(ctx, repo, parsed)
	})
	g.Go(func() error {
		defer close(parsed)

		pg, ctx := errgroup.WithContext(ctx)
		for _, f := range files {
			pg.Go(parseFile(ctx, f, parsed))
		}
		return pg.Wait()
	})
	return g.Wait()
}

// parseFile streams one gzipped JSONL dump, sending each decoded coupon to out.
func parseFile(ctx context.Context, path string, out chan<- coupon.Coupon) func() error {
	return func() error {
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrapf(err, "open %s", path)
		}
		defer func() { _ = f.Close() }()

		gz, err := pgzip.NewReader(f)
		if err != nil {
			return errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()

		var count uint64
		scanner := bufio.NewScanner(gz)
		scanner.Buffer(make([]byte, 0, 1<<16), 1<<20)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			c, err := decodeCoupon(line)
			if err != nil {
				return errors.Wrapf(err, "decode line %d of %s", count+1, path)
			}

			select {
			case out <- c:
			case <-ctx.Done():
				return ctx.Err()
			}

			count++
			if count%progressEvery == 0 {
				slog.Info("parse progress", slog.String("file", path), slog.Uint64("lines", count))
			}
		}
		if err := scanner.Err(); err != nil {
			return errors.Wrapf(err, "scan %s", path)
		}

		slog.Info("parse complete", slog.String("file", path), slog.Uint64("lines", count))
		return nil
	}
}

// decodeCoupon parses one JSONL record into a coupon.
func decodeCoupon(line []byte) (coupon.Coupon, error) {
	c := coupon.Coupon{ID: uuid.New().String()}

	d := jx.DecodeBytes(line)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "code":
			v, err := d.Str()
			c.Code = v
			return err
		case "description":
			v, err := d.Str()
			c.Description = v
			return err
		case "discountType":
			v, err := d.Str()
			c.DiscountType = coupon.DiscountType(v)
			return err
		case "amount":
			return decodeDecimal(d, &c.Amount)
		case "minPurchase":
			return decodeDecimal(d, &c.MinPurchase)
		case "maxDiscount":
			return decodeDecimal(d, &c.MaxDiscount)
		case "applicableCategories":
			return d.Arr(func(d *jx.Decoder) error {
				v, err := d.Str()
				if err != nil {
					return err
				}
				c.ApplicableCategories = append(c.ApplicableCategories, v)
				return nil
			})
		case "newUserOnly":
			v, err := d.Bool()
			c.NewUserOnly = v
			return err
		case "expiresAt":
			v, err := d.Str()
			if err != nil {
				return err
			}
			c.ExpiresAt, err = time.Parse(time.RFC3339, v)
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return c, err
	}

	if c.Code == "" {
		return c, errors.New("missing code")
	}
	// Ingested records must satisfy the same schema the admin API enforces.
	switch c.DiscountType {
	case coupon.DiscountPercentage:
		if !c.Amount.IsPositive() || c.Amount.GreaterThan(decimal.NewFromInt(100)) {
			return c, errors.Errorf("coupon %s: percentage amount %s out of range", c.Code, c.Amount)
		}
	case coupon.DiscountFixed:
		if !c.Amount.IsPositive() {
			return c, errors.Errorf("coupon %s: fixed amount %s must be positive", c.Code, c.Amount)
		}
	default:
		return c, errors.Errorf("coupon %s: unknown discount type %q", c.Code, c.DiscountType)
	}
	if c.MinPurchase.IsNegative() {
		return c, errors.Errorf("coupon %s: negative minPurchase %s", c.Code, c.MinPurchase)
	}
	if c.MaxDiscount.IsNegative() {
		return c, errors.Errorf("coupon %s: negative maxDiscount %s", c.Code, c.MaxDiscount)
	}
	return c, nil
}

func decodeDecimal(d *jx.Decoder, dst *decimal.Decimal) error {
	n, err := d.Num()
	if err != nil {
		return err
	}
	v, err := decimal.NewFromString(n.String())
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// writeCoupons drains the channel, dropping codes the bloom filter has seen
// before, and flushes inserts in batches. It owns the filter: no locking.
func writeCoupons(ctx context.Context, repo *postgres.CouponRepository, in <-chan coupon.Coupon) error {
	seen := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
	batch := make([]coupon.Coupon, 0, batchSize)
	var written, skipped uint64

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := repo.CreateBatch(ctx, batch); err != nil {
			return errors.Wrap(err, "insert batch")
		}
		written += uint64(len(batch))
		batch = batch[:0]
		slog.Info("write progress", slog.Uint64("written", written), slog.Uint64("skipped", skipped))
		return nil
	}

	for c := range in {
		if seen.TestOrAddString(c.Code) {
			skipped++
			continue
		}
		batch = append(batch, c)
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	slog.Info("write complete", slog.Uint64("written", written), slog.Uint64("skipped", skipped))
	return nil
}
