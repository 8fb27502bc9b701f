// Package resultsdb provides strictly read-only access to the external
// spider results database (ClickHouse), mirroring the teacher's
// internal/storage/clickhouse.go connection and tracing pattern. Every
// session is read-only: no statement in this package writes.
package resultsdb

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/klog/v2"
)

var tracer = otel.Tracer("kbcore-resultsdb")

// Config dials the read-only spider results database.
type Config struct {
	Address  string
	Database string
	Username string
	Password string
}

// Reader is the ResultsReader: deterministic analyzers and the crawl
// decision step read datasets through it, never the raw driver.
type Reader struct {
	conn driver.Conn
	db   string
}

func Open(ctx context.Context, cfg Config) (*Reader, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Address},
		Auth: clickhouse.Auth{Database: cfg.Database, Username: cfg.Username, Password: cfg.Password},
		Settings: clickhouse.Settings{
			"max_execution_time": 30,
			"readonly":           1,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
	})
	if err != nil {
		return nil, fmt.Errorf("resultsdb: open: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("resultsdb: ping: %w", err)
	}
	return &Reader{conn: conn, db: cfg.Database}, nil
}

func (r *Reader) Close() error { return r.conn.Close() }

func (r *Reader) query(ctx context.Context, op, sql string, args ...any) (driver.Rows, error) {
	ctx, span := tracer.Start(ctx, "resultsdb."+op, trace.WithAttributes(
		attribute.String("db.system", "clickhouse"),
		attribute.String("db.operation", op),
	))
	defer span.End()
	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, op+" failed")
		klog.ErrorS(err, "resultsdb query failed", "op", op)
		return nil, fmt.Errorf("resultsdb: %s: %w", op, err)
	}
	return rows, nil
}

// ReviewRow is one row of amazon_review_items, the unit the review
// analyzers fold over.
type ReviewRow struct {
	ReviewID         int64
	ASIN             string
	Stars            int
	ReviewTitle      string
	ReviewBody       string
	HelpfulVotes     int
	VerifiedPurchase bool
	ReviewTime       int64
}

// ListReviews returns review rows for the given ASINs captured within the
// last reviewDays, newest first.
func (r *Reader) ListReviews(ctx context.Context, siteCode string, asins []string, reviewDays int) ([]ReviewRow, error) {
	if len(asins) == 0 {
		return nil, nil
	}
	cutoff := time.Now().Add(-time.Duration(reviewDays) * 24 * time.Hour).Unix()
	rows, err := r.query(ctx, "ListReviews", fmt.Sprintf(`
		SELECT review_id, asin, stars, review_title, review_body, helpful_votes, verified_purchase, review_time
		FROM %s.amazon_review_items
		WHERE site_code = ? AND asin IN ? AND review_time >= ?
		ORDER BY review_time DESC`, r.db),
		siteCode, asins, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReviewRow
	for rows.Next() {
		var row ReviewRow
		var verified uint8
		if err := rows.Scan(&row.ReviewID, &row.ASIN, &row.Stars, &row.ReviewTitle, &row.ReviewBody,
			&row.HelpfulVotes, &verified, &row.ReviewTime); err != nil {
			return nil, fmt.Errorf("resultsdb: scan review row: %w", err)
		}
		row.VerifiedPurchase = verified != 0
		out = append(out, row)
	}
	return out, rows.Err()
}

// LatestReviewCapturedDay returns the most recent review_time truncated to
// a UTC day for the given ASIN, or zero if there are no rows yet — the
// freshness check decide_crawl_units uses for AUTO trigger mode skips
// reviews entirely (they are incremental), but the signature is kept
// symmetric with the listing/keyword lookups below.
func (r *Reader) LatestReviewCapturedDay(ctx context.Context, siteCode, asin string) (time.Time, error) {
	rows, err := r.query(ctx, "LatestReviewCapturedDay", fmt.Sprintf(`
		SELECT max(review_time) FROM %s.amazon_review_items WHERE site_code = ? AND asin = ?`, r.db),
		siteCode, asin)
	if err != nil {
		return time.Time{}, err
	}
	defer rows.Close()
	return scanLatestDay(rows)
}

// ListingSnapshot is the latest amazon_listing_items row for one ASIN.
type ListingSnapshot struct {
	ListingID        int64
	ASIN             string
	BrandName        string
	Title            string
	PriceAmount      float64
	Stars            float64
	RatingsCount     int
	ReviewCount      int
	BoughtPastMonth  int
	CapturedAt       int64
}

// LatestListingCapturedDay returns the most recent captured_at truncated to
// a UTC day for the given ASIN.
func (r *Reader) LatestListingCapturedDay(ctx context.Context, siteCode, asin string) (time.Time, error) {
	rows, err := r.query(ctx, "LatestListingCapturedDay", fmt.Sprintf(`
		SELECT max(captured_at) FROM %s.amazon_listing_items WHERE site_code = ? AND asin = ?`, r.db),
		siteCode, asin)
	if err != nil {
		return time.Time{}, err
	}
	defer rows.Close()
	return scanLatestDay(rows)
}

// ListLatestListingSnapshots returns, for each ASIN, its most recently
// captured listing row (one per ASIN, the dataset the market analyzers fold
// over). Each ASIN's row is its own latest; the rows are not restricted to
// one capture day shared by all ASINs.
func (r *Reader) ListLatestListingSnapshots(ctx context.Context, siteCode string, asins []string) ([]ListingSnapshot, error) {
	if len(asins) == 0 {
		return nil, nil
	}
	rows, err := r.query(ctx, "ListLatestListingSnapshots", fmt.Sprintf(`
		SELECT listing_id, asin, brand_name, title, price_amount, stars, ratings_count, review_count,
		       bought_past_month, captured_at
		FROM %s.amazon_listing_items
		WHERE site_code = ? AND asin IN ?
		ORDER BY asin, captured_at DESC
		LIMIT 1 BY asin`, r.db),
		siteCode, asins)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ListingSnapshot
	for rows.Next() {
		var s ListingSnapshot
		if err := rows.Scan(&s.ListingID, &s.ASIN, &s.BrandName, &s.Title, &s.PriceAmount, &s.Stars,
			&s.RatingsCount, &s.ReviewCount, &s.BoughtPastMonth, &s.CapturedAt); err != nil {
			return nil, fmt.Errorf("resultsdb: scan listing row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// KeywordSERPRow is one amazon_keyword_search_items row.
type KeywordSERPRow struct {
	Keyword         string
	Position        int
	IsSponsored     bool
	ASIN            string
	Title           string
	PriceAmount     float64
	Stars           float64
	RatingsCount    int
	BoughtPastMonth int
	CapturedAt      int64
}

// LatestKeywordCapturedDay returns the most recent captured_at truncated to
// a UTC day for the given keyword.
func (r *Reader) LatestKeywordCapturedDay(ctx context.Context, siteCode, keyword string) (time.Time, error) {
	rows, err := r.query(ctx, "LatestKeywordCapturedDay", fmt.Sprintf(`
		SELECT max(captured_at) FROM %s.amazon_keyword_search_items WHERE site_code = ? AND keyword = ?`, r.db),
		siteCode, keyword)
	if err != nil {
		return time.Time{}, err
	}
	defer rows.Close()
	return scanLatestDay(rows)
}

// ListLatestKeywordSERP returns the most recently captured SERP rows for
// one keyword, up to maxPage.
func (r *Reader) ListLatestKeywordSERP(ctx context.Context, siteCode, keyword string, maxPage int) ([]KeywordSERPRow, error) {
	rows, err := r.query(ctx, "ListLatestKeywordSERP", fmt.Sprintf(`
		SELECT keyword, position, is_sponsored, asin, title, price_amount, stars, ratings_count,
		       bought_past_month, captured_at
		FROM %s.amazon_keyword_search_items
		WHERE site_code = ? AND keyword = ? AND page_num <= ?
		  AND captured_at = (SELECT max(captured_at) FROM %s.amazon_keyword_search_items WHERE site_code = ? AND keyword = ?)
		ORDER BY position ASC`, r.db, r.db),
		siteCode, keyword, maxPage, siteCode, keyword)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []KeywordSERPRow
	for rows.Next() {
		var row KeywordSERPRow
		var sponsored uint8
		if err := rows.Scan(&row.Keyword, &row.Position, &sponsored, &row.ASIN, &row.Title, &row.PriceAmount,
			&row.Stars, &row.RatingsCount, &row.BoughtPastMonth, &row.CapturedAt); err != nil {
			return nil, fmt.Errorf("resultsdb: scan keyword SERP row: %w", err)
		}
		row.IsSponsored = sponsored != 0
		out = append(out, row)
	}
	return out, rows.Err()
}

func scanLatestDay(rows driver.Rows) (time.Time, error) {
	if !rows.Next() {
		return time.Time{}, rows.Err()
	}
	var unix *int64
	if err := rows.Scan(&unix); err != nil {
		return time.Time{}, fmt.Errorf("resultsdb: scan latest day: %w", err)
	}
	if unix == nil || *unix == 0 {
		return time.Time{}, nil
	}
	return time.Unix(*unix, 0).UTC().Truncate(24 * time.Hour), nil
}
