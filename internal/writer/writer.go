package writer

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/XavierBriggs/Pythia/pkg/contracts"
	"github.com/XavierBriggs/Pythia/pkg/models"
)

const (
	streamKeyFormat = "odds.updated.%s" // odds.updated.americanfootball_nfl
	streamMaxLen    = 1000
)

// Writer archives every fetched snapshot to Postgres and announces it on a Redis Stream.
// The database is the source of truth; stream failures are logged, not returned.
type Writer struct {
	db    *sql.DB
	redis *redis.Client
	log   *zap.Logger
}

var _ contracts.UpdateListener = (*Writer)(nil)

// StreamMessage is the summary published after each archived snapshot
type StreamMessage struct {
	SportKey   string    `json:"sport_key"`
	EventCount int       `json:"event_count"`
	QuoteCount int       `json:"quote_count"`
	FetchedAt  time.Time `json:"fetched_at"`
	EventIDs   []string  `json:"event_ids"`
}

// NewWriter creates a snapshot writer; a nil redis client disables the stream
func NewWriter(db *sql.DB, redisClient *redis.Client, log *zap.Logger) *Writer {
	return &Writer{
		db:    db,
		redis: redisClient,
		log:   log.Named("writer"),
	}
}

// Name identifies the listener in logs and metrics
func (w *Writer) Name() string {
	return "snapshot-writer"
}

// OnOddsUpdated archives the snapshot
func (w *Writer) OnOddsUpdated(ctx context.Context, snapshot models.Snapshot) error {
	return w.WriteSnapshot(ctx, snapshot)
}

// EnsureSchema creates the archive tables when missing
func (w *Writer) EnsureSchema(ctx context.Context) error {
	if _, err := w.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create snapshot schema: %w", err)
	}
	return nil
}

// WriteSnapshot upserts events and books and inserts every quote in one transaction,
// then publishes a summary to the sport's stream.
func (w *Writer) WriteSnapshot(ctx context.Context, snapshot models.Snapshot) error {
	if len(snapshot.Events) == 0 {
		return nil
	}

	rows := flattenQuotes(snapshot)

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := w.upsertEvents(ctx, tx, snapshot.Events); err != nil {
		return fmt.Errorf("upsert events: %w", err)
	}

	if len(rows) > 0 {
		if err := w.upsertBooks(ctx, tx, snapshot.Events); err != nil {
			return fmt.Errorf("upsert books: %w", err)
		}

		if err := w.insertQuotes(ctx, tx, snapshot.SportKey, snapshot.Timestamp, rows); err != nil {
			return fmt.Errorf("insert quotes: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	if err := w.publishToStream(ctx, snapshot, len(rows)); err != nil {
		w.log.Warn("publish to stream failed",
			zap.String("sport", snapshot.SportKey),
			zap.Error(err),
		)
	}

	w.log.Debug("snapshot archived",
		zap.String("sport", snapshot.SportKey),
		zap.Int("events", len(snapshot.Events)),
		zap.Int("quotes", len(rows)),
	)
	return nil
}

// quoteRow is one bookmaker price flattened for the archive
type quoteRow struct {
	eventID   string
	marketKey string
	bookKey   string
	outcome   string
	price     decimal.Decimal
	point     *float64
}

func flattenQuotes(snapshot models.Snapshot) []quoteRow {
	var rows []quoteRow
	for _, event := range snapshot.Events {
		for _, book := range event.Bookmakers {
			for _, market := range book.Markets {
				for _, q := range market.Outcomes {
					rows = append(rows, quoteRow{
						eventID:   event.EventID,
						marketKey: market.Key,
						bookKey:   book.Key,
						outcome:   q.OutcomeName,
						price:     decimal.NewFromFloat(q.Price).Round(4),
						point:     q.Point,
					})
				}
			}
		}
	}
	return rows
}

// upsertEvents inserts or updates events in the events table
func (w *Writer) upsertEvents(ctx context.Context, tx *sql.Tx, events []models.Event) error {
	query := `
		INSERT INTO events (
			event_id, sport_key, home_team, away_team, commence_time, event_status
		)
		SELECT UNNEST($1::text[]), UNNEST($2::text[]), UNNEST($3::text[]),
		       UNNEST($4::text[]), UNNEST($5::timestamptz[]), UNNEST($6::text[])
		ON CONFLICT (event_id)
		DO UPDATE SET
			home_team = EXCLUDED.home_team,
			away_team = EXCLUDED.away_team,
			commence_time = EXCLUDED.commence_time,
			event_status = EXCLUDED.event_status
	`

	eventIDs := make([]string, len(events))
	sportKeys := make([]string, len(events))
	homeTeams := make([]string, len(events))
	awayTeams := make([]string, len(events))
	commenceTimes := make([]time.Time, len(events))
	statuses := make([]string, len(events))

	for i, evt := range events {
		eventIDs[i] = evt.EventID
		sportKeys[i] = evt.SportKey
		homeTeams[i] = evt.HomeTeam
		awayTeams[i] = evt.AwayTeam
		commenceTimes[i] = evt.CommenceTime
		statuses[i] = evt.EventStatus
	}

	_, err := tx.ExecContext(ctx, query,
		pq.Array(eventIDs), pq.Array(sportKeys), pq.Array(homeTeams),
		pq.Array(awayTeams), pq.Array(commenceTimes), pq.Array(statuses),
	)
	return err
}

// upsertBooks registers every bookmaker seen in the snapshot
func (w *Writer) upsertBooks(ctx context.Context, tx *sql.Tx, events []models.Event) error {
	titles := make(map[string]string)
	for _, event := range events {
		for _, book := range event.Bookmakers {
			titles[book.Key] = book.Name()
		}
	}

	query := `
		INSERT INTO books (book_key, display_name)
		SELECT UNNEST($1::text[]), UNNEST($2::text[])
		ON CONFLICT (book_key) DO UPDATE SET display_name = EXCLUDED.display_name
	`

	bookKeys := make([]string, 0, len(titles))
	displayNames := make([]string, 0, len(titles))
	for key, title := range titles {
		bookKeys = append(bookKeys, key)
		displayNames = append(displayNames, title)
	}

	_, err := tx.ExecContext(ctx, query, pq.Array(bookKeys), pq.Array(displayNames))
	return err
}

// insertQuotes appends one odds_snapshots row per quote, all stamped with the fetch time
func (w *Writer) insertQuotes(ctx context.Context, tx *sql.Tx, sportKey string, fetchedAt time.Time, rows []quoteRow) error {
	query := `
		INSERT INTO odds_snapshots (
			fetched_at, sport_key, event_id, market_key, book_key, outcome_name, price, point
		)
		SELECT $1, $2, * FROM UNNEST(
			$3::text[], $4::text[], $5::text[], $6::text[], $7::numeric[], $8::numeric[]
		)
	`

	eventIDs := make([]string, len(rows))
	marketKeys := make([]string, len(rows))
	bookKeys := make([]string, len(rows))
	outcomes := make([]string, len(rows))
	prices := make([]string, len(rows))
	points := make([]*float64, len(rows))

	for i, r := range rows {
		eventIDs[i] = r.eventID
		marketKeys[i] = r.marketKey
		bookKeys[i] = r.bookKey
		outcomes[i] = r.outcome
		prices[i] = r.price.String()
		points[i] = r.point
	}

	_, err := tx.ExecContext(ctx, query,
		fetchedAt, sportKey,
		pq.Array(eventIDs), pq.Array(marketKeys), pq.Array(bookKeys), pq.Array(outcomes),
		pq.Array(prices), pq.Array(points),
	)
	return err
}

// publishToStream announces the archived snapshot on odds.updated.{sport}
func (w *Writer) publishToStream(ctx context.Context, snapshot models.Snapshot, quoteCount int) error {
	if w.redis == nil {
		return nil
	}

	eventIDs := make([]string, len(snapshot.Events))
	for i, event := range snapshot.Events {
		eventIDs[i] = event.EventID
	}

	msgJSON, err := json.Marshal(StreamMessage{
		SportKey:   snapshot.SportKey,
		EventCount: len(snapshot.Events),
		QuoteCount: quoteCount,
		FetchedAt:  snapshot.Timestamp,
		EventIDs:   eventIDs,
	})
	if err != nil {
		return fmt.Errorf("marshal stream message: %w", err)
	}

	err = w.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: fmt.Sprintf(streamKeyFormat, snapshot.SportKey),
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": msgJSON,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis xadd: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS events (
	event_id      TEXT PRIMARY KEY,
	sport_key     TEXT NOT NULL,
	home_team     TEXT NOT NULL,
	away_team     TEXT NOT NULL,
	commence_time TIMESTAMPTZ NOT NULL,
	event_status  TEXT NOT NULL DEFAULT 'upcoming'
);

CREATE TABLE IF NOT EXISTS books (
	book_key     TEXT PRIMARY KEY,
	display_name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS odds_snapshots (
	id           BIGSERIAL PRIMARY KEY,
	fetched_at   TIMESTAMPTZ NOT NULL,
	sport_key    TEXT NOT NULL,
	event_id     TEXT NOT NULL REFERENCES events (event_id),
	market_key   TEXT NOT NULL,
	book_key     TEXT NOT NULL REFERENCES books (book_key),
	outcome_name TEXT NOT NULL,
	price        NUMERIC(10, 4) NOT NULL,
	point        NUMERIC(6, 2)
);

CREATE INDEX IF NOT EXISTS idx_odds_snapshots_event ON odds_snapshots (event_id, fetched_at DESC);
`
