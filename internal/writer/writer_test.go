package writer_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/XavierBriggs/Pythia/internal/writer"
	"github.com/XavierBriggs/Pythia/pkg/models"
)

const streamKey = "odds.updated.americanfootball_nfl"

func testSnapshot(at time.Time) models.Snapshot {
	point := 47.5
	return models.Snapshot{
		SportKey:  "americanfootball_nfl",
		Timestamp: at,
		Events: []models.Event{{
			EventID:      "evt-1",
			SportKey:     "americanfootball_nfl",
			HomeTeam:     "Kansas City Chiefs",
			AwayTeam:     "Buffalo Bills",
			CommenceTime: at.Add(72 * time.Hour),
			EventStatus:  "upcoming",
			Bookmakers: []models.Bookmaker{
				{
					Key:   "pinnacle",
					Title: "Pinnacle",
					Markets: []models.Market{
						{Key: "h2h", Outcomes: []models.Quote{
							{OutcomeName: "Kansas City Chiefs", Price: 1.74},
							{OutcomeName: "Buffalo Bills", Price: 2.15},
						}},
						{Key: "totals", Outcomes: []models.Quote{
							{OutcomeName: "Over", Price: 1.91, Point: &point},
						}},
					},
				},
			},
		}},
	}
}

func newWriter(t *testing.T) (*writer.Writer, sqlmock.Sqlmock, *miniredis.Miniredis) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return writer.NewWriter(db, client, zap.NewNop()), mock, mr
}

func TestWriteSnapshot(t *testing.T) {
	w, mock, mr := newWriter(t)
	at := time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO events`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO books`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO odds_snapshots`).
		WithArgs(at, "americanfootball_nfl",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	err := w.WriteSnapshot(context.Background(), testSnapshot(at))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	entries, err := mr.Stream(streamKey)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.Len(t, entries[0].Values, 2)
	assert.Equal(t, "data", entries[0].Values[0])

	var msg writer.StreamMessage
	require.NoError(t, json.Unmarshal([]byte(entries[0].Values[1]), &msg))
	assert.Equal(t, 1, msg.EventCount)
	assert.Equal(t, 3, msg.QuoteCount)
	assert.Equal(t, []string{"evt-1"}, msg.EventIDs)
	assert.True(t, msg.FetchedAt.Equal(at))
}

func TestWriteSnapshot_RollsBackOnError(t *testing.T) {
	w, mock, mr := newWriter(t)
	at := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO events`).
		WillReturnError(errors.New("relation \"events\" does not exist"))
	mock.ExpectRollback()

	err := w.WriteSnapshot(context.Background(), testSnapshot(at))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert events")
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.False(t, mr.Exists(streamKey))
}

func TestWriteSnapshot_EmptySnapshotIsNoop(t *testing.T) {
	w, mock, _ := newWriter(t)

	err := w.WriteSnapshot(context.Background(), models.Snapshot{SportKey: "americanfootball_nfl"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteSnapshot_StreamFailureIsNotFatal(t *testing.T) {
	w, mock, mr := newWriter(t)
	mr.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO events`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO books`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO odds_snapshots`).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	err := w.OnOddsUpdated(context.Background(), testSnapshot(time.Now().UTC()))
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	w, mock, _ := newWriter(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS events`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, w.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestName(t *testing.T) {
	w, _, _ := newWriter(t)
	assert.Equal(t, "snapshot-writer", w.Name())
}
