package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/XavierBriggs/Pythia/internal/arbitrage"
	"github.com/XavierBriggs/Pythia/internal/metrics"
	"github.com/XavierBriggs/Pythia/pkg/contracts"
	"github.com/XavierBriggs/Pythia/pkg/models"
)

// DefaultTopic receives one message per detected opportunity
const DefaultTopic = "odds.opportunities"

// MessageWriter is the part of *kafka.Writer the publisher uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OpportunityMessage is the JSON value published for each opportunity
type OpportunityMessage struct {
	SportKey    string                `json:"sport_key"`
	SnapshotAt  time.Time             `json:"snapshot_at"`
	DetectedAt  time.Time             `json:"detected_at"`
	Opportunity arbitrage.Opportunity `json:"opportunity"`
}

// Publisher runs arbitrage detection on every new snapshot and publishes the results to Kafka
type Publisher struct {
	writer   MessageWriter
	detector *arbitrage.Detector
	metrics  *metrics.Collector
	log      *zap.Logger
}

var _ contracts.UpdateListener = (*Publisher)(nil)

// NewKafkaWriter builds the writer used in production
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
		ReadTimeout:            10 * time.Second,
		WriteTimeout:           10 * time.Second,
	}
}

// NewPublisher creates an opportunity publisher
func NewPublisher(writer MessageWriter, detector *arbitrage.Detector, collector *metrics.Collector, log *zap.Logger) *Publisher {
	return &Publisher{
		writer:   writer,
		detector: detector,
		metrics:  collector,
		log:      log.Named("notifier"),
	}
}

// Name identifies the listener in logs and metrics
func (p *Publisher) Name() string {
	return "opportunity-publisher"
}

// OnOddsUpdated detects opportunities across every market in the snapshot and publishes them
func (p *Publisher) OnOddsUpdated(ctx context.Context, snapshot models.Snapshot) error {
	opportunities := p.detector.DetectAll(snapshot.Events, marketsIn(snapshot.Events))
	if len(opportunities) == 0 {
		return nil
	}

	detectedAt := time.Now().UTC()
	msgs := make([]kafka.Message, 0, len(opportunities))
	for _, opp := range opportunities {
		value, err := json.Marshal(OpportunityMessage{
			SportKey:    snapshot.SportKey,
			SnapshotAt:  snapshot.Timestamp,
			DetectedAt:  detectedAt,
			Opportunity: opp,
		})
		if err != nil {
			return fmt.Errorf("marshal opportunity: %w", err)
		}

		msgs = append(msgs, kafka.Message{
			Key:   []byte(opp.EventID),
			Value: value,
			Time:  detectedAt,
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish opportunities: %w", err)
	}

	for _, opp := range opportunities {
		p.metrics.OpportunityPublished(string(opp.Type))
	}

	p.log.Info("opportunities published",
		zap.String("sport", snapshot.SportKey),
		zap.Int("count", len(opportunities)),
	)
	return nil
}

// Close flushes and closes the underlying writer
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// marketsIn lists the distinct market keys present in events, sorted
func marketsIn(events []models.Event) []string {
	seen := make(map[string]bool)
	for _, event := range events {
		for _, book := range event.Bookmakers {
			for _, market := range book.Markets {
				seen[market.Key] = true
			}
		}
	}

	markets := make([]string, 0, len(seen))
	for m := range seen {
		markets = append(markets, m)
	}
	sort.Strings(markets)
	return markets
}
