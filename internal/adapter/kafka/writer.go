package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/speed-report-prep/internal/config"
	"github.com/couchcryptid/speed-report-prep/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces prepared reports to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch serializes and publishes prepared reports in a single
// WriteMessages call. Reports are keyed by ID so replays land on the same
// partition.
func (w *Writer) LoadBatch(ctx context.Context, reports []domain.PreparedReport) error {
	if len(reports) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(reports))
	for i := range reports {
		msg, err := serializeToMessage(reports[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write prepared reports: %w", err)
	}
	w.logger.Debug("prepared reports written", "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a PreparedReport into a Kafka message.
func serializeToMessage(report domain.PreparedReport) (kafkago.Message, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize prepared report: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(report.ReportID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "report_id", Value: []byte(report.ReportID)},
			{Key: "processed_at", Value: []byte(report.ProcessedAt.Format(time.RFC3339))},
			{Key: "has_comparison", Value: []byte(strconv.FormatBool(report.Comparison != nil))},
		},
	}, nil
}
