package receipt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/flowmintdao/solana_swap_engine/core/eventbus"
	"github.com/flowmintdao/solana_swap_engine/core/metrics"
	"github.com/flowmintdao/solana_swap_engine/core/model"
	"github.com/flowmintdao/solana_swap_engine/utils/logger"
	"github.com/sirupsen/logrus"
)

// Recorder appends execution lifecycle events to the receipt timeline and
// mirrors them onto kafka for downstream consumers. Append failures are
// logged but never fail the execution path, the audit trail is best effort
// relative to the swap itself.
type Recorder struct {
	store   *Store
	publish func(key string, payload []byte) error
}

func NewRecorder(store *Store) *Recorder {
	return &Recorder{store: store, publish: eventbus.PublishEvent}
}

// NewRecorderWithPublisher is for wiring a test double in place of kafka.
func NewRecorderWithPublisher(store *Store, publish func(string, []byte) error) *Recorder {
	return &Recorder{store: store, publish: publish}
}

func (r *Recorder) Record(ctx context.Context, receiptID, eventType string, metadata map[string]interface{}) error {
	meta := ""
	if len(metadata) > 0 {
		if raw, err := json.Marshal(metadata); err == nil {
			meta = string(raw)
		}
	}

	ev := model.SwapExecutionEvent{
		ReceiptID: receiptID,
		EventType: eventType,
		Metadata:  meta,
		Timestamp: time.Now(),
	}

	if err := r.store.AppendEvent(ctx, &ev); err != nil {
		logger.Logrus.WithFields(logrus.Fields{
			"ReceiptID": receiptID,
			"EventType": eventType,
			"ErrMsg":    err.Error(),
		}).Error("append execution event failed")
		return err
	}

	metrics.ReceiptEventsTotal.WithLabelValues(eventType).Inc()

	if r.publish != nil {
		if raw, err := json.Marshal(ev); err == nil {
			if pubErr := r.publish(receiptID, raw); pubErr != nil {
				logger.Logrus.WithFields(logrus.Fields{
					"ReceiptID": receiptID,
					"ErrMsg":    pubErr.Error(),
				}).Warn("publish execution event failed")
			}
		}
	}

	return nil
}
