package service

import (
	"encoding/json"
	"fmt"

	"forumsync/internal/metrics"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// DeliverySource yields moderation queue deliveries. *util.RabbitMQClient
// implements it.
type DeliverySource interface {
	ConsumeQueue(exchange, queue, routingKey, consumer string) (<-chan amqp.Delivery, error)
}

// ReportWorker consumes created reports from RabbitMQ and records them in the
// moderation log.
type ReportWorker struct {
	source   DeliverySource
	log      logrus.FieldLogger
	stopChan chan struct{}
}

func NewReportWorker(source DeliverySource, log logrus.FieldLogger) *ReportWorker {
	return &ReportWorker{
		source:   source,
		log:      log,
		stopChan: make(chan struct{}),
	}
}

// Start starts consuming report messages
func (w *ReportWorker) Start() error {
	if w.source == nil {
		return nil // RabbitMQ not available, worker will not start
	}

	msgs, err := w.source.ConsumeQueue(ReportExchange, ReportQueue, ReportRoutingKey, "report_worker")
	if err != nil {
		return err
	}

	go func() {
		w.log.Info("Report worker started, consuming messages...")
		for {
			select {
			case <-w.stopChan:
				w.log.Info("Report worker stopped")
				return
			case msg, ok := <-msgs:
				if !ok {
					w.log.Warn("Report queue closed")
					return
				}
				if err := w.processReportMessage(msg.Body); err != nil {
					w.log.WithError(err).Error("Error processing report message")
					// Malformed payloads will never parse; drop instead of requeueing.
					msg.Nack(false, false)
				} else {
					msg.Ack(false)
				}
			}
		}
	}()

	return nil
}

// Stop stops the worker loop
func (w *ReportWorker) Stop() {
	close(w.stopChan)
}

func (w *ReportWorker) processReportMessage(body []byte) error {
	var msg ReportMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("decode report message: %w", err)
	}
	if msg.TargetID == 0 || msg.Reporter == "" {
		return fmt.Errorf("incomplete report message %d", msg.ReportID)
	}

	metrics.ReportsQueued.WithLabelValues(msg.TargetType).Inc()
	w.log.WithFields(logrus.Fields{
		"report_id":   msg.ReportID,
		"target_type": msg.TargetType,
		"target_id":   msg.TargetID,
		"reporter":    msg.Reporter,
		"reasons":     msg.Reasons,
	}).Info("report queued for moderation")
	return nil
}
