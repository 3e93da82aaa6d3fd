// Package notification delivers web push alerts to subscribed browsers
// when a maintenance session is handed off to the next shift.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"safemaint-backend/internal/model"
	"safemaint-backend/internal/store"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Payload is the JSON body shown by the service worker.
type Payload struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	SessionID string `json:"sessionId"`
	Tag       string `json:"tag"`
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan model.ActiveMaintenance
	subs    *store.Repository[model.PushSubscription]
	webpush *webpush.Options
	sender  NotificationSender
	logger  *zap.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size, queueSize int, subs *store.Repository[model.PushSubscription], webpushOptions *webpush.Options, logger *zap.Logger) *WorkerPool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan model.ActiveMaintenance, queueSize),
		subs:    subs,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		logger:  logger.Named("push"),
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.logger.Debug("worker started", zap.Int("worker", id))
	for {
		select {
		case m := <-wp.jobs:
			wp.sendHandoff(ctx, m)
		case <-ctx.Done():
			wp.logger.Debug("worker shutting down", zap.Int("worker", id))
			return
		}
	}
}

// NotifyHandoff queues an alert for a session waiting to be resumed. It
// never blocks the caller.
func (wp *WorkerPool) NotifyHandoff(m model.ActiveMaintenance) {
	select {
	case wp.jobs <- m:
	default:
		wp.logger.Warn("handoff alert dropped: queue full", zap.String("session", m.ID))
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan model.ActiveMaintenance {
	return wp.jobs
}

// sendHandoff alerts every subscribed browser except those of the user who
// stopped the session.
func (wp *WorkerPool) sendHandoff(ctx context.Context, m model.ActiveMaintenance) {
	subscriptions := wp.subs.Filter(func(s model.PushSubscription) bool {
		return s.Username == "" || s.Username != m.OpenedBy
	})
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(Payload{
		Title:     "Manutenção aguardando continuidade",
		Body:      fmt.Sprintf("OM %s (%s) parada parcialmente por %s", m.Header.OM, m.Header.Tag, m.OpenedBy),
		SessionID: m.ID,
		Tag:       m.Header.Tag,
	})
	if err != nil {
		wp.logger.Error("failed to encode handoff alert", zap.Error(err))
		return
	}

	wp.logger.Info("sending handoff alerts", zap.String("session", m.ID), zap.Int("subscriptions", len(subscriptions)))
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.logger.Warn("error sending notification", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		wp.logger.Info("subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		if _, err := wp.subs.Delete(ctx, sub.Endpoint); err != nil {
			wp.logger.Warn("failed to delete expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
	}
}
