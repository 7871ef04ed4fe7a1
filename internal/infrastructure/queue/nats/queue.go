package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/loan-decision-engine/internal/core/domain"
	"github.com/kirillkom/loan-decision-engine/internal/infrastructure/resilience"
)

const (
	queueGroup        = "workers"
	attemptHeader     = "Evaluate-Attempt"
	publishedAtHeader = "Evaluate-Published-At"
)

type Queue struct {
	conn            *nats.Conn
	subject         string
	executor        *resilience.Executor
	maxRedeliveries int
	redeliveryDelay time.Duration
	lagObserver     func(time.Duration)
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	// MaxRedeliveries bounds how often an evaluation that failed with a
	// temporary error is published again. Zero disables redelivery.
	MaxRedeliveries int
	RedeliveryDelay time.Duration
	// LagObserver receives the time between publish and delivery.
	LagObserver func(time.Duration)
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	redeliveryDelay := options.RedeliveryDelay
	if redeliveryDelay <= 0 {
		redeliveryDelay = 5 * time.Second
	}

	conn, err := nats.Connect(
		url,
		nats.Name("loan-decision-engine"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", fmt.Sprint(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:            conn,
		subject:         subject,
		executor:        options.ResilienceExecutor,
		maxRedeliveries: options.MaxRedeliveries,
		redeliveryDelay: redeliveryDelay,
		lagObserver:     options.LagObserver,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishApplicationEvaluate(ctx context.Context, applicationID string) error {
	return q.publish(ctx, evaluateMessage(q.subject, applicationID, 1))
}

func (q *Queue) publish(ctx context.Context, msg *nats.Msg) error {
	call := func(_ context.Context) error {
		if err := q.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	var err error
	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapPublishError(err)
	}
	return nil
}

func (q *Queue) SubscribeApplicationEvaluate(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, queueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		applicationID := string(msg.Data)
		if q.lagObserver != nil {
			if lag, ok := messageLag(msg, time.Now()); ok {
				q.lagObserver(lag)
			}
		}
		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		err := handler(handlerCtx, applicationID)
		if err == nil {
			return
		}

		attempt := messageAttempt(msg)
		slog.Error("worker_handler_failed",
			"application_id", applicationID,
			"attempt", attempt,
			"error", err.Error(),
		)
		if shouldRedeliver(err, attempt, q.maxRedeliveries) {
			q.scheduleRedelivery(ctx, applicationID, attempt+1)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func (q *Queue) scheduleRedelivery(ctx context.Context, applicationID string, attempt int) {
	time.AfterFunc(q.redeliveryDelay, func() {
		if ctx.Err() != nil {
			return
		}
		if err := q.publish(context.Background(), evaluateMessage(q.subject, applicationID, attempt)); err != nil {
			slog.Error("worker_redelivery_failed", "application_id", applicationID, "attempt", attempt, "error", err.Error())
		}
	})
}

func evaluateMessage(subject, applicationID string, attempt int) *nats.Msg {
	msg := nats.NewMsg(subject)
	msg.Data = []byte(applicationID)
	msg.Header.Set(attemptHeader, strconv.Itoa(attempt))
	msg.Header.Set(publishedAtHeader, time.Now().UTC().Format(time.RFC3339Nano))
	return msg
}

func messageLag(msg *nats.Msg, now time.Time) (time.Duration, bool) {
	if msg == nil || msg.Header == nil {
		return 0, false
	}
	publishedAt, err := time.Parse(time.RFC3339Nano, msg.Header.Get(publishedAtHeader))
	if err != nil {
		return 0, false
	}
	lag := now.Sub(publishedAt)
	if lag < 0 {
		lag = 0
	}
	return lag, true
}

// messageAttempt treats messages without the header as first deliveries.
func messageAttempt(msg *nats.Msg) int {
	if msg == nil || msg.Header == nil {
		return 1
	}
	attempt, err := strconv.Atoi(msg.Header.Get(attemptHeader))
	if err != nil || attempt < 1 {
		return 1
	}
	return attempt
}

func shouldRedeliver(err error, attempt, maxRedeliveries int) bool {
	return domain.IsKind(err, domain.ErrTemporary) && attempt <= maxRedeliveries
}
