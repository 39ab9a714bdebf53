// Package notification delivers patient-facing emails. Delivery happens off
// the request path and failures never reach the operation that asked for it.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pathlab/pathlab/internal/platform/metrics"
)

type job struct {
	to         string
	templateID string
	data       map[string]string
}

// Notifier queues template-rendered emails for a bounded pool of workers.
type Notifier struct {
	sender    EmailSender
	templates *TemplateEngine
	logger    zerolog.Logger
	metrics   *metrics.Collector
	timeout   time.Duration

	queue     chan job
	wg        sync.WaitGroup
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

type Option func(*Notifier)

func WithMetrics(m *metrics.Collector) Option { return func(n *Notifier) { n.metrics = m } }

func WithTimeout(d time.Duration) Option { return func(n *Notifier) { n.timeout = d } }

func NewNotifier(sender EmailSender, logger zerolog.Logger, workers, queueSize int, opts ...Option) *Notifier {
	if workers < 1 {
		workers = 1
	}
	n := &Notifier{
		sender:    sender,
		templates: NewTemplateEngine(),
		logger:    logger,
		timeout:   10 * time.Second,
		queue:     make(chan job, queueSize),
	}
	for _, o := range opts {
		o(n)
	}
	for i := 0; i < workers; i++ {
		n.wg.Add(1)
		go n.work()
	}
	return n
}

// Notify enqueues an email. It never blocks; a full queue drops the message
// with a warning.
func (n *Notifier) Notify(_ context.Context, to, templateID string, data map[string]string) {
	if to == "" {
		return
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		n.logger.Warn().Str("to", to).Str("template", templateID).Msg("notifier closed, dropping email")
		return
	}
	select {
	case n.queue <- job{to: to, templateID: templateID, data: data}:
	default:
		n.metrics.Notification("dropped")
		n.logger.Warn().Str("to", to).Str("template", templateID).Msg("notification queue full, dropping email")
	}
}

func (n *Notifier) work() {
	defer n.wg.Done()
	for j := range n.queue {
		n.deliver(j)
	}
}

func (n *Notifier) deliver(j job) {
	subject, body, err := n.templates.Render(j.templateID, j.data)
	if err != nil {
		n.metrics.Notification("failed")
		n.logger.Error().Err(err).Str("to", j.to).Msg("render notification")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	if err := n.sender.SendEmail(ctx, j.to, subject, body); err != nil {
		n.metrics.Notification("failed")
		n.logger.Warn().Err(err).Str("to", j.to).Str("subject", subject).Msg("notification delivery failed")
		return
	}
	n.metrics.Notification("sent")
}

// Close stops accepting messages and waits for queued ones to be delivered.
func (n *Notifier) Close() {
	n.closeOnce.Do(func() {
		n.mu.Lock()
		n.closed = true
		close(n.queue)
		n.mu.Unlock()
	})
	n.wg.Wait()
}
