// Package notification delivers reminder messages to downstream channels and
// keeps a bounded in-memory record of recent deliveries.
package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Message is one outbound reminder.
type Message struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	PatientID string    `json:"patient_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Date      string    `json:"date"`
	CreatedAt time.Time `json:"created_at"`
}

// Publisher hands messages to a transport.
type Publisher interface {
	Publish(ctx context.Context, m Message) error
	Close() error
}

type DeliveryStatus string

const (
	StatusSent   DeliveryStatus = "sent"
	StatusFailed DeliveryStatus = "failed"
)

// Delivery records the outcome of publishing one message.
type Delivery struct {
	Message  Message        `json:"message"`
	Status   DeliveryStatus `json:"status"`
	Attempts int            `json:"attempts"`
	Error    string         `json:"error,omitempty"`
	SentAt   *time.Time     `json:"sent_at,omitempty"`
}

var ErrDeliveryNotFound = errors.New("delivery not found")

const defaultMaxDeliveries = 1000

// Dispatcher publishes messages and tracks their delivery status.
type Dispatcher struct {
	pub Publisher
	max int
	now func() time.Time

	mu         sync.RWMutex
	deliveries map[string]*Delivery
	order      []string
}

func NewDispatcher(pub Publisher, maxDeliveries int) *Dispatcher {
	if maxDeliveries <= 0 {
		maxDeliveries = defaultMaxDeliveries
	}
	return &Dispatcher{
		pub:        pub,
		max:        maxDeliveries,
		now:        time.Now,
		deliveries: make(map[string]*Delivery),
	}
}

// Send publishes m and records the outcome. The publish error is returned
// after the delivery has been recorded.
func (d *Dispatcher) Send(ctx context.Context, m Message) (*Delivery, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = d.now().UTC()
	}

	dl := &Delivery{Message: m}
	err := d.attempt(ctx, dl)

	d.mu.Lock()
	d.deliveries[m.ID] = dl
	d.order = append(d.order, m.ID)
	for len(d.order) > d.max {
		delete(d.deliveries, d.order[0])
		d.order = d.order[1:]
	}
	d.mu.Unlock()

	return d.snapshot(dl), err
}

func (d *Dispatcher) attempt(ctx context.Context, dl *Delivery) error {
	err := d.pub.Publish(ctx, dl.Message)

	d.mu.Lock()
	defer d.mu.Unlock()
	dl.Attempts++
	if err != nil {
		dl.Status = StatusFailed
		dl.Error = err.Error()
		return err
	}
	sentAt := d.now().UTC()
	dl.Status = StatusSent
	dl.Error = ""
	dl.SentAt = &sentAt
	return nil
}

// Retry re-publishes a failed delivery.
func (d *Dispatcher) Retry(ctx context.Context, id string) (*Delivery, error) {
	d.mu.RLock()
	dl, ok := d.deliveries[id]
	var status DeliveryStatus
	if ok {
		status = dl.Status
	}
	d.mu.RUnlock()

	if !ok {
		return nil, ErrDeliveryNotFound
	}
	if status != StatusFailed {
		return nil, fmt.Errorf("delivery %q is not failed (current: %s)", id, status)
	}
	err := d.attempt(ctx, dl)
	return d.snapshot(dl), err
}

func (d *Dispatcher) Get(id string) (*Delivery, error) {
	d.mu.RLock()
	dl, ok := d.deliveries[id]
	d.mu.RUnlock()
	if !ok {
		return nil, ErrDeliveryNotFound
	}
	return d.snapshot(dl), nil
}

// Recent returns up to limit deliveries, newest first. A non-empty status
// filters the result.
func (d *Dispatcher) Recent(limit int, status DeliveryStatus) []Delivery {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Delivery, 0)
	for i := len(d.order) - 1; i >= 0 && len(out) < limit; i-- {
		dl := d.deliveries[d.order[i]]
		if status != "" && dl.Status != status {
			continue
		}
		out = append(out, *dl)
	}
	return out
}

// Stats counts tracked deliveries by status.
func (d *Dispatcher) Stats() map[DeliveryStatus]int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stats := map[DeliveryStatus]int{StatusSent: 0, StatusFailed: 0}
	for _, dl := range d.deliveries {
		stats[dl.Status]++
	}
	return stats
}

func (d *Dispatcher) Close() error {
	return d.pub.Close()
}

func (d *Dispatcher) snapshot(dl *Delivery) *Delivery {
	d.mu.RLock()
	defer d.mu.RUnlock()
	cp := *dl
	return &cp
}
