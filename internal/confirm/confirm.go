// Package confirm implements the Confirmation Middleware: a correlated,
// asynchronous approve/deny handshake gating high-risk tool invocations.
package confirm

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a ConfirmationRequest.
type Status string

const (
	Pending  Status = "PENDING"
	Approved Status = "APPROVED"
	Denied   Status = "DENIED"
	Expired  Status = "EXPIRED"
)

// Request is the record tracked per in-flight confirmation.
type Request struct {
	ConfirmationID string
	ToolName       string
	Parameters     map[string]any
	ChatID         string
	UserID         string
	CreatedAtNs    int64
	TimeoutMs      int64

	mu     sync.Mutex
	status Status
	done   chan struct{}
}

// Status returns the current lifecycle state.
func (r *Request) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// transition performs a CAS-guarded PENDING->target move. Returns true
// iff this call performed the transition.
func (r *Request) transition(target Status) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != Pending {
		return false
	}
	r.status = target
	close(r.done)
	return true
}

// Sender delivers a confirmation request out-of-band (e.g. posts an
// approve/deny affordance to a chat interface). Supplied by the adapter.
type Sender func(Request)

// EventPublisher is the minimal surface the Middleware needs from the
// Event Bus, kept narrow to avoid a hard dependency on its concrete type.
type EventPublisher interface {
	PublishConfirmationEvent(eventType string, req Request)
}

const defaultTimeoutMs = 300_000
const sweepInterval = 10 * time.Second

// Middleware tracks pending confirmations and sweeps expired ones.
type Middleware struct {
	mu      sync.Mutex
	pending map[string]*Request

	sender  Sender
	publish EventPublisher

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New constructs a Middleware and starts its background sweeper. Call
// Stop to release the sweeper goroutine.
func New(sender Sender, publish EventPublisher) *Middleware {
	m := &Middleware{
		pending: make(map[string]*Request),
		sender:  sender,
		publish: publish,
		stopCh:  make(chan struct{}),
	}
	go m.sweepLoop()
	return m
}

// Stop terminates the background sweeper.
func (m *Middleware) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// RequestConfirmation blocks until the request is approved, denied, or
// times out (timeoutMs<=0 uses the default 300s). Safe to call from many
// goroutines concurrently for different confirmationIds.
func (m *Middleware) RequestConfirmation(ctx context.Context, toolName string, params map[string]any, chatID, userID string, timeoutMs int64) bool {
	if timeoutMs <= 0 {
		timeoutMs = defaultTimeoutMs
	}

	req := &Request{
		ConfirmationID: uuid.NewString(),
		ToolName:       toolName,
		Parameters:     params,
		ChatID:         chatID,
		UserID:         userID,
		CreatedAtNs:    time.Now().UnixNano(),
		TimeoutMs:      timeoutMs,
		status:         Pending,
		done:           make(chan struct{}),
	}

	m.mu.Lock()
	m.pending[req.ConfirmationID] = req
	m.mu.Unlock()

	if m.sender != nil {
		m.sender(*req)
	}
	if m.publish != nil {
		m.publish.PublishConfirmationEvent("TOOL_CONFIRMATION_REQUESTED", *req)
	}

	timer := time.NewTimer(time.Duration(timeoutMs) * time.Millisecond)
	defer timer.Stop()

	select {
	case <-req.done:
	case <-timer.C:
		req.transition(Expired)
	case <-ctx.Done():
		req.transition(Expired)
	}

	m.mu.Lock()
	delete(m.pending, req.ConfirmationID)
	m.mu.Unlock()

	final := req.Status()
	if m.publish != nil {
		switch final {
		case Approved:
			m.publish.PublishConfirmationEvent("TOOL_CONFIRMED", *req)
		case Denied:
			m.publish.PublishConfirmationEvent("TOOL_DENIED", *req)
		case Expired:
			m.publish.PublishConfirmationEvent("TOOL_EXPIRED", *req)
		}
	}

	return final == Approved
}

// Approve transitions confirmationId from PENDING to APPROVED. Returns
// true iff this call performed the transition (idempotent false
// otherwise, including for unknown ids).
func (m *Middleware) Approve(confirmationID, approverID string) bool {
	m.mu.Lock()
	req, ok := m.pending[confirmationID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	return req.transition(Approved)
}

// Deny transitions confirmationId from PENDING to DENIED.
func (m *Middleware) Deny(confirmationID, denierID string) bool {
	m.mu.Lock()
	req, ok := m.pending[confirmationID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	return req.transition(Denied)
}

// Pending returns the number of confirmations currently awaiting a
// decision, for the orchestrator's health report.
func (m *Middleware) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

func (m *Middleware) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stopCh:
			return
		}
	}
}

func (m *Middleware) sweep() {
	now := time.Now().UnixNano()
	m.mu.Lock()
	var expired []*Request
	for id, req := range m.pending {
		elapsedMs := (now - req.CreatedAtNs) / int64(time.Millisecond)
		if elapsedMs > req.TimeoutMs {
			expired = append(expired, req)
			delete(m.pending, id)
		}
	}
	m.mu.Unlock()

	for _, req := range expired {
		if req.transition(Expired) && m.publish != nil {
			m.publish.PublishConfirmationEvent("TOOL_EXPIRED", *req)
		}
	}
}
