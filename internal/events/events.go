// Package events defines the messages exchanged about membership numbers and
// the publishers that carry them.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"circolo/internal/sequence"
)

// Kind says what happened to a membership number.
type Kind string

const (
	KindAllocated   Kind = "allocated"
	KindReassigned  Kind = "reassigned"
	KindCleared     Kind = "cleared"
	KindInitialized Kind = "initialized"
)

// NumberingEvent is published after a membership number change is committed.
type NumberingEvent struct {
	MessageID      string    `json:"messageId"`
	Kind           Kind      `json:"kind"`
	SubscriptionID int64     `json:"subscriptionId"`
	Number         string    `json:"number,omitempty"`
	Duplicate      bool      `json:"duplicate,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

func NewNumberingEvent(kind Kind, subscriptionID int64, number string) *NumberingEvent {
	return &NumberingEvent{
		MessageID:      uuid.NewString(),
		Kind:           kind,
		SubscriptionID: subscriptionID,
		Number:         number,
		Timestamp:      time.Now().UTC(),
	}
}

// AuditRequest asks the worker to audit a season; SeasonID 0 audits all.
type AuditRequest struct {
	MessageID   string    `json:"messageId"`
	SeasonID    int64     `json:"seasonId"`
	RequestedAt time.Time `json:"requestedAt"`
}

func NewAuditRequest(seasonID int64) *AuditRequest {
	return &AuditRequest{MessageID: uuid.NewString(), SeasonID: seasonID, RequestedAt: time.Now().UTC()}
}

// AuditResult carries the outcome of an audit. RequestID is empty for
// audits started by the worker's own schedule.
type AuditResult struct {
	MessageID string               `json:"messageId"`
	RequestID string               `json:"requestId,omitempty"`
	Report    sequence.AuditReport `json:"report"`
	Clean     bool                 `json:"clean"`
	Timestamp time.Time            `json:"timestamp"`
}

func NewAuditResult(requestID string, report sequence.AuditReport) *AuditResult {
	return &AuditResult{
		MessageID: uuid.NewString(),
		RequestID: requestID,
		Report:    report,
		Clean:     report.Clean(),
		Timestamp: time.Now().UTC(),
	}
}

// Encode marshals a message body.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func DecodeAuditRequest(data []byte) (*AuditRequest, error) {
	var msg AuditRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func DecodeNumberingEvent(data []byte) (*NumberingEvent, error) {
	var msg NumberingEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Publisher sends events to a broker.
type Publisher interface {
	PublishNumbering(ctx context.Context, ev *NumberingEvent) error
	PublishAuditResult(ctx context.Context, res *AuditResult) error
	Close() error
}

// AuditRequester enqueues audit requests for the worker.
type AuditRequester interface {
	RequestAudit(ctx context.Context, req *AuditRequest) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) PublishNumbering(context.Context, *NumberingEvent) error { return nil }
func (Nop) PublishAuditResult(context.Context, *AuditResult) error  { return nil }
func (Nop) Close() error                                          { return nil }
