package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"circolo/internal/core"
	"circolo/internal/events"
	applog "circolo/internal/log"
	"circolo/internal/sequence"
)

// ErrAuditQueueUnavailable is returned by RequestAudit when no broker is configured.
var ErrAuditQueueUnavailable = errors.New("audit queue not configured")

// ReceiptNumber is a receipt's progressive number within its member and season.
type ReceiptNumber struct {
	ReceiptID  int64  `json:"receiptId"`
	MemberID   int64  `json:"memberId"`
	FiscalYear int    `json:"fiscalYear"`
	Rank       int    `json:"rank"`
	Label      string `json:"label"`
}

// NumberingService runs membership number changes and announces them.
type NumberingService struct {
	allocator *sequence.Allocator
	receipts  sequence.ReceiptStore
	publisher events.Publisher
	requester events.AuditRequester
}

// NewNumberingService wires the service. A nil publisher disables events and
// a nil requester makes RequestAudit fail with ErrAuditQueueUnavailable.
func NewNumberingService(allocator *sequence.Allocator, receipts sequence.ReceiptStore, publisher events.Publisher, requester events.AuditRequester) *NumberingService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &NumberingService{
		allocator: allocator,
		receipts:  receipts,
		publisher: publisher,
		requester: requester,
	}
}

// Allocate gives the subscription the next free membership number.
func (s *NumberingService) Allocate(ctx context.Context, subscriptionID int64) (core.MembershipNumber, error) {
	n, err := s.allocator.AllocateNext(ctx, subscriptionID)
	if err != nil {
		return core.MembershipNumber{}, err
	}
	s.announce(ctx, applog.OpAllocate, events.NewNumberingEvent(events.KindAllocated, subscriptionID, n.Value))
	return n, nil
}

// Reassign sets a chosen number. allowDuplicate extends a number already held
// by another subscription instead of failing with a ConflictError.
func (s *NumberingService) Reassign(ctx context.Context, subscriptionID int64, number string, allowDuplicate bool) (core.MembershipNumber, error) {
	n, err := s.allocator.Reassign(ctx, subscriptionID, number, allowDuplicate)
	if err != nil {
		return core.MembershipNumber{}, err
	}
	ev := events.NewNumberingEvent(events.KindReassigned, subscriptionID, n.Value)
	ev.Duplicate = allowDuplicate
	s.announce(ctx, applog.OpReassign, ev)
	return n, nil
}

// Clear removes the subscription's number.
func (s *NumberingService) Clear(ctx context.Context, subscriptionID int64) error {
	if err := s.allocator.Clear(ctx, subscriptionID); err != nil {
		return err
	}
	s.announce(ctx, applog.OpClear, events.NewNumberingEvent(events.KindCleared, subscriptionID, ""))
	return nil
}

// InitializeSeason numbers every active subscription of the season that has
// no number yet.
func (s *NumberingService) InitializeSeason(ctx context.Context, seasonID int64) ([]core.MembershipNumber, error) {
	assigned, err := s.allocator.InitializeSeason(ctx, seasonID)
	if err != nil {
		return nil, err
	}
	for _, n := range assigned {
		s.announce(ctx, applog.OpInitialize, events.NewNumberingEvent(events.KindInitialized, n.SubscriptionID, n.Value))
	}
	logger(ctx, applog.ComponentNumbering).InfoContext(ctx, "Season membership numbers initialized",
		applog.FieldOperation, applog.OpInitialize,
		applog.FieldSeasonID, seasonID,
		"assigned", len(assigned))
	return assigned, nil
}

func (s *NumberingService) Lookup(ctx context.Context, number string) ([]core.Subscription, error) {
	return s.allocator.Lookup(ctx, number)
}

func (s *NumberingService) Audit(ctx context.Context, seasonID int64) (sequence.AuditReport, error) {
	return s.allocator.Audit(ctx, seasonID)
}

// RequestAudit queues an audit for the worker and returns the request sent.
func (s *NumberingService) RequestAudit(ctx context.Context, seasonID int64) (*events.AuditRequest, error) {
	if s.requester == nil {
		return nil, ErrAuditQueueUnavailable
	}
	if seasonID < 0 {
		return nil, &core.ValidationError{Field: "seasonId", Msg: "must not be negative"}
	}
	req := events.NewAuditRequest(seasonID)
	if err := s.requester.RequestAudit(ctx, req); err != nil {
		return nil, fmt.Errorf("request audit: %w", err)
	}
	logger(ctx, applog.ComponentNumbering).InfoContext(ctx, "Audit requested",
		applog.FieldMessageID, req.MessageID,
		applog.FieldSeasonID, seasonID)
	return req, nil
}

// ReceiptNumber ranks a receipt among the member's receipts of its season.
func (s *NumberingService) ReceiptNumber(ctx context.Context, receiptID int64) (ReceiptNumber, error) {
	r, err := s.receipts.Receipt(ctx, receiptID)
	if err != nil {
		return ReceiptNumber{}, err
	}
	fy := core.FiscalYearOf(r.Date)
	siblings, err := s.receipts.MemberReceipts(ctx, r.MemberID, core.FiscalYearRange(fy))
	if err != nil {
		return ReceiptNumber{}, fmt.Errorf("list member receipts: %w", err)
	}
	rank, err := sequence.ReceiptRank(siblings, receiptID)
	if err != nil {
		return ReceiptNumber{}, err
	}
	return ReceiptNumber{
		ReceiptID:  receiptID,
		MemberID:   r.MemberID,
		FiscalYear: fy,
		Rank:       rank,
		Label:      sequence.NumberLabel(fy, rank),
	}, nil
}

// AnnulReceipt removes a receipt. Later receipts of the same member and
// season move up one rank on their next read.
func (s *NumberingService) AnnulReceipt(ctx context.Context, receiptID int64) error {
	ok, err := s.receipts.AnnulReceipt(ctx, receiptID)
	if err != nil {
		return fmt.Errorf("annul receipt %d: %w", receiptID, err)
	}
	if !ok {
		return &core.NotFoundError{Entity: "receipt", ID: strconv.FormatInt(receiptID, 10)}
	}
	logger(ctx, applog.ComponentNumbering).InfoContext(ctx, "Receipt annulled",
		applog.FieldOperation, applog.OpAnnul,
		"receipt_id", receiptID)
	return nil
}

// announce publishes ev after the change is committed. Failures are logged
// and never undo the change.
func (s *NumberingService) announce(ctx context.Context, op string, ev *events.NumberingEvent) {
	l := logger(ctx, applog.ComponentNumbering)
	applog.NewStructuredLogger(l).LogNumberAssigned(ctx, op, ev.SubscriptionID, ev.Number)

	if err := s.publisher.PublishNumbering(ctx, ev); err != nil {
		l.WarnContext(ctx, "Failed to publish numbering event",
			applog.NewFields().
				WithNumbering(ev.SubscriptionID, ev.Number).
				WithOperation(applog.OpPublish).
				WithError(err).
				ToSlice()...)
	}
}

func (s *NumberingService) Close() error {
	return s.publisher.Close()
}
