package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	PaymentUnset PaymentMethod = iota
	PaymentPOS
	PaymentCash
	PaymentBankTransfer
	PaymentOther
)

const (
	SourceReceipt    SourceKind = "receipt"
	SourceExpense    SourceKind = "expense"
	SourceThirdParty SourceKind = "third_party"
)

type (
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// PaymentMethod is the numeric payment type stored on receipts and expenses.
	PaymentMethod int

	// SourceKind identifies the table a ledger entry was read from.
	SourceKind string

	// LedgerEntry is one signed movement of the prima nota. Income is positive,
	// expenses are negative.
	LedgerEntry struct {
		Date          Date
		Amount        Money
		Category      string
		PaymentMethod PaymentMethod
		Source        SourceKind
		SourceID      int64
		Description   string
	}

	// DateRange is inclusive on both ends. A zero range means "no bounds".
	DateRange struct {
		Start Date
		End   Date
	}

	Subscription struct {
		ID        int64
		MemberID  int64
		SeasonID  int64
		Number    *string // membership card number, nil when unassigned
		Active    bool
		LastName  string
		FirstName string
		CreatedAt time.Time
	}

	MembershipNumber struct {
		Value          string
		SubscriptionID int64
		AssignedAt     time.Time
	}

	Receipt struct {
		ID            int64
		MemberID      int64
		Date          Date
		Amount        Money
		PaymentMethod PaymentMethod
		Category      string
		Description   string
	}
)

var (
	ErrInvalidDay    = errors.New("invalid day")
	ErrInvalidMonth  = errors.New("invalid month")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyNumber   = errors.New("empty membership number")
)

var paymentLabels = map[PaymentMethod]string{
	PaymentUnset:        "Non specificato",
	PaymentPOS:          "POS",
	PaymentCash:         "Contanti",
	PaymentBankTransfer: "Bonifico",
	PaymentOther:        "Altro",
}

// PaymentMethods lists the concrete methods in display order.
func PaymentMethods() []PaymentMethod {
	return []PaymentMethod{PaymentPOS, PaymentCash, PaymentBankTransfer, PaymentOther}
}

// ParsePaymentMethod maps a stored code to a PaymentMethod. Unknown codes map to Other.
func ParsePaymentMethod(code int) PaymentMethod {
	switch PaymentMethod(code) {
	case PaymentUnset, PaymentPOS, PaymentCash, PaymentBankTransfer:
		return PaymentMethod(code)
	default:
		return PaymentOther
	}
}

// OrDefault returns Cash for rows that never recorded a payment method.
func (p PaymentMethod) OrDefault() PaymentMethod {
	if p == PaymentUnset {
		return PaymentCash
	}
	return p
}

func (p PaymentMethod) IsValid() bool {
	_, ok := paymentLabels[p]
	return ok
}

// Label returns the Italian display label used on reports.
func (p PaymentMethod) Label() string {
	if l, ok := paymentLabels[p]; ok {
		return l
	}
	return paymentLabels[PaymentOther]
}

func (p PaymentMethod) String() string {
	return p.Label()
}

func (k SourceKind) IsIncome() bool {
	return k == SourceReceipt || k == SourceThirdParty
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

func (d Date) Day() int {
	return d.Time.Day()
}

func (d Date) Month() int {
	return int(d.Time.Month())
}

func (d Date) Year() int {
	return d.Time.Year()
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in UTC.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// ISO formats the date as YYYY-MM-DD.
func (d Date) ISO() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

// Compare orders two dates; it returns -1, 0 or +1.
func (d Date) Compare(o Date) int {
	return d.Time.Compare(o.Time)
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2-1-2006",
	"2/1/2006",
}

// ParseDate accepts ISO dates and timestamps as well as DD-MM-YYYY and DD/MM/YYYY.
// An unparsable value is reported as a *ParseError; it is never replaced by today.
func ParseDate(s string) (Date, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return Date{}, &ParseError{Field: "date", Value: s, Err: errors.New("empty date")}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, &ParseError{Field: "date", Value: s, Err: fmt.Errorf("unrecognized date format")}
}

// NewDateRange parses both bounds. Empty bounds are allowed and leave that side open.
func NewDateRange(start, end string) (DateRange, error) {
	var r DateRange
	var err error
	if strings.TrimSpace(start) != "" {
		if r.Start, err = ParseDate(start); err != nil {
			return DateRange{}, err
		}
	}
	if strings.TrimSpace(end) != "" {
		if r.End, err = ParseDate(end); err != nil {
			return DateRange{}, err
		}
	}
	return r, r.Validate()
}

func (r DateRange) Validate() error {
	if !r.Start.IsZero() && !r.End.IsZero() && r.End.Before(r.Start.Time) {
		return &ValidationError{Field: "dateRange", Msg: "end date is before start date"}
	}
	return nil
}

// IsOpen reports whether the range has no bounds at all.
func (r DateRange) IsOpen() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// ISOBounds returns the range as inclusive YYYY-MM-DD text bounds. An open
// side gets a bound that every zero-padded ISO date passes.
func (r DateRange) ISOBounds() (lo, hi string) {
	lo, hi = "0000-00-00", "9999-99-99"
	if !r.Start.IsZero() {
		lo = r.Start.ISO()
	}
	if !r.End.IsZero() {
		hi = r.End.ISO()
	}
	return lo, hi
}

// Contains reports whether d falls inside the inclusive range.
func (r DateRange) Contains(d Date) bool {
	if !r.Start.IsZero() && d.Before(r.Start.Time) {
		return false
	}
	if !r.End.IsZero() && d.After(r.End.Time) {
		return false
	}
	return true
}

// IsIncome classifies by source table, falling back to the sign for entries
// built without one.
func (e LedgerEntry) IsIncome() bool {
	if e.Source != "" {
		return e.Source.IsIncome()
	}
	return e.Amount.Cents >= 0
}

// NumberValue returns the assigned membership number or "" when unassigned.
func (s Subscription) NumberValue() string {
	if s.Number == nil {
		return ""
	}
	return *s.Number
}

func (s Subscription) HasNumber() bool {
	return s.Number != nil && strings.TrimSpace(*s.Number) != ""
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.ISO() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	v, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}
