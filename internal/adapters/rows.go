// Package adapters turns the rows stored by the club back office into
// normalized ledger entries.
//
// The stored rows come from several generations of the application and do not
// agree on field names or date formats. All of that is absorbed here; the
// ledger, stats and sequence packages only ever see core types.
package adapters

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"circolo/internal/core"
)

// ReceiptRow is a receipt as stored. Amount is the decimal text of the stored
// value and Date is whatever the row carried.
type ReceiptRow struct {
	ID            int64
	MemberID      int64
	MemberName    string
	Date          string
	Amount        string
	PaymentMethod int
	Activity      string
	Description   string
}

type ExpenseRow struct {
	ID             int64
	Date           string
	Amount         string
	PaymentMethod  int
	Category       string
	Supplier       string
	Description    string
	DocumentNumber string
}

// ThirdPartyRow is a receipt issued to an external body (ente).
type ThirdPartyRow struct {
	ID            int64
	Date          string
	Entity        string
	Amount        string
	PaymentMethod int
	Description   string
}

type SubscriptionRow struct {
	ID        int64
	MemberID  int64
	SeasonID  int64
	Number    *string
	Active    bool
	LastName  string
	FirstName string
	CreatedAt string
}

// pick returns the first key present in m.
func pick(m map[string]json.RawMessage, keys ...string) json.RawMessage {
	for _, k := range keys {
		if v, ok := m[k]; ok && string(v) != "null" {
			return v
		}
	}
	return nil
}

func rawString(raw json.RawMessage) string {
	if raw == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	// numbers and other scalars keep their literal text
	return strings.TrimSpace(string(raw))
}

func rawInt(raw json.RawMessage) int64 {
	v := rawString(raw)
	n, _ := strconv.ParseInt(v, 10, 64)
	return n
}

func rawBool(raw json.RawMessage, def bool) bool {
	if raw == nil {
		return def
	}
	switch strings.ToLower(rawString(raw)) {
	case "true", "1":
		return true
	case "false", "0":
		return false
	default:
		return def
	}
}

func decodeFields(b []byte) (map[string]json.RawMessage, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *ReceiptRow) UnmarshalJSON(b []byte) error {
	m, err := decodeFields(b)
	if err != nil {
		return err
	}
	*r = ReceiptRow{
		ID:            rawInt(pick(m, "id", "idRicevuta", "ricevutaId")),
		MemberID:      rawInt(pick(m, "socioId", "memberId")),
		MemberName:    strings.TrimSpace(rawString(pick(m, "cognome")) + " " + rawString(pick(m, "nome"))),
		Date:          rawString(pick(m, "dataRicevuta", "data", "date")),
		Amount:        rawString(pick(m, "importoRicevuta", "importo", "amount")),
		PaymentMethod: int(rawInt(pick(m, "tipologiaPagamento", "tipoPagamento", "paymentMethod"))),
		Activity:      rawString(pick(m, "attivita", "attivitaNome", "activity")),
		Description:   rawString(pick(m, "causale", "description")),
	}
	return nil
}

func (r *ExpenseRow) UnmarshalJSON(b []byte) error {
	m, err := decodeFields(b)
	if err != nil {
		return err
	}
	*r = ExpenseRow{
		ID:             rawInt(pick(m, "id")),
		Date:           rawString(pick(m, "dataSpesa", "data", "date")),
		Amount:         rawString(pick(m, "importo", "amount")),
		PaymentMethod:  int(rawInt(pick(m, "tipoPagamento", "tipologiaPagamento", "paymentMethod"))),
		Category:       rawString(pick(m, "categoria", "category")),
		Supplier:       rawString(pick(m, "fornitore", "supplier")),
		Description:    rawString(pick(m, "descrizione", "description")),
		DocumentNumber: rawString(pick(m, "numeroDocumento", "documentNumber")),
	}
	return nil
}

func (r *ThirdPartyRow) UnmarshalJSON(b []byte) error {
	m, err := decodeFields(b)
	if err != nil {
		return err
	}
	*r = ThirdPartyRow{
		ID:            rawInt(pick(m, "id")),
		Date:          rawString(pick(m, "dataRicevuta", "data", "date")),
		Entity:        rawString(pick(m, "ente", "entity")),
		Amount:        rawString(pick(m, "importo", "amount")),
		PaymentMethod: int(rawInt(pick(m, "tipoPagamento", "tipologiaPagamento", "paymentMethod"))),
		Description:   rawString(pick(m, "causale", "description")),
	}
	return nil
}

func (r *SubscriptionRow) UnmarshalJSON(b []byte) error {
	m, err := decodeFields(b)
	if err != nil {
		return err
	}
	*r = SubscriptionRow{
		ID:        rawInt(pick(m, "id", "abbonamentoId")),
		MemberID:  rawInt(pick(m, "socioId", "memberId")),
		SeasonID:  rawInt(pick(m, "annoSportivoId", "seasonId")),
		Active:    rawBool(pick(m, "active", "attivo"), true),
		LastName:  rawString(pick(m, "cognome", "lastName")),
		FirstName: rawString(pick(m, "nome", "firstName")),
		CreatedAt: rawString(pick(m, "dataIscrizione", "dateInscription", "createdDate")),
	}
	if raw := pick(m, "numeroTessera", "numeroTessara"); raw != nil {
		if v := strings.TrimSpace(rawString(raw)); v != "" {
			r.Number = &v
		}
	}
	return nil
}

// NormalizeSubscription converts a stored subscription. An unparsable
// enrolment date is a *core.ParseError.
func NormalizeSubscription(r SubscriptionRow) (core.Subscription, error) {
	s := core.Subscription{
		ID:        r.ID,
		MemberID:  r.MemberID,
		SeasonID:  r.SeasonID,
		Active:    r.Active,
		LastName:  r.LastName,
		FirstName: r.FirstName,
	}
	if r.Number != nil {
		v := strings.TrimSpace(*r.Number)
		if v != "" {
			s.Number = &v
		}
	}
	if strings.TrimSpace(r.CreatedAt) != "" {
		if t, err := time.Parse(time.RFC3339, strings.TrimSpace(r.CreatedAt)); err == nil {
			s.CreatedAt = t
		} else {
			d, err := core.ParseDate(r.CreatedAt)
			if err != nil {
				return core.Subscription{}, withSource(err, "subscription", r.ID, "createdAt")
			}
			s.CreatedAt = d.Time
		}
	}
	return s, nil
}
