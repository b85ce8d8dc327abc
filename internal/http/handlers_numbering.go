package http

import (
	"net/http"
	"time"

	"circolo/internal/core"
	applog "circolo/internal/log"
)

type subscriptionRequest struct {
	SubscriptionID int64 `json:"subscriptionId"`
}

type reassignRequest struct {
	SubscriptionID int64  `json:"subscriptionId"`
	Number         string `json:"number"`
	// Extend keeps the number even when another subscription holds it.
	Extend bool `json:"extend"`
}

type seasonRequest struct {
	SeasonID int64 `json:"seasonId"`
}

type numberResponse struct {
	SubscriptionID int64     `json:"subscriptionId"`
	Number         string    `json:"number"`
	AssignedAt     time.Time `json:"assignedAt"`
}

func toNumberResponse(n core.MembershipNumber) numberResponse {
	return numberResponse{SubscriptionID: n.SubscriptionID, Number: n.Value, AssignedAt: n.AssignedAt}
}

type subscriptionResponse struct {
	ID        int64   `json:"id"`
	MemberID  int64   `json:"memberId"`
	SeasonID  int64   `json:"seasonId"`
	Number    *string `json:"number"`
	Active    bool    `json:"active"`
	LastName  string  `json:"lastName,omitempty"`
	FirstName string  `json:"firstName,omitempty"`
}

func (s *Server) handleAllocate(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, applog.OpAllocate, err)
		return
	}
	n, err := s.numbering.Allocate(r.Context(), req.SubscriptionID)
	if err != nil {
		writeError(w, r, applog.OpAllocate, err)
		return
	}
	writeJSON(w, http.StatusOK, toNumberResponse(n))
}

func (s *Server) handleReassign(w http.ResponseWriter, r *http.Request) {
	var req reassignRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, applog.OpReassign, err)
		return
	}
	n, err := s.numbering.Reassign(r.Context(), req.SubscriptionID, sanitizeInput(req.Number), req.Extend)
	if err != nil {
		writeError(w, r, applog.OpReassign, err)
		return
	}
	writeJSON(w, http.StatusOK, toNumberResponse(n))
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, applog.OpClear, err)
		return
	}
	if err := s.numbering.Clear(r.Context(), req.SubscriptionID); err != nil {
		writeError(w, r, applog.OpClear, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var req seasonRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, applog.OpInitialize, err)
		return
	}
	assigned, err := s.numbering.InitializeSeason(r.Context(), req.SeasonID)
	if err != nil {
		writeError(w, r, applog.OpInitialize, err)
		return
	}
	out := make([]numberResponse, 0, len(assigned))
	for _, n := range assigned {
		out = append(out, toNumberResponse(n))
	}
	writeJSON(w, http.StatusOK, map[string]any{"seasonId": req.SeasonID, "assigned": out})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	season, err := intParam(r, "season", 0)
	if err != nil {
		writeError(w, r, applog.OpAudit, err)
		return
	}
	report, err := s.numbering.Audit(r.Context(), season)
	if err != nil {
		writeError(w, r, applog.OpAudit, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleRequestAudit queues the audit for the worker and answers 202.
func (s *Server) handleRequestAudit(w http.ResponseWriter, r *http.Request) {
	var req seasonRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, applog.OpAudit, err)
			return
		}
	}
	queued, err := s.numbering.RequestAudit(r.Context(), req.SeasonID)
	if err != nil {
		writeError(w, r, applog.OpAudit, err)
		return
	}
	writeJSON(w, http.StatusAccepted, queued)
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	number := sanitizeInput(r.PathValue("number"))
	holders, err := s.numbering.Lookup(r.Context(), number)
	if err != nil {
		writeError(w, r, applog.OpLookup, err)
		return
	}
	out := make([]subscriptionResponse, 0, len(holders))
	for _, sub := range holders {
		out = append(out, subscriptionResponse{
			ID:        sub.ID,
			MemberID:  sub.MemberID,
			SeasonID:  sub.SeasonID,
			Number:    sub.Number,
			Active:    sub.Active,
			LastName:  sub.LastName,
			FirstName: sub.FirstName,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"number": number, "holders": out})
}

func (s *Server) handleReceiptRank(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, applog.OpRank, err)
		return
	}
	rank, err := s.numbering.ReceiptNumber(r.Context(), id)
	if err != nil {
		writeError(w, r, applog.OpRank, err)
		return
	}
	writeJSON(w, http.StatusOK, rank)
}

func (s *Server) handleAnnulReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, applog.OpAnnul, err)
		return
	}
	if err := s.numbering.AnnulReceipt(r.Context(), id); err != nil {
		writeError(w, r, applog.OpAnnul, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
