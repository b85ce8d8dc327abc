package http

import (
	"bytes"
	"net/http"
	"strconv"

	"circolo/internal/core"
	"circolo/internal/export"
	"circolo/internal/export/xlsx"
	applog "circolo/internal/log"
	"circolo/internal/services"
)

func (s *Server) handlePrimaNota(w http.ResponseWriter, r *http.Request) {
	f, period, err := parseReportQuery(r)
	if err != nil {
		writeError(w, r, applog.OpReport, err)
		return
	}
	report, err := s.ledger.Report(r.Context(), f, period)
	if err != nil {
		writeError(w, r, applog.OpReport, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handlePrimaNotaPrint(w http.ResponseWriter, r *http.Request) {
	f, period, err := parseReportQuery(r)
	if err != nil {
		writeError(w, r, applog.OpReport, err)
		return
	}
	layout, err := s.ledger.Print(r.Context(), f, period)
	if err != nil {
		writeError(w, r, applog.OpReport, err)
		return
	}
	writeJSON(w, http.StatusOK, layout)
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	f, period, err := parseReportQuery(r)
	if err != nil {
		writeError(w, r, applog.OpExport, err)
		return
	}
	report, err := s.ledger.Report(r.Context(), f, period)
	if err != nil {
		writeError(w, r, applog.OpExport, err)
		return
	}

	// render fully before committing headers so a failure can still be a JSON error
	var buf bytes.Buffer
	if err := xlsx.Write(&buf, report); err != nil {
		writeError(w, r, applog.OpExport, err)
		return
	}
	w.Header().Set("Content-Type", xlsx.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(s.now())+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleExportSheets(w http.ResponseWriter, r *http.Request) {
	if s.sheets == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("unavailable", "spreadsheet export not configured"))
		return
	}
	f, period, err := parseReportQuery(r)
	if err != nil {
		writeError(w, r, applog.OpExport, err)
		return
	}
	report, err := s.ledger.Report(r.Context(), f, period)
	if err != nil {
		writeError(w, r, applog.OpExport, err)
		return
	}
	res, err := s.sheets.AppendReport(r.Context(), report)
	if err != nil {
		writeError(w, r, applog.OpExport, err)
		return
	}
	applog.FromContext(r.Context()).WithComponent(applog.ComponentExport).InfoContext(r.Context(), "Prima nota exported to spreadsheet",
		applog.FieldOperation, applog.OpExport,
		"sheet", res.Sheet,
		"rows", res.UpdatedRows)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	typ, err := intParam(r, "type", int64(services.StatsMonthly))
	if err != nil {
		writeError(w, r, applog.OpStats, err)
		return
	}
	fy, err := intParam(r, "fy", 0)
	if err != nil {
		writeError(w, r, applog.OpStats, err)
		return
	}
	if fy < 0 {
		writeError(w, r, applog.OpStats, &core.ValidationError{Field: "fy", Msg: "must not be negative"})
		return
	}
	res, err := s.ledger.Stats(r.Context(), services.StatsType(typ), int(fy))
	if err != nil {
		writeError(w, r, applog.OpStats, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
