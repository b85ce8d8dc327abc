package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"circolo/internal/core"
	"circolo/internal/ledger"
)

func report(t *testing.T, period core.DateRange) ledger.Report {
	t.Helper()
	entries := []core.LedgerEntry{
		{Date: core.NewDate(2024, 10, 1), Amount: core.Cents(5000), Category: "Yoga", Source: core.SourceReceipt, SourceID: 1},
		{Date: core.NewDate(2024, 10, 3), Amount: core.Cents(-2000), Category: "Affitto", Source: core.SourceExpense, SourceID: 1},
	}
	r, err := ledger.Compose(entries, period, ledger.Filter{})
	require.NoError(t, err)
	return r
}

func TestAppendReport(t *testing.T) {
	var (
		gotPath  string
		gotQuery string
		gotBody  gsheet.ValueRange
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-id","updates":{"updatedRange":"'2024 Prima Nota'!A10:G17","updatedRows":8}}`))
	}))
	defer srv.Close()

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication())
	require.NoError(t, err)
	c, err := NewWithService(svc, "sheet-id", "Prima Nota")
	require.NoError(t, err)

	res, err := c.AppendReport(context.Background(), report(t, core.FiscalYearRange(2024)))
	require.NoError(t, err)

	assert.Equal(t, "2024 Prima Nota", res.Sheet)
	assert.Equal(t, int64(8), res.UpdatedRows)
	assert.Contains(t, gotPath, "/v4/spreadsheets/sheet-id/values/")
	assert.True(t, strings.HasSuffix(gotPath, ":append"), gotPath)
	assert.Contains(t, gotQuery, "valueInputOption=USER_ENTERED")
	assert.Contains(t, gotQuery, "insertDataOption=INSERT_ROWS")

	// title, header, two movements, blank, three totals
	require.Len(t, gotBody.Values, 8)
	assert.Equal(t, "Data", gotBody.Values[1][0])
	assert.Equal(t, "01/10/2024", gotBody.Values[2][0])
	assert.Equal(t, 30.0, gotBody.Values[7][6])
}

func TestAppendReportServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"forbidden"}}`, http.StatusForbidden)
	}))
	defer srv.Close()

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication())
	require.NoError(t, err)
	c, err := NewWithService(svc, "sheet-id", "")
	require.NoError(t, err)

	_, err = c.AppendReport(context.Background(), report(t, core.DateRange{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append to sheet Prima Nota")
}

func TestSheetFor(t *testing.T) {
	c := &Client{sheetBase: "Prima Nota"}

	tests := []struct {
		name   string
		period core.DateRange
		want   string
	}{
		{"open range", core.DateRange{}, "Prima Nota"},
		{"one fiscal year", core.DateRange{Start: core.NewDate(2024, 9, 1), End: core.NewDate(2024, 12, 31)}, "2024 Prima Nota"},
		{"spans two fiscal years", core.DateRange{Start: core.NewDate(2024, 1, 1), End: core.NewDate(2024, 12, 31)}, "Prima Nota"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ledger.Report{Period: ledger.Period{Start: tt.period.Start, End: tt.period.End}}
			assert.Equal(t, tt.want, c.SheetFor(r))
		})
	}
}

func TestYearPrefixedName(t *testing.T) {
	assert.Equal(t, "2024 Prima Nota", yearPrefixedName("Prima Nota", 2024))
	assert.Equal(t, "2023 Prima Nota", yearPrefixedName("2023 Prima Nota", 2024))
	assert.Equal(t, "", yearPrefixedName("  ", 2024))
}

func TestCredentials(t *testing.T) {
	_, err := Credentials("", "")
	assert.ErrorIs(t, err, ErrNoCredentials)

	b, err := Credentials(`{"type":"service_account"}`, "/ignored")
	require.NoError(t, err)
	assert.Equal(t, `{"type":"service_account"}`, string(b))

	path := filepath.Join(t.TempDir(), "sa.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))
	b, err = Credentials("", path)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(b))

	_, err = Credentials("", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestNewWithServiceRequiresSpreadsheet(t *testing.T) {
	_, err := NewWithService(nil, " ", "x")
	assert.Error(t, err)
}
