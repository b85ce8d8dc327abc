// Package sheets appends prima nota reports to a Google spreadsheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"circolo/internal/core"
	"circolo/internal/export"
	"circolo/internal/ledger"
)

var ErrNoCredentials = errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// base sheet name; reports inside one fiscal year go to "<year> <base>"
	sheetBase string
}

// Credentials returns the inline JSON when set, otherwise the file contents.
func Credentials(inlineJSON, file string) ([]byte, error) {
	switch {
	case strings.TrimSpace(inlineJSON) != "":
		return []byte(inlineJSON), nil
	case strings.TrimSpace(file) != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, ErrNoCredentials
	}
}

// New creates a client authenticated with a service account.
func New(ctx context.Context, spreadsheetID, sheetBase string, credentialsJSON []byte) (*Client, error) {
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", spreadsheetID)
	return NewWithService(svc, spreadsheetID, sheetBase)
}

// NewWithService wraps an existing service, e.g. one pointed at a test endpoint.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetBase string) (*Client, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if strings.TrimSpace(sheetBase) == "" {
		sheetBase = "Prima Nota"
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetBase: sheetBase}, nil
}

// Result says where the rows landed.
type Result struct {
	Sheet        string `json:"sheet"`
	UpdatedRange string `json:"updatedRange"`
	UpdatedRows  int64  `json:"updatedRows"`
}

// AppendReport appends the title, header and rows of r after the last used
// row of the target sheet.
func (c *Client) AppendReport(ctx context.Context, r ledger.Report) (Result, error) {
	if c.svc == nil {
		return Result{}, errors.New("sheets service not initialized")
	}

	sheet := c.SheetFor(r)
	values := make([][]any, 0, len(r.Items)+6)
	values = append(values, []any{export.Title(r)})
	header := make([]any, len(export.Header))
	for i, h := range export.Header {
		header[i] = h
	}
	values = append(values, header)
	values = append(values, export.Rows(r)...)

	rng := fmt.Sprintf("%s!A1", quoteSheet(sheet))
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return Result{}, fmt.Errorf("append to sheet %s: %w", sheet, err)
	}

	res := Result{Sheet: sheet}
	if resp.Updates != nil {
		res.UpdatedRange = resp.Updates.UpdatedRange
		res.UpdatedRows = resp.Updates.UpdatedRows
	}
	slog.InfoContext(ctx, "Appended prima nota to Google Sheets",
		"sheet", sheet,
		"range", res.UpdatedRange,
		"rows", res.UpdatedRows)
	return res, nil
}

// SheetFor picks the target sheet: "<fiscal year> <base>" when the report
// period lies inside one fiscal year, the base name otherwise.
func (c *Client) SheetFor(r ledger.Report) string {
	start, end := r.Period.Start, r.Period.End
	if start.IsZero() || end.IsZero() {
		return c.sheetBase
	}
	fy := core.FiscalYearOf(start)
	if core.FiscalYearOf(end) != fy {
		return c.sheetBase
	}
	return yearPrefixedName(c.sheetBase, fy)
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
