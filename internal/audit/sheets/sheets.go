// Package sheets mirrors the audit trail to a Google spreadsheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"notaspese/internal/audit"
)

// Sink appends one spreadsheet row per audited field change.
type Sink struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// Config carries the spreadsheet target and service-account credentials,
// either inline JSON or a file path.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string
	CredentialsJSON string
}

// New creates a Sheets sink using service-account credentials.
func New(ctx context.Context, cfg Config) (*Sink, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	if cfg.SheetName == "" {
		return nil, errors.New("missing sheet name")
	}

	credentials := []byte(cfg.CredentialsJSON)
	if len(credentials) == 0 {
		if cfg.CredentialsFile == "" {
			return nil, errors.New("missing service account credentials")
		}
		var err error
		credentials, err = os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentials),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Sink{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     cfg.SheetName,
	}, nil
}

// Append writes the event to the spreadsheet, one row per field change.
// Events without changes produce a single row with empty change columns.
func (s *Sink) Append(ctx context.Context, ev audit.Event) error {
	changes := ev.Changes
	if len(changes) == 0 {
		changes = []audit.FieldChange{{}}
	}

	occurred := ev.OccurredAt.UTC().Format(time.RFC3339)
	values := make([][]any, 0, len(changes))
	for _, ch := range changes {
		values = append(values, []any{
			occurred, ev.Kind, ev.EntityID, string(ev.Action), ev.Actor,
			ch.Field, ch.Before, ch.After,
		})
	}

	_, err := s.svc.Spreadsheets.Values.
		Append(s.spreadsheetID, s.sheetName+"!A:H", &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append audit rows: %w", err)
	}
	return nil
}
