package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"rostersync/internal/metrics"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Service wraps the Sheets API calls the sync engine needs. All traffic
// goes through RetryTransport, so callers see either a settled response
// or an ApiExhaustedError.
type Service struct {
	svc    *sheets.Service
	logger *zerolog.Logger
}

// New builds a Service from a service-account credentials file. The retry
// transport is injected under the OAuth transport so token refreshes are
// retried too.
func New(ctx context.Context, credentialsFile string, policy RetryPolicy, logger *zerolog.Logger) (*Service, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	client := config.Client(ctx)
	client.Transport = &RetryTransport{
		Base:    client.Transport,
		Policy:  policy,
		Logger:  logger,
		OnRetry: onRetryMetric,
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Service{svc: srv, logger: logger}, nil
}

func onRetryMetric(status int) {
	metrics.IncSheetRetry(strconv.Itoa(status))
}

// ServiceAccountEmail reads the client_email from a credentials file, for
// the "share the spreadsheet with this account" setup step.
func ServiceAccountEmail(credentialsFile string) (string, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(data, &creds); err != nil {
		return "", err
	}
	return creds.ClientEmail, nil
}

// ReadRange fetches cell values for an A1 range (with sheet prefix).
func (s *Service) ReadRange(ctx context.Context, spreadsheetID, a1 string) ([][]interface{}, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(spreadsheetID, a1).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read range %s: %w", a1, err)
	}
	return resp.Values, nil
}

// UpdateRange overwrites an A1 range with values. USER_ENTERED so date
// strings land as dates, matching what a human typing them would get.
func (s *Service) UpdateRange(ctx context.Context, spreadsheetID, a1 string, values [][]interface{}) error {
	_, err := s.svc.Spreadsheets.Values.Update(spreadsheetID, a1, &sheets.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("update range %s: %w", a1, err)
	}
	return nil
}

// ClearRange blanks an A1 range.
func (s *Service) ClearRange(ctx context.Context, spreadsheetID, a1 string) error {
	_, err := s.svc.Spreadsheets.Values.Clear(spreadsheetID, a1, &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("clear range %s: %w", a1, err)
	}
	return nil
}

// UpdateCell writes a single value. Used by the live shift push.
func (s *Service) UpdateCell(ctx context.Context, spreadsheetID, sheetName, cell string, value interface{}) error {
	a1 := fmt.Sprintf("%s!%s:%s", sheetName, cell, cell)
	return s.UpdateRange(ctx, spreadsheetID, a1, [][]interface{}{{value}})
}

// SheetTitles enumerates tab names of a spreadsheet.
func (s *Service) SheetTitles(ctx context.Context, spreadsheetID string) ([]string, error) {
	spreadsheet, err := s.svc.Spreadsheets.Get(spreadsheetID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get spreadsheet: %w", err)
	}

	titles := make([]string, 0, len(spreadsheet.Sheets))
	for _, sheet := range spreadsheet.Sheets {
		titles = append(titles, sheet.Properties.Title)
	}
	return titles, nil
}

// SheetIDByName resolves a tab name to its numeric sheet id.
func (s *Service) SheetIDByName(ctx context.Context, spreadsheetID, sheetName string) (int64, error) {
	spreadsheet, err := s.svc.Spreadsheets.Get(spreadsheetID).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet: %w", err)
	}

	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties.Title == sheetName {
			return sheet.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", sheetName)
}

// EnsureSheet creates the named tab when missing.
func (s *Service) EnsureSheet(ctx context.Context, spreadsheetID, sheetName string) error {
	titles, err := s.SheetTitles(ctx, spreadsheetID)
	if err != nil {
		return err
	}
	for _, title := range titles {
		if title == sheetName {
			return nil
		}
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: sheetName},
			},
		}},
	}
	if _, err := s.svc.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %q: %w", sheetName, err)
	}

	s.logger.Info().Str("sheet", sheetName).Msg("created missing sheet tab")
	return nil
}
