package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"grocertrack/backend/internal/statement"
)

// StatementFile is a fully rendered customer statement.
type StatementFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportStatement renders the customer's statement in the given format. Rendering happens
// into memory, so a failure never leaves a partial document behind.
func (s *Service) ExportStatement(ctx context.Context, customerID string, format string, opts statement.Options) (StatementFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = statement.FormatCSV
	}
	contentType, ok := statement.ContentType(format)
	if !ok {
		return StatementFile{}, fmt.Errorf("%w: unsupported format %q", statement.ErrMalformed, format)
	}

	detail, err := s.CustomerDetail(ctx, customerID)
	if err != nil {
		return StatementFile{}, err
	}
	doc, err := statement.NewDocument(detail.Customer, detail.Sales, detail.Payments, opts)
	if err != nil {
		return StatementFile{}, err
	}

	var buf bytes.Buffer
	if err := statement.Render(&buf, format, doc); err != nil {
		return StatementFile{}, err
	}

	s.logAudit(ctx, "statement_export", "customer", detail.Customer.ID, fmt.Sprintf("format=%s,rows=%d", format, len(doc.Rows)))
	return StatementFile{
		Filename:    fmt.Sprintf("statement-%s.%s", detail.Customer.ID, format),
		ContentType: contentType,
		Body:        buf.Bytes(),
	}, nil
}
