package service

import (
    "context"
    "fmt"
    "strings"
    "time"

    "github.com/google/uuid"

    "github.com/nurpe/dispatch-core/internal/model"
)

type ExcelGenerator interface {
    Generate(ledger model.Ledger) ([]byte, error)
}

type PDFGenerator interface {
    Generate(receipt model.Receipt) ([]byte, error)
}

type ReportService struct {
    store RequestStore
    excel ExcelGenerator
    pdf   PDFGenerator
    now   func() time.Time
}

type ReportFile struct {
    FileName    string
    ContentType string
    Content     []byte
}

func NewReportService(store RequestStore, excel ExcelGenerator, pdf PDFGenerator) *ReportService {
    return &ReportService{
        store: store,
        excel: excel,
        pdf:   pdf,
        now:   time.Now,
    }
}

// ExportLedger renders every request, optionally narrowed to statuses.
func (s *ReportService) ExportLedger(ctx context.Context, principal model.Principal, statuses []model.RequestStatus) (*ReportFile, error) {
    if !principal.IsAdmin() {
        return nil, ErrPermissionDenied
    }
    for _, status := range statuses {
        if !status.Valid() {
            return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
        }
    }

    rows, err := s.store.ListByStatus(ctx, statuses...)
    if err != nil {
        return nil, storeError(err)
    }

    ledger := model.Ledger{GeneratedAt: s.now().UTC(), Requests: rows}
    content, err := s.excel.Generate(ledger)
    if err != nil {
        return nil, err
    }

    return &ReportFile{
        FileName:    fmt.Sprintf("dispatch-ledger-%s.xlsx", ledger.GeneratedAt.Format("20060102-150405")),
        ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
        Content:     content,
    }, nil
}

// Receipt renders the price snapshot of one request as a PDF.
func (s *ReportService) Receipt(ctx context.Context, id uuid.UUID) (*ReportFile, error) {
    if id == uuid.Nil {
        return nil, fmt.Errorf("%w: request id is required", ErrInvalidInput)
    }

    req, err := s.store.Get(ctx, id)
    if err != nil {
        return nil, storeError(err)
    }

    content, err := s.pdf.Generate(model.Receipt{Request: *req, IssuedAt: s.now().UTC()})
    if err != nil {
        return nil, err
    }

    return &ReportFile{
        FileName:    buildReceiptName(*req),
        ContentType: "application/pdf",
        Content:     content,
    }, nil
}

func buildReceiptName(req model.ServiceRequest) string {
    service := sanitizeFileName(strings.ToLower(req.ServiceName))
    if service == "" {
        service = "request"
    }
    return fmt.Sprintf("receipt-%s-%s.pdf", service, req.ID.String()[:8])
}

func sanitizeFileName(input string) string {
    result := make([]rune, 0, len(input))
    for _, r := range input {
        switch {
        case r >= 'a' && r <= 'z':
            result = append(result, r)
        case r >= 'A' && r <= 'Z':
            result = append(result, r)
        case r >= '0' && r <= '9':
            result = append(result, r)
        case r == '-', r == '_':
            result = append(result, r)
        default:
            result = append(result, '-')
        }
    }
    return strings.Trim(string(result), "-")
}
