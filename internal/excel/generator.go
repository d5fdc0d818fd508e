package excel

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/nurpe/dispatch-core/internal/model"
)

const (
	summarySheet  = "Summary"
	requestsSheet = "Requests"
)

var requestHeaders = []string{
	"Created",
	"Request ID",
	"Service",
	"Customer",
	"Contact",
	"Address",
	"Status",
	"Professional",
	"Claimed",
	"Service price",
	"Travel price",
	"Total",
}

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Generate(ledger model.Ledger) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	g.writeSummary(file, ledger)

	if _, err := file.NewSheet(requestsSheet); err != nil {
		return nil, err
	}
	g.writeRequests(file, requestsSheet, ledger.Requests)

	used := map[string]struct{}{summarySheet: {}, requestsSheet: {}}
	for _, group := range groupByService(ledger.Requests) {
		sheet := buildSheetName(group.name, used)
		used[sheet] = struct{}{}
		if _, err := file.NewSheet(sheet); err != nil {
			return nil, err
		}
		g.writeRequests(file, sheet, group.requests)
	}

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeSummary(file *excelize.File, ledger model.Ledger) {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(summarySheet, cell, value)
	}

	grand := decimal.Zero
	for _, req := range ledger.Requests {
		grand = grand.Add(req.Price.Total)
	}

	set("A1", "Generated at")
	set("B1", formatDateTime(ledger.GeneratedAt))
	set("A2", "Requests")
	set("B2", len(ledger.Requests))
	set("A3", "Total value")
	set("B3", formatAmount(grand))

	tableRow := 5
	set(fmt.Sprintf("A%d", tableRow), "Status")
	set(fmt.Sprintf("B%d", tableRow), "Requests")
	set(fmt.Sprintf("C%d", tableRow), "Total value")

	for i, line := range ledger.Summary() {
		row := tableRow + 1 + i
		set(fmt.Sprintf("A%d", row), string(line.Status))
		set(fmt.Sprintf("B%d", row), line.Count)
		set(fmt.Sprintf("C%d", row), formatAmount(line.Total))
	}

	_ = file.SetColWidth(summarySheet, "A", "A", 20)
	_ = file.SetColWidth(summarySheet, "B", "C", 16)
}

func (g *Generator) writeRequests(file *excelize.File, sheet string, requests []model.ServiceRequest) {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	for i, header := range requestHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		set(cell, header)
	}

	for i, req := range requests {
		row := i + 2
		set(fmt.Sprintf("A%d", row), formatDateTime(req.CreatedAt))
		set(fmt.Sprintf("B%d", row), req.ID.String())
		set(fmt.Sprintf("C%d", row), req.ServiceName)
		set(fmt.Sprintf("D%d", row), req.CustomerName)
		set(fmt.Sprintf("E%d", row), req.CustomerContact)
		set(fmt.Sprintf("F%d", row), req.Address)
		set(fmt.Sprintf("G%d", row), string(req.Status))
		set(fmt.Sprintf("H%d", row), formatString(req.ProfessionalName))
		set(fmt.Sprintf("I%d", row), formatTimePtr(req.ClaimedAt))
		set(fmt.Sprintf("J%d", row), formatAmount(req.Price.Service))
		set(fmt.Sprintf("K%d", row), formatAmount(req.Price.Travel))
		set(fmt.Sprintf("L%d", row), formatAmount(req.Price.Total))
	}

	_ = file.SetColWidth(sheet, "A", "A", 20)
	_ = file.SetColWidth(sheet, "B", "B", 38)
	_ = file.SetColWidth(sheet, "C", "F", 28)
	_ = file.SetColWidth(sheet, "G", "I", 20)
	_ = file.SetColWidth(sheet, "J", "L", 14)
}

type serviceGroup struct {
	name     string
	requests []model.ServiceRequest
}

func groupByService(requests []model.ServiceRequest) []serviceGroup {
	index := make(map[string]int)
	var groups []serviceGroup
	for _, req := range requests {
		pos, ok := index[req.ServiceName]
		if !ok {
			pos = len(groups)
			index[req.ServiceName] = pos
			groups = append(groups, serviceGroup{name: req.ServiceName})
		}
		groups[pos].requests = append(groups[pos].requests, req)
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].name < groups[j].name })
	return groups
}

const maxSheetNameBytes = 31

// buildSheetName returns a unique excel-safe sheet name of at most 31 bytes.
func buildSheetName(name string, used map[string]struct{}) string {
	base := truncateRunes(sanitizeSheetName(name), maxSheetNameBytes)

	candidate := base
	counter := 2
	for {
		if _, exists := used[candidate]; !exists {
			return candidate
		}
		suffix := fmt.Sprintf("-%d", counter)
		candidate = truncateRunes(base, maxSheetNameBytes-len(suffix)) + suffix
		counter++
	}
}

// truncateRunes cuts value to at most limit bytes without splitting a rune.
func truncateRunes(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	end := 0
	for end < len(value) {
		_, size := utf8.DecodeRuneInString(value[end:])
		if end+size > limit {
			break
		}
		end += size
	}
	return value[:end]
}

func sanitizeSheetName(value string) string {
	replacer := strings.NewReplacer(
		"[", "-",
		"]", "-",
		":", "-",
		"*", "-",
		"?", "-",
		"/", "-",
		"\\", "-",
	)
	value = strings.TrimSpace(replacer.Replace(value))
	if value == "" {
		return "Service"
	}
	return value
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatDateTime(*t)
}

func formatString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func formatAmount(value decimal.Decimal) string {
	return value.StringFixed(2)
}
