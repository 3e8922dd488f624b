package inventory

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"parami-backend/internal/auth"
	"parami-backend/internal/models"
)

// ReceiptRow is one line of a goods receipt sheet.
// Columns: SKU, BATCH, QUANTITY, EXPIRY, COST, LOCATION.
type ReceiptRow struct {
	Line        int
	SKU         string
	BatchNumber string
	Quantity    int
	ExpiryDate  *time.Time
	CostPrice   *int64
	Location    *string
}

type RowError struct {
	Line  int    `json:"line"`
	SKU   string `json:"sku,omitempty"`
	Error string `json:"error"`
}

// ReadSheetRows returns the rows of the first sheet of an XLSX document.
func ReadSheetRows(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "opening workbook")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrapf(err, "reading sheet %s", sheets[0])
	}
	return rows, nil
}

type receiptCSVLine struct {
	SKU      string `csv:"SKU"`
	Batch    string `csv:"BATCH"`
	Quantity string `csv:"QUANTITY"`
	Expiry   string `csv:"EXPIRY"`
	Cost     string `csv:"COST"`
	Location string `csv:"LOCATION"`
}

// ReadCSVRows returns the rows of a CSV receipt, header first. Unlike sheets,
// CSV uploads must carry the header row.
func ReadCSVRows(r io.Reader) ([][]string, error) {
	var lines []receiptCSVLine
	if err := gocsv.Unmarshal(r, &lines); err != nil {
		return nil, errors.Wrap(err, "reading csv")
	}

	rows := make([][]string, 0, len(lines)+1)
	rows = append(rows, []string{"SKU", "BATCH", "QUANTITY", "EXPIRY", "COST", "LOCATION"})
	for _, l := range lines {
		rows = append(rows, []string{l.SKU, l.Batch, l.Quantity, l.Expiry, l.Cost, l.Location})
	}
	return rows, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

// ParseReceiptRows converts sheet rows into receipt lines. A first row whose
// first cell reads SKU is treated as a header. Blank rows are skipped.
func ParseReceiptRows(rows [][]string) ([]ReceiptRow, []RowError) {
	var (
		out  []ReceiptRow
		bad  []RowError
		from int
	)
	if len(rows) > 0 && strings.EqualFold(cell(rows[0], 0), "sku") {
		from = 1
	}

	for i := from; i < len(rows); i++ {
		row := rows[i]
		line := i + 1
		sku := cell(row, 0)
		if sku == "" {
			continue
		}

		qty, err := strconv.Atoi(cell(row, 2))
		if err != nil {
			bad = append(bad, RowError{Line: line, SKU: sku, Error: "quantity must be a whole number"})
			continue
		}

		r := ReceiptRow{Line: line, SKU: sku, BatchNumber: cell(row, 1), Quantity: qty}

		if v := cell(row, 3); v != "" {
			t, err := ParseDate(v)
			if err != nil {
				bad = append(bad, RowError{Line: line, SKU: sku, Error: err.Error()})
				continue
			}
			r.ExpiryDate = &t
		}
		if v := cell(row, 4); v != "" {
			cost, err := strconv.ParseInt(v, 10, 64)
			if err != nil || cost < 0 {
				bad = append(bad, RowError{Line: line, SKU: sku, Error: "cost must be a non-negative whole number"})
				continue
			}
			r.CostPrice = &cost
		}
		if v := cell(row, 5); v != "" {
			r.Location = &v
		}

		out = append(out, r)
	}
	return out, bad
}

// ImportResult summarises a receipt import.
type ImportResult struct {
	Applied int        `json:"applied"`
	Failed  []RowError `json:"failed"`
}

// ImportReceipt runs one audited adjustment per row. Rows are independent:
// a failing row is reported and the rest still apply.
func (s *StockService) ImportReceipt(ctx context.Context, branchID string, rows []ReceiptRow, who auth.Identity) ImportResult {
	res := ImportResult{Failed: make([]RowError, 0)}

	for _, r := range rows {
		var p models.Product
		err := s.db.WithContext(ctx).
			Where("branch_id = ? AND (sku = ? OR id = ?)", branchID, r.SKU, r.SKU).
			First(&p).Error
		if err != nil {
			msg := "product not found in branch"
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				msg = "could not read product"
			}
			res.Failed = append(res.Failed, RowError{Line: r.Line, SKU: r.SKU, Error: msg})
			continue
		}

		_, err = s.AdjustAudited(ctx, AdjustRequest{
			ProductID:   p.ID,
			Delta:       r.Quantity,
			BatchNumber: r.BatchNumber,
			Location:    r.Location,
			ExpiryDate:  r.ExpiryDate,
			CostPrice:   r.CostPrice,
		}, who, SourceImport)
		if err != nil {
			log.WithError(err).WithField("line", r.Line).Warn("receipt row not applied")
			res.Failed = append(res.Failed, RowError{Line: r.Line, SKU: r.SKU, Error: "could not update stock"})
			continue
		}
		res.Applied++
	}
	return res
}

// POST /api/products/import (multipart: file (.xlsx or .csv), branch_id for super admins)
func ImportReceiptHandler(svc *StockService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		who, err := auth.CurrentIdentity(c)
		if err != nil {
			return err
		}
		formBranch := c.FormValue("branch_id")
		branchID, err := auth.BranchFromBodyOrRole(c, &formBranch)
		if err != nil {
			return err
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "file is required")
		}
		name := strings.ToLower(fileHeader.Filename)
		readRows := ReadSheetRows
		switch {
		case strings.HasSuffix(name, ".xlsx"):
		case strings.HasSuffix(name, ".csv"):
			readRows = ReadCSVRows
		default:
			return fiber.NewError(fiber.StatusBadRequest, "Only .xlsx and .csv files are accepted")
		}

		file, err := fileHeader.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not open upload")
		}
		defer file.Close()

		sheet, err := readRows(file)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Could not read spreadsheet: "+err.Error())
		}

		rows, bad := ParseReceiptRows(sheet)
		res := svc.ImportReceipt(c.UserContext(), branchID, rows, who)
		res.Failed = append(append(make([]RowError, 0, len(bad)+len(res.Failed)), bad...), res.Failed...)

		log.WithFields(log.Fields{
			"branch_id": branchID,
			"applied":   res.Applied,
			"failed":    len(res.Failed),
		}).Info("receipt imported")

		return c.JSON(fiber.Map{
			"applied": res.Applied,
			"failed":  res.Failed,
			"message": fmt.Sprintf("%d rows applied, %d rows failed", res.Applied, len(res.Failed)),
		})
	}
}
