package inventory

import (
	"context"
	"fmt"
	"io"

	"github.com/360EntSecGroup-Skylar/excelize"
	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/stockledger/stockledger/internal/domain"
	"github.com/stockledger/stockledger/internal/store"
)

type productRow struct {
	ID       string `csv:"id"`
	Name     string `csv:"name"`
	Category string `csv:"category"`
	Price    string `csv:"price"`
	Stock    int    `csv:"stock"`
	MinStock int    `csv:"min_stock"`
}

func productRows(products []domain.Product) []*productRow {
	rows := make([]*productRow, 0, len(products))
	for _, p := range products {
		rows = append(rows, &productRow{
			ID:       p.ID,
			Name:     p.Name,
			Category: p.Category,
			Price:    p.Price.StringFixed(2),
			Stock:    p.Stock,
			MinStock: p.MinStock,
		})
	}
	return rows
}

// WriteLowStockCSV writes the low-stock list as CSV with a header row.
func (r *Reports) WriteLowStockCSV(ctx context.Context, w io.Writer) error {
	products, err := r.LowStock(ctx)
	if err != nil {
		return err
	}
	if err := gocsv.Marshal(productRows(products), w); err != nil {
		return errors.Wrap(err, "write low stock csv")
	}
	return nil
}

const inventorySheet = "Inventory"

var inventoryHeader = []string{"ID", "Name", "Category", "Price", "Stock", "Min Stock", "Value"}

func cellName(col, row int) string {
	return fmt.Sprintf("%c%d", 'A'+col, row)
}

// WriteInventoryXLSX writes the whole catalog with per-product value and a
// total row as an xlsx workbook.
func (r *Reports) WriteInventoryXLSX(ctx context.Context, w io.Writer) error {
	products, _, err := r.store.ListProducts(ctx, store.ProductQuery{})
	if err != nil {
		return domain.NewPersistenceError(err, "list products failed")
	}
	total, err := r.InventoryValue(ctx)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	f.SetSheetName("Sheet1", inventorySheet)
	for i, h := range inventoryHeader {
		f.SetCellValue(inventorySheet, cellName(i, 1), h)
	}
	for i, p := range products {
		row := i + 2
		price, _ := p.Price.Float64()
		value, _ := p.Value().Float64()
		f.SetCellValue(inventorySheet, cellName(0, row), p.ID)
		f.SetCellValue(inventorySheet, cellName(1, row), p.Name)
		f.SetCellValue(inventorySheet, cellName(2, row), p.Category)
		f.SetCellValue(inventorySheet, cellName(3, row), price)
		f.SetCellValue(inventorySheet, cellName(4, row), p.Stock)
		f.SetCellValue(inventorySheet, cellName(5, row), p.MinStock)
		f.SetCellValue(inventorySheet, cellName(6, row), value)
	}
	totalRow := len(products) + 2
	totalValue, _ := total.Float64()
	f.SetCellValue(inventorySheet, cellName(0, totalRow), "Total")
	f.SetCellValue(inventorySheet, cellName(6, totalRow), totalValue)

	if err := f.Write(w); err != nil {
		return errors.Wrap(err, "write inventory xlsx")
	}
	return nil
}
