package reports_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"go-pos-ledger/internal/apperr"
	"go-pos-ledger/internal/database/dbtest"
	"go-pos-ledger/internal/models"
	"go-pos-ledger/internal/reports"
	"go-pos-ledger/internal/sales"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

var monrovia = time.FixedZone("UTC-5", -5*60*60)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newEngine(t *testing.T) (*reports.Engine, *gorm.DB) {
	t.Helper()
	db := dbtest.New(t)
	return reports.NewEngine(db, sales.NewRepository(db), monrovia), db
}

func insertSale(t *testing.T, db *gorm.DB, store models.Store, at time.Time, method models.PaymentMethod, paid string) {
	t.Helper()
	require.NoError(t, db.Create(&models.Sale{
		Store:         store,
		SaleDate:      at.UTC(),
		PaymentMethod: method,
		AmountPaid:    dec(paid),
		SoldByID:      "u-1",
		Items: []models.SaleItem{{
			ProductID:    "p-1",
			Quantity:     1,
			PricePerUnit: models.Amounts{USD: dec(paid), LRD: decimal.Zero},
			LineTotal:    models.Amounts{USD: dec(paid), LRD: decimal.Zero},
		}},
	}).Error)
}

func TestDaily_TotalsPerPaymentMethod(t *testing.T) {
	engine, db := newEngine(t)
	day := time.Date(2024, 5, 2, 12, 0, 0, 0, monrovia)

	insertSale(t, db, models.Store1, day, models.PaymentUSD, "20")
	insertSale(t, db, models.Store1, day.Add(time.Hour), models.PaymentLRD, "500")

	report, err := engine.Daily(context.Background(), models.Store1, day)
	require.NoError(t, err)

	assert.Equal(t, 2, report.SalesCount)
	assert.True(t, report.DailyTotals.USD.Total.Equal(dec("20")))
	assert.Equal(t, 1, report.DailyTotals.USD.Count)
	assert.True(t, report.DailyTotals.LRD.Total.Equal(dec("500")))
	assert.Equal(t, 1, report.DailyTotals.LRD.Count)
	assert.Len(t, report.Sales, 2)
}

func TestDaily_DayBoundariesInLocation(t *testing.T) {
	engine, db := newEngine(t)

	// 2024-05-02 in UTC-5 runs from 05:00 UTC on the 2nd to 04:59:59 UTC on the 3rd
	insertSale(t, db, models.Store1, time.Date(2024, 5, 2, 4, 30, 0, 0, time.UTC), models.PaymentUSD, "1")
	insertSale(t, db, models.Store1, time.Date(2024, 5, 2, 5, 0, 0, 0, time.UTC), models.PaymentUSD, "2")
	insertSale(t, db, models.Store1, time.Date(2024, 5, 3, 4, 59, 0, 0, time.UTC), models.PaymentUSD, "4")
	insertSale(t, db, models.Store1, time.Date(2024, 5, 3, 5, 0, 0, 0, time.UTC), models.PaymentUSD, "8")
	insertSale(t, db, models.Store2, time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC), models.PaymentUSD, "16")

	report, err := engine.Daily(context.Background(), models.Store1, time.Date(2024, 5, 2, 0, 0, 0, 0, monrovia))
	require.NoError(t, err)

	assert.Equal(t, 2, report.SalesCount)
	assert.True(t, report.DailyTotals.USD.Total.Equal(dec("6")))
	assert.True(t, report.DailyTotals.LRD.Total.IsZero())
	assert.Equal(t, time.Date(2024, 5, 2, 0, 0, 0, 0, monrovia), report.Date)
}

func TestDaily_EmptyAndInvalid(t *testing.T) {
	engine, _ := newEngine(t)

	report, err := engine.Daily(context.Background(), models.Store2, time.Now())
	require.NoError(t, err)
	assert.Zero(t, report.SalesCount)
	assert.Empty(t, report.Sales)
	assert.True(t, report.DailyTotals.USD.Total.IsZero())

	_, err = engine.Daily(context.Background(), "store9", time.Now())
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func seedHistory(t *testing.T, db *gorm.DB) (*models.Product, []time.Time) {
	t.Helper()
	p := &models.Product{Name: "Rice", Store: models.Store1, CurrentQuantity: 10}
	require.NoError(t, db.Create(p).Error)
	require.NoError(t, db.Create(&models.Product{Name: "Beans", Store: models.Store2}).Error)

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	dates := []time.Time{base, base.Add(48 * time.Hour), base.Add(24 * time.Hour)}
	qty, sale := 4, models.EntrySale
	entries := []models.PriceEntry{
		{ProductID: p.ID, USDPrice: dec("1.10"), LRDPrice: dec("200"), Date: dates[0]},
		{ProductID: p.ID, USDPrice: dec("1.20"), LRDPrice: dec("210"), Date: dates[1], Quantity: &qty, Type: &sale},
		{ProductID: p.ID, USDPrice: dec("1.15"), LRDPrice: dec("205"), Date: dates[2]},
	}
	require.NoError(t, db.Create(&entries).Error)
	return p, dates
}

func TestSalesByStore_AllHistoryNewestFirst(t *testing.T) {
	engine, db := newEngine(t)
	p, _ := seedHistory(t, db)

	report, err := engine.SalesByStore(context.Background(), models.Store1, nil, nil)
	require.NoError(t, err)

	require.Equal(t, 3, report.Count)
	require.Len(t, report.Sales, 3)
	assert.True(t, report.Sales[0].TotalAmount.USD.Equal(dec("1.20")))
	assert.True(t, report.Sales[1].TotalAmount.USD.Equal(dec("1.15")))
	assert.True(t, report.Sales[2].TotalAmount.USD.Equal(dec("1.10")))

	assert.Equal(t, 4, report.Sales[0].Quantity)
	assert.Equal(t, "sale", report.Sales[0].Type)
	assert.Equal(t, 1, report.Sales[1].Quantity)
	assert.Equal(t, models.PriceChangeType, report.Sales[1].Type)
	assert.Equal(t, p.ID, report.Sales[0].Product.ID)
	assert.Equal(t, "Rice", report.Sales[0].Product.Name)

	assert.True(t, report.Totals.USD.Equal(dec("3.45")))
	assert.True(t, report.Totals.LRD.Equal(dec("615")))
}

func TestSalesByStore_DateRangeInclusive(t *testing.T) {
	engine, db := newEngine(t)
	_, dates := seedHistory(t, db)

	start, end := dates[0], dates[2]
	report, err := engine.SalesByStore(context.Background(), models.Store1, &start, &end)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Count)
	assert.True(t, report.Totals.USD.Equal(dec("2.25")))

	// a single bound is ignored
	report, err = engine.SalesByStore(context.Background(), models.Store1, &start, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Count)

	_, err = engine.SalesByStore(context.Background(), models.Store1, &end, &start)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	empty, err := engine.SalesByStore(context.Background(), models.Store2, nil, nil)
	require.NoError(t, err)
	assert.Zero(t, empty.Count)
	assert.NotNil(t, empty.Sales)
}

func TestWriteWorkbook(t *testing.T) {
	engine, db := newEngine(t)
	seedHistory(t, db)

	report, err := engine.SalesByStore(context.Background(), models.Store1, nil, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, reports.WriteWorkbook(report, time.UTC, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Sales")
	require.NoError(t, err)
	require.Len(t, rows, 5) // header, 3 entries, totals
	assert.Equal(t, []string{"Date", "Product", "Type", "Quantity", "USD", "LRD"}, rows[0])
	assert.Equal(t, "2024-03-03 09:00", rows[1][0])
	assert.Equal(t, "sale", rows[1][2])
	assert.Equal(t, "Total", rows[4][0])
	assert.Equal(t, "3", rows[4][3])
}

func TestDaily_ItemsCarryProductNames(t *testing.T) {
	engine, db := newEngine(t)
	p := &models.Product{Name: "Rice", Store: models.Store1}
	require.NoError(t, db.Create(p).Error)

	day := time.Date(2024, 5, 2, 12, 0, 0, 0, monrovia)
	require.NoError(t, db.Create(&models.Sale{
		Store:         models.Store1,
		SaleDate:      day.UTC(),
		PaymentMethod: models.PaymentUSD,
		AmountPaid:    dec("2"),
		SoldByID:      "u-1",
		Items: []models.SaleItem{
			{ProductID: p.ID, Quantity: 1, PricePerUnit: models.Amounts{USD: dec("2")}, LineTotal: models.Amounts{USD: dec("2")}},
			{ProductID: "gone", Quantity: 1},
		},
	}).Error)

	report, err := engine.Daily(context.Background(), models.Store1, day)
	require.NoError(t, err)
	require.Len(t, report.Sales, 1)
	items := report.Sales[0].Items
	require.Len(t, items, 2)
	require.NotNil(t, items[0].Product)
	assert.Equal(t, "Rice", items[0].Product.Name)
	assert.Nil(t, items[1].Product)
}
