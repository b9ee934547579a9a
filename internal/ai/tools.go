package ai

import (
	"context"
	"fmt"
	"time"

	"go-pos-ledger/internal/inventory"
	"go-pos-ledger/internal/models"
	"go-pos-ledger/internal/reports"

	"github.com/google/generative-ai-go/genai"
	"github.com/shopspring/decimal"
)

// Inventory is the part of the inventory service the assistant may use.
type Inventory interface {
	CreateProduct(ctx context.Context, in inventory.NewProduct) (*models.Product, error)
	AdjustPrices(ctx context.Context, id string, usd, lrd *decimal.Decimal) (*models.Product, error)
	ListByStore(ctx context.Context, store models.Store) ([]models.Product, error)
}

// Reports is the part of the reporting engine the assistant may use.
type Reports interface {
	SalesByStore(ctx context.Context, store models.Store, start, end *time.Time) (*reports.SalesReport, error)
	Daily(ctx context.Context, store models.Store, date time.Time) (*reports.DailyReport, error)
}

var storeSchema = &genai.Schema{
	Type:        genai.TypeString,
	Description: "Store name",
	Enum:        []string{string(models.Store1), string(models.Store2)},
}

var declarations = []*genai.FunctionDeclaration{
	{
		Name:        "check_inventory",
		Description: "Get the inventory of a store. Use this to find ANY product details like ID, name, prices or stock.",
		Parameters: &genai.Schema{
			Type:       genai.TypeObject,
			Properties: map[string]*genai.Schema{"store": storeSchema},
			Required:   []string{"store"},
		},
	},
	{
		Name:        "update_product_prices",
		Description: "Change the USD and/or LRD price of a product using its ID",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"product_id": {Type: genai.TypeString, Description: "ID of the product"},
				"usd_price":  {Type: genai.TypeNumber, Description: "New USD price"},
				"lrd_price":  {Type: genai.TypeNumber, Description: "New LRD price"},
			},
			Required: []string{"product_id"},
		},
	},
	{
		Name:        "create_product",
		Description: "Add a new product to a store's inventory",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"name":      {Type: genai.TypeString, Description: "Name of the product"},
				"store":     storeSchema,
				"quantity":  {Type: genai.TypeInteger, Description: "Initial stock count"},
				"usd_price": {Type: genai.TypeNumber, Description: "USD price"},
				"lrd_price": {Type: genai.TypeNumber, Description: "LRD price"},
			},
			Required: []string{"name", "store", "quantity"},
		},
	},
	{
		Name:        "get_sales_report",
		Description: "Get the sales report of a store, optionally for a date range.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"store":      storeSchema,
				"start_date": {Type: genai.TypeString, Description: "Start date (YYYY-MM-DD)"},
				"end_date":   {Type: genai.TypeString, Description: "End date (YYYY-MM-DD)"},
			},
			Required: []string{"store"},
		},
	},
	{
		Name:        "get_daily_report",
		Description: "Get the money collected by a store on one day, per payment currency.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"store": storeSchema,
				"date":  {Type: genai.TypeString, Description: "Date (YYYY-MM-DD)"},
			},
			Required: []string{"store", "date"},
		},
	},
}

// Tools executes the function calls the model makes.
type Tools struct {
	inventory Inventory
	reports   Reports
	loc       *time.Location
}

func NewTools(inv Inventory, rep Reports, loc *time.Location) *Tools {
	if loc == nil {
		loc = time.Local
	}
	return &Tools{inventory: inv, reports: rep, loc: loc}
}

// Call runs one tool. Failures are reported to the model as {"error": ...}, never returned.
func (t *Tools) Call(ctx context.Context, name string, args map[string]any) map[string]any {
	var out map[string]any
	var err error
	switch name {
	case "check_inventory":
		out, err = t.checkInventory(ctx, args)
	case "update_product_prices":
		out, err = t.updatePrices(ctx, args)
	case "create_product":
		out, err = t.createProduct(ctx, args)
	case "get_sales_report":
		out, err = t.salesReport(ctx, args)
	case "get_daily_report":
		out, err = t.dailyReport(ctx, args)
	default:
		err = fmt.Errorf("unknown tool %q", name)
	}
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	return out
}

func (t *Tools) checkInventory(ctx context.Context, args map[string]any) (map[string]any, error) {
	products, err := t.inventory.ListByStore(ctx, models.Store(str(args, "store")))
	if err != nil {
		return nil, err
	}

	list := make([]map[string]any, 0, len(products))
	for _, p := range products {
		list = append(list, map[string]any{
			"id":        p.ID,
			"name":      p.Name,
			"stock":     p.CurrentQuantity,
			"usd_price": p.CurrentUSDPrice.String(),
			"lrd_price": p.CurrentLRDPrice.String(),
		})
	}
	return map[string]any{"inventory": list}, nil
}

func (t *Tools) updatePrices(ctx context.Context, args map[string]any) (map[string]any, error) {
	p, err := t.inventory.AdjustPrices(ctx, str(args, "product_id"), num(args, "usd_price"), num(args, "lrd_price"))
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"status":    "updated",
		"name":      p.Name,
		"usd_price": p.CurrentUSDPrice.String(),
		"lrd_price": p.CurrentLRDPrice.String(),
	}, nil
}

func (t *Tools) createProduct(ctx context.Context, args map[string]any) (map[string]any, error) {
	qty := 0
	if q := num(args, "quantity"); q != nil {
		qty = int(q.IntPart())
	}
	p, err := t.inventory.CreateProduct(ctx, inventory.NewProduct{
		Name:            str(args, "name"),
		Store:           models.Store(str(args, "store")),
		InitialQuantity: qty,
		USDPrice:        num(args, "usd_price"),
		LRDPrice:        num(args, "lrd_price"),
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": "created", "id": p.ID}, nil
}

func (t *Tools) salesReport(ctx context.Context, args map[string]any) (map[string]any, error) {
	var start, end *time.Time
	if s, e := str(args, "start_date"), str(args, "end_date"); s != "" && e != "" {
		from, err := time.ParseInLocation("2006-01-02", s, t.loc)
		if err != nil {
			return nil, fmt.Errorf("dates must be in YYYY-MM-DD format")
		}
		to, err := time.ParseInLocation("2006-01-02", e, t.loc)
		if err != nil {
			return nil, fmt.Errorf("dates must be in YYYY-MM-DD format")
		}
		to = to.AddDate(0, 0, 1).Add(-time.Nanosecond)
		start, end = &from, &to
	}

	report, err := t.reports.SalesByStore(ctx, models.Store(str(args, "store")), start, end)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"entries":   report.Count,
		"total_usd": report.Totals.USD.String(),
		"total_lrd": report.Totals.LRD.String(),
	}, nil
}

func (t *Tools) dailyReport(ctx context.Context, args map[string]any) (map[string]any, error) {
	date, err := time.ParseInLocation("2006-01-02", str(args, "date"), t.loc)
	if err != nil {
		return nil, fmt.Errorf("date must be in YYYY-MM-DD format")
	}

	report, err := t.reports.Daily(ctx, models.Store(str(args, "store")), date)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"sales_count": report.SalesCount,
		"usd_total":   report.DailyTotals.USD.Total.String(),
		"usd_count":   report.DailyTotals.USD.Count,
		"lrd_total":   report.DailyTotals.LRD.Total.String(),
		"lrd_count":   report.DailyTotals.LRD.Count,
	}, nil
}

func str(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// num reads a JSON number argument. Gemini sends every number as float64.
func num(args map[string]any, key string) *decimal.Decimal {
	f, ok := args[key].(float64)
	if !ok {
		return nil
	}
	d := decimal.NewFromFloat(f)
	return &d
}
