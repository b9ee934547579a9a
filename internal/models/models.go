package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Store - A tenant/location scope partitioning inventory and sales
type Store string

const (
	Store1 Store = "store1"
	Store2 Store = "store2"
)

func (s Store) Valid() bool {
	return s == Store1 || s == Store2
}

// EntryType - How a quantity history entry moves the stock level
type EntryType string

const (
	EntryInitial     EntryType = "initial"     // seeds the level on product creation
	EntryAddition    EntryType = "addition"    // adds to the level
	EntrySubtraction EntryType = "subtraction" // removes from the level
	EntrySale        EntryType = "sale"        // removes from the level, carries a price snapshot
	EntryUpdate      EntryType = "update"      // recount: sets the level absolutely
)

func (t EntryType) Valid() bool {
	switch t {
	case EntryInitial, EntryAddition, EntrySubtraction, EntrySale, EntryUpdate:
		return true
	}
	return false
}

// PriceChangeType is reported for price entries that were not produced by a sale.
const PriceChangeType = "price_change"

// PaymentMethod - The currency a sale was settled in
type PaymentMethod string

const (
	PaymentUSD PaymentMethod = "usd"
	PaymentLRD PaymentMethod = "lrd"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentUSD || m == PaymentLRD
}

// Role - What a user is allowed to touch
type Role string

const (
	RoleAdmin   Role = "admin"   // every store
	RoleManager Role = "manager" // only its own store
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleManager
}

// Amounts - A pair of independently tracked USD / LRD values
type Amounts struct {
	USD decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"usd"`
	LRD decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"lrd"`
}

func (a Amounts) Add(b Amounts) Amounts {
	return Amounts{USD: a.USD.Add(b.USD), LRD: a.LRD.Add(b.LRD)}
}

func (a Amounts) Times(quantity int) Amounts {
	q := decimal.NewFromInt(int64(quantity))
	return Amounts{USD: a.USD.Mul(q), LRD: a.LRD.Mul(q)}
}

// Product - The Inventory Record: current state plus its two append-only histories
type Product struct {
	ID              string          `gorm:"primaryKey;size:36" json:"id"`
	Name            string          `gorm:"size:255;not null" json:"name"`
	Store           Store           `gorm:"size:16;not null;index" json:"store"`
	CurrentQuantity int             `gorm:"not null;default:0" json:"current_quantity"`
	CurrentUSDPrice decimal.Decimal `gorm:"column:current_usd_price;type:decimal(20,4);not null;default:0" json:"current_usd_price"`
	CurrentLRDPrice decimal.Decimal `gorm:"column:current_lrd_price;type:decimal(20,4);not null;default:0" json:"current_lrd_price"`
	Images          []Image         `gorm:"foreignKey:ProductID" json:"images"`
	QuantityHistory []QuantityEntry `gorm:"foreignKey:ProductID" json:"quantity_history"`
	PriceHistory    []PriceEntry    `gorm:"foreignKey:ProductID" json:"price_history"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// Prices returns the current unit prices as a pair.
func (p *Product) Prices() Amounts {
	return Amounts{USD: p.CurrentUSDPrice, LRD: p.CurrentLRDPrice}
}

// QuantityEntry - One row of the quantity ledger. Quantity is unsigned; Type gives the sign.
type QuantityEntry struct {
	Seq       uint64           `gorm:"primaryKey;autoIncrement" json:"-"`
	ProductID string           `gorm:"size:36;not null;index" json:"-"`
	Quantity  int              `gorm:"not null" json:"quantity"`
	Type      EntryType        `gorm:"size:16;not null" json:"type"`
	Date      time.Time        `gorm:"not null" json:"date"`
	USDPrice  *decimal.Decimal `gorm:"column:usd_price;type:decimal(20,4)" json:"usd_price,omitempty"`
	LRDPrice  *decimal.Decimal `gorm:"column:lrd_price;type:decimal(20,4)" json:"lrd_price,omitempty"`
}

// PriceEntry - One row of the price ledger.
// Quantity/Type are only set when the change came from a sale-type adjustment.
type PriceEntry struct {
	Seq       uint64          `gorm:"primaryKey;autoIncrement" json:"-"`
	ProductID string          `gorm:"size:36;not null;index" json:"-"`
	USDPrice  decimal.Decimal `gorm:"column:usd_price;type:decimal(20,4);not null" json:"usd_price"`
	LRDPrice  decimal.Decimal `gorm:"column:lrd_price;type:decimal(20,4);not null" json:"lrd_price"`
	Date      time.Time       `gorm:"not null;index" json:"date"`
	Quantity  *int            `json:"quantity,omitempty"`
	Type      *EntryType      `gorm:"size:16" json:"type,omitempty"`
}

// Image - Owned by the image subsystem, passed through untouched by the ledger
type Image struct {
	Seq         uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	ProductID   string    `gorm:"size:36;not null;index" json:"-"`
	Filename    string    `gorm:"size:255;not null" json:"filename"`
	StoragePath string    `gorm:"size:512;not null" json:"path"`
	UploadDate  time.Time `json:"upload_date"`
}

// User - The identity a sale is attributed to
type User struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	Username     string     `gorm:"size:50;not null;uniqueIndex:idx_users_username_store" json:"username"`
	PasswordHash string     `gorm:"not null" json:"-"` // Never return this in JSON
	Role         Role       `gorm:"size:16;not null" json:"role"`
	Store        Store      `gorm:"size:16;uniqueIndex:idx_users_username_store" json:"store"` // empty for admins
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Sale - The immutable Sale Record
type Sale struct {
	ID            string          `gorm:"primaryKey;size:36" json:"id"`
	Store         Store           `gorm:"size:16;not null;index:idx_sales_store_date,priority:1" json:"store"`
	SaleDate      time.Time       `gorm:"not null;index:idx_sales_store_date,priority:2" json:"sale_date"`
	Items         []SaleItem      `gorm:"foreignKey:SaleID" json:"items"`
	TotalAmount   Amounts         `gorm:"embedded;embeddedPrefix:total_" json:"total_amount"`
	PaymentMethod PaymentMethod   `gorm:"size:8;not null" json:"payment_method"`
	AmountPaid    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount_paid"`
	SoldByID      string          `gorm:"size:36;not null;index" json:"sold_by_id"`
	SoldBy        *User           `gorm:"foreignKey:SoldByID" json:"sold_by,omitempty"`
}

func (s *Sale) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// SaleItem - One line of a sale, with the unit price snapshotted at sale time
type SaleItem struct {
	Seq          uint64   `gorm:"primaryKey;autoIncrement" json:"-"`
	SaleID       string   `gorm:"size:36;not null;index" json:"-"`
	ProductID    string   `gorm:"size:36;not null;index" json:"product_id"`
	Product      *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Quantity     int      `gorm:"not null" json:"quantity"`
	PricePerUnit Amounts  `gorm:"embedded;embeddedPrefix:unit_" json:"price_per_unit"`
	LineTotal    Amounts  `gorm:"embedded;embeddedPrefix:line_" json:"line_total"`
}
