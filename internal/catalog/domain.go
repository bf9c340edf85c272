package catalog

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lumapos/lumapos/internal/shared"
)

// ItemType classifies sellable things. Only Product items carry physical
// stock; a Package bundles other items through its bill-of-materials.
type ItemType string

const (
	// ItemTypeProduct is a physical, stock-carrying item.
	ItemTypeProduct ItemType = "Product"
	// ItemTypeService is a non-stock item performed by an employee.
	ItemTypeService ItemType = "Service"
	// ItemTypePackage bundles components defined by ItemDetail rows.
	ItemTypePackage ItemType = "Package"
)

// Valid reports whether the type is one of the known values.
func (t ItemType) Valid() bool {
	switch t {
	case ItemTypeProduct, ItemTypeService, ItemTypePackage:
		return true
	}
	return false
}

// Item is a sellable thing scoped to one company.
type Item struct {
	ID                   int64
	CompanyID            int64
	Code                 string
	Name                 string
	Type                 ItemType
	SalePrice            decimal.Decimal
	LastPurchasePrice    decimal.Decimal
	LastThreePurchaseAvg decimal.Decimal
	LowStockThreshold    decimal.Decimal
	DelStatus            shared.DelStatus
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Component is one bill-of-materials line of a package.
type Component struct {
	ItemID   int64
	Quantity decimal.Decimal
}

// PackageRef points back from a component to a package containing it,
// with the per-package bill-of-materials quantity.
type PackageRef struct {
	PackageID int64
	Quantity  decimal.Decimal
}

// ListFilters narrows item listings.
type ListFilters struct {
	Search string
	Type   ItemType
	Page   int
	Limit  int
}

// ErrNotPackage is returned when components are attached to a non-package item.
var ErrNotPackage = fmt.Errorf("catalog: item is not a package: %w", shared.ErrIntegrity)
