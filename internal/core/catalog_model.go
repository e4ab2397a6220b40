package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Supplier categories recognised by purchasing.
const (
	SupplierCategoryLocalShop        = "local_shop"
	SupplierCategoryLocalDistributor = "local_distributor"
	SupplierCategoryECommerce        = "e_commerce"
	SupplierCategoryPharmaceutical   = "pharmaceutical"
)

// Supplier represents a vendor the clinic buys consumables from.
type Supplier struct {
	ID            int
	Name          string
	Category      string
	ContactPerson *string
	Phone         *string
	Email         *string
	Address       *string
	IsActive      bool
	CreatedAt     time.Time
}

// Product represents a consumable or retail item. Stockable products carry
// an on-hand quantity maintained by the inventory service; non-stockable
// products (e.g. items billed but never tracked) skip stock movements.
type Product struct {
	ID                int
	Name              string
	Category          string
	Description       *string
	UnitPrice         decimal.Decimal
	QuantityOnHand    int
	LowStockThreshold int
	IsStockable       bool
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Service represents a billable clinical procedure from the price list.
type Service struct {
	ID          int
	Name        string
	Description *string
	Price       decimal.Decimal
	IsActive    bool
	CreatedAt   time.Time
}

// SupplierInput holds the fields required to create or update a supplier.
type SupplierInput struct {
	Name          string
	Category      string
	ContactPerson string
	Phone         string
	Email         string
	Address       string
}

// ProductInput holds the fields required to create or update a product.
type ProductInput struct {
	Name              string
	Category          string
	Description       string
	UnitPrice         decimal.Decimal
	LowStockThreshold int
	IsStockable       bool
}

// ServiceInput holds the fields required to create or update a service.
type ServiceInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
}

// CatalogService manages the master data billing and purchasing operate on:
// suppliers, products, and the clinical service price list.
type CatalogService interface {
	CreateSupplier(ctx context.Context, input SupplierInput) (*Supplier, error)
	GetSupplier(ctx context.Context, supplierID int) (*Supplier, error)
	GetSuppliers(ctx context.Context, activeOnly bool) ([]Supplier, error)
	UpdateSupplier(ctx context.Context, supplierID int, input SupplierInput) (*Supplier, error)
	// DeactivateSupplier soft-deletes: purchase history stays intact.
	DeactivateSupplier(ctx context.Context, supplierID int) error

	CreateProduct(ctx context.Context, input ProductInput) (*Product, error)
	GetProduct(ctx context.Context, productID int) (*Product, error)
	GetProducts(ctx context.Context, activeOnly bool) ([]Product, error)
	UpdateProduct(ctx context.Context, productID int, input ProductInput) (*Product, error)
	DeactivateProduct(ctx context.Context, productID int) error

	CreateService(ctx context.Context, input ServiceInput) (*Service, error)
	GetService(ctx context.Context, serviceID int) (*Service, error)
	GetServices(ctx context.Context, activeOnly bool) ([]Service, error)
	UpdateService(ctx context.Context, serviceID int, input ServiceInput) (*Service, error)
	DeactivateService(ctx context.Context, serviceID int) error
}
