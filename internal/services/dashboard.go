package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/AnshRaj112/freshcart-backend/internal/models"
	"github.com/AnshRaj112/freshcart-backend/pkg/utils"
)

const recentOrdersLimit = 10

// DashboardStore loads the approved retailer's dashboard payload.
type DashboardStore interface {
	Dashboard(ctx context.Context, retailerEmail string) (*models.Dashboard, error)
}

// PostgresDashboardStore reads orders and products.
type PostgresDashboardStore struct {
	db *sql.DB
}

func NewPostgresDashboardStore(db *sql.DB) *PostgresDashboardStore {
	return &PostgresDashboardStore{db: db}
}

func (s *PostgresDashboardStore) Dashboard(ctx context.Context, retailerEmail string) (*models.Dashboard, error) {
	email := utils.NormalizeEmail(retailerEmail)
	d := &models.Dashboard{
		Orders:   []models.OrderSummary{},
		LowStock: []models.LowStockItem{},
	}

	var revenueCents int64
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COALESCE(SUM(total_cents) FILTER (WHERE status <> 'cancelled'), 0)
		FROM orders WHERE retailer_email = $1
	`, email).Scan(&d.Stats.TotalOrders, &d.Stats.PendingOrders, &revenueCents)
	if err != nil {
		return nil, fmt.Errorf("order stats: %w", err)
	}
	d.Stats.TotalRevenue = float64(revenueCents) / 100

	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM products WHERE retailer_email = $1
	`, email).Scan(&d.Stats.ProductCount); err != nil {
		return nil, fmt.Errorf("product count: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_email, status, total_cents, created_at
		FROM orders WHERE retailer_email = $1
		ORDER BY created_at DESC LIMIT $2
	`, email, recentOrdersLimit)
	if err != nil {
		return nil, fmt.Errorf("recent orders: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var o models.OrderSummary
		var cents int64
		if err := rows.Scan(&o.ID, &o.CustomerEmail, &o.Status, &cents, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.Total = float64(cents) / 100
		d.Orders = append(d.Orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	stockRows, err := s.db.QueryContext(ctx, `
		SELECT id, name, stock, low_stock_threshold
		FROM products WHERE retailer_email = $1 AND stock <= low_stock_threshold
		ORDER BY stock ASC
	`, email)
	if err != nil {
		return nil, fmt.Errorf("low stock: %w", err)
	}
	defer stockRows.Close()
	for stockRows.Next() {
		var item models.LowStockItem
		if err := stockRows.Scan(&item.ProductID, &item.Name, &item.Stock, &item.Threshold); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		d.LowStock = append(d.LowStock, item)
	}
	return d, stockRows.Err()
}
