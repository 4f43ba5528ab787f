package models

import "time"

// DashboardStats are the summary cards on the retailer dashboard.
type DashboardStats struct {
	TotalOrders   int     `json:"totalOrders"`
	PendingOrders int     `json:"pendingOrders"`
	TotalRevenue  float64 `json:"totalRevenue"`
	ProductCount  int     `json:"productCount"`
}

// OrderSummary is one row of the recent-orders table.
type OrderSummary struct {
	ID            string    `json:"id"`
	CustomerEmail string    `json:"customerEmail"`
	Status        string    `json:"status"`
	Total         float64   `json:"total"`
	CreatedAt     time.Time `json:"createdAt"`
}

// LowStockItem is a product at or below its restock threshold.
type LowStockItem struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Stock     int    `json:"stock"`
	Threshold int    `json:"threshold"`
}

// Dashboard is the full, ungated retailer dashboard payload.
type Dashboard struct {
	Stats    DashboardStats `json:"stats"`
	Orders   []OrderSummary `json:"orders"`
	LowStock []LowStockItem `json:"lowStock"`
}
