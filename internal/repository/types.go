package repository

import "time"

// OrderListFilter 查询订单列表的过滤条件
type OrderListFilter struct {
	Page          int
	PageSize      int
	UserID        uint
	Status        string
	PaymentStatus string
	OrderNo       string
	CustomerEmail string
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
}

// DiscountCodeListFilter 查询折扣码列表的过滤条件
type DiscountCodeListFilter struct {
	Page     int
	PageSize int
	Code     string
	Type     string
	IsActive *bool
}

// DiscountUsageListFilter 查询折扣码使用记录的过滤条件
type DiscountUsageListFilter struct {
	Page           int
	PageSize       int
	DiscountCodeID uint
	UserID         uint
}

// ProductListFilter 查询商品列表的过滤条件
type ProductListFilter struct {
	Page       int
	PageSize   int
	Search     string
	OnlyActive bool
}

// DownloadGrantListFilter 查询下载授权列表的过滤条件
type DownloadGrantListFilter struct {
	Page         int
	PageSize     int
	OrderID      uint
	DesignFileID uint
	OnlyActive   bool
}
