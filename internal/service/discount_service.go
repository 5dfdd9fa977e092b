package service

import (
	"strings"
	"time"

	"github.com/pixelmart/internal/constants"
	"github.com/pixelmart/internal/models"
	"github.com/pixelmart/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DiscountService 折扣码服务
type DiscountService struct {
	codeRepo  repository.DiscountCodeRepository
	usageRepo repository.DiscountUsageRepository
}

// NewDiscountService 创建折扣码服务
func NewDiscountService(codeRepo repository.DiscountCodeRepository, usageRepo repository.DiscountUsageRepository) *DiscountService {
	return &DiscountService{
		codeRepo:  codeRepo,
		usageRepo: usageRepo,
	}
}

// DiscountResult 校验通过后的折扣描述
type DiscountResult struct {
	Code   *models.DiscountCode
	Type   string
	Value  models.Money
	Cap    models.Money
	Amount models.Money
}

// Validate 校验折扣码并计算折扣金额，cartValue 为应用前的购物车金额。
// 校验按固定顺序进行，返回首个失败原因。
func (s *DiscountService) Validate(code string, userID uint, cartValue models.Money) (*DiscountResult, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return nil, ErrDiscountInvalid
	}

	record, err := s.codeRepo.GetByCode(trimmed)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrDiscountNotFound
	}
	if !record.IsActive {
		return nil, ErrDiscountInactive
	}

	now := time.Now()
	if record.StartsAt != nil && now.Before(*record.StartsAt) {
		return nil, ErrDiscountNotStarted
	}
	if record.EndsAt != nil && now.After(*record.EndsAt) {
		return nil, ErrDiscountExpired
	}

	if record.UsageLimit > 0 && record.UsedCount >= record.UsageLimit {
		return nil, ErrDiscountUsageLimit
	}

	if record.PerUserLimit > 0 && userID != 0 {
		count, err := s.usageRepo.CountByCodeAndUser(record.ID, userID)
		if err != nil {
			return nil, err
		}
		if int(count) >= record.PerUserLimit {
			return nil, ErrDiscountPerUserLimit
		}
	}

	if record.MinAmount.Decimal.GreaterThan(decimal.Zero) && cartValue.Decimal.LessThan(record.MinAmount.Decimal) {
		return nil, ErrDiscountMinAmount
	}

	amount, err := s.calculateAmount(record, cartValue)
	if err != nil {
		return nil, err
	}

	return &DiscountResult{
		Code:   record,
		Type:   strings.ToLower(strings.TrimSpace(record.Type)),
		Value:  record.Value,
		Cap:    record.MaxDiscount,
		Amount: amount,
	}, nil
}

// calculateAmount 计算折扣金额：固定金额不超过购物车金额，百分比先封顶再截到购物车金额。
func (s *DiscountService) calculateAmount(record *models.DiscountCode, cartValue models.Money) (models.Money, error) {
	if record.Value.Decimal.LessThanOrEqual(decimal.Zero) {
		return models.Money{}, ErrDiscountInvalid
	}
	switch strings.ToLower(strings.TrimSpace(record.Type)) {
	case constants.DiscountTypeFixed:
		amount := record.Value.Decimal
		if amount.GreaterThan(cartValue.Decimal) {
			amount = cartValue.Decimal
		}
		return models.NewMoneyFromDecimal(amount), nil
	case constants.DiscountTypePercent:
		percent := record.Value.Decimal.Div(decimal.NewFromInt(100))
		amount := cartValue.Decimal.Mul(percent).Round(2)
		if record.MaxDiscount.Decimal.GreaterThan(decimal.Zero) && amount.GreaterThan(record.MaxDiscount.Decimal) {
			amount = record.MaxDiscount.Decimal
		}
		if amount.GreaterThan(cartValue.Decimal) {
			amount = cartValue.Decimal
		}
		return models.NewMoneyFromDecimal(amount), nil
	default:
		return models.Money{}, ErrDiscountInvalid
	}
}

// AllocateShares 按行小计占比拆分折扣金额。
// 逐项四舍五入到分（半数远离零），尾差并入最后一项，保证份额之和等于总折扣。
func (s *DiscountService) AllocateShares(lineTotals []models.Money, totalDiscount models.Money) []models.Money {
	shares := make([]models.Money, len(lineTotals))
	if len(lineTotals) == 0 || totalDiscount.Decimal.LessThanOrEqual(decimal.Zero) {
		return shares
	}

	subtotal := decimal.Zero
	for _, line := range lineTotals {
		subtotal = subtotal.Add(line.Decimal)
	}
	if subtotal.LessThanOrEqual(decimal.Zero) {
		return shares
	}

	allocated := decimal.Zero
	for i, line := range lineTotals {
		if i == len(lineTotals)-1 {
			shares[i] = models.NewMoneyFromDecimal(totalDiscount.Decimal.Sub(allocated))
			break
		}
		share := line.Decimal.Div(subtotal).Mul(totalDiscount.Decimal).Round(2)
		shares[i] = models.NewMoneyFromDecimal(share)
		allocated = allocated.Add(share)
	}
	return shares
}

// Redeem 在订单到达已支付或免费完成状态时记账：占用全局额度并写入使用记录。
// 额度并发占满时返回 ErrDiscountUsageLimit，用户额度复查失败返回 ErrDiscountPerUserLimit。
func (s *DiscountService) Redeem(tx *gorm.DB, codeID uint, userID uint, orderID uint, amount models.Money) error {
	codeRepo := s.codeRepo.WithTx(tx)
	usageRepo := s.usageRepo.WithTx(tx)

	record, err := codeRepo.GetByID(codeID)
	if err != nil {
		return err
	}
	if record == nil {
		return ErrDiscountNotFound
	}

	if record.PerUserLimit > 0 && userID != 0 {
		count, err := usageRepo.CountByCodeAndUser(record.ID, userID)
		if err != nil {
			return err
		}
		if int(count) >= record.PerUserLimit {
			return ErrDiscountPerUserLimit
		}
	}

	claimed, err := codeRepo.ClaimUsage(record.ID)
	if err != nil {
		return err
	}
	if !claimed {
		return ErrDiscountUsageLimit
	}

	return usageRepo.Create(&models.DiscountUsage{
		DiscountCodeID: record.ID,
		UserID:         userID,
		OrderID:        orderID,
		DiscountAmount: amount,
	})
}

// RedeemOnce 幂等记账：订单已有使用记录时直接返回，避免重放请求重复占用额度。
func (s *DiscountService) RedeemOnce(tx *gorm.DB, codeID uint, userID uint, orderID uint, amount models.Money) error {
	usages, err := s.usageRepo.WithTx(tx).ListByOrderID(orderID)
	if err != nil {
		return err
	}
	if len(usages) > 0 {
		return nil
	}
	return s.Redeem(tx, codeID, userID, orderID, amount)
}

// ReleaseRedemption 撤销订单的折扣记账：归还全局额度并删除使用记录。
func (s *DiscountService) ReleaseRedemption(tx *gorm.DB, orderID uint) error {
	usageRepo := s.usageRepo.WithTx(tx)
	codeRepo := s.codeRepo.WithTx(tx)

	usages, err := usageRepo.ListByOrderID(orderID)
	if err != nil {
		return err
	}
	if len(usages) == 0 {
		return nil
	}
	for _, usage := range usages {
		if err := codeRepo.ReleaseUsage(usage.DiscountCodeID); err != nil {
			return err
		}
	}
	return usageRepo.DeleteByOrderID(orderID)
}
