package service

import (
	"strings"
	"time"

	"github.com/pixelmart/internal/constants"
	"github.com/pixelmart/internal/models"
	"github.com/pixelmart/internal/repository"

	"github.com/shopspring/decimal"
)

// DiscountAdminService 折扣码管理服务
type DiscountAdminService struct {
	codeRepo repository.DiscountCodeRepository
}

// NewDiscountAdminService 创建折扣码管理服务
func NewDiscountAdminService(codeRepo repository.DiscountCodeRepository) *DiscountAdminService {
	return &DiscountAdminService{codeRepo: codeRepo}
}

// DiscountCodeInput 创建/更新折扣码输入
type DiscountCodeInput struct {
	Code         string
	Type         string
	Value        models.Money
	MaxDiscount  models.Money
	MinAmount    models.Money
	UsageLimit   int
	PerUserLimit int
	StartsAt     *time.Time
	EndsAt       *time.Time
	IsActive     bool
}

func (input *DiscountCodeInput) normalize() error {
	input.Code = strings.ToUpper(strings.TrimSpace(input.Code))
	input.Type = strings.ToLower(strings.TrimSpace(input.Type))
	if input.Code == "" {
		return ErrDiscountInvalid
	}
	if input.Type != constants.DiscountTypeFixed && input.Type != constants.DiscountTypePercent {
		return ErrDiscountInvalid
	}
	if input.Value.Decimal.LessThanOrEqual(decimal.Zero) {
		return ErrDiscountInvalid
	}
	if input.Type == constants.DiscountTypePercent && input.Value.Decimal.GreaterThan(decimal.NewFromInt(100)) {
		return ErrDiscountInvalid
	}
	if input.UsageLimit < 0 || input.PerUserLimit < 0 {
		return ErrDiscountInvalid
	}
	if input.StartsAt != nil && input.EndsAt != nil && input.EndsAt.Before(*input.StartsAt) {
		return ErrDiscountInvalid
	}
	return nil
}

// Create 创建折扣码，码值重复时返回 ErrDiscountCodeExists
func (s *DiscountAdminService) Create(input DiscountCodeInput) (*models.DiscountCode, error) {
	if err := input.normalize(); err != nil {
		return nil, err
	}
	existing, err := s.codeRepo.GetByCode(input.Code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDiscountCodeExists
	}

	record := &models.DiscountCode{
		Code:         input.Code,
		Type:         input.Type,
		Value:        input.Value,
		MaxDiscount:  input.MaxDiscount,
		MinAmount:    input.MinAmount,
		UsageLimit:   input.UsageLimit,
		PerUserLimit: input.PerUserLimit,
		StartsAt:     input.StartsAt,
		EndsAt:       input.EndsAt,
		IsActive:     input.IsActive,
	}
	if err := s.codeRepo.Create(record); err != nil {
		return nil, err
	}
	return record, nil
}

// Update 更新折扣码定义。已应用到历史订单的折扣金额不受影响。
func (s *DiscountAdminService) Update(id uint, input DiscountCodeInput) (*models.DiscountCode, error) {
	if err := input.normalize(); err != nil {
		return nil, err
	}
	record, err := s.codeRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrDiscountNotFound
	}
	if record.Code != input.Code {
		existing, err := s.codeRepo.GetByCode(input.Code)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ID != id {
			return nil, ErrDiscountCodeExists
		}
	}

	record.Code = input.Code
	record.Type = input.Type
	record.Value = input.Value
	record.MaxDiscount = input.MaxDiscount
	record.MinAmount = input.MinAmount
	record.UsageLimit = input.UsageLimit
	record.PerUserLimit = input.PerUserLimit
	record.StartsAt = input.StartsAt
	record.EndsAt = input.EndsAt
	record.IsActive = input.IsActive

	if err := s.codeRepo.Update(record); err != nil {
		return nil, err
	}
	return record, nil
}

// SetActive 启停折扣码
func (s *DiscountAdminService) SetActive(id uint, active bool) (*models.DiscountCode, error) {
	record, err := s.codeRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrDiscountNotFound
	}
	record.IsActive = active
	if err := s.codeRepo.Update(record); err != nil {
		return nil, err
	}
	return record, nil
}

// Delete 删除折扣码
func (s *DiscountAdminService) Delete(id uint) error {
	record, err := s.codeRepo.GetByID(id)
	if err != nil {
		return err
	}
	if record == nil {
		return ErrDiscountNotFound
	}
	return s.codeRepo.Delete(id)
}

// Get 获取折扣码详情
func (s *DiscountAdminService) Get(id uint) (*models.DiscountCode, error) {
	record, err := s.codeRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrDiscountNotFound
	}
	return record, nil
}

// List 获取折扣码列表
func (s *DiscountAdminService) List(filter repository.DiscountCodeListFilter) ([]models.DiscountCode, int64, error) {
	return s.codeRepo.List(filter)
}
