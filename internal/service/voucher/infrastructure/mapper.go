package infrastructure

import "github.com/JackieRio/dianpingPlus/internal/service/voucher/domain"

// ToDomainVoucher 将数据库模型转换为领域模型，sv 为空时表示普通券
func ToDomainVoucher(model *VoucherModel, sv *SeckillVoucherModel) *domain.Voucher {
	if model == nil {
		return nil
	}
	v := &domain.Voucher{
		ID:          model.ID,
		ShopID:      model.ShopID,
		Title:       model.Title,
		SubTitle:    model.SubTitle,
		Rules:       model.Rules,
		PayValue:    model.PayValue,
		ActualValue: model.ActualValue,
		Type:        model.Type,
		Status:      model.Status,
		CreateTime:  model.CreateTime,
		UpdateTime:  model.UpdateTime,
	}
	if sv != nil {
		v.Stock = sv.Stock
		v.BeginTime = sv.BeginTime
		v.EndTime = sv.EndTime
	}
	return v
}

// ToDomainSeckillVoucher 将数据库模型转换为领域模型
func ToDomainSeckillVoucher(model *SeckillVoucherModel) *domain.SeckillVoucher {
	if model == nil {
		return nil
	}
	return &domain.SeckillVoucher{
		VoucherID:  model.VoucherID,
		Stock:      model.Stock,
		BeginTime:  model.BeginTime,
		EndTime:    model.EndTime,
		CreateTime: model.CreateTime,
		UpdateTime: model.UpdateTime,
	}
}

// FromDomainVoucher 拆成两张表的模型，用于插入
func FromDomainVoucher(v *domain.Voucher) (*VoucherModel, *SeckillVoucherModel) {
	vm := &VoucherModel{
		ID:          v.ID,
		ShopID:      v.ShopID,
		Title:       v.Title,
		SubTitle:    v.SubTitle,
		Rules:       v.Rules,
		PayValue:    v.PayValue,
		ActualValue: v.ActualValue,
		Type:        v.Type,
		Status:      v.Status,
	}
	if v.Type != domain.VoucherTypeSeckill {
		return vm, nil
	}
	return vm, &SeckillVoucherModel{
		VoucherID: v.ID,
		Stock:     v.Stock,
		BeginTime: v.BeginTime,
		EndTime:   v.EndTime,
	}
}
