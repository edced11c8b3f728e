package service

import "errors"

// 领域错误，handler 层按 errors.Is 映射为响应码
var (
	ErrInvalidQuantity     = errors.New("数量必须大于零")
	ErrInsufficientStock   = errors.New("可用库存不足")
	ErrInvalidTransfer     = errors.New("调拨源仓与目标仓不能相同")
	ErrAllocationMismatch  = errors.New("分配数量与需求不一致")
	ErrNoActiveBOM         = errors.New("产品没有激活的BOM")
	ErrConflict            = errors.New("当前状态不允许该操作")
	ErrDuplicateCode       = errors.New("编码已存在")
	ErrMaterialReferenced  = errors.New("物料仍被库存或激活BOM引用")
	ErrInvalidCredentials  = errors.New("用户名或密码错误")
	ErrUserDisabled        = errors.New("用户已停用")
)
