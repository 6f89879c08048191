package errors

import "errors"

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrDuplicateKey 唯一约束冲突
var ErrDuplicateKey = errors.New("记录已存在")

// ErrReferenced 外键约束冲突：记录仍被其他数据引用
var ErrReferenced = errors.New("记录仍被引用")
