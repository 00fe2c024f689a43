package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrOptimisticLock 乐观锁冲突（version 不匹配）
	ErrOptimisticLock = errors.New("数据已被修改，请刷新后重试")
	// ErrIncidentNotActive 条件更新未命中（事件不存在或已结束）
	ErrIncidentNotActive = errors.New("事件不处于进行中")
	// ErrDuplicate 唯一约束冲突
	ErrDuplicate = errors.New("记录已存在")
)

const pgUniqueViolation = "23505"

// IsUniqueViolation 判断是否为唯一约束冲突；constraint 非空时还需匹配约束名
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
