package domain

import "time"

// User представляет зарегистрированного пользователя сервиса.
type User struct {
	ID           int64     `gorm:"primaryKey;column:id" json:"id"`
	Username     string    `gorm:"column:username;size:64;uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"column:password_hash;not null" json:"-"` // скрываем хеш в JSON
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName возвращает название таблицы для GORM
func (User) TableName() string {
	return "users"
}
