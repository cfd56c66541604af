package domain

import "time"

// Link сокращенная ссылка, принадлежащая пользователю.
type Link struct {
	ID         int64     `gorm:"primaryKey;column:id" json:"id"`
	ShortCode  string    `gorm:"column:short_code;size:16;uniqueIndex;not null" json:"short_code"`
	LongURL    string    `gorm:"column:long_url;type:text;not null" json:"long_url"`
	UserID     int64     `gorm:"column:user_id;not null;index" json:"user_id"` // ID владельца ссылки
	ClickCount int64     `gorm:"column:click_count;not null;default:0" json:"click_count"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`

	// Relationships
	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName возвращает название таблицы для GORM
func (Link) TableName() string {
	return "links"
}

// IsOwnedBy сообщает, принадлежит ли ссылка пользователю
func (l *Link) IsOwnedBy(userID int64) bool {
	return l.UserID == userID
}
