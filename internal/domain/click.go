package domain

import (
	"time"
	"unicode/utf8"
)

// Device types produced by the User-Agent classifier.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceBot     = "bot"
	DeviceUnknown = "unknown"
)

// Column widths of the clicks table.
const (
	MaxIPAddressLength  = 45
	MaxRefererLength    = 500
	MaxDeviceTypeLength = 10
	MaxBrowserLength    = 50
	MaxOSLength         = 50
)

// Click представляет переход по сокращенной ссылке
type Click struct {
	ID         int64     `gorm:"primaryKey;column:id" json:"id"`
	LinkID     int64     `gorm:"column:link_id;not null;index" json:"link_id"`
	IPAddress  *string   `gorm:"column:ip_address;size:45" json:"ip_address,omitempty"`
	UserAgent  *string   `gorm:"column:user_agent;type:text" json:"user_agent,omitempty"`
	Referer    *string   `gorm:"column:referer;size:500" json:"referer,omitempty"`
	DeviceType *string   `gorm:"column:device_type;size:10" json:"device_type,omitempty"`
	Browser    *string   `gorm:"column:browser;size:50" json:"browser,omitempty"`
	OS         *string   `gorm:"column:os;size:50" json:"os,omitempty"`
	ClickedAt  time.Time `gorm:"column:clicked_at;index" json:"clicked_at"`

	// Relationships
	Link *Link `gorm:"foreignKey:LinkID;constraint:OnDelete:CASCADE" json:"link,omitempty"`
}

// TableName возвращает название таблицы для GORM
func (Click) TableName() string {
	return "clicks"
}

// GetDeviceType возвращает тип устройства или "unknown"
func (c *Click) GetDeviceType() string {
	if c.DeviceType != nil && *c.DeviceType != "" {
		return *c.DeviceType
	}
	return DeviceUnknown
}

// Truncate обрезает поля до ширины колонок, чтобы запись принималась любым хранилищем
func (c *Click) Truncate() {
	truncate(c.IPAddress, MaxIPAddressLength)
	truncate(c.Referer, MaxRefererLength)
	truncate(c.DeviceType, MaxDeviceTypeLength)
	truncate(c.Browser, MaxBrowserLength)
	truncate(c.OS, MaxOSLength)
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s *string, n int) {
	if s == nil || len(*s) <= n {
		return
	}
	cut := n
	for cut > 0 && !utf8.RuneStart((*s)[cut]) {
		cut--
	}
	*s = (*s)[:cut]
}
