package useragent

import (
	"PURLS-Backend/internal/domain"
	"fmt"
	"strings"

	"github.com/ua-parser/uap-go/uaparser"
	"go.uber.org/zap"
)

// Parser wraps the User-Agent parser with device type detection
type Parser struct {
	parser *uaparser.Parser
	log    *zap.Logger
}

// DeviceInfo represents parsed device information
type DeviceInfo struct {
	DeviceType string // mobile, desktop, tablet, bot, unknown
	Browser    string // Chrome, Firefox, Safari, etc.
	OS         string // Windows, iOS, Android, etc.
	Raw        string
}

var (
	botIndicators = []string{
		"googlebot", "bingbot", "slurp", "duckduckbot", "baiduspider",
		"yandexbot", "facebookexternalhit", "twitterbot", "linkedinbot",
		"whatsapp", "telegram", "skypeuripreview", "bot", "crawler",
		"spider", "scraper",
	}
	mobileDevices = []string{"iphone", "android", "blackberry", "windows phone", "mobile", "phone"}
	tabletDevices = []string{"ipad", "tablet", "kindle", "surface"}
	mobileOS      = []string{"ios", "android", "windows phone", "blackberry os", "firefox os", "sailfish os"}
	desktopOS     = []string{"windows", "mac os x", "macos", "linux", "ubuntu", "chrome os", "freebsd", "openbsd", "netbsd"}
)

// NewParser creates a parser from a regexes.yaml file.
// An empty path selects the definitions bundled with uap-go.
func NewParser(regexFilePath string, log *zap.Logger) (*Parser, error) {
	if regexFilePath == "" {
		log.Info("User-Agent parser initialized with bundled regexes")
		return &Parser{parser: uaparser.NewFromSaved(), log: log}, nil
	}

	parser, err := uaparser.New(regexFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create User-Agent parser from %s: %w", regexFilePath, err)
	}

	log.Info("User-Agent parser initialized", zap.String("regexes_file", regexFilePath))
	return &Parser{parser: parser, log: log}, nil
}

// Parse parses a User-Agent string and returns device information
func (p *Parser) Parse(userAgent string) *DeviceInfo {
	if strings.TrimSpace(userAgent) == "" {
		return &DeviceInfo{
			DeviceType: domain.DeviceUnknown,
			Browser:    domain.DeviceUnknown,
			OS:         domain.DeviceUnknown,
		}
	}

	client := p.parser.Parse(userAgent)

	info := &DeviceInfo{
		Browser:    familyOrUnknown(client.UserAgent.Family),
		OS:         familyOrUnknown(client.Os.Family),
		DeviceType: determineDeviceType(client, userAgent),
		Raw:        userAgent,
	}

	p.log.Debug("parsed User-Agent",
		zap.String("device_type", info.DeviceType),
		zap.String("browser", info.Browser),
		zap.String("os", info.OS),
	)

	return info
}

func determineDeviceType(client *uaparser.Client, userAgent string) string {
	if containsAny(client.UserAgent.Family, botIndicators) || containsAny(userAgent, botIndicators) ||
		strings.EqualFold(client.Device.Family, "Spider") {
		return domain.DeviceBot
	}

	if family := client.Device.Family; family != "" && family != "Other" {
		if containsAny(family, tabletDevices) {
			return domain.DeviceTablet
		}
		if containsAny(family, mobileDevices) {
			return domain.DeviceMobile
		}
	}

	osFamily := client.Os.Family
	if containsAny(osFamily, mobileOS) {
		if isTabletOS(osFamily, userAgent) {
			return domain.DeviceTablet
		}
		return domain.DeviceMobile
	}

	if containsAny(osFamily, desktopOS) {
		return domain.DeviceDesktop
	}

	return domain.DeviceUnknown
}

// isTabletOS отличает iPad от iPhone и Android-планшеты (без "Mobile" в UA) от телефонов
func isTabletOS(osFamily, userAgent string) bool {
	os := strings.ToLower(osFamily)
	switch {
	case strings.Contains(os, "ios"):
		return strings.Contains(userAgent, "iPad")
	case strings.Contains(os, "android"):
		return !strings.Contains(userAgent, "Mobile")
	}
	return false
}

func containsAny(s string, needles []string) bool {
	if s == "" {
		return false
	}
	lower := strings.ToLower(s)
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}

func familyOrUnknown(s string) string {
	if s == "" || s == "Other" {
		return domain.DeviceUnknown
	}
	return s
}
