package models

import (
	"strings"

	"github.com/mssola/useragent"
)

// DeviceLabel renders a short "Browser on OS" label from a User-Agent
// header. Unknown agents collapse to "Unknown device".
func DeviceLabel(userAgent string) string {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return "Unknown device"
	}
	ua := useragent.New(userAgent)
	if ua.Bot() {
		return "Bot"
	}
	browser, _ := ua.Browser()
	os := ua.OSInfo().Name
	switch {
	case browser != "" && os != "":
		return browser + " on " + os
	case browser != "":
		return browser
	case os != "":
		return os
	default:
		return "Unknown device"
	}
}
