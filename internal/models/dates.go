package models

import (
	"strings"
	"time"
)

var purchaseDateLayouts = []string{
	time.DateTime,
	time.DateOnly,
	"2006/01/02 15:04:05",
	"2006/01/02",
	"2006.01.02",
	time.RFC3339,
}

// ParsePurchaseDate reads the date formats seen on order pages, in local time
func ParsePurchaseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range purchaseDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
