package storage

import (
	"regexp"
	"strings"
	"time"
)

// KeyTimeLayout is the timestamp part of an image key (second granularity).
const KeyTimeLayout = "20060102_150405"

// KeyExt is the extension of every image key.
const KeyExt = ".png"

// keySuffix matches what follows "<device_id>-" in an image key: the timestamp,
// an optional collision token and the extension.
var keySuffix = regexp.MustCompile(`^(\d{8}_\d{6})(?:-([0-9a-f]{8}))?\.png$`)

// FormatKey builds the key for an image uploaded by deviceID at t:
// "<device_id>-<YYYYMMDD_HHMMSS>.png", or "<device_id>-<YYYYMMDD_HHMMSS>-<token>.png"
// when token is not empty.
func FormatKey(deviceID string, t time.Time, token string) string {
	var b strings.Builder
	b.WriteString(deviceID)
	b.WriteByte('-')
	b.WriteString(t.Format(KeyTimeLayout))
	if token != "" {
		b.WriteByte('-')
		b.WriteString(token)
	}
	b.WriteString(KeyExt)
	return b.String()
}

// BelongsTo reports whether key is an image key of deviceID. A key of device
// "cam-2" does not belong to device "cam" even though it shares the prefix.
func BelongsTo(key, deviceID string) bool {
	rest, ok := strings.CutPrefix(key, deviceID+"-")
	if !ok {
		return false
	}
	return keySuffix.MatchString(rest)
}

// ParseKey splits an image key into its device id and timestamp (local time).
func ParseKey(key string) (deviceID string, ts time.Time, ok bool) {
	// The device id may itself contain dashes, so try every split point from the right.
	for i := strings.LastIndexByte(key, '-'); i > 0; i = strings.LastIndexByte(key[:i], '-') {
		m := keySuffix.FindStringSubmatch(key[i+1:])
		if m == nil {
			continue
		}
		t, err := time.ParseInLocation(KeyTimeLayout, m[1], time.Local)
		if err != nil {
			return "", time.Time{}, false
		}
		return key[:i], t, true
	}
	return "", time.Time{}, false
}
