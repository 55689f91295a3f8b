package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatKey(t *testing.T) {
	ts := time.Date(2025, 3, 9, 7, 5, 4, 0, time.Local)

	assert.Equal(t, "cam-20250309_070504.png", FormatKey("cam", ts, ""))
	assert.Equal(t, "cam-20250309_070504-0a1b2c3d.png", FormatKey("cam", ts, "0a1b2c3d"))
	assert.Equal(t, "front-door-20250309_070504.png", FormatKey("front-door", ts, ""))
}

func TestBelongsTo(t *testing.T) {
	tests := []struct {
		key      string
		deviceID string
		want     bool
	}{
		{"cam-20250101_120000.png", "cam", true},
		{"cam-20250101_120000-deadbeef.png", "cam", true},
		{"cam-2-20250101_120000.png", "cam", false},
		{"cam-2-20250101_120000.png", "cam-2", true},
		{"camera-20250101_120000.png", "cam", false},
		{"cam-notes.txt", "cam", false},
		{"cam-20250101_120000.jpg", "cam", false},
		{"other-20250101_120000.png", "cam", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, BelongsTo(tt.key, tt.deviceID), "BelongsTo(%q, %q)", tt.key, tt.deviceID)
	}
}

func TestParseKey(t *testing.T) {
	ts := time.Date(2025, 12, 31, 23, 59, 58, 0, time.Local)

	for _, deviceID := range []string{"cam", "front-door", "pi-4-b"} {
		for _, token := range []string{"", "cafebabe"} {
			key := FormatKey(deviceID, ts, token)
			gotID, gotTS, ok := ParseKey(key)
			assert.True(t, ok, key)
			assert.Equal(t, deviceID, gotID, key)
			assert.True(t, ts.Equal(gotTS), key)
		}
	}
}

func TestParseKey_Invalid(t *testing.T) {
	for _, key := range []string{"", "cam.png", "-20250101_120000.png", "cam-2025.png", "cam-20250101_120000.jpg", "README"} {
		_, _, ok := ParseKey(key)
		assert.False(t, ok, key)
	}
}
