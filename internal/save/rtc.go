package save

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// The RTC clock file is 12 bytes: an IEEE-754 little-endian double holding
// the anchor timestamp as days (with fractional day) since 1900-01-01,
// followed by 4 reserved zero bytes.
const rtcFileSize = 12

var rtcEpoch = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// RTCPath derives the clock-file path from a save-file path by swapping
// the extension for .rtc.
func RTCPath(savePath string) string {
	return strings.TrimSuffix(savePath, filepath.Ext(savePath)) + ".rtc"
}

// EncodeRTC serializes an anchor instant to the 12-byte clock format.
func EncodeRTC(anchor time.Time) [rtcFileSize]byte {
	days := anchor.Sub(rtcEpoch).Seconds() / 86400
	var out [rtcFileSize]byte
	binary.LittleEndian.PutUint64(out[:8], math.Float64bits(days))
	return out
}

// DecodeRTC parses the 12-byte clock format back to an anchor instant.
func DecodeRTC(data []byte) (time.Time, error) {
	if len(data) < rtcFileSize {
		return time.Time{}, fmt.Errorf("save: RTC file truncated (%d bytes, want %d)", len(data), rtcFileSize)
	}
	days := math.Float64frombits(binary.LittleEndian.Uint64(data[:8]))
	if math.IsNaN(days) || math.IsInf(days, 0) {
		return time.Time{}, fmt.Errorf("save: RTC anchor is not a finite day count")
	}
	return rtcEpoch.Add(time.Duration(days * 86400 * float64(time.Second))), nil
}

// WriteRTC persists the anchor to path in the clock-file format.
func WriteRTC(path string, anchor time.Time) error {
	data := EncodeRTC(anchor)
	return os.WriteFile(path, data[:], 0o644)
}

// LoadRTC reads a previously written anchor. A missing file reports
// ok=false with no error, matching a cartridge saved before its first
// clock flush.
func LoadRTC(path string) (anchor time.Time, ok bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	anchor, err = DecodeRTC(data)
	if err != nil {
		return time.Time{}, false, err
	}
	return anchor, true, nil
}
