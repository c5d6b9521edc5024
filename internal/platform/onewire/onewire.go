// Package onewire implements a minimal Linux w1 sysfs 1-Wire temperature
// reader with CRC-8/Maxim scratchpad validation for DS18B20-family
// sensors. The trailing CRC byte is recomputed and checked - the same
// check the kernel's w1_slave driver already applies, duplicated here
// because the application layer must not trust an un-validated "t=" line
// blindly.
package onewire

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/snksoft/crc"
)

const w1Root = "/sys/bus/w1/devices"

// ReadTemperatureC reads and CRC-validates a DS18B20-family sensor's
// scratchpad at /sys/bus/w1/devices/<id>/w1_slave and returns its
// temperature in degrees Celsius.
func ReadTemperatureC(deviceID string) (float64, error) {
	path := fmt.Sprintf("%s/%s/w1_slave", w1Root, deviceID)
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("1-wire %s: read: %w", deviceID, err)
	}
	return parseScratchpad(string(raw))
}

func parseScratchpad(raw string) (float64, error) {
	lines := strings.Split(strings.TrimSpace(raw), "\n")
	if len(lines) != 2 {
		return 0, fmt.Errorf("1-wire: malformed scratchpad (%d lines)", len(lines))
	}

	bytes, crcOK, err := scratchpadBytes(lines[0])
	if err != nil {
		return 0, err
	}
	if !crcOK {
		return 0, fmt.Errorf("1-wire: CRC mismatch on scratchpad")
	}
	if !validateCRC8(bytes) {
		return 0, fmt.Errorf("1-wire: CRC-8/Maxim check failed on scratchpad bytes")
	}

	idx := strings.Index(lines[1], "t=")
	if idx < 0 {
		return 0, fmt.Errorf("1-wire: missing temperature field")
	}
	milliC, err := strconv.Atoi(strings.TrimSpace(lines[1][idx+2:]))
	if err != nil {
		return 0, fmt.Errorf("1-wire: malformed temperature field: %w", err)
	}
	return float64(milliC) / 1000.0, nil
}

// scratchpadBytes parses the kernel's hex-byte-per-field first line, e.g.
// "4b 46 7f ff 0c 10 10 d6 b4 : crc=b4 YES", returning the 9 scratchpad
// bytes (including the trailing CRC byte) and whether the kernel's own YES
// marker passed.
func scratchpadBytes(line string) ([]byte, bool, error) {
	fields := strings.Fields(line)
	var hexBytes []string
	for _, f := range fields {
		if len(f) == 2 && isHex(f) {
			hexBytes = append(hexBytes, f)
		}
	}
	if len(hexBytes) < 9 {
		return nil, false, fmt.Errorf("1-wire: expected 9 scratchpad bytes, got %d", len(hexBytes))
	}
	bytes := make([]byte, 9)
	for i := 0; i < 9; i++ {
		v, err := strconv.ParseUint(hexBytes[i], 16, 8)
		if err != nil {
			return nil, false, fmt.Errorf("1-wire: malformed scratchpad byte %q: %w", hexBytes[i], err)
		}
		bytes[i] = byte(v)
	}
	return bytes, strings.Contains(line, "YES"), nil
}

func isHex(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}

// crc8Maxim is the Dallas/Maxim CRC-8 used by the DS18B20 scratchpad:
// polynomial x^8+x^5+x^4+1 (0x31), bit-reflected, zero init and final xor.
var crc8Maxim = &crc.Parameters{
	Width:      8,
	Polynomial: 0x31,
	ReflectIn:  true,
	ReflectOut: true,
	Init:       0x00,
	FinalXor:   0x00,
}

// validateCRC8 recomputes the Maxim/Dallas CRC-8 over the first 8
// scratchpad bytes and compares it against the 9th (trailing) byte.
func validateCRC8(scratchpad []byte) bool {
	if len(scratchpad) != 9 {
		return false
	}
	got := crc.CalculateCRC(crc8Maxim, scratchpad[:8])
	return byte(got) == scratchpad[8]
}
