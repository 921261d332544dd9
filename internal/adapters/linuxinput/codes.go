package linuxinput

import (
	"fmt"
	"strconv"
	"strings"

	evdev "github.com/holoplot/go-evdev"
)

// ParseCode resolves a key or button name to its code. Names are matched
// case-insensitively, with or without the KEY_ prefix (KEY_LEFTMETA,
// leftmeta, BTN_SIDE). Decimal or 0x-prefixed numbers are taken as codes.
func ParseCode(value string) (uint16, error) {
	name := strings.ToUpper(strings.TrimSpace(value))
	if name == "" {
		return 0, fmt.Errorf("key name is empty")
	}
	if name[0] >= '0' && name[0] <= '9' {
		code, err := strconv.ParseUint(name, 0, 16)
		if err != nil || code > uint64(evdev.KEY_MAX) {
			return 0, fmt.Errorf("key code %q is not between 0 and %d", value, evdev.KEY_MAX)
		}
		return uint16(code), nil
	}
	for _, candidate := range []string{name, "KEY_" + name} {
		if code, ok := evdev.KEYFromString[candidate]; ok {
			return uint16(code), nil
		}
	}
	return 0, fmt.Errorf("unknown key %q", value)
}

// ResolveKey reads a key setting. A stale or foreign value must not stop the
// daemon, so an unknown value is logged and fallback is used instead.
func ResolveKey(setting, value, fallback string, logger Logger) uint16 {
	code, err := ParseCode(value)
	if err == nil {
		return code
	}
	logger.Warn("Invalid key in settings, using default", "setting", setting, "value", value, "default", fallback, "err", err)
	code, err = ParseCode(fallback)
	if err != nil {
		panic(fmt.Sprintf("default key %q is not a known key name", fallback))
	}
	return code
}

func FormatCodeName(code uint16) string {
	name := evdev.CodeName(evdev.EV_KEY, evdev.EvCode(code))
	if strings.HasPrefix(name, "KEY_") || strings.HasPrefix(name, "BTN_") {
		return name
	}
	return strconv.Itoa(int(code))
}
