package gesture

import "strings"

// PhysicalDevice is the identity and capability snapshot of one event node.
type PhysicalDevice struct {
	Path         string
	Name         string
	BusType      uint16
	Vendor       uint16
	Product      uint16
	Capabilities Capabilities
}

type Rejection int

const (
	Accepted Rejection = iota
	RejectOwnDevice
	RejectProxyMarker
	RejectVirtualBus
	RejectCapabilities
	RejectNameFilter
)

func (r Rejection) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case RejectOwnDevice:
		return "own virtual device"
	case RejectProxyMarker:
		return "synthetic or proxy device"
	case RejectVirtualBus:
		return "virtual bus"
	case RejectCapabilities:
		return "missing capabilities"
	case RejectNameFilter:
		return "name filter"
	default:
		return "unknown"
	}
}

// Requirement decides whether a device has the capabilities a behavior needs.
type Requirement func(PhysicalDevice) bool

// IsKeyboard separates full keyboards from single-purpose key devices such as
// power or volume buttons.
func IsKeyboard(device PhysicalDevice) bool {
	return device.Capabilities.Has(EventTypeKey, KeyA) && device.Capabilities.Has(EventTypeKey, KeySpace)
}

func IsPointer(device PhysicalDevice) bool {
	return device.Capabilities.HasType(EventTypeRel)
}

func AnyOf(requirements ...Requirement) Requirement {
	return func(device PhysicalDevice) bool {
		for _, requirement := range requirements {
			if requirement(device) {
				return true
			}
		}
		return false
	}
}

// DeviceFilter holds the enumeration rules. They are applied in order and the
// first match rejects the device.
type DeviceFilter struct {
	OwnName      string
	ProxyMarkers []string
	Require      Requirement
	// NameContains narrows accepted devices to names containing it; empty
	// accepts all.
	NameContains string
}

func (f DeviceFilter) Check(device PhysicalDevice) Rejection {
	if f.OwnName != "" && device.Name == f.OwnName {
		return RejectOwnDevice
	}
	lower := strings.ToLower(device.Name)
	for _, marker := range f.ProxyMarkers {
		if marker != "" && strings.Contains(lower, strings.ToLower(marker)) {
			return RejectProxyMarker
		}
	}
	if device.BusType == BusVirtual {
		return RejectVirtualBus
	}
	if f.Require != nil && !f.Require(device) {
		return RejectCapabilities
	}
	if needle := strings.TrimSpace(f.NameContains); needle != "" && !strings.Contains(lower, strings.ToLower(needle)) {
		return RejectNameFilter
	}
	return Accepted
}
