package gesture

import "sort"

// Capabilities maps an event type to the codes a device can produce or accept.
type Capabilities map[uint16][]uint16

func (c Capabilities) Has(eventType, code uint16) bool {
	for _, candidate := range c[eventType] {
		if candidate == code {
			return true
		}
	}
	return false
}

func (c Capabilities) HasType(eventType uint16) bool {
	return len(c[eventType]) > 0
}

// Merge returns the union of c and other with codes sorted per type.
func (c Capabilities) Merge(other Capabilities) Capabilities {
	sets := make(map[uint16]map[uint16]struct{}, len(c)+len(other))
	add := func(src Capabilities) {
		for eventType, codes := range src {
			set, ok := sets[eventType]
			if !ok {
				set = make(map[uint16]struct{}, len(codes))
				sets[eventType] = set
			}
			for _, code := range codes {
				set[code] = struct{}{}
			}
		}
	}
	add(c)
	add(other)

	out := make(Capabilities, len(sets))
	for eventType, set := range sets {
		codes := make([]uint16, 0, len(set))
		for code := range set {
			codes = append(codes, code)
		}
		sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
		out[eventType] = codes
	}
	return out
}

// Missing returns the entries of want that c does not declare, as events with
// zero value so callers can format them.
func (c Capabilities) Missing(want Capabilities) []Event {
	var missing []Event
	types := make([]uint16, 0, len(want))
	for eventType := range want {
		types = append(types, eventType)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	for _, eventType := range types {
		for _, code := range want[eventType] {
			if !c.Has(eventType, code) {
				missing = append(missing, Event{Type: eventType, Code: code})
			}
		}
	}
	return missing
}

// Accepts reports whether an event may be written to a device declaring c.
// Synchronization events are always accepted.
func (c Capabilities) Accepts(event Event) bool {
	if event.Type == EventTypeSyn {
		return true
	}
	return c.Has(event.Type, event.Code)
}
