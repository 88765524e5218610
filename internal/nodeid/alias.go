package nodeid

import "fmt"

// Alias is a 12-bit CAN-segment-local identifier assigned to a node by
// arbitration. Valid aliases occupy [0x001, 0xFFF]; 0x000 is reserved and
// never assigned.
type Alias uint16

// NoAlias is returned by lookups that find no mapping. It is distinct from
// any valid alias.
const NoAlias Alias = 0xFFFF

// Valid reports whether a is in the assignable range [0x001, 0xFFF].
func (a Alias) Valid() bool {
	return a >= 0x001 && a <= 0xFFF
}

// String renders a as three hex digits, the conventional LCC alias form.
func (a Alias) String() string {
	return fmt.Sprintf("%03X", uint16(a))
}
