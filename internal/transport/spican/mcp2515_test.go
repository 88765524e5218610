package spican

import "testing"

func TestBitTiming_16MHz1Mbps(t *testing.T) {
	cnf1, cnf2, cnf3 := bitTiming(16000000, 1000000)
	if cnf1 != 0x00 || cnf2 != 0x80 || cnf3 != 0x00 {
		t.Fatalf("unexpected CNF for 16MHz/1Mbps: %02X %02X %02X", cnf1, cnf2, cnf3)
	}
}

func TestBitTiming_8MHz125kbps(t *testing.T) {
	cnf1, cnf2, cnf3 := bitTiming(8000000, 125000)
	if cnf1 != 0x01 || cnf2 != 0xB4 || cnf3 != 0x86 {
		t.Fatalf("unexpected CNF for 8MHz/125kbps: %02X %02X %02X", cnf1, cnf2, cnf3)
	}
}

func TestBitTiming_UnknownBitrateFallsBackToDefault(t *testing.T) {
	cnf1, cnf2, cnf3 := bitTiming(16000000, 999)
	if cnf1 != 0x00 || cnf2 != 0x90 || cnf3 != 0x02 {
		t.Fatalf("unexpected fallback CNF: %02X %02X %02X", cnf1, cnf2, cnf3)
	}
}

// extendedIDRoundTrip exercises the same SIDH/SIDL/EID8/EID0 arithmetic
// Send/pollOnce use, independent of any SPI hardware.
func extendedIDRoundTrip(id uint32) uint32 {
	sidh := byte((id >> 21) & 0xFF)
	sidl := byte(((id>>13)&0xE0)|0x08|((id>>16)&0x03))
	eid8 := byte((id >> 8) & 0xFF)
	eid0 := byte(id & 0xFF)

	return uint32(sidh)<<21 | uint32(sidl&0xE0)<<13 | uint32(sidl&0x03)<<16 | uint32(eid8)<<8 | uint32(eid0)
}

func TestExtendedIDEncodeDecodeRoundTrip(t *testing.T) {
	cases := []uint32{0x19100333, 0x19170444, 0x1FFFFFFF, 0, 0x00000001}
	for _, id := range cases {
		got := extendedIDRoundTrip(id & 0x1FFFFFFF)
		want := id & 0x1FFFFFFF
		if got != want {
			t.Fatalf("round trip for 0x%08X: got 0x%08X", want, got)
		}
	}
}
