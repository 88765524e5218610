// Package snip assembles the SimpleNodeIdentInfo reply datagram body:
// a short run of null-terminated identification strings describing the
// node's manufacturer, model, and hardware/software versions, sourced
// from static configuration rather than queried from the running system.
package snip

import "bytes"

// protocolVersion is the SNIP format's leading version byte. 4 covers
// the four identification strings this node reports; there is no
// user-settable name/description section, since nothing in this node's
// configuration profile is end-user editable at runtime.
const protocolVersion = 4

// Info holds the static identification strings one node reports in
// reply to a SimpleNodeIdentInfoRequest.
type Info struct {
	Manufacturer    string
	Model           string
	HardwareVersion string
	SoftwareVersion string
}

// Encode renders info as a SNIP reply body: a version byte followed by
// each string in order, null-terminated.
func (info Info) Encode() []byte {
	var buf bytes.Buffer
	buf.WriteByte(protocolVersion)
	for _, s := range []string{info.Manufacturer, info.Model, info.HardwareVersion, info.SoftwareVersion} {
		buf.WriteString(s)
		buf.WriteByte(0)
	}
	return buf.Bytes()
}
