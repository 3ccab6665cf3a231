// Package capture provides the minimal ports.PacketSource the main loop
// pulls from. Decoding wire bytes into opcode-tagged structs is explicitly
// out of scope for the core and lives in a
// separate decode process; ChannelSource is the in-process boundary that
// process feeds into.
package capture

import "github.com/raidtrack/engine/internal/ports"

// ChannelSource adapts a Go channel of already-decoded packets to
// ports.PacketSource. Close the channel for clean end-of-stream.
type ChannelSource struct {
	packets <-chan ports.Packet
}

// NewChannelSource wraps packets, the feed a decode collaborator writes
// into and closes on shutdown.
func NewChannelSource(packets <-chan ports.Packet) *ChannelSource {
	return &ChannelSource{packets: packets}
}

// Recv implements ports.PacketSource.
func (c *ChannelSource) Recv() (ports.Packet, bool) {
	pkt, ok := <-c.packets
	return pkt, ok
}
