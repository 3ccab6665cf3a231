package engine

import (
	"encoding/binary"
	"net"
	"time"
)

// ntpEpochOffset is the number of seconds between the NTP epoch (1900-01-01)
// and the Unix epoch (1970-01-01).
const ntpEpochOffset = 2208988800

// ntpServer is a well-known public SNTP server. A production deployment
// would make this configurable; the fetch is best-effort and
// hard-timeout-bounded either way.
const ntpServer = "time.cloudflare.com:123"

// ntpTimeout bounds the SNTP round trip. On timeout the fight-start
// timestamp stays 0.
const ntpTimeout = 2 * time.Second

// NTPFetcher is the package-level indirection the damage aggregator calls to
// enrich ntp_fight_start. Exported as a var, in the style of
// stdlib's http.DefaultTransport, so tests can stub the network round trip
// out — otherwise every first-damage test pays
// up to ntpTimeout against a real socket.
var NTPFetcher = ntpFetch

// ntpFetch fetches a millisecond Unix timestamp from a public SNTP
// server, returning 0 on any failure (timeout, network error, malformed
// reply) rather than propagating an error: the timestamp is a
// non-fatal, best-effort enrichment of ntp_fight_start.
func ntpFetch() int64 {
	conn, err := net.DialTimeout("udp", ntpServer, ntpTimeout)
	if err != nil {
		return 0
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(ntpTimeout)); err != nil {
		return 0
	}

	// RFC 2030 client request: a 48-byte packet with only the first byte
	// (LI=0, VN=3, Mode=3 client) set.
	req := make([]byte, 48)
	req[0] = 0x1B
	if _, err := conn.Write(req); err != nil {
		return 0
	}

	resp := make([]byte, 48)
	n, err := conn.Read(resp)
	if err != nil || n < 48 {
		return 0
	}

	// Transmit timestamp occupies bytes [40:48): seconds since 1900, then
	// a fractional-second counter.
	seconds := binary.BigEndian.Uint32(resp[40:44])
	fraction := binary.BigEndian.Uint32(resp[44:48])
	if seconds == 0 {
		return 0
	}
	unixSeconds := int64(seconds) - ntpEpochOffset
	millis := int64(fraction) * 1000 / (1 << 32)
	return unixSeconds*1000 + millis
}
