package bench

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/montanaflynn/stats"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

// PingResult holds the outcome of an ICMP latency probe sequence.
type PingResult struct {
	Target   string
	NIC      string
	Sent     int
	Received int
	AvgRTT   time.Duration
	MaxRTT   time.Duration
}

// Ping sends count ICMP echo requests to target and measures round-trip
// times. If nic is non-empty, probes are sourced from that interface's
// first IPv4 address. Raw ICMP sockets are tried first; when the process
// lacks the privilege, the Linux unprivileged ICMP datagram socket is used.
func Ping(ctx context.Context, target, nic string, count int, perProbeTimeout time.Duration) (*PingResult, error) {
	dst, err := net.ResolveIPAddr("ip4", target)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", target, err)
	}

	src := "0.0.0.0"
	if nic != "" {
		src, err = interfaceIPv4(nic)
		if err != nil {
			return nil, err
		}
	}

	conn, privileged, err := listenICMP(src)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	res := &PingResult{Target: target, NIC: nic, Sent: count}
	id := os.Getpid() & 0xffff

	var rtts []float64
	buf := make([]byte, 1500)

	for seq := 1; seq <= count; seq++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		msg := icmp.Message{
			Type: ipv4.ICMPTypeEcho,
			Body: &icmp.Echo{
				ID:   id,
				Seq:  seq,
				Data: []byte("pvefleet-bench"),
			},
		}
		wire, err := msg.Marshal(nil)
		if err != nil {
			return nil, fmt.Errorf("marshal echo: %w", err)
		}

		var dstAddr net.Addr = dst
		if !privileged {
			dstAddr = &net.UDPAddr{IP: dst.IP}
		}

		start := time.Now()
		if _, err := conn.WriteTo(wire, dstAddr); err != nil {
			continue // unreachable counts as a lost probe
		}

		rtt, ok := awaitReply(conn, buf, id, seq, privileged, start, perProbeTimeout)
		if !ok {
			continue
		}

		res.Received++
		rtts = append(rtts, float64(rtt))
		if rtt > res.MaxRTT {
			res.MaxRTT = rtt
		}
	}

	if len(rtts) > 0 {
		mean, err := stats.Mean(rtts)
		if err != nil {
			return nil, fmt.Errorf("latency mean: %w", err)
		}
		res.AvgRTT = time.Duration(mean)
	}

	return res, nil
}

// listenICMP opens an ICMP socket, preferring a raw socket and falling back
// to the unprivileged datagram flavor.
func listenICMP(src string) (conn *icmp.PacketConn, privileged bool, err error) {
	conn, err = icmp.ListenPacket("ip4:icmp", src)
	if err == nil {
		return conn, true, nil
	}

	conn, udpErr := icmp.ListenPacket("udp4", src)
	if udpErr != nil {
		return nil, false, fmt.Errorf("icmp socket: raw: %v, dgram: %w", err, udpErr)
	}
	return conn, false, nil
}

// awaitReply reads replies until the matching echo reply arrives or the
// per-probe deadline passes.
func awaitReply(conn *icmp.PacketConn, buf []byte, id, seq int, privileged bool, start time.Time, timeout time.Duration) (time.Duration, bool) {
	deadline := start.Add(timeout)
	for {
		if err := conn.SetReadDeadline(deadline); err != nil {
			return 0, false
		}
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			return 0, false // deadline exceeded
		}

		msg, err := icmp.ParseMessage(1, buf[:n]) // 1 = IPv4 ICMP protocol number
		if err != nil {
			continue
		}
		echo, ok := msg.Body.(*icmp.Echo)
		if !ok || msg.Type != ipv4.ICMPTypeEchoReply {
			continue
		}
		// Datagram sockets rewrite the echo ID; match on sequence only.
		if echo.Seq != seq || (privileged && echo.ID != id) {
			continue
		}
		return time.Since(start), true
	}
}

// interfaceIPv4 returns the first IPv4 address assigned to the named NIC.
func interfaceIPv4(nic string) (string, error) {
	iface, err := net.InterfaceByName(nic)
	if err != nil {
		return "", fmt.Errorf("interface %s: %w", nic, err)
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return "", fmt.Errorf("addresses of %s: %w", nic, err)
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok {
			if ip4 := ipnet.IP.To4(); ip4 != nil {
				return ip4.String(), nil
			}
		}
	}
	return "", fmt.Errorf("interface %s has no IPv4 address", nic)
}
