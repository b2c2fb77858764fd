// Package discover finds UPnP devices in the local network with SSDP
// multicast searches.
package discover

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/hausnet/go-hausnet/tr064"

	"github.com/mdzio/go-logging"
	"golang.org/x/net/ipv4"
)

var log = logging.Get("ssdp")

// defaults for Options
const (
	DefaultAddress = "239.255.255.250"
	DefaultPort    = 1900
	DefaultTimeout = 1 * time.Second
	DefaultRetries = 2
)

// Options configures a search. The zero value searches for all devices with
// the standard SSDP multicast group.
type Options struct {
	// ServiceTypes to search for, default ssdp:all. Some devices do not
	// respond, or respond differently, to the generic search, so a known
	// service type should be set.
	ServiceTypes []string
	// Timeout is the read timeout per retry, default 1s.
	Timeout time.Duration
	// Retries is the number of search rounds, default 2. A search can fail
	// for various reasons, at least two rounds are recommended.
	Retries int
	// Address is the multicast group, default 239.255.255.250.
	Address string
	// Port is the multicast port, default 1900.
	Port int
}

func (o *Options) withDefaults() Options {
	var c Options
	if o != nil {
		c = *o
	}
	if len(c.ServiceTypes) == 0 {
		c.ServiceTypes = []string{"ssdp:all"}
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Retries == 0 {
		c.Retries = DefaultRetries
	}
	if c.Address == "" {
		c.Address = DefaultAddress
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	return c
}

// Discover searches for UPnP devices in the local network. Responses are
// deduplicated by location across all retries, a later response for the same
// location replaces the earlier one. The result keeps the order of first
// sight and can be empty.
func Discover(opts *Options) ([]*Response, error) {
	o := opts.withDefaults()
	group := net.ParseIP(o.Address)
	if group == nil {
		return nil, errorf(tr064.KindValidation, "Invalid multicast address: %s", o.Address)
	}
	dst := &net.UDPAddr{IP: group, Port: o.Port}

	messages := make([][]byte, len(o.ServiceTypes))
	for i, st := range o.ServiceTypes {
		messages[i] = []byte(searchMessage(o.Address, o.Port, st))
	}

	responses := make(map[string]*Response)
	var order []string

	for try := 0; try < o.Retries; try++ {
		if err := searchOnce(dst, messages, o.Timeout, func(r *Response) {
			if _, ok := responses[r.Location]; !ok {
				order = append(order, r.Location)
			}
			responses[r.Location] = r
		}); err != nil {
			return nil, err
		}
	}

	result := make([]*Response, len(order))
	for i, loc := range order {
		result[i] = responses[loc]
	}
	log.Debugf("Search found %d devices", len(result))
	return result, nil
}

func searchMessage(address string, port int, serviceType string) string {
	return "M-SEARCH * HTTP/1.1\r\n" +
		"MX: 5\r\n" +
		"MAN: \"ssdp:discover\"\r\n" +
		fmt.Sprintf("HOST: %s:%d\r\n", address, port) +
		"ST: " + serviceType + "\r\n\r\n"
}

// searchOnce opens a fresh socket, sends all search messages twice and reads
// responses until the timeout expires.
func searchOnce(dst *net.UDPAddr, messages [][]byte, timeout time.Duration, found func(*Response)) error {
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return wrapf(tr064.KindTransport, err, "Opening of search socket failed")
	}
	defer conn.Close()

	p := ipv4.NewPacketConn(conn)
	if err := p.SetMulticastTTL(2); err != nil {
		log.Debugf("Setting multicast TTL failed: %v", err)
	}

	// send each message twice, multicast datagrams get lost easily
	for i := 0; i < 2; i++ {
		for _, msg := range messages {
			if _, err := conn.WriteTo(msg, dst); err != nil {
				return wrapf(tr064.KindTransport, err, "Sending of search message failed")
			}
		}
	}

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return wrapf(tr064.KindTransport, err, "Setting of read deadline failed")
	}
	buf := make([]byte, 1024)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			// the deadline ends the read loop
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return nil
			}
			return wrapf(tr064.KindTransport, err, "Receiving of search responses failed")
		}
		r, err := ParseResponse(buf[:n])
		if err != nil {
			log.Debugf("Discarding response from %s: %v", addr, err)
			continue
		}
		found(r)
	}
}

func errorf(kind tr064.Kind, format string, args ...interface{}) error {
	return &tr064.Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func wrapf(kind tr064.Kind, err error, format string, args ...interface{}) error {
	return &tr064.Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
