package discover

import (
	"net"
	"strings"
	"testing"
	"time"
)

// ssdpResponder answers every received M-SEARCH datagram with the given
// responses.
func ssdpResponder(t *testing.T, responses []string) *net.UDPAddr {
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, 1024)
		for {
			n, addr, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			if !strings.HasPrefix(string(buf[:n]), "M-SEARCH") {
				continue
			}
			for _, r := range responses {
				conn.WriteTo([]byte(r), addr)
			}
		}
	}()
	return conn.LocalAddr().(*net.UDPAddr)
}

func ssdpResponse(location, st string) string {
	return "HTTP/1.1 200 OK\r\n" +
		"LOCATION: " + location + "\r\n" +
		"ST: " + st + "\r\n" +
		"USN: uuid:739f2419::" + st + "\r\n" +
		"\r\n"
}

func TestDiscoverDedup(t *testing.T) {
	// two announcements for the same location plus a second device; the later
	// announcement replaces the earlier one, the order of first sight stays
	addr := ssdpResponder(t, []string{
		ssdpResponse("http://192.168.0.24:49000/tr64desc.xml", "upnp:rootdevice"),
		ssdpResponse("http://192.168.0.24:49000/tr64desc.xml", "urn:dslforum-org:device:InternetGatewayDevice:1"),
		ssdpResponse("http://192.168.0.30:49000/tr64desc.xml", "upnp:rootdevice"),
	})

	rs, err := Discover(&Options{
		Address: addr.IP.String(),
		Port:    addr.Port,
		Timeout: 250 * time.Millisecond,
		Retries: 2,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(rs) != 2 {
		t.Fatalf("unexpected number of responses: %d", len(rs))
	}
	if rs[0].Location != "http://192.168.0.24:49000/tr64desc.xml" ||
		rs[1].Location != "http://192.168.0.30:49000/tr64desc.xml" {
		t.Errorf("unexpected locations: %v", rs)
	}
	if rs[0].Service != "urn:dslforum-org:device:InternetGatewayDevice:1" {
		t.Errorf("later announcement did not replace the earlier one: %s", rs[0].Service)
	}
}

func TestDiscoverInvalidAddress(t *testing.T) {
	if _, err := Discover(&Options{Address: "not-an-ip"}); err == nil {
		t.Error("expected error for invalid address")
	}
}
