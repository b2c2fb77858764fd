package discover

import (
	"bufio"
	"bytes"
	"net/http"
	"net/url"
	"strings"

	"github.com/hausnet/go-hausnet/tr064"
)

// Response is a single SSDP search response. The fields Location, Service
// and USN come from the announcement headers, the Location* fields are the
// parsed parts of the location URL.
type Response struct {
	// Location points to the device description, e.g.
	// http://192.168.0.24:49000/tr64desc.xml.
	Location string
	// Service is the announced service type (ST header), e.g.
	// urn:dslforum-org:device:InternetGatewayDevice:1.
	Service string
	// USN is the device id, e.g.
	// uuid:739f2419-bccb-40e7-8e6c-BC254222D5C4::urn:dslforum-org:device:InternetGatewayDevice:1.
	USN string

	LocationProtocol string
	LocationHost     string
	LocationPort     int
	LocationPath     string
}

// ParseResponse parses a received datagram as an HTTP response and extracts
// the LOCATION, ST and USN headers.
func ParseResponse(data []byte) (*Response, error) {
	hr, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(data)), nil)
	if err != nil {
		return nil, wrapf(tr064.KindParse, err, "Invalid search response")
	}
	defer hr.Body.Close()
	r := &Response{
		Location: hr.Header.Get("Location"),
		Service:  hr.Header.Get("St"),
		USN:      hr.Header.Get("Usn"),
	}
	if err := r.parseLocation(); err != nil {
		return nil, err
	}
	return r, nil
}

// NewResponse builds a response for an already known description URL, e.g. to
// skip a broad first search.
func NewResponse(location, service, usn string) (*Response, error) {
	r := &Response{Location: location, Service: service, USN: usn}
	if err := r.parseLocation(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Response) parseLocation() error {
	u, err := url.Parse(r.Location)
	if err != nil {
		return wrapf(tr064.KindParse, err, "Invalid location URL: %s", r.Location)
	}
	r.LocationProtocol = strings.ToLower(u.Scheme)
	r.LocationHost = u.Hostname()
	r.LocationPath = u.Path
	if p := u.Port(); p != "" {
		// the URL package guarantees a numeric port
		r.LocationPort = atoi(p)
	} else if r.LocationProtocol == "https" {
		r.LocationPort = 443
	} else {
		r.LocationPort = 80
	}
	return nil
}

func (r *Response) String() string {
	return "LOC: " + r.Location + " SRV: " + r.Service
}

// RateServiceType rates the quality of an announced service type, higher is
// better. Devices answer a search with several announcements for the same
// location; the rating orders them from the most specific device URN down to
// a bare uuid.
func RateServiceType(serviceType string) int {
	switch {
	case strings.HasPrefix(serviceType, "urn:dslforum-org:device"):
		return 11
	case strings.HasPrefix(serviceType, "urn:dslforum-org:service"):
		return 10
	case strings.HasPrefix(serviceType, "urn:dslforum-org:"):
		return 9
	case strings.HasPrefix(serviceType, "urn:schemas-upnp-org:device"):
		return 8
	case strings.HasPrefix(serviceType, "urn:schemas-upnp-org:service"):
		return 7
	case strings.HasPrefix(serviceType, "urn:schemas-upnp-org:"):
		return 6
	// other schemas, e.g. schemas-any-com
	case strings.HasPrefix(serviceType, "urn:schemas-"):
		return 5
	case strings.HasPrefix(serviceType, "urn:"):
		return 4
	case strings.HasPrefix(serviceType, "upnp:rootdevice"):
		return 3
	// no service, just the uuid
	case strings.HasPrefix(serviceType, "uuid:"):
		return 2
	}
	return 1
}

func rate(r *Response) int {
	if r == nil {
		return 0
	}
	return RateServiceType(r.Service)
}
