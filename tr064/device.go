// Package tr064 accesses UPnP/TR-064 devices (routers, Fritz!Box and
// compatible CPEs). It loads device and service descriptions, and executes
// SOAP actions on the control endpoints.
package tr064

import (
	"bytes"
	"encoding/xml"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mdzio/go-logging"

	"golang.org/x/net/html/charset"
)

// max. size of a valid response, if not specified: 10 MB
const responseSizeLimit = 10 * 1024 * 1024

var log = logging.Get("tr064")

// A Device represents one UPnP/TR-064 device. Host, Port and Protocol address
// the device; Username/Password enable HTTP digest authentication on control
// and SCPD requests, if Password is set.
//
// The description state (services, device info, SCPD) is loaded with
// LoadDescription and LoadSCPD. A Device must not be used concurrently while
// a load operation is running.
type Device struct {
	Host     string
	Port     int
	Protocol string

	Username string
	Password string

	// proxy URLs per target protocol, empty for direct connections
	HTTPProxy  string
	HTTPSProxy string

	// Limits the size of a valid response.
	ResponseSizeLimit int64

	services  map[string]*ServiceDefinition
	info      *DeviceInfo
	scpd      map[string]ActionMap
	described bool
}

// ServiceDefinition holds the endpoints of one service type of a device.
type ServiceDefinition struct {
	ControlURL  string
	SCPDURL     string
	EventSubURL string

	// Err records the failure of the last bulk SCPD load for this service.
	Err string
}

// DeviceInfo holds the vendor declared metadata of a device. Unknown collects
// tags outside the standard set, keyed by their tag name.
type DeviceInfo struct {
	RootURL          string
	DeviceType       string
	FriendlyName     string
	Manufacturer     string
	ManufacturerURL  string
	ModelDescription string
	ModelName        string
	ModelURL         string
	ModelNumber      string
	SerialNumber     string
	PresentationURL  string
	UDN              string
	UPC              string

	Unknown map[string]string
}

// NewDevice creates a Device for the given address. There is no common
// default port, it differs per vendor; a Fritz!Box uses 49000 (49443 with
// TLS). Protocol is "http" or "https".
func NewDevice(host string, port int, protocol string) *Device {
	return &Device{Host: host, Port: port, Protocol: protocol}
}

// DeviceFromURL creates a Device from a URL, e.g. the location of a
// discovery response. A missing port defaults by scheme.
func DeviceFromURL(rawurl string) (*Device, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return nil, wrapf(KindValidation, err, "Invalid device URL: %s", rawurl)
	}
	port, err := portOrDefault(u)
	if err != nil {
		return nil, err
	}
	return NewDevice(u.Hostname(), port, strings.ToLower(u.Scheme)), nil
}

func portOrDefault(u *url.URL) (int, error) {
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return 0, errorf(KindValidation, "Invalid port in URL: %s", u)
		}
		return port, nil
	}
	if strings.EqualFold(u.Scheme, "https") {
		return 443, nil
	}
	return 80, nil
}

// Services returns the loaded service definitions, keyed by service type URN.
// The map is empty until LoadDescription succeeded.
func (d *Device) Services() map[string]*ServiceDefinition {
	return d.services
}

// Info returns the loaded device metadata, or nil before LoadDescription.
func (d *Device) Info() *DeviceInfo {
	return d.info
}

// SCPD returns the loaded action definitions per service type.
func (d *Device) SCPD() map[string]ActionMap {
	return d.scpd
}

// ControlURL resolves the control URL of a service type. Before a description
// is loaded def is returned; afterwards an unknown service type is an error.
func (d *Device) ControlURL(serviceType, def string) (string, error) {
	s, err := d.service(serviceType, def)
	if s == nil {
		return def, err
	}
	return s.ControlURL, nil
}

// SCPDURL resolves the SCPD URL of a service type, with the same default
// semantics as ControlURL.
func (d *Device) SCPDURL(serviceType, def string) (string, error) {
	s, err := d.service(serviceType, def)
	if s == nil {
		return def, err
	}
	return s.SCPDURL, nil
}

// EventSubURL resolves the event subscription URL of a service type, with the
// same default semantics as ControlURL.
func (d *Device) EventSubURL(serviceType, def string) (string, error) {
	s, err := d.service(serviceType, def)
	if s == nil {
		return def, err
	}
	return s.EventSubURL, nil
}

func (d *Device) service(serviceType, def string) (*ServiceDefinition, error) {
	if s, ok := d.services[serviceType]; ok {
		return s, nil
	}
	// with a loaded description an unknown service type is an error
	if d.described {
		return nil, errorf(KindValidation, "Device does not support service type: %s", serviceType)
	}
	return nil, nil
}

// baseURL builds the URL for a device local URI.
func (d *Device) baseURL(uri string) string {
	return d.Protocol + "://" + d.Host + ":" + strconv.Itoa(d.Port) + uri
}

// httpClient builds an HTTP client honoring the proxy settings and, if
// withAuth is set and a password is configured, digest authentication.
func (d *Device) httpClient(timeout time.Duration, withAuth bool) *http.Client {
	var rt http.RoundTripper = &http.Transport{
		Proxy: func(req *http.Request) (*url.URL, error) {
			var p string
			if req.URL.Scheme == "https" {
				p = d.HTTPSProxy
			} else {
				p = d.HTTPProxy
			}
			if p == "" {
				return nil, nil
			}
			return url.Parse(p)
		},
	}
	if withAuth && d.Password != "" {
		rt = &digestAuth{username: d.Username, password: d.Password, next: rt}
	}
	return &http.Client{Transport: rt, Timeout: timeout}
}

func (d *Device) respLimit() int64 {
	if d.ResponseSizeLimit != 0 {
		return d.ResponseSizeLimit
	}
	return responseSizeLimit
}

// xmlNode is a generic XML tree node. Device descriptions and SCPDs use
// vendor specific namespaces and extension tags, so they are walked
// generically instead of being mapped to fixed structs.
type xmlNode struct {
	XMLName  xml.Name
	Text     string    `xml:",chardata"`
	Children []xmlNode `xml:",any"`
}

// tag returns the lower case tag name without namespace.
func (n *xmlNode) tag() string {
	return strings.ToLower(n.XMLName.Local)
}

func parseXML(data []byte) (*xmlNode, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel
	root := &xmlNode{}
	if err := dec.Decode(root); err != nil {
		return nil, err
	}
	return root, nil
}

// readBody reads a response body up to the configured size limit.
func (d *Device) readBody(resp *http.Response) ([]byte, error) {
	return io.ReadAll(io.LimitReader(resp.Body, d.respLimit()))
}

// extractErrorText extracts a human readable error text from a failed UPnP
// request. Any element whose tag ends in "string" or "description" is
// collected. Parse failures are swallowed, the text is best effort only.
func extractErrorText(body []byte) string {
	root, err := parseXML(body)
	if err != nil {
		return ""
	}
	var sb strings.Builder
	var walk func(n *xmlNode)
	walk = func(n *xmlNode) {
		tag := n.tag()
		if strings.HasSuffix(tag, "string") || strings.HasSuffix(tag, "description") {
			sb.WriteString(n.Text)
			sb.WriteString(" ")
		}
		for i := range n.Children {
			walk(&n.Children[i])
		}
	}
	walk(root)
	return sb.String()
}

// extractUPnPError looks for an <UPnPError> element with an error code in a
// SOAP fault body. It returns nil, if none is found.
func extractUPnPError(body []byte) *UPnPError {
	root, err := parseXML(body)
	if err != nil {
		return nil
	}
	var found *UPnPError
	var walk func(n *xmlNode)
	walk = func(n *xmlNode) {
		if found != nil {
			return
		}
		if n.tag() == "upnperror" {
			e := &UPnPError{}
			for i := range n.Children {
				c := &n.Children[i]
				switch c.tag() {
				case "errorcode":
					code, err := strconv.Atoi(strings.TrimSpace(c.Text))
					if err != nil {
						return
					}
					e.Code = code
				case "errordescription":
					e.Description = c.Text
				}
			}
			found = e
			return
		}
		for i := range n.Children {
			walk(&n.Children[i])
		}
	}
	walk(root)
	return found
}

// httpError builds the transport error for a non-200 response, including a
// vendor error code from the body, if one is present.
func httpError(what string, resp *http.Response, body []byte) error {
	if ue := extractUPnPError(body); ue != nil {
		return wrapf(KindTransport, ue, "%s failed: %s", what, resp.Status)
	}
	errText := extractErrorText(body)
	if errText != "" {
		return errorf(KindTransport, "%s failed: %s -- %s", what, resp.Status, errText)
	}
	return errorf(KindTransport, "%s failed: %s", what, resp.Status)
}
