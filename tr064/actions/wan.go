package actions

import (
	"time"

	"github.com/hausnet/go-hausnet/tr064"
)

// service type prefixes by method, the WAN interface id is appended
var wanServiceTypes = map[string]string{
	"LinkInfo":            "urn:dslforum-org:service:WANDSLInterfaceConfig:",
	"LinkProperties":      "urn:dslforum-org:service:WANCommonInterfaceConfig:",
	"ADSLInfo":            "urn:dslforum-org:service:WANDSLLinkConfig:",
	"EthernetLinkStatus":  "urn:dslforum-org:service:WANEthernetLinkConfig:",
	"ByteStatistics":      "urn:dslforum-org:service:WANCommonInterfaceConfig:",
	"PacketStatistics":    "urn:dslforum-org:service:WANCommonInterfaceConfig:",
	"ConnectionInfo":      "urn:dslforum-org:service:WANIPConnection:",
	"SetEnable":           "urn:dslforum-org:service:WANDSLLinkConfig:",
	"RequestConnection":   "urn:dslforum-org:service:WANIPConnection:",
	"TerminateConnection": "urn:dslforum-org:service:WANIPConnection:",
}

// Wan accesses the WAN link, connection and statistics services of a device
// supporting the urn:dslforum-org:service:WAN* service types. The device
// description must be loaded before use. Rarely a device has more than one
// WAN interface, but the interface id can be chosen for consistency.
type Wan struct {
	*tr064.Device
}

// NewWan creates a WAN wrapper for a device.
func NewWan(host string, port int, protocol string) *Wan {
	return &Wan{tr064.NewDevice(host, port, protocol)}
}

// WanFromURL creates a WAN wrapper from the URL of the device description.
// The description is not loaded.
func WanFromURL(rawurl string) (*Wan, error) {
	d, err := tr064.DeviceFromURL(rawurl)
	if err != nil {
		return nil, err
	}
	return &Wan{d}, nil
}

// WanServiceType returns the service type prefix supporting a wrapper method,
// or "" for an unknown method.
func WanServiceType(method string) string {
	return wanServiceTypes[method]
}

// LinkInfo executes GetInfo on the DSL interface configuration.
func (w *Wan) LinkInfo(wanInterfaceID int, timeout time.Duration) (*WanLinkInfo, error) {
	st := withID(wanServiceTypes["LinkInfo"], wanInterfaceID)
	res, err := call(w.Device, st, "GetInfo", timeout, nil)
	if err != nil {
		return nil, err
	}
	m := &mapper{res: res}
	info := &WanLinkInfo{
		Enabled:               m.flag("NewEnable"),
		Status:                m.str("NewStatus"),
		DataPath:              m.str("NewDataPath"),
		UpstreamCurrentRate:   m.num("NewUpstreamCurrRate"),
		DownstreamCurrentRate: m.num("NewDownstreamCurrRate"),
		UpstreamMaxRate:       m.num("NewUpstreamMaxRate"),
		DownstreamMaxRate:     m.num("NewDownstreamMaxRate"),
		Raw:                   res,
	}
	if m.err != nil {
		return nil, m.err
	}
	return info, nil
}

// LinkProperties executes GetCommonLinkProperties on the common interface
// configuration.
func (w *Wan) LinkProperties(wanInterfaceID int, timeout time.Duration) (*WanLinkProperties, error) {
	st := withID(wanServiceTypes["LinkProperties"], wanInterfaceID)
	res, err := call(w.Device, st, "GetCommonLinkProperties", timeout, nil)
	if err != nil {
		return nil, err
	}
	m := &mapper{res: res}
	props := &WanLinkProperties{
		AccessType:           m.str("NewWANAccessType"),
		UpstreamMaxBitRate:   m.num("NewLayer1UpstreamMaxBitRate"),
		DownstreamMaxBitRate: m.num("NewLayer1DownstreamMaxBitRate"),
		LinkStatus:           m.str("NewPhysicalLinkStatus"),
		Raw:                  res,
	}
	if m.err != nil {
		return nil, m.err
	}
	return props, nil
}

// ADSLInfo executes GetInfo on the DSL link configuration.
func (w *Wan) ADSLInfo(wanInterfaceID int, timeout time.Duration) (*ADSLInfo, error) {
	st := withID(wanServiceTypes["ADSLInfo"], wanInterfaceID)
	res, err := call(w.Device, st, "GetInfo", timeout, nil)
	if err != nil {
		return nil, err
	}
	m := &mapper{res: res}
	info := &ADSLInfo{
		Enabled:            m.flag("NewEnable"),
		Status:             m.str("NewLinkStatus"),
		LinkType:           m.str("NewLinkType"),
		DestinationAddress: m.str("NewDestinationAddress"),
		Raw:                res,
	}
	if m.err != nil {
		return nil, m.err
	}
	return info, nil
}

// EthernetLinkStatus executes GetEthernetLinkStatus and returns the link
// status string.
func (w *Wan) EthernetLinkStatus(wanInterfaceID int, timeout time.Duration) (string, error) {
	st := withID(wanServiceTypes["EthernetLinkStatus"], wanInterfaceID)
	res, err := call(w.Device, st, "GetEthernetLinkStatus", timeout, nil)
	if err != nil {
		return "", err
	}
	return res.String("NewEthernetLinkStatus")
}

// ByteStatistics executes GetTotalBytesSent and GetTotalBytesReceived as two
// separate round trips. The counters are not sampled atomically.
func (w *Wan) ByteStatistics(wanInterfaceID int, timeout time.Duration) (sent uint64, received uint64, err error) {
	st := withID(wanServiceTypes["ByteStatistics"], wanInterfaceID)
	res, err := call(w.Device, st, "GetTotalBytesSent", timeout, nil)
	if err != nil {
		return 0, 0, err
	}
	sent, err = res.Uint64("NewTotalBytesSent")
	if err != nil {
		return 0, 0, err
	}
	res, err = call(w.Device, st, "GetTotalBytesReceived", timeout, nil)
	if err != nil {
		return 0, 0, err
	}
	received, err = res.Uint64("NewTotalBytesReceived")
	if err != nil {
		return 0, 0, err
	}
	return sent, received, nil
}

// PacketStatistics executes GetTotalPacketsSent and GetTotalPacketsReceived
// as two separate round trips. The counters are not sampled atomically.
func (w *Wan) PacketStatistics(wanInterfaceID int, timeout time.Duration) (sent uint64, received uint64, err error) {
	st := withID(wanServiceTypes["PacketStatistics"], wanInterfaceID)
	res, err := call(w.Device, st, "GetTotalPacketsSent", timeout, nil)
	if err != nil {
		return 0, 0, err
	}
	sent, err = res.Uint64("NewTotalPacketsSent")
	if err != nil {
		return 0, 0, err
	}
	res, err = call(w.Device, st, "GetTotalPacketsReceived", timeout, nil)
	if err != nil {
		return 0, 0, err
	}
	received, err = res.Uint64("NewTotalPacketsReceived")
	if err != nil {
		return 0, 0, err
	}
	return sent, received, nil
}

// ConnectionInfo executes GetInfo on the IP connection service.
func (w *Wan) ConnectionInfo(wanInterfaceID int, timeout time.Duration) (*ConnectionInfo, error) {
	st := withID(wanServiceTypes["ConnectionInfo"], wanInterfaceID)
	res, err := call(w.Device, st, "GetInfo", timeout, nil)
	if err != nil {
		return nil, err
	}
	m := &mapper{res: res}
	info := &ConnectionInfo{
		Enabled:             m.flag("NewEnable"),
		Status:              m.str("NewConnectionStatus"),
		ConnectionType:      m.str("NewConnectionType"),
		Name:                m.str("NewName"),
		Uptime:              m.num("NewUptime"),
		LastConnectionError: m.str("NewLastConnectionError"),
		NATEnabled:          m.flag("NewNATEnabled"),
		ExternalIPAddress:   m.str("NewExternalIPAddress"),
		DNSServers:          m.str("NewDNSServers"),
		MACAddress:          m.str("NewMACAddress"),
		DNSEnabled:          m.flag("NewDNSEnabled"),
		Raw:                 res,
	}
	if m.err != nil {
		return nil, m.err
	}
	return info, nil
}

// SetEnable enables or disables a WAN interface. Be careful not to cut
// yourself off.
func (w *Wan) SetEnable(status bool, wanInterfaceID int, timeout time.Duration) error {
	st := withID(wanServiceTypes["SetEnable"], wanInterfaceID)
	_, err := call(w.Device, st, "SetEnable", timeout,
		map[string]string{"NewEnable": boolArg(status)})
	return err
}

// RequestConnection requests the WAN connection to be established.
func (w *Wan) RequestConnection(wanInterfaceID int, timeout time.Duration) error {
	st := withID(wanServiceTypes["RequestConnection"], wanInterfaceID)
	_, err := call(w.Device, st, "RequestConnection", timeout, nil)
	return err
}

// TerminateConnection terminates the WAN connection.
func (w *Wan) TerminateConnection(wanInterfaceID int, timeout time.Duration) error {
	st := withID(wanServiceTypes["TerminateConnection"], wanInterfaceID)
	_, err := call(w.Device, st, "ForceTermination", timeout, nil)
	return err
}

// WanLinkInfo describes the state of the DSL link. Rates are in kbit/s.
type WanLinkInfo struct {
	Enabled               bool
	Status                string
	DataPath              string
	UpstreamCurrentRate   int
	DownstreamCurrentRate int
	UpstreamMaxRate       int
	DownstreamMaxRate     int
	Raw                   tr064.ActionResult
}

// WanLinkProperties describes the physical WAN link.
type WanLinkProperties struct {
	AccessType           string
	UpstreamMaxBitRate   int
	DownstreamMaxBitRate int
	LinkStatus           string
	Raw                  tr064.ActionResult
}

// ADSLInfo describes the state of the ADSL link.
type ADSLInfo struct {
	Enabled            bool
	Status             string
	LinkType           string
	DestinationAddress string
	Raw                tr064.ActionResult
}

// ConnectionInfo describes the WAN IP connection.
type ConnectionInfo struct {
	Enabled             bool
	Status              string
	ConnectionType      string
	Name                string
	Uptime              int
	LastConnectionError string
	NATEnabled          bool
	ExternalIPAddress   string
	DNSServers          string
	MACAddress          string
	DNSEnabled          bool
	Raw                 tr064.ActionResult
}
