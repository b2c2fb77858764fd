package actions

import (
	"time"

	"github.com/hausnet/go-hausnet/tr064"
)

// service type prefixes by method, the LAN interface id is appended
var lanServiceTypes = map[string]string{
	"HostCount":          "urn:dslforum-org:service:Hosts:",
	"HostByIndex":        "urn:dslforum-org:service:Hosts:",
	"HostByMAC":          "urn:dslforum-org:service:Hosts:",
	"EthernetInfo":       "urn:dslforum-org:service:LANEthernetInterfaceConfig:",
	"EthernetStatistics": "urn:dslforum-org:service:LANEthernetInterfaceConfig:",
	"SetEnable":          "urn:dslforum-org:service:LANEthernetInterfaceConfig:",
}

// Lan accesses the host table and the LAN Ethernet configuration of a device
// supporting the urn:dslforum-org:service:Hosts and LANEthernetInterfaceConfig
// service types. The device description must be loaded before use.
type Lan struct {
	*tr064.Device
}

// NewLan creates a LAN wrapper for a device.
func NewLan(host string, port int, protocol string) *Lan {
	return &Lan{tr064.NewDevice(host, port, protocol)}
}

// LanFromURL creates a LAN wrapper from the URL of the device description.
// The description is not loaded.
func LanFromURL(rawurl string) (*Lan, error) {
	d, err := tr064.DeviceFromURL(rawurl)
	if err != nil {
		return nil, err
	}
	return &Lan{d}, nil
}

// LanServiceType returns the service type prefix supporting a wrapper method,
// or "" for an unknown method.
func LanServiceType(method string) string {
	return lanServiceTypes[method]
}

// HostCount executes GetHostNumberOfEntries and returns the number of known
// hosts.
func (l *Lan) HostCount(lanInterfaceID int, timeout time.Duration) (int, error) {
	st := withID(lanServiceTypes["HostCount"], lanInterfaceID)
	res, err := call(l.Device, st, "GetHostNumberOfEntries", timeout, nil)
	if err != nil {
		return 0, err
	}
	return res.Int("NewHostNumberOfEntries")
}

// HostByIndex executes GetGenericHostEntry for a host table index.
func (l *Lan) HostByIndex(index, lanInterfaceID int, timeout time.Duration) (*HostDetails, error) {
	st := withID(lanServiceTypes["HostByIndex"], lanInterfaceID)
	res, err := call(l.Device, st, "GetGenericHostEntry", timeout,
		map[string]string{"NewIndex": itoa(index)})
	if err != nil {
		return nil, err
	}
	return newHostDetails(res, "")
}

// HostByMAC executes GetSpecificHostEntry for a MAC address in the form
// 38:C9:86:26:7E:38. Depending on the device the address may be case
// sensitive. The result carries no MAC address of its own, the queried one is
// attached again.
func (l *Lan) HostByMAC(macAddress string, lanInterfaceID int, timeout time.Duration) (*HostDetails, error) {
	st := withID(lanServiceTypes["HostByMAC"], lanInterfaceID)
	res, err := call(l.Device, st, "GetSpecificHostEntry", timeout,
		map[string]string{"NewMACAddress": macAddress})
	if err != nil {
		return nil, err
	}
	return newHostDetails(res, macAddress)
}

// EthernetInfo executes GetInfo on the LAN Ethernet interface configuration.
func (l *Lan) EthernetInfo(lanInterfaceID int, timeout time.Duration) (*EthernetInfo, error) {
	st := withID(lanServiceTypes["EthernetInfo"], lanInterfaceID)
	res, err := call(l.Device, st, "GetInfo", timeout, nil)
	if err != nil {
		return nil, err
	}
	m := &mapper{res: res}
	info := &EthernetInfo{
		Enabled:    m.flag("NewEnable"),
		Status:     m.str("NewStatus"),
		MACAddress: m.str("NewMACAddress"),
		MaxBitRate: m.str("NewMaxBitRate"),
		DuplexMode: m.str("NewDuplexMode"),
		Raw:        res,
	}
	if m.err != nil {
		return nil, m.err
	}
	return info, nil
}

// EthernetStatistics executes GetStatistics on the LAN Ethernet interface
// configuration.
func (l *Lan) EthernetStatistics(lanInterfaceID int, timeout time.Duration) (*EthernetStatistics, error) {
	st := withID(lanServiceTypes["EthernetStatistics"], lanInterfaceID)
	res, err := call(l.Device, st, "GetStatistics", timeout, nil)
	if err != nil {
		return nil, err
	}
	m := &mapper{res: res}
	stat := &EthernetStatistics{
		BytesSent:       m.num64("NewBytesSent"),
		BytesReceived:   m.num64("NewBytesReceived"),
		PacketsSent:     m.num64("NewPacketsSent"),
		PacketsReceived: m.num64("NewPacketsReceived"),
		Raw:             res,
	}
	if m.err != nil {
		return nil, m.err
	}
	return stat, nil
}

// SetEnable enables or disables a LAN interface. Be careful not to cut
// yourself off.
func (l *Lan) SetEnable(status bool, lanInterfaceID int, timeout time.Duration) error {
	st := withID(lanServiceTypes["SetEnable"], lanInterfaceID)
	_, err := call(l.Device, st, "SetEnable", timeout,
		map[string]string{"NewEnable": boolArg(status)})
	return err
}

// HostDetails describes a host known to the LAN host table.
type HostDetails struct {
	MACAddress string
	IPAddress  string
	Hostname   string
	Interface  string
	Source     string
	LeaseTime  int
	Active     bool
	Raw        tr064.ActionResult
}

func newHostDetails(res tr064.ActionResult, macAddress string) (*HostDetails, error) {
	m := &mapper{res: res}
	h := &HostDetails{
		MACAddress: m.strOr("NewMACAddress", macAddress),
		IPAddress:  m.str("NewIPAddress"),
		Hostname:   m.str("NewHostName"),
		Interface:  m.str("NewInterfaceType"),
		Source:     m.str("NewAddressSource"),
		LeaseTime:  m.num("NewLeaseTimeRemaining"),
		Active:     m.flag("NewActive"),
		Raw:        res,
	}
	if m.err != nil {
		return nil, m.err
	}
	return h, nil
}

// EthernetInfo describes the state of a LAN Ethernet interface.
type EthernetInfo struct {
	Enabled    bool
	Status     string
	MACAddress string
	MaxBitRate string
	DuplexMode string
	Raw        tr064.ActionResult
}

// EthernetStatistics holds the transfer counters of a LAN Ethernet interface.
type EthernetStatistics struct {
	BytesSent       uint64
	BytesReceived   uint64
	PacketsSent     uint64
	PacketsReceived uint64
	Raw             tr064.ActionResult
}
