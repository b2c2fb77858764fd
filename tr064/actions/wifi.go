package actions

import (
	"time"

	"github.com/hausnet/go-hausnet/tr064"
)

// All Wifi methods use the WLAN configuration service, the interface id is
// appended. Devices often have more than one interface, e.g. for 2.4 and
// 5 GHz.
const wifiServiceType = "urn:dslforum-org:service:WLANConfiguration:"

// Wifi accesses the WLAN configuration of a device supporting the
// urn:dslforum-org:service:WLANConfiguration service type. The device
// description must be loaded before use.
type Wifi struct {
	*tr064.Device
}

// NewWifi creates a Wifi wrapper for a device.
func NewWifi(host string, port int, protocol string) *Wifi {
	return &Wifi{tr064.NewDevice(host, port, protocol)}
}

// WifiFromURL creates a Wifi wrapper from the URL of the device description.
// The description is not loaded.
func WifiFromURL(rawurl string) (*Wifi, error) {
	d, err := tr064.DeviceFromURL(rawurl)
	if err != nil {
		return nil, err
	}
	return &Wifi{d}, nil
}

// WifiServiceType returns the service type prefix used by all wrapper
// methods.
func WifiServiceType() string {
	return wifiServiceType
}

// Info executes GetInfo and returns the basic WLAN configuration.
func (w *Wifi) Info(wifiInterfaceID int, timeout time.Duration) (*WifiBasicInfo, error) {
	st := withID(wifiServiceType, wifiInterfaceID)
	res, err := call(w.Device, st, "GetInfo", timeout, nil)
	if err != nil {
		return nil, err
	}
	return newWifiBasicInfo(res)
}

// Statistics executes GetStatistics and returns the total packets sent and
// received.
func (w *Wifi) Statistics(wifiInterfaceID int, timeout time.Duration) (sent uint64, received uint64, err error) {
	st := withID(wifiServiceType, wifiInterfaceID)
	res, err := call(w.Device, st, "GetStatistics", timeout, nil)
	if err != nil {
		return 0, 0, err
	}
	return packetCounters(res)
}

// PacketStatistics executes GetPacketStatistics and returns the total packets
// sent and received.
func (w *Wifi) PacketStatistics(wifiInterfaceID int, timeout time.Duration) (sent uint64, received uint64, err error) {
	st := withID(wifiServiceType, wifiInterfaceID)
	res, err := call(w.Device, st, "GetPacketStatistics", timeout, nil)
	if err != nil {
		return 0, 0, err
	}
	return packetCounters(res)
}

func packetCounters(res tr064.ActionResult) (sent uint64, received uint64, err error) {
	sent, err = res.Uint64("NewTotalPacketsSent")
	if err != nil {
		return 0, 0, err
	}
	received, err = res.Uint64("NewTotalPacketsReceived")
	if err != nil {
		return 0, 0, err
	}
	return sent, received, nil
}

// TotalAssociations executes GetTotalAssociations and returns the number of
// associated WLAN clients.
func (w *Wifi) TotalAssociations(wifiInterfaceID int, timeout time.Duration) (int, error) {
	st := withID(wifiServiceType, wifiInterfaceID)
	res, err := call(w.Device, st, "GetTotalAssociations", timeout, nil)
	if err != nil {
		return 0, err
	}
	return res.Int("NewTotalAssociations")
}

// AssociatedDeviceByIndex executes GetGenericAssociatedDeviceInfo for a
// client index.
func (w *Wifi) AssociatedDeviceByIndex(index, wifiInterfaceID int, timeout time.Duration) (*WifiDeviceInfo, error) {
	st := withID(wifiServiceType, wifiInterfaceID)
	res, err := call(w.Device, st, "GetGenericAssociatedDeviceInfo", timeout,
		map[string]string{"NewAssociatedDeviceIndex": itoa(index)})
	if err != nil {
		return nil, err
	}
	return newWifiDeviceInfo(res, "")
}

// AssociatedDeviceByMAC executes GetSpecificAssociatedDeviceInfo for a MAC
// address in the form 38:C9:86:26:7E:38. Depending on the device the address
// may be case sensitive. The result carries no MAC address of its own, the
// queried one is attached again.
func (w *Wifi) AssociatedDeviceByMAC(macAddress string, wifiInterfaceID int, timeout time.Duration) (*WifiDeviceInfo, error) {
	st := withID(wifiServiceType, wifiInterfaceID)
	res, err := call(w.Device, st, "GetSpecificAssociatedDeviceInfo", timeout,
		map[string]string{"NewAssociatedDeviceMACAddress": macAddress})
	if err != nil {
		return nil, err
	}
	return newWifiDeviceInfo(res, macAddress)
}

// SetEnable enables or disables a WLAN interface. Be careful not to cut
// yourself off.
func (w *Wifi) SetEnable(status bool, wifiInterfaceID int, timeout time.Duration) error {
	st := withID(wifiServiceType, wifiInterfaceID)
	_, err := call(w.Device, st, "SetEnable", timeout,
		map[string]string{"NewEnable": boolArg(status)})
	return err
}

// SetChannel sets the channel of a WLAN interface.
func (w *Wifi) SetChannel(channel, wifiInterfaceID int, timeout time.Duration) error {
	st := withID(wifiServiceType, wifiInterfaceID)
	_, err := call(w.Device, st, "SetChannel", timeout,
		map[string]string{"NewChannel": itoa(channel)})
	return err
}

// SetSSID sets the name of the WLAN network.
func (w *Wifi) SetSSID(ssid string, wifiInterfaceID int, timeout time.Duration) error {
	st := withID(wifiServiceType, wifiInterfaceID)
	_, err := call(w.Device, st, "SetSSID", timeout,
		map[string]string{"NewSSID": ssid})
	return err
}

// WifiBasicInfo describes the basic configuration of a WLAN interface.
type WifiBasicInfo struct {
	Enabled        bool
	Status         string
	Channel        int
	SSID           string
	BeaconType     string
	MACControl     bool
	Standard       string
	BSSID          string
	EncryptionMode string
	AuthMode       string
	Raw            tr064.ActionResult
}

func newWifiBasicInfo(res tr064.ActionResult) (*WifiBasicInfo, error) {
	m := &mapper{res: res}
	info := &WifiBasicInfo{
		Enabled:        m.flag("NewEnable"),
		Status:         m.str("NewStatus"),
		Channel:        m.num("NewChannel"),
		SSID:           m.str("NewSSID"),
		BeaconType:     m.str("NewBeaconType"),
		MACControl:     m.flag("NewMACAddressControlEnabled"),
		Standard:       m.str("NewStandard"),
		BSSID:          m.str("NewBSSID"),
		EncryptionMode: m.str("NewBasicEncryptionModes"),
		AuthMode:       m.str("NewBasicAuthenticationMode"),
		Raw:            res,
	}
	if m.err != nil {
		return nil, m.err
	}
	return info, nil
}

// WifiDeviceInfo describes an associated WLAN client.
type WifiDeviceInfo struct {
	MACAddress    string
	IPAddress     string
	Authenticated bool
	Raw           tr064.ActionResult
}

func newWifiDeviceInfo(res tr064.ActionResult, macAddress string) (*WifiDeviceInfo, error) {
	m := &mapper{res: res}
	info := &WifiDeviceInfo{
		MACAddress:    m.strOr("NewAssociatedDeviceMACAddress", macAddress),
		IPAddress:     m.str("NewAssociatedDeviceIPAddress"),
		Authenticated: m.flag("NewAssociatedDeviceAuthState"),
		Raw:           res,
	}
	if m.err != nil {
		return nil, m.err
	}
	return info, nil
}
