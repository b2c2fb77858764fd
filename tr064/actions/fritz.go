package actions

import (
	"bytes"
	"encoding/xml"
	"strconv"
	"strings"
	"time"

	"github.com/hausnet/go-hausnet/tr064"

	"golang.org/x/net/html/charset"
)

// service type prefixes by method, an interface id is appended where the
// prefix does not already end in a version
var fritzServiceTypes = map[string]string{
	"WakeOnLAN":        "urn:dslforum-org:service:Hosts:",
	"DoUpdate":         "urn:dslforum-org:service:UserInterface:1",
	"IPTVOptimized":    "urn:dslforum-org:service:WLANConfiguration:",
	"SetIPTVOptimized": "urn:dslforum-org:service:WLANConfiguration:",
	"CallList":         "urn:dslforum-org:service:X_AVM-DE_OnTel:1",
}

// Fritz accesses vendor specific services of AVM Fritz products. The device
// description must be loaded before use.
type Fritz struct {
	*tr064.Device
}

// NewFritz creates a Fritz wrapper for a device.
func NewFritz(host string, port int, protocol string) *Fritz {
	return &Fritz{tr064.NewDevice(host, port, protocol)}
}

// FritzFromURL creates a Fritz wrapper from the URL of the device
// description. The description is not loaded.
func FritzFromURL(rawurl string) (*Fritz, error) {
	d, err := tr064.DeviceFromURL(rawurl)
	if err != nil {
		return nil, err
	}
	return &Fritz{d}, nil
}

// FritzServiceType returns the service type prefix supporting a wrapper
// method, or "" for an unknown method.
func FritzServiceType(method string) string {
	return fritzServiceTypes[method]
}

// WakeOnLAN sends a wake up packet to a host specified by its MAC address in
// the form 38:C9:86:26:7E:38.
func (f *Fritz) WakeOnLAN(macAddress string, lanInterfaceID int, timeout time.Duration) error {
	st := withID(fritzServiceTypes["WakeOnLAN"], lanInterfaceID)
	_, err := call(f.Device, st, "X_AVM-DE_WakeOnLANByMACAddress", timeout,
		map[string]string{"NewMACAddress": macAddress})
	return err
}

// DoUpdate triggers a software update if one is available. It reports whether
// an update was available and the update state.
func (f *Fritz) DoUpdate(timeout time.Duration) (available bool, state string, err error) {
	res, err := call(f.Device, fritzServiceTypes["DoUpdate"], "X_AVM-DE_DoUpdate", timeout, nil)
	if err != nil {
		return false, "", err
	}
	available, err = res.Bool("NewUpgradeAvailable")
	if err != nil {
		return false, "", err
	}
	state, err = res.String("NewX_AVM-DE_UpdateState")
	if err != nil {
		return false, "", err
	}
	return available, state, nil
}

// IPTVOptimized reports whether a WLAN interface is optimized for IPTV.
func (f *Fritz) IPTVOptimized(wifiInterfaceID int, timeout time.Duration) (bool, error) {
	st := withID(fritzServiceTypes["IPTVOptimized"], wifiInterfaceID)
	res, err := call(f.Device, st, "X_AVM-DE_GetIPTVOptimized", timeout, nil)
	if err != nil {
		return false, err
	}
	return res.Bool("NewX_AVM-DE_IPTVoptimize")
}

// SetIPTVOptimized sets whether a WLAN interface is optimized for IPTV.
func (f *Fritz) SetIPTVOptimized(status bool, wifiInterfaceID int, timeout time.Duration) error {
	st := withID(fritzServiceTypes["SetIPTVOptimized"], wifiInterfaceID)
	_, err := call(f.Device, st, "X_AVM-DE_SetIPTVOptimized", timeout,
		map[string]string{"NewX_AVM-DE_IPTVoptimize": boolArg(status)})
	return err
}

// CallList retrieves the phone call list. The action only hands out a URL,
// the list itself is fetched with a second plain GET.
func (f *Fritz) CallList(timeout time.Duration) ([]*CallRecord, error) {
	res, err := call(f.Device, fritzServiceTypes["CallList"], "GetCallList", timeout, nil)
	if err != nil {
		return nil, err
	}
	listURL, err := res.String("NewCallListURL")
	if err != nil {
		return nil, err
	}
	log.Debugf("Loading call list from %s", listURL)
	body, err := f.Device.Fetch(listURL, timeout)
	if err != nil {
		return nil, err
	}
	return parseCallList(listURL, body)
}

// CallRecord describes one entry of the phone call list. Fields not reported
// by the device stay empty.
type CallRecord struct {
	ID           string
	Type         CallType
	Caller       string
	Called       string
	CalledNumber string
	Name         string
	NumberType   string
	Device       string
	Port         string
	Date         string
	Duration     string
	Count        string
	Path         string
	Raw          map[string]string
}

// CallType classifies a call list entry.
type CallType int

const (
	CallUnknown CallType = iota
	CallAnswered
	CallMissed
	CallOutgoing
)

func (t CallType) String() string {
	switch t {
	case CallAnswered:
		return "answered"
	case CallMissed:
		return "missed"
	case CallOutgoing:
		return "outgoing"
	}
	return "unknown"
}

type callNode struct {
	XMLName  xml.Name
	Text     string     `xml:",chardata"`
	Children []callNode `xml:",any"`
}

func parseCallList(listURL string, body []byte) ([]*CallRecord, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.CharsetReader = charset.NewReaderLabel
	var root callNode
	if err := dec.Decode(&root); err != nil {
		return nil, &tr064.Error{
			Kind: tr064.KindParse,
			Msg:  "Parsing of call list from " + listURL + " failed",
			Err:  err,
		}
	}
	var calls []*CallRecord
	for _, child := range root.Children {
		if strings.ToLower(child.XMLName.Local) != "call" {
			continue
		}
		raw := make(map[string]string, len(child.Children))
		for _, field := range child.Children {
			raw[field.XMLName.Local] = field.Text
		}
		calls = append(calls, newCallRecord(raw))
	}
	return calls, nil
}

func newCallRecord(raw map[string]string) *CallRecord {
	var t CallType
	if n, err := strconv.Atoi(raw["Type"]); err == nil &&
		n >= int(CallAnswered) && n <= int(CallOutgoing) {
		t = CallType(n)
	}
	return &CallRecord{
		ID:           raw["Id"],
		Type:         t,
		Caller:       raw["Caller"],
		Called:       raw["Called"],
		CalledNumber: raw["CalledNumber"],
		Name:         raw["Name"],
		NumberType:   raw["Numbertype"],
		Device:       raw["Device"],
		Port:         raw["Port"],
		Date:         raw["Date"],
		Duration:     raw["Duration"],
		Count:        raw["Count"],
		Path:         raw["Path"],
		Raw:          raw,
	}
}
