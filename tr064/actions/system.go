package actions

import (
	"time"

	"github.com/hausnet/go-hausnet/tr064"
)

// complete service types by method, no interface id is appended
var systemServiceTypes = map[string]string{
	"Info":                    "urn:dslforum-org:service:DeviceInfo:1",
	"Reboot":                  "urn:dslforum-org:service:DeviceConfig:1",
	"TimeInfo":                "urn:dslforum-org:service:Time:1",
	"SoftwareUpdateAvailable": "urn:dslforum-org:service:UserInterface:1",
}

// System accesses device and time information of a device supporting the
// urn:dslforum-org:service:DeviceInfo:1 and Time:1 service types. The device
// description must be loaded before use.
type System struct {
	*tr064.Device
}

// NewSystem creates a system wrapper for a device.
func NewSystem(host string, port int, protocol string) *System {
	return &System{tr064.NewDevice(host, port, protocol)}
}

// SystemFromURL creates a system wrapper from the URL of the device
// description. The description is not loaded.
func SystemFromURL(rawurl string) (*System, error) {
	d, err := tr064.DeviceFromURL(rawurl)
	if err != nil {
		return nil, err
	}
	return &System{d}, nil
}

// SystemServiceType returns the service type supporting a wrapper method, or
// "" for an unknown method.
func SystemServiceType(method string) string {
	return systemServiceTypes[method]
}

// Info executes GetInfo on the device information service.
func (s *System) Info(timeout time.Duration) (*SystemInfo, error) {
	res, err := call(s.Device, systemServiceTypes["Info"], "GetInfo", timeout, nil)
	if err != nil {
		return nil, err
	}
	m := &mapper{res: res}
	info := &SystemInfo{
		ManufacturerName: m.str("NewManufacturerName"),
		ModelName:        m.str("NewModelName"),
		Description:      m.str("NewDescription"),
		SerialNumber:     m.str("NewSerialNumber"),
		SoftwareVersion:  m.str("NewSoftwareVersion"),
		HardwareVersion:  m.str("NewHardwareVersion"),
		Uptime:           m.num("NewUpTime"),
		DeviceLog:        m.str("NewDeviceLog"),
		Raw:              res,
	}
	if m.err != nil {
		return nil, m.err
	}
	return info, nil
}

// TimeInfo executes GetInfo on the time service.
func (s *System) TimeInfo(timeout time.Duration) (*TimeInfo, error) {
	res, err := call(s.Device, systemServiceTypes["TimeInfo"], "GetInfo", timeout, nil)
	if err != nil {
		return nil, err
	}
	m := &mapper{res: res}
	info := &TimeInfo{
		NTPServer1:           m.str("NewNTPServer1"),
		NTPServer2:           m.str("NewNTPServer2"),
		CurrentLocalTime:     m.str("NewCurrentLocalTime"),
		LocalTimeZone:        m.str("NewLocalTimeZone"),
		LocalTimeZoneName:    m.str("NewLocalTimeZoneName"),
		DaylightSavingsUsed:  m.flag("NewDaylightSavingsUsed"),
		DaylightSavingsStart: m.str("NewDaylightSavingsStart"),
		DaylightSavingsEnd:   m.str("NewDaylightSavingsEnd"),
		Raw:                  res,
	}
	if m.err != nil {
		return nil, m.err
	}
	return info, nil
}

// Reboot reboots the device.
func (s *System) Reboot(timeout time.Duration) error {
	_, err := call(s.Device, systemServiceTypes["Reboot"], "Reboot", timeout, nil)
	return err
}

// SoftwareUpdateAvailable reports whether a software update is available.
func (s *System) SoftwareUpdateAvailable(timeout time.Duration) (bool, error) {
	res, err := call(s.Device, systemServiceTypes["SoftwareUpdateAvailable"], "GetInfo", timeout, nil)
	if err != nil {
		return false, err
	}
	return res.Bool("NewUpgradeAvailable")
}

// SystemInfo describes the device hardware and software.
type SystemInfo struct {
	ManufacturerName string
	ModelName        string
	Description      string
	SerialNumber     string
	SoftwareVersion  string
	HardwareVersion  string
	Uptime           int
	DeviceLog        string
	Raw              tr064.ActionResult
}

// TimeInfo describes the time configuration of the device.
type TimeInfo struct {
	NTPServer1           string
	NTPServer2           string
	CurrentLocalTime     string
	LocalTimeZone        string
	LocalTimeZoneName    string
	DaylightSavingsUsed  bool
	DaylightSavingsStart string
	DaylightSavingsEnd   string
	Raw                  tr064.ActionResult
}
