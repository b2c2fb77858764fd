package ccu

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hausnet/go-hausnet/ccu/xmlrpc"
	"github.com/mdzio/go-logging"
)

var devLog = logging.Get("ccu-devices")

// DeviceDescription is the metadata an interface process publishes for a
// device or a channel. Channels carry the device address in Parent and a
// full address of the form device:index.
type DeviceDescription struct {
	Type       string
	Address    string
	Children   []string
	Parent     string
	ParentType string
	Index      int
	Paramsets  []string
	Firmware   string
	Version    int
	Interface  string
}

// ReadFrom reads the field values from an xmlrpc.Query.
func (d *DeviceDescription) ReadFrom(q *xmlrpc.Query) {
	d.Type = q.TryKey("TYPE").String()
	d.Address = q.TryKey("ADDRESS").String()
	// The interface VirtualDevices of the CCU returns an empty XML-RPC value
	// instead of an empty XML-RPC array, if the device has no children.
	c := q.TryKey("CHILDREN")
	if c.IsNotEmpty() {
		d.Children = c.Strings()
	}
	d.Parent = q.TryKey("PARENT").String()
	d.ParentType = q.TryKey("PARENT_TYPE").String()
	d.Index = q.TryKey("INDEX").Int()
	d.Paramsets = q.TryKey("PARAMSETS").Strings()
	d.Firmware = q.TryKey("FIRMWARE").String()
	d.Version = q.TryKey("VERSION").Int()
	d.Interface = q.TryKey("INTERFACE").String()
}

// SplitAddress splits a full address into device and channel part.
func SplitAddress(address string) (deviceAddress string, channelAddress string) {
	if p := strings.IndexRune(address, ':'); p == -1 {
		deviceAddress = address
	} else {
		deviceAddress = address[0:p]
		channelAddress = address[p+1:]
	}
	return
}

// Device is a logical device together with its channels.
type Device struct {
	set *DeviceSet

	ISEID    string
	Address  string
	Name     string
	Type     string
	Firmware string
	Version  int

	// key is the channel part of the address, e.g. "1"
	channels map[string]*Channel
}

// Channels returns the channels of the device sorted by address.
func (d *Device) Channels() []*Channel {
	d.set.mtx.RLock()
	defer d.set.mtx.RUnlock()
	cs := make([]*Channel, 0, len(d.channels))
	for _, c := range d.channels {
		cs = append(cs, c)
	}
	sort.Slice(cs, func(i, j int) bool { return cs[i].Address < cs[j].Address })
	return cs
}

// Channel looks up a channel by its index, e.g. "1". If not found, nil is
// returned.
func (d *Device) Channel(index string) *Channel {
	d.set.mtx.RLock()
	defer d.set.mtx.RUnlock()
	return d.channels[index]
}

// Channel is a single channel of a device.
type Channel struct {
	device *Device

	ISEID string
	// full address, e.g. "NEQ1234567:1"
	Address string
	Name    string
	Type    string

	// key is the datapoint name, e.g. STATE
	params map[string]*Parameter
}

// Device returns the device the channel belongs to.
func (c *Channel) Device() *Device {
	return c.device
}

// Parameters returns the datapoints of the channel sorted by name.
func (c *Channel) Parameters() []*Parameter {
	c.device.set.mtx.RLock()
	defer c.device.set.mtx.RUnlock()
	ps := make([]*Parameter, 0, len(c.params))
	for _, p := range c.params {
		ps = append(ps, p)
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].ID < ps[j].ID })
	return ps
}

// Parameter looks up a datapoint by name, e.g. STATE. If not found, nil is
// returned.
func (c *Channel) Parameter(id string) *Parameter {
	c.device.set.mtx.RLock()
	defer c.device.set.mtx.RUnlock()
	return c.params[id]
}

// DefaultStaleness is used when DeviceSet.Staleness is not set.
const DefaultStaleness = 5 * time.Second

// DeviceSet is a cached model of the devices known to a CCU. Refresh builds
// the model through the script client. Pushed events from the interface
// processes keep the model and the parameter values current.
type DeviceSet struct {
	// Script reads and writes parameter values.
	Script *ScriptClient

	// Staleness is the maximum age of a cached parameter value. Older values
	// are fetched again on access. 0 means DefaultStaleness.
	Staleness time.Duration

	mtx     sync.RWMutex
	devices map[string]*Device
}

// Refresh enumerates devices, channels and datapoints through the script
// client and rebuilds the model. Cached parameter values survive a refresh,
// if the datapoint still exists.
func (s *DeviceSet) Refresh() error {
	if s.Script == nil {
		return fmt.Errorf("No script client configured")
	}
	devLog.Debug("Refreshing device model")
	dds, err := s.Script.Devices()
	if err != nil {
		return err
	}
	devices := make(map[string]*Device, len(dds))
	var params []*Parameter
	for _, dd := range dds {
		d := &Device{
			set:      s,
			ISEID:    dd.ISEID,
			Address:  dd.Address,
			Name:     dd.DisplayName,
			Type:     dd.Type,
			channels: make(map[string]*Channel),
		}
		cds, err := s.Script.Channels(dd.ISEID)
		if err != nil {
			return err
		}
		for _, cd := range cds {
			c := &Channel{
				device:  d,
				ISEID:   cd.ISEID,
				Address: cd.Address,
				Name:    cd.DisplayName,
				Type:    cd.Type,
				params:  make(map[string]*Parameter),
			}
			pds, err := s.Script.Params(cd.ISEID)
			if err != nil {
				return err
			}
			for _, pd := range pds {
				p := &Parameter{
					channel:    c,
					ISEID:      pd.ISEID,
					ID:         pd.ID,
					Type:       pd.Type,
					Unit:       pd.Unit,
					Operations: pd.Operations,
					Minimum:    pd.Minimum,
					Maximum:    pd.Maximum,
				}
				c.params[p.ID] = p
				params = append(params, p)
			}
			_, idx := SplitAddress(cd.Address)
			d.channels[idx] = c
		}
		devices[d.Address] = d
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()
	// carry cached values over to the new model
	if s.devices != nil {
		old := make(map[string]*Parameter)
		for _, d := range s.devices {
			for _, c := range d.channels {
				for _, p := range c.params {
					old[p.ISEID] = p
				}
			}
		}
		for _, p := range params {
			if op, ok := old[p.ISEID]; ok {
				v, ts := op.cached()
				p.update(v, ts)
			}
		}
	}
	s.devices = devices
	devLog.Debugf("Device model refreshed: %d devices", len(devices))
	return nil
}

// Devices returns all devices sorted by address.
func (s *DeviceSet) Devices() []*Device {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	ds := make([]*Device, 0, len(s.devices))
	for _, d := range s.devices {
		ds = append(ds, d)
	}
	sort.Slice(ds, func(i, j int) bool { return ds[i].Address < ds[j].Address })
	return ds
}

// Device looks up a device by address. If not found, nil is returned.
func (s *DeviceSet) Device(address string) *Device {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.devices[address]
}

// Channel looks up a channel by its full address, e.g. "NEQ1234567:1". If not
// found, nil is returned.
func (s *DeviceSet) Channel(address string) *Channel {
	devAddr, idx := SplitAddress(address)
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	d := s.devices[devAddr]
	if d == nil {
		return nil
	}
	return d.channels[idx]
}

// AddDevices reconciles the model with pushed device descriptions. Unknown
// devices and channels are created, known ones are updated in place.
func (s *DeviceSet) AddDevices(dds []*DeviceDescription) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.devices == nil {
		s.devices = make(map[string]*Device)
	}
	// devices first, the descriptions of their channels may follow in the
	// same batch
	for _, dd := range dds {
		if _, idx := SplitAddress(dd.Address); idx != "" {
			continue
		}
		d := s.devices[dd.Address]
		if d == nil {
			d = &Device{
				set:      s,
				Address:  dd.Address,
				channels: make(map[string]*Channel),
			}
			s.devices[dd.Address] = d
			devLog.Debug("Device added: ", dd.Address)
		}
		d.Type = dd.Type
		d.Firmware = dd.Firmware
		d.Version = dd.Version
	}
	for _, dd := range dds {
		devAddr, idx := SplitAddress(dd.Address)
		if idx == "" {
			continue
		}
		d := s.devices[devAddr]
		if d == nil {
			devLog.Warning("Channel for unknown device ignored: ", dd.Address)
			continue
		}
		c := d.channels[idx]
		if c == nil {
			c = &Channel{
				device:  d,
				Address: dd.Address,
				params:  make(map[string]*Parameter),
			}
			d.channels[idx] = c
			devLog.Debug("Channel added: ", dd.Address)
		}
		c.Type = dd.Type
	}
}

// RemoveDevices removes devices and channels by address.
func (s *DeviceSet) RemoveDevices(addresses []string) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	for _, addr := range addresses {
		devAddr, idx := SplitAddress(addr)
		d := s.devices[devAddr]
		if d == nil {
			continue
		}
		if idx == "" {
			delete(s.devices, devAddr)
			devLog.Debug("Device removed: ", devAddr)
		} else if _, ok := d.channels[idx]; ok {
			delete(d.channels, idx)
			devLog.Debug("Channel removed: ", addr)
		}
	}
}

// ApplyEvent updates the cached value of the addressed datapoint. A datapoint
// not seen before is created on the fly with the data type of the value.
func (s *DeviceSet) ApplyEvent(address, valueKey string, value interface{}) error {
	devAddr, idx := SplitAddress(address)
	s.mtx.Lock()
	d := s.devices[devAddr]
	if d == nil {
		s.mtx.Unlock()
		return fmt.Errorf("Event for unknown device: %s", address)
	}
	c := d.channels[idx]
	if c == nil {
		s.mtx.Unlock()
		return fmt.Errorf("Event for unknown channel: %s", address)
	}
	p := c.params[valueKey]
	if p == nil {
		p = &Parameter{
			channel: c,
			ID:      valueKey,
			Type:    typeOfValue(value),
		}
		c.params[valueKey] = p
		devLog.Debugf("Datapoint created by event: %s.%s", address, valueKey)
	}
	s.mtx.Unlock()
	return p.applyEvent(value)
}
