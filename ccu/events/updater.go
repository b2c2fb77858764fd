package events

import (
	"github.com/hausnet/go-hausnet/ccu"
)

// CacheUpdater is a Receiver that applies pushed notifications to a device
// set: value events update the parameter caches, newDevices and
// deleteDevices reconcile the device list. A Registration can be notified
// through Notify, so that arriving callbacks reset its watchdog.
type CacheUpdater struct {
	Devices *ccu.DeviceSet

	// optional, called on every received callback
	Notify func()
}

func (u *CacheUpdater) notify() {
	if u.Notify != nil {
		u.Notify()
	}
}

// Event updates the cached value of the addressed datapoint. PONG events for
// the virtual device CENTRAL only feed the watchdog.
func (u *CacheUpdater) Event(interfaceID, address, valueKey string, value interface{}) error {
	u.notify()
	if address == "CENTRAL" && valueKey == "PONG" {
		return nil
	}
	if err := u.Devices.ApplyEvent(address, valueKey, value); err != nil {
		log.Debug("Event not applied: ", err)
	}
	return nil
}

// NewDevices adds the pushed devices and channels to the device set.
func (u *CacheUpdater) NewDevices(interfaceID string, descriptions []*ccu.DeviceDescription) error {
	u.notify()
	u.Devices.AddDevices(descriptions)
	return nil
}

// DeleteDevices removes the addressed devices and channels from the device
// set.
func (u *CacheUpdater) DeleteDevices(interfaceID string, addresses []string) error {
	u.notify()
	u.Devices.RemoveDevices(addresses)
	return nil
}

// UpdateDevice only feeds the watchdog. The changed metadata arrives with the
// next refresh.
func (u *CacheUpdater) UpdateDevice(interfaceID, address string, hint int) error {
	u.notify()
	return nil
}
