// Package events receives pushed notifications from the interface processes
// of a CCU. A callback server is registered with init on the interface
// process, which then delivers value events and device list changes over
// XML-RPC.
package events

import (
	"fmt"
	"strings"

	"github.com/hausnet/go-hausnet/ccu"
	"github.com/hausnet/go-hausnet/ccu/xmlrpc"
	"github.com/mdzio/go-logging"
)

var log = logging.Get("ccu-events")

// A Receiver handles notifications from an interface process of the CCU.
type Receiver interface {
	// A value has changed.
	Event(interfaceID, address, valueKey string, value interface{}) error

	// Devices or channels are added.
	NewDevices(interfaceID string, descriptions []*ccu.DeviceDescription) error

	// Devices or channels are deleted.
	DeleteDevices(interfaceID string, addresses []string) error

	// A device or channel has changed. hint=0: any change; hint=1: number of
	// links changed.
	UpdateDevice(interfaceID, address string, hint int) error
}

// AddReceiver registers the callback methods of an interface process on the
// dispatcher and forwards them to the receiver. After init, an interface
// process normally calls system.listMethods, listDevices, newDevices and
// then system.multicall with events. listDevices is not forwarded and always
// answers an empty device list, so the interface process pushes the complete
// device list through newDevices.
func AddReceiver(d xmlrpc.Dispatcher, r Receiver) {
	d.HandleFunc("event", func(args *xmlrpc.Value) (*xmlrpc.Value, error) {
		q := xmlrpc.Q(args)
		if len(q.Slice()) != 4 {
			return nil, fmt.Errorf("Expected 4 arguments for event method: %d", len(q.Slice()))
		}
		interfaceID := q.Idx(0).String()
		address := q.Idx(1).String()
		valueKey := q.Idx(2).String()
		value := q.Idx(3).Any()
		if q.Err() != nil {
			return nil, fmt.Errorf("Invalid argument for event method: %v", q.Err())
		}
		log.Debugf("Call of method event received: %s, %s, %s, %v", interfaceID, address, valueKey, value)
		if err := r.Event(interfaceID, address, valueKey, value); err != nil {
			return nil, err
		}
		return &xmlrpc.Value{}, nil
	})

	d.HandleFunc("listDevices", func(args *xmlrpc.Value) (*xmlrpc.Value, error) {
		q := xmlrpc.Q(args)
		if len(q.Slice()) != 1 {
			return nil, fmt.Errorf("Expected one argument for listDevices method: %d", len(q.Slice()))
		}
		interfaceID := q.Idx(0).String()
		if q.Err() != nil {
			return nil, fmt.Errorf("Invalid argument for listDevices method: %v", q.Err())
		}
		log.Debugf("Call of method listDevices received: %s", interfaceID)
		return &xmlrpc.Value{Array: &xmlrpc.Array{Data: []*xmlrpc.Value{}}}, nil
	})

	d.HandleFunc("newDevices", func(args *xmlrpc.Value) (*xmlrpc.Value, error) {
		q := xmlrpc.Q(args)
		if len(q.Slice()) != 2 {
			return nil, fmt.Errorf("Expected 2 arguments for newDevices method: %d", len(q.Slice()))
		}
		interfaceID := q.Idx(0).String()
		descrValues := q.Idx(1).Slice()
		if q.Err() != nil {
			return nil, fmt.Errorf("Invalid argument for newDevices method: %v", q.Err())
		}
		var descr []*ccu.DeviceDescription
		for _, dq := range descrValues {
			dd := &ccu.DeviceDescription{}
			dd.ReadFrom(dq)
			if dq.Err() != nil {
				return nil, fmt.Errorf("Invalid device description for newDevices method: %v", dq.Err())
			}
			descr = append(descr, dd)
		}
		if log.DebugEnabled() {
			var addrs []string
			for _, dd := range descr {
				addrs = append(addrs, dd.Address)
			}
			log.Debugf("Call of method newDevices received: %s, %s", interfaceID, strings.Join(addrs, " "))
		}
		if err := r.NewDevices(interfaceID, descr); err != nil {
			return nil, err
		}
		return &xmlrpc.Value{}, nil
	})

	d.HandleFunc("deleteDevices", func(args *xmlrpc.Value) (*xmlrpc.Value, error) {
		q := xmlrpc.Q(args)
		if len(q.Slice()) != 2 {
			return nil, fmt.Errorf("Expected 2 arguments for deleteDevices method: %d", len(q.Slice()))
		}
		interfaceID := q.Idx(0).String()
		addrValues := q.Idx(1).Slice()
		var addresses []string
		for _, av := range addrValues {
			addresses = append(addresses, av.String())
		}
		if q.Err() != nil {
			return nil, fmt.Errorf("Invalid argument(s) for deleteDevices method: %v", q.Err())
		}
		log.Debugf("Call of method deleteDevices received: %s, %s", interfaceID, strings.Join(addresses, " "))
		if err := r.DeleteDevices(interfaceID, addresses); err != nil {
			return nil, err
		}
		return &xmlrpc.Value{}, nil
	})

	d.HandleFunc("updateDevice", func(args *xmlrpc.Value) (*xmlrpc.Value, error) {
		q := xmlrpc.Q(args)
		if len(q.Slice()) != 3 {
			return nil, fmt.Errorf("Expected 3 arguments for updateDevice method: %d", len(q.Slice()))
		}
		interfaceID := q.Idx(0).String()
		address := q.Idx(1).String()
		hint := q.Idx(2).Int()
		if q.Err() != nil {
			return nil, fmt.Errorf("Invalid argument(s) for updateDevice method: %v", q.Err())
		}
		log.Debugf("Call of method updateDevice received: %s, %s, %d", interfaceID, address, hint)
		if err := r.UpdateDevice(interfaceID, address, hint); err != nil {
			return nil, err
		}
		return &xmlrpc.Value{}, nil
	})
}
