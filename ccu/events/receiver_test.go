package events

import (
	"testing"

	"github.com/hausnet/go-hausnet/ccu"
	"github.com/hausnet/go-hausnet/ccu/xmlrpc"
)

type recordingReceiver struct {
	events     []string
	newDevs    []string
	deletedS   []string
	updated    []string
	lastValue  interface{}
	lastDescrs []*ccu.DeviceDescription
}

func (r *recordingReceiver) Event(itfID, address, valueKey string, value interface{}) error {
	r.events = append(r.events, itfID+"/"+address+"/"+valueKey)
	r.lastValue = value
	return nil
}

func (r *recordingReceiver) NewDevices(itfID string, descr []*ccu.DeviceDescription) error {
	r.newDevs = append(r.newDevs, itfID)
	r.lastDescrs = descr
	return nil
}

func (r *recordingReceiver) DeleteDevices(itfID string, addresses []string) error {
	r.deletedS = append(r.deletedS, addresses...)
	return nil
}

func (r *recordingReceiver) UpdateDevice(itfID, address string, hint int) error {
	r.updated = append(r.updated, address)
	return nil
}

func args(vs ...*xmlrpc.Value) *xmlrpc.Value {
	return &xmlrpc.Value{Array: &xmlrpc.Array{Data: vs}}
}

func TestReceiverEvent(t *testing.T) {
	r := &recordingReceiver{}
	d := &xmlrpc.BasicDispatcher{}
	AddReceiver(d, r)

	_, err := d.Dispatch("event", args(
		&xmlrpc.Value{FlatString: "BidCos-RF"},
		&xmlrpc.Value{FlatString: "NEQ0000001:1"},
		&xmlrpc.Value{FlatString: "STATE"},
		&xmlrpc.Value{Boolean: "1"},
	))
	if err != nil {
		t.Fatal(err)
	}
	if len(r.events) != 1 || r.events[0] != "BidCos-RF/NEQ0000001:1/STATE" {
		t.Errorf("unexpected events: %v", r.events)
	}
	if r.lastValue != true {
		t.Errorf("unexpected value: %v", r.lastValue)
	}

	// wrong argument count must be rejected
	_, err = d.Dispatch("event", args(
		&xmlrpc.Value{FlatString: "BidCos-RF"},
	))
	if err == nil {
		t.Error("expected error")
	}
}

func TestReceiverNewDevices(t *testing.T) {
	r := &recordingReceiver{}
	d := &xmlrpc.BasicDispatcher{}
	AddReceiver(d, r)

	descr := &xmlrpc.Value{
		Struct: &xmlrpc.Struct{
			Members: []*xmlrpc.Member{
				{Name: "TYPE", Value: &xmlrpc.Value{FlatString: "SWITCH"}},
				{Name: "ADDRESS", Value: &xmlrpc.Value{FlatString: "NEQ0000001:1"}},
				{Name: "PARENT", Value: &xmlrpc.Value{FlatString: "NEQ0000001"}},
				{Name: "VERSION", Value: &xmlrpc.Value{I4: "12"}},
			},
		},
	}
	_, err := d.Dispatch("newDevices", args(
		&xmlrpc.Value{FlatString: "BidCos-RF"},
		&xmlrpc.Value{Array: &xmlrpc.Array{Data: []*xmlrpc.Value{descr}}},
	))
	if err != nil {
		t.Fatal(err)
	}
	if len(r.lastDescrs) != 1 {
		t.Fatalf("unexpected descriptions: %v", r.lastDescrs)
	}
	dd := r.lastDescrs[0]
	if dd.Type != "SWITCH" || dd.Address != "NEQ0000001:1" || dd.Parent != "NEQ0000001" || dd.Version != 12 {
		t.Errorf("unexpected description: %+v", dd)
	}
}

func TestReceiverDeleteAndUpdate(t *testing.T) {
	r := &recordingReceiver{}
	d := &xmlrpc.BasicDispatcher{}
	AddReceiver(d, r)

	_, err := d.Dispatch("deleteDevices", args(
		&xmlrpc.Value{FlatString: "BidCos-RF"},
		&xmlrpc.Value{Array: &xmlrpc.Array{Data: []*xmlrpc.Value{
			{FlatString: "NEQ0000001:1"},
			{FlatString: "NEQ0000001"},
		}}},
	))
	if err != nil {
		t.Fatal(err)
	}
	if len(r.deletedS) != 2 {
		t.Errorf("unexpected deletions: %v", r.deletedS)
	}

	_, err = d.Dispatch("updateDevice", args(
		&xmlrpc.Value{FlatString: "BidCos-RF"},
		&xmlrpc.Value{FlatString: "NEQ0000001"},
		&xmlrpc.Value{I4: "0"},
	))
	if err != nil {
		t.Fatal(err)
	}
	if len(r.updated) != 1 || r.updated[0] != "NEQ0000001" {
		t.Errorf("unexpected updates: %v", r.updated)
	}
}

func TestReceiverListDevicesAnswersEmpty(t *testing.T) {
	r := &recordingReceiver{}
	d := &xmlrpc.BasicDispatcher{}
	AddReceiver(d, r)

	res, err := d.Dispatch("listDevices", args(&xmlrpc.Value{FlatString: "BidCos-RF"}))
	if err != nil {
		t.Fatal(err)
	}
	q := xmlrpc.Q(res)
	if l := q.Slice(); q.Err() != nil || len(l) != 0 {
		t.Errorf("expected empty device list: %v %v", q.Err(), l)
	}
}
