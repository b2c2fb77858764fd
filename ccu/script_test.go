package ccu

import (
	"testing"

	"github.com/mdzio/go-lib/testutil"
)

func TestScriptClientExecute(t *testing.T) {
	cln := &ScriptClient{Addr: testutil.Config(t, ccuAddress)}

	res, err := cln.Execute(`WriteLine("Hello");`)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 1 || res[0] != "Hello" {
		t.Error("unexpected result: ", res)
	}
}

func TestScriptClientDevicesAndChannels(t *testing.T) {
	cln := &ScriptClient{Addr: testutil.Config(t, ccuAddress)}

	ds, err := cln.Devices()
	if err != nil {
		t.Fatal(err)
	}
	if len(ds) < 2 {
		t.Fatal("expected at least 2 devices")
	}

	cs, err := cln.Channels(ds[0].ISEID)
	if err != nil {
		t.Fatal(err)
	}
	if len(cs) == 0 {
		t.Fatal("expected at least 1 channel")
	}

	ps, err := cln.Params(cs[0].ISEID)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range ps {
		if p.ID == "" || p.Type == "" {
			t.Errorf("incomplete datapoint: %+v", p)
		}
	}
}

func TestScriptClientSystemVariables(t *testing.T) {
	cln := &ScriptClient{Addr: testutil.Config(t, ccuAddress)}

	svs, err := cln.SystemVariables()
	if err != nil {
		t.Fatal(err)
	}
	if len(svs) == 0 {
		t.Fatal("expected at least 1 system variable")
	}
	vs, err := cln.ReadSysVars(svs)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range vs {
		if v.Err != nil {
			t.Errorf("reading sysvar %s failed: %v", svs[i].Name, v.Err)
		}
	}
}

func TestScriptClientReadDeviceValue(t *testing.T) {
	cln := &ScriptClient{Addr: testutil.Config(t, ccuAddress)}

	res, err := cln.ReadValues([]ValObjDef{{"BidCos-RF.BidCoS-RF:1.PRESS_SHORT", "ACTION"}})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := res[0].Value.(bool); !ok {
		t.Fatal("invalid type")
	}
	if res[0].Timestamp.IsZero() {
		t.Fatal("invalid timestamp")
	}
}
