package tr064

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const testDescription = `<?xml version="1.0"?>
<root xmlns="urn:dslforum-org:device-1-0">
<specVersion><major>1</major><minor>0</minor></specVersion>
<device>
<deviceType>urn:dslforum-org:device:InternetGatewayDevice:1</deviceType>
<friendlyName>Test Box</friendlyName>
<manufacturer>AVM</manufacturer>
<modelName>FRITZ!Box 7490</modelName>
<serialNumber>001122334455</serialNumber>
<X_AVM-DE_IPTVoptimize>0</X_AVM-DE_IPTVoptimize>
<serviceList>
<service>
<serviceType>urn:dslforum-org:service:Hosts:1</serviceType>
<controlURL>/upnp/control/hosts</controlURL>
<SCPDURL>/hostsSCPD.xml</SCPDURL>
<eventSubURL>/upnp/event/hosts</eventSubURL>
</service>
</serviceList>
<deviceList>
<device>
<deviceType>urn:dslforum-org:device:LANDevice:1</deviceType>
<serviceList>
<service>
<serviceType>urn:dslforum-org:service:LANEthernetInterfaceConfig:1</serviceType>
<controlURL>lanethernet</controlURL>
<SCPDURL>lanethSCPD.xml</SCPDURL>
</service>
</serviceList>
</device>
</deviceList>
</device>
</root>`

const testHostsSCPD = `<?xml version="1.0"?>
<scpd xmlns="urn:dslforum-org:service-1-0">
<specVersion><major>1</major><minor>0</minor></specVersion>
<actionList>
<action>
<name>GetHostNumberOfEntries</name>
<argumentList>
<argument>
<name>NewHostNumberOfEntries</name>
<direction>out</direction>
<relatedStateVariable>HostNumberOfEntries</relatedStateVariable>
</argument>
</argumentList>
</action>
</actionList>
<serviceStateTable>
<stateVariable sendEvents="no">
<name>HostNumberOfEntries</name>
<dataType>ui2</dataType>
<defaultValue>0</defaultValue>
</stateVariable>
</serviceStateTable>
</scpd>`

const testBrokenSCPD = `<?xml version="1.0"?>
<scpd xmlns="urn:dslforum-org:service-1-0">
<actionList>
<action>
<name>GetInfo</name>
<argumentList>
<argument>
<name>NewEnable</name>
<direction>out</direction>
<relatedStateVariable>Missing</relatedStateVariable>
</argument>
</argumentList>
</action>
</actionList>
<serviceStateTable>
</serviceStateTable>
</scpd>`

func newTestDevice(t *testing.T) (*Device, *httptest.Server) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tr64desc.xml":
			w.Write([]byte(testDescription))
		case "/hostsSCPD.xml":
			w.Write([]byte(testHostsSCPD))
		case "/lanethSCPD.xml":
			w.Write([]byte(testBrokenSCPD))
		default:
			http.NotFound(w, r)
		}
	}))
	d, err := DeviceFromURL(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	return d, srv
}

func TestLoadDescription(t *testing.T) {
	d, srv := newTestDevice(t)
	defer srv.Close()

	if err := d.LoadDescription(srv.URL+"/tr64desc.xml", time.Second); err != nil {
		t.Fatal(err)
	}

	info := d.Info()
	if info == nil || info.FriendlyName != "Test Box" || info.ModelName != "FRITZ!Box 7490" {
		t.Fatalf("unexpected device info: %+v", info)
	}
	if info.Unknown["X_AVM-DE_IPTVoptimize"] != "0" {
		t.Errorf("vendor tag missing: %v", info.Unknown)
	}

	// services of embedded devices must be collected too
	if len(d.Services()) != 2 {
		t.Fatalf("unexpected number of services: %d", len(d.Services()))
	}
	cu, err := d.ControlURL("urn:dslforum-org:service:Hosts:1", "")
	if err != nil || cu != "/upnp/control/hosts" {
		t.Errorf("unexpected control URL: %s %v", cu, err)
	}
	// relative URLs resolve against the description base path
	cu, err = d.ControlURL("urn:dslforum-org:service:LANEthernetInterfaceConfig:1", "")
	if err != nil || cu != "/lanethernet" {
		t.Errorf("unexpected control URL: %s %v", cu, err)
	}

	// with a loaded description an unknown service type is an error
	if _, err := d.ControlURL("urn:dslforum-org:service:Unknown:1", ""); err == nil {
		t.Error("expected error for unknown service type")
	}
}

func TestLoadDescriptionKeepsStateOnFailure(t *testing.T) {
	duplicate := strings.Replace(testDescription, "<deviceList>",
		`<serviceList><service>
<serviceType>urn:dslforum-org:service:Hosts:1</serviceType>
<controlURL>/upnp/control/hosts2</controlURL>
</service></serviceList><deviceList>`, 1)

	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()
	d, err := DeviceFromURL(srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	body = testDescription
	if err := d.LoadDescription(srv.URL+"/tr64desc.xml", time.Second); err != nil {
		t.Fatal(err)
	}

	// a duplicate service type must fail the reload
	body = duplicate
	err = d.LoadDescription(srv.URL+"/tr64desc.xml", time.Second)
	if err == nil {
		t.Fatal("expected error for duplicate service type")
	}
	var terr *Error
	if !errors.As(err, &terr) || terr.Kind != KindProtocol {
		t.Errorf("unexpected error: %v", err)
	}

	// the previous description must stay in place
	if len(d.Services()) != 2 {
		t.Errorf("previous description lost: %d services", len(d.Services()))
	}
}

func TestLoadSCPD(t *testing.T) {
	d, srv := newTestDevice(t)
	defer srv.Close()
	if err := d.LoadDescription(srv.URL+"/tr64desc.xml", time.Second); err != nil {
		t.Fatal(err)
	}

	if err := d.LoadSCPD("urn:dslforum-org:service:Hosts:1", time.Second); err != nil {
		t.Fatal(err)
	}
	actions := d.SCPD()["urn:dslforum-org:service:Hosts:1"]
	spec, ok := actions["GetHostNumberOfEntries"]
	if !ok {
		t.Fatal("action missing")
	}
	arg, ok := spec.Out["NewHostNumberOfEntries"]
	if !ok {
		t.Fatal("output argument missing")
	}
	if arg.DataType != "ui2" || !arg.HasDefault || arg.Default != "0" {
		t.Errorf("state variable not resolved: %+v", arg)
	}

	// an unresolvable state variable reference must fail deterministically
	err := d.LoadSCPD("urn:dslforum-org:service:LANEthernetInterfaceConfig:1", time.Second)
	if err == nil {
		t.Fatal("expected error for unresolvable state variable")
	}
	if !strings.Contains(err.Error(), "Missing") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadAllSCPDIgnoreFailures(t *testing.T) {
	d, srv := newTestDevice(t)
	defer srv.Close()
	if err := d.LoadDescription(srv.URL+"/tr64desc.xml", time.Second); err != nil {
		t.Fatal(err)
	}

	if err := d.LoadAllSCPD(time.Second, true); err != nil {
		t.Fatal(err)
	}
	if _, ok := d.SCPD()["urn:dslforum-org:service:Hosts:1"]; !ok {
		t.Error("valid SCPD not loaded")
	}
	svc := d.Services()["urn:dslforum-org:service:LANEthernetInterfaceConfig:1"]
	if svc.Err == "" {
		t.Error("failure not recorded on service definition")
	}
}

func TestExtractUPnPError(t *testing.T) {
	body := []byte(`<?xml version="1.0"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
<s:Body>
<s:Fault>
<faultcode>s:Client</faultcode>
<faultstring>UPnPError</faultstring>
<detail>
<UPnPError xmlns="urn:dslforum-org:control-1-0">
<errorCode>606</errorCode>
<errorDescription>Action not authorized</errorDescription>
</UPnPError>
</detail>
</s:Fault>
</s:Body>
</s:Envelope>`)

	ue := extractUPnPError(body)
	if ue == nil {
		t.Fatal("UPnP error not found")
	}
	if ue.Code != 606 || ue.Description != "Action not authorized" {
		t.Errorf("unexpected UPnP error: %+v", ue)
	}

	text := extractErrorText(body)
	if !strings.Contains(text, "UPnPError") || !strings.Contains(text, "Action not authorized") {
		t.Errorf("unexpected error text: %s", text)
	}
}
