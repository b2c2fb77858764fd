package tr064

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const hostsServiceType = "urn:dslforum-org:service:Hosts:1"

func TestActionResult(t *testing.T) {
	r := ActionResult{
		"NewSSID":           "home",
		"NewChannel":        "6",
		"NewEnable":         "1",
		"NewTotalBytesSent": "5178245659",
	}

	if v, err := r.String("NewSSID"); err != nil || v != "home" {
		t.Errorf("unexpected string result: %s %v", v, err)
	}
	if v, err := r.Int("NewChannel"); err != nil || v != 6 {
		t.Errorf("unexpected int result: %d %v", v, err)
	}
	if v, err := r.Bool("NewEnable"); err != nil || !v {
		t.Errorf("unexpected bool result: %t %v", v, err)
	}
	if v, err := r.Uint64("NewTotalBytesSent"); err != nil || v != 5178245659 {
		t.Errorf("unexpected uint64 result: %d %v", v, err)
	}
	if _, err := r.String("NewMissing"); err == nil {
		t.Error("expected error for missing key")
	}
	if _, err := r.Int("NewSSID"); err == nil {
		t.Error("expected error for non numeric value")
	}
}

func TestBuildEnvelope(t *testing.T) {
	body := buildEnvelope(hostsServiceType, "SetThing", map[string]string{
		"NewB": "x<y&z",
		"NewA": "1",
	})

	if !strings.Contains(body, `<u:SetThing xmlns="`+hostsServiceType+`">`) {
		t.Errorf("action element missing: %s", body)
	}
	// values are XML escaped
	if !strings.Contains(body, "<NewB>x&lt;y&amp;z</NewB>") {
		t.Errorf("argument not escaped: %s", body)
	}
	// arguments are written in sorted order
	if strings.Index(body, "<NewA>") > strings.Index(body, "<NewB>") {
		t.Errorf("arguments not sorted: %s", body)
	}
}

func TestExecute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/upnp/control/hosts" {
			http.NotFound(w, r)
			return
		}
		if sa := r.Header.Get("Soapaction"); sa != `"`+hostsServiceType+`#GetGenericHostEntry"` {
			t.Errorf("unexpected Soapaction header: %s", sa)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "<NewIndex>0</NewIndex>") {
			t.Errorf("input argument missing in request: %s", body)
		}
		w.Write([]byte(`<?xml version="1.0"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
<s:Body>
<u:GetGenericHostEntryResponse xmlns:u="` + hostsServiceType + `">
<NewMACAddress>38:C9:86:26:7E:38</NewMACAddress>
<NewActive>0</NewActive>
</u:GetGenericHostEntryResponse>
</s:Body>
</s:Envelope>`))
	}))
	defer srv.Close()
	d, err := DeviceFromURL(srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	res, err := d.Execute("/upnp/control/hosts", hostsServiceType, "GetGenericHostEntry",
		time.Second, map[string]string{"NewIndex": "0"})
	if err != nil {
		t.Fatal(err)
	}
	if mac, _ := res.String("NewMACAddress"); mac != "38:C9:86:26:7E:38" {
		t.Errorf("unexpected MAC address: %s", mac)
	}
	if active, _ := res.Bool("NewActive"); active {
		t.Error("unexpected active flag")
	}
}

func TestExecuteValidation(t *testing.T) {
	d := NewDevice("localhost", 49000, "http")
	if _, err := d.Execute("", "ns", "Action", time.Second, nil); err == nil {
		t.Error("expected error for missing URI")
	}
	if _, err := d.Execute("/ctl", "", "Action", time.Second, nil); err == nil {
		t.Error("expected error for missing namespace")
	}
	if _, err := d.Execute("/ctl", "ns", "", time.Second, nil); err == nil {
		t.Error("expected error for missing action")
	}
}

func TestExecuteUnexpectedResponseElement(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
<s:Body>
<u:OtherResponse xmlns:u="` + hostsServiceType + `"/>
</s:Body>
</s:Envelope>`))
	}))
	defer srv.Close()
	d, err := DeviceFromURL(srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	_, err = d.Execute("/ctl", hostsServiceType, "GetInfo", time.Second, nil)
	if err == nil {
		t.Fatal("expected error for mismatched response element")
	}
	var terr *Error
	if !errors.As(err, &terr) || terr.Kind != KindProtocol {
		t.Errorf("unexpected error: %v", err)
	}
	if !strings.Contains(err.Error(), "GetInfoResponse") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestExecuteUPnPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`<?xml version="1.0"?>
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
</s:Envelope>`))
	}))
	defer srv.Close()
	d, err := DeviceFromURL(srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	_, err = d.Execute("/ctl", hostsServiceType, "GetInfo", time.Second, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	var ue *UPnPError
	if !errors.As(err, &ue) {
		t.Fatalf("UPnP error not wrapped: %v", err)
	}
	if ue.Code != 606 || ue.Description != "Action not authorized" {
		t.Errorf("unexpected UPnP error: %+v", ue)
	}
}
