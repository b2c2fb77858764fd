package tr064

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestParseChallenge(t *testing.T) {
	params := parseChallenge(`realm="HTTPSDL", nonce="0596DC5B0FA38F47", qop="auth", algorithm=MD5`)
	if params["realm"] != "HTTPSDL" || params["nonce"] != "0596DC5B0FA38F47" {
		t.Errorf("unexpected challenge params: %v", params)
	}
	if params["qop"] != "auth" || params["algorithm"] != "MD5" {
		t.Errorf("unexpected challenge params: %v", params)
	}

	// commas inside quoted values must not split
	params = parseChallenge(`realm="a,b", nonce="x"`)
	if params["realm"] != "a,b" {
		t.Errorf("quoted comma mishandled: %v", params)
	}
}

func TestDigestAuthRoundTrip(t *testing.T) {
	const (
		username = "dslf-config"
		password = "secret123"
		realm    = "HTTPSDL"
		nonce    = "0596DC5B0FA38F47"
	)
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		auth := r.Header.Get("Authorization")
		if auth == "" {
			w.Header().Set("Www-Authenticate",
				`Digest realm="`+realm+`", nonce="`+nonce+`", qop="auth"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		params := parseChallenge(strings.TrimPrefix(auth, "Digest "))
		if params["username"] != username || params["realm"] != realm || params["nonce"] != nonce {
			t.Errorf("unexpected authorization params: %v", params)
		}
		ha1 := hashMD5(username + ":" + realm + ":" + password)
		ha2 := hashMD5(r.Method + ":" + params["uri"])
		expected := hashMD5(ha1 + ":" + nonce + ":00000001:" + params["cnonce"] + ":auth:" + ha2)
		if params["response"] != expected {
			t.Errorf("invalid digest response: got %s, want %s", params["response"], expected)
		}
		w.Write([]byte(`<?xml version="1.0"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
<s:Body>
<u:GetInfoResponse xmlns:u="` + hostsServiceType + `">
<NewEnable>1</NewEnable>
</u:GetInfoResponse>
</s:Body>
</s:Envelope>`))
	}))
	defer srv.Close()

	d, err := DeviceFromURL(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	d.Username = username
	d.Password = password

	res, err := d.Execute("/ctl", hostsServiceType, "GetInfo", time.Second, nil)
	if err != nil {
		t.Fatal(err)
	}
	if enabled, _ := res.Bool("NewEnable"); !enabled {
		t.Error("unexpected result")
	}
	// one challenge, one authorized retry
	if requests != 2 {
		t.Errorf("unexpected number of requests: %d", requests)
	}
}

func TestDigestAuthPassthrough(t *testing.T) {
	// basic auth challenges are not answered, the 401 surfaces to the caller
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Www-Authenticate", `Basic realm="box"`)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	d, err := DeviceFromURL(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	d.Username = "user"
	d.Password = "pass"

	_, err = d.Execute("/ctl", hostsServiceType, "GetInfo", time.Second, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("unexpected error: %v", err)
	}
}
