package ccu

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mdzio/go-lib/testutil"
)

const (
	// Test configuration (environment variables)
	// address of the test CCU, e.g. 192.168.0.10
	ccuAddress = "CCU_ADDRESS"
	// credentials for the JSON-RPC API
	ccuUsername = "CCU_USERNAME"
	ccuPassword = "CCU_PASSWORD"
)

type rpcRequest struct {
	Method string                 `json:"method"`
	Params map[string]interface{} `json:"params"`
}

func newFakeAPI(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/homematic.cgi" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("invalid request: %v", err)
		}
		resp := map[string]interface{}{"error": nil}
		switch req.Method {
		case "Session.login":
			if req.Params["username"] != "Admin" || req.Params["password"] != "secret" {
				resp["error"] = map[string]interface{}{
					"name": "JSONRPCError", "code": 400, "message": "login failed",
				}
			} else {
				resp["result"] = "SESSID42"
			}
		case "Session.logout":
			resp["result"] = true
		case "Echo.session":
			resp["result"] = req.Params["_session_id_"]
		case "ReGa.runScript":
			resp["result"] = req.Params["script"]
		default:
			resp["error"] = map[string]interface{}{
				"name": "JSONRPCError", "code": 501, "message": "unknown method",
			}
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestClientLoginCallLogout(t *testing.T) {
	srv := newFakeAPI(t)
	defer srv.Close()

	cln := &Client{Addr: srv.URL, Username: "Admin", Password: "secret"}
	if err := cln.Login(); err != nil {
		t.Fatal(err)
	}

	// session id must be attached to following calls
	res, err := cln.Call("Echo.session", nil)
	if err != nil {
		t.Fatal(err)
	}
	if res != "SESSID42" {
		t.Errorf("unexpected session id: %v", res)
	}

	out, err := cln.RunScript(`WriteLine("Hello");`)
	if err != nil {
		t.Fatal(err)
	}
	if out != `WriteLine("Hello");` {
		t.Errorf("unexpected script result: %s", out)
	}

	if err := cln.Logout(); err != nil {
		t.Fatal(err)
	}
	// a second logout does nothing
	if err := cln.Logout(); err != nil {
		t.Fatal(err)
	}
}

func TestClientLoginFailure(t *testing.T) {
	srv := newFakeAPI(t)
	defer srv.Close()

	cln := &Client{Addr: srv.URL, Username: "Admin", Password: "wrong"}
	err := cln.Login()
	if err == nil {
		t.Fatal("expected error")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("unexpected error type: %T", err)
	}
	if apiErr.Name != "JSONRPCError" || apiErr.Code != 400 || apiErr.Message != "login failed" {
		t.Errorf("unexpected fault: %v", apiErr)
	}
}

func TestClientUnknownMethod(t *testing.T) {
	srv := newFakeAPI(t)
	defer srv.Close()

	cln := &Client{Addr: srv.URL}
	_, err := cln.Call("No.method", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := err.(*APIError); !ok {
		t.Fatalf("unexpected error type: %T", err)
	}
}

func TestClientCCU(t *testing.T) {
	cln := &Client{
		Addr:     testutil.Config(t, ccuAddress),
		Username: testutil.Config(t, ccuUsername),
		Password: testutil.Config(t, ccuPassword),
	}
	if err := cln.Login(); err != nil {
		t.Fatal(err)
	}
	defer cln.Logout()

	out, err := cln.RunScript(`WriteLine("Hello");`)
	if err != nil {
		t.Fatal(err)
	}
	if out != "Hello\r\n" && out != "Hello\n" {
		t.Errorf("unexpected script output: %q", out)
	}
}
