package xmlrpc

import (
	"bytes"
	"errors"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestHandler() (*BasicDispatcher, *Handler) {
	d := &BasicDispatcher{}
	d.AddSystemMethods()
	d.HandleFunc("echo", func(args *Value) (*Value, error) {
		q := Q(args)
		if len(q.Slice()) != 1 {
			return nil, errors.New("invalid len")
		}
		return q.Idx(0).Value(), nil
	})
	return d, &Handler{Dispatcher: d}
}

func TestServerBadRequest(t *testing.T) {
	_, h := newTestHandler()
	srv := httptest.NewServer(h)
	defer srv.Close()

	buf := bytes.NewBufferString("invalid request")
	resp, err := http.Post(srv.URL, "text/plain", buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	ioutil.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unexpected status code: %d", resp.StatusCode)
	}
}

func TestServerUnknownMethod(t *testing.T) {
	_, h := newTestHandler()
	srv := httptest.NewServer(h)
	defer srv.Close()

	cln := Client{Addr: srv.URL}

	res, err := cln.Call("unknownMethod", Values{})
	if res != nil {
		t.Errorf("unexpected result: %v", res)
	}
	if fault, ok := err.(*MethodError); ok {
		if fault.Code != -1 {
			t.Errorf("unexpected fault code: %d", fault.Code)
		}
		if fault.Message != "Unknown method: unknownMethod" {
			t.Errorf("unexpected fault message: %s", fault.Message)
		}
	} else {
		t.Errorf("invalid error type: %T", err)
	}
}

func TestServerRoundTrip(t *testing.T) {
	_, h := newTestHandler()
	srv := httptest.NewServer(h)
	defer srv.Close()

	cln := Client{Addr: srv.URL}

	resp, err := cln.Call("echo", Values{{Int: "123"}})
	if err != nil {
		t.Fatal(err)
	}
	e := Q(resp)
	i := e.Int()
	if e.Err() != nil || i != 123 {
		t.Errorf("unexpected result: %v %d", e.Err(), i)
	}

	resp, err = cln.Call("echo", Values{
		{Int: "123"},
		{String: "force error"},
	})
	if resp != nil {
		t.Errorf("unexpected response: %v", resp)
	}
	if fault, ok := err.(*MethodError); ok {
		if fault.Code != -1 || fault.Message != "invalid len" {
			t.Errorf("unexpected error: %v", fault)
		}
	} else {
		t.Errorf("unexpected error type: %T", err)
	}

	resp, err = cln.Call("system.listMethods", Values{})
	if err != nil {
		t.Fatal(err)
	}
	e = Q(resp)
	arr := e.Slice()
	if e.Err() != nil {
		t.Fatal(e.Err())
	}
	methods := make(map[string]bool)
	for _, v := range arr {
		methods[v.String()] = true
	}
	if !(methods["system.multicall"] && methods["system.listMethods"] && methods["echo"]) {
		t.Error("method missing")
	}
}

func TestServerMulticall(t *testing.T) {
	_, h := newTestHandler()
	srv := httptest.NewServer(h)
	defer srv.Close()
	cln := Client{Addr: srv.URL}

	call := func(param *Value) *Value {
		return &Value{
			Struct: &Struct{
				[]*Member{
					{"methodName", &Value{FlatString: "echo"}},
					{"params", &Value{Array: &Array{[]*Value{param}}}},
				},
			},
		}
	}
	resp, err := cln.Call("system.multicall", Values{
		{
			Array: &Array{
				[]*Value{
					call(&Value{FlatString: "Hello world!"}),
					call(&Value{I4: "123"}),
				},
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	e := Q(resp)
	a := e.Slice()
	if e.Err() != nil {
		t.Fatal(e.Err())
	}
	if len(a) != 2 {
		t.Fatal("invalid number of results")
	}
	if a[0].String() != "Hello world!" {
		t.Error("invalid first result")
	}
	if a[1].Int() != 123 {
		t.Error("invalid second result")
	}
}

func TestServerWithUnknownHandler(t *testing.T) {
	d := &BasicDispatcher{}
	d.HandleUnknownFunc(func(name string, _ *Value) (*Value, error) {
		return NewString("Method " + name + " called"), nil
	})
	srv := httptest.NewServer(&Handler{Dispatcher: d})
	defer srv.Close()

	cln := Client{Addr: srv.URL}

	res, err := cln.Call("42", Values{})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if res == nil {
		t.Fatal("missing result")
	}
	e := Q(res)
	if str := e.String(); e.Err() != nil || str != "Method 42 called" {
		t.Fatalf("unexpected result: %+v", res)
	}
}
