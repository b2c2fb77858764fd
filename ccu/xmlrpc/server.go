package xmlrpc

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io/ioutil"
	"net/http"
	"strconv"
	"sync"

	"github.com/mdzio/go-logging"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/charmap"
)

// max. size of a valid request, if not specified: 10 MB
const requestSizeLimit = 10 * 1024 * 1024

var svrLog = logging.Get("xmlrpc-server")

// A Method is dispatched from a Handler. The argument always contains an
// array with the call parameters.
type Method interface {
	Call(*Value) (*Value, error)
}

// MethodFunc adapts an ordinary function to a Method.
type MethodFunc func(*Value) (*Value, error)

// Call implements Method.
func (m MethodFunc) Call(args *Value) (*Value, error) {
	return m(args)
}

// Dispatcher routes a received call to a registered method.
type Dispatcher interface {
	Handle(name string, m Method)
	HandleFunc(name string, f func(*Value) (*Value, error))
	HandleUnknownFunc(f func(string, *Value) (*Value, error))
	Dispatch(methodName string, args *Value) (*Value, error)
}

// BasicDispatcher implements Dispatcher with a method table.
type BasicDispatcher struct {
	mutex   sync.RWMutex
	methods map[string]Method
	unknown func(string, *Value) (*Value, error)
}

// Handle registers a method.
func (d *BasicDispatcher) Handle(name string, m Method) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.methods == nil {
		d.methods = make(map[string]Method)
	}
	d.methods[name] = m
}

// HandleFunc registers an ordinary function as method.
func (d *BasicDispatcher) HandleFunc(name string, f func(*Value) (*Value, error)) {
	d.Handle(name, MethodFunc(f))
}

// HandleUnknownFunc registers a fallback for unknown method names.
func (d *BasicDispatcher) HandleUnknownFunc(f func(string, *Value) (*Value, error)) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.unknown = f
}

// AddSystemMethods registers system.multicall, system.listMethods and
// system.methodHelp, which the CCU interface processes expect.
func (d *BasicDispatcher) AddSystemMethods() {

	// attention: if one method fails, the complete multicall fails
	d.HandleFunc(
		"system.multicall",
		func(parameters *Value) (*Value, error) {
			q := Q(parameters)
			calls := q.Idx(0).Slice()
			if q.Err() != nil {
				return nil, fmt.Errorf("Invalid system.multicall: %v", q.Err())
			}
			svrLog.Debugf("Call of method system.multicall with %d elements received", len(calls))
			var results []*Value
			for _, call := range calls {
				methodName := call.Key("methodName").String()
				// the params member must be an array
				call.Key("params").Slice()
				if q.Err() != nil {
					return nil, fmt.Errorf("Invalid system.multicall: %v", q.Err())
				}
				res, err := d.Dispatch(methodName, call.Key("params").Value())
				if err != nil {
					return nil, fmt.Errorf("Method %s in system.multicall failed: %v", methodName, err)
				}
				results = append(results, res)
			}
			return &Value{Array: &Array{results}}, nil
		},
	)

	d.HandleFunc(
		"system.listMethods",
		func(*Value) (*Value, error) {
			svrLog.Debug("Call of method system.listMethods received")
			d.mutex.RLock()
			defer d.mutex.RUnlock()
			names := []*Value{}
			for name := range d.methods {
				names = append(names, &Value{FlatString: name})
			}
			return &Value{Array: &Array{names}}, nil
		},
	)

	// attention: always returns an empty string
	d.HandleFunc(
		"system.methodHelp",
		func(*Value) (*Value, error) {
			svrLog.Debug("Call of method system.methodHelp received")
			return &Value{}, nil
		},
	)
}

// Dispatch routes a method call to a registered method.
func (d *BasicDispatcher) Dispatch(methodName string, args *Value) (*Value, error) {
	d.mutex.RLock()
	method, ok := d.methods[methodName]
	unknown := d.unknown
	d.mutex.RUnlock()

	if !ok {
		if unknown == nil {
			unknown = func(name string, _ *Value) (*Value, error) {
				return nil, fmt.Errorf("Unknown method: %s", name)
			}
		}
		return unknown(methodName, args)
	}
	return method.Call(args)
}

// Handler is a http.Handler for XML-RPC requests. Received calls are routed
// through the embedded Dispatcher. Responses are sent ISO8859-1 encoded.
type Handler struct {
	RequestSizeLimit int64
	Dispatcher
}

func (h *Handler) ServeHTTP(resp http.ResponseWriter, req *http.Request) {
	svrLog.Tracef("Request received from %s, URI %s", req.RemoteAddr, req.RequestURI)

	limit := h.RequestSizeLimit
	if limit == 0 {
		limit = requestSizeLimit
	}
	reqBuf, err := ioutil.ReadAll(http.MaxBytesReader(resp, req.Body, limit))
	if err != nil {
		svrLog.Errorf("Reading of request failed from %s: %v", req.RemoteAddr, err)
		http.Error(resp, "Reading of request failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	if svrLog.TraceEnabled() {
		// attention: log message is probably ISO8859-1 encoded!
		svrLog.Tracef("Request XML: %s", string(reqBuf))
	}

	methodCall := &MethodCall{}
	dec := xml.NewDecoder(bytes.NewBuffer(reqBuf))
	dec.CharsetReader = charset.NewReaderLabel
	if err = dec.Decode(methodCall); err != nil {
		svrLog.Errorf("Decoding of request from %s failed: %v", req.RemoteAddr, err)
		http.Error(resp, "Decoding of request failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	// pass the parameters on as an array
	var data []*Value
	if methodCall.Params != nil {
		data = make([]*Value, len(methodCall.Params.Param))
		for i, p := range methodCall.Params.Param {
			data[i] = p.Value
		}
	}
	args := &Value{Array: &Array{Data: data}}

	res, err := h.Dispatch(methodCall.MethodName, args)
	var methodResponse *MethodResponse
	if err != nil {
		svrLog.Warningf("Sending error response to %s: %v", req.RemoteAddr, err)
		methodResponse = newFaultResponse(err)
	} else {
		methodResponse = newMethodResponse(res)
	}

	var respBuf bytes.Buffer
	respWriter := charmap.ISO8859_1.NewEncoder().Writer(&respBuf)
	respWriter.Write([]byte("<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>\n"))
	enc := xml.NewEncoder(respWriter)
	if err = enc.Encode(methodResponse); err != nil {
		svrLog.Errorf("Encoding of response for %s failed: %v", req.RemoteAddr, err)
		http.Error(resp, "Encoding of response failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if svrLog.TraceEnabled() {
		// attention: log message is ISO8859-1 encoded!
		svrLog.Tracef("Response XML: %s", respBuf.String())
	}

	resp.Header().Set("Content-Type", "text/xml")
	resp.Header().Set("Content-Length", strconv.Itoa(respBuf.Len()))
	if _, err = resp.Write(respBuf.Bytes()); err != nil {
		svrLog.Warningf("Sending of response for %s failed: %v", req.RemoteAddr, err)
	}
}
