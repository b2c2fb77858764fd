package xmlrpc

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"

	"github.com/mdzio/go-logging"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/charmap"
)

// max. size of a valid response, if not specified: 10 MB
const responseSizeLimit = 10 * 1024 * 1024

var clnLog = logging.Get("xmlrpc-client")

// Caller executes XML-RPC calls.
type Caller interface {
	Call(method string, params Values) (*Value, error)
}

// Client accesses an XML-RPC server, e.g. a CCU interface process. Requests
// are sent ISO8859-1 encoded, the CCU does not understand UTF-8.
type Client struct {
	Addr              string
	ResponseSizeLimit int64
}

// Call executes a remote procedure call. Call implements Caller.
func (c *Client) Call(method string, params Values) (*Value, error) {
	clnLog.Tracef("Calling method %s on %s", method, c.Addr)

	ps := make([]*Param, len(params))
	for i, p := range params {
		ps[i] = &Param{p}
	}
	methodCall := &MethodCall{
		MethodName: method,
		Params:     &Params{ps},
	}

	var reqBuf bytes.Buffer
	reqWriter := charmap.ISO8859_1.NewEncoder().Writer(&reqBuf)
	reqWriter.Write([]byte("<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>\n"))
	enc := xml.NewEncoder(reqWriter)
	if err := enc.Encode(methodCall); err != nil {
		return nil, fmt.Errorf("Encoding of request for %s failed: %v", c.Addr, err)
	}
	if clnLog.TraceEnabled() {
		// attention: log message is ISO8859-1 encoded!
		clnLog.Tracef("Request XML: %s", reqBuf.String())
	}

	httpResp, err := http.Post(c.Addr, "text/xml", bytes.NewReader(reqBuf.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed on %s: %v", c.Addr, err)
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 299 {
		return nil, fmt.Errorf("HTTP request failed on %s with code: %s", c.Addr, httpResp.Status)
	}

	limit := c.ResponseSizeLimit
	if limit == 0 {
		limit = responseSizeLimit
	}
	respBuf, err := ioutil.ReadAll(io.LimitReader(httpResp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("Reading of response failed from %s: %v", c.Addr, err)
	}
	if clnLog.TraceEnabled() {
		// attention: log message is probably ISO8859-1 encoded!
		clnLog.Tracef("Response XML: %s", string(respBuf))
	}

	resp := &MethodResponse{}
	dec := xml.NewDecoder(bytes.NewBuffer(respBuf))
	dec.CharsetReader = charset.NewReaderLabel
	if err = dec.Decode(resp); err != nil {
		return nil, fmt.Errorf("Decoding of response from %s failed: %v", c.Addr, err)
	}

	if resp.Fault != nil {
		f := Q(resp.Fault)
		faultCode := f.Key("faultCode").Int()
		faultString := f.Key("faultString").String()
		if f.Err() != nil {
			return nil, fmt.Errorf("Invalid XML-RPC fault response: %v", f.Err())
		}
		return nil, &MethodError{faultCode, faultString}
	}

	if resp.Params == nil || len(resp.Params.Param) != 1 {
		return nil, fmt.Errorf("Invalid or no parameters in response from %s", c.Addr)
	}
	return resp.Params.Param[0].Value, nil
}
