// Package ccu provides access to a HomeMatic CCU: the JSON-RPC API, remote HM
// script execution and a cached device model that is kept current by pushed
// events.
package ccu

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	"github.com/mdzio/go-logging"
)

// max. size of a valid JSON-RPC response
const jsonRespLimit = 10 * 1024 * 1024

var apiLog = logging.Get("ccu-api")

// APIError is an error answered by the JSON-RPC API of the CCU.
type APIError struct {
	Name    string `json:"name"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("CCU API error %s (code %d): %s", e.Name, e.Code, e.Message)
}

// Client accesses the JSON-RPC API of a CCU. All methods of the API can be
// called through Call. Login opens a session; the session id is then attached
// to all following calls until Logout.
type Client struct {
	// IP address or network name of the CCU
	Addr     string
	Username string
	Password string

	// Timeout for a single call, 0 means no timeout.
	Timeout time.Duration

	sessionID string
}

func (c *Client) url() string {
	addr := c.Addr
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return addr + "/api/homematic.cgi"
}

// Call executes a method of the JSON-RPC API. The session id of a previous
// Login is automatically added to the parameters. params may be nil.
func (c *Client) Call(method string, params map[string]interface{}) (interface{}, error) {
	if params == nil {
		params = make(map[string]interface{})
	}
	if c.sessionID != "" {
		if _, ok := params["_session_id_"]; !ok {
			params["_session_id_"] = c.sessionID
		}
	}
	apiLog.Debugf("Calling method %s on %s", method, c.Addr)

	// encode request
	reqBody, err := json.Marshal(map[string]interface{}{
		"method": method,
		"params": params,
	})
	if err != nil {
		return nil, fmt.Errorf("Encoding of request for method %s failed: %v", method, err)
	}
	if apiLog.TraceEnabled() {
		apiLog.Trace("Request: ", string(reqBody))
	}

	// http post
	httpClient := &http.Client{Timeout: c.Timeout}
	httpResp, err := httpClient.Post(c.url(), "application/json", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed on %s: %v", c.url(), err)
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP request failed on %s with code: %s", c.url(), httpResp.Status)
	}

	// decode response
	respBody, err := ioutil.ReadAll(io.LimitReader(httpResp.Body, jsonRespLimit))
	if err != nil {
		return nil, fmt.Errorf("Reading of response for method %s failed: %v", method, err)
	}
	if apiLog.TraceEnabled() {
		apiLog.Trace("Response: ", string(respBody))
	}
	var msg struct {
		Error  *APIError   `json:"error"`
		Result interface{} `json:"result"`
	}
	if err := json.Unmarshal(respBody, &msg); err != nil {
		return nil, fmt.Errorf("Decoding of response for method %s failed: %v", method, err)
	}
	if msg.Error != nil {
		return nil, msg.Error
	}
	return msg.Result, nil
}

// Login opens a session on the CCU.
func (c *Client) Login() error {
	if c.sessionID != "" {
		return errors.New("Already logged in")
	}
	res, err := c.Call("Session.login", map[string]interface{}{
		"username": c.Username,
		"password": c.Password,
	})
	if err != nil {
		return err
	}
	id, ok := res.(string)
	if !ok || id == "" {
		return errors.New("Login failed: Got no session id")
	}
	apiLog.Debug("Session opened on ", c.Addr)
	c.sessionID = id
	return nil
}

// Logout closes the session. Without a previous Login, Logout does nothing.
func (c *Client) Logout() error {
	if c.sessionID == "" {
		return nil
	}
	_, err := c.Call("Session.logout", nil)
	// the session is gone on the CCU even if the call failed
	c.sessionID = ""
	if err != nil {
		return err
	}
	apiLog.Debug("Session closed on ", c.Addr)
	return nil
}

// RunScript executes a HM script through the JSON-RPC API and returns its
// output.
func (c *Client) RunScript(script string) (string, error) {
	res, err := c.Call("ReGa.runScript", map[string]interface{}{
		"script": script,
	})
	if err != nil {
		return "", err
	}
	out, ok := res.(string)
	if !ok {
		return "", fmt.Errorf("Unexpected result type for ReGa.runScript: %T", res)
	}
	return out, nil
}
