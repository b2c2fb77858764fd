package tr064

import (
	"encoding/xml"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ActionResult holds the flat result of an executed action: output argument
// name to string value. The typed accessors report the offending key on
// conversion failures.
type ActionResult map[string]string

// String returns a result value. A missing key is an error.
func (r ActionResult) String(key string) (string, error) {
	v, ok := r[key]
	if !ok {
		return "", errorf(KindProtocol, "Missing result argument: %s", key)
	}
	return v, nil
}

// Int returns a result value converted to int.
func (r ActionResult) Int(key string) (int, error) {
	v, err := r.String(key)
	if err != nil {
		return 0, err
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, errorf(KindProtocol, "Invalid int for result argument %s: %s", key, v)
	}
	return i, nil
}

// Uint64 returns a result value converted to uint64. Byte counters of the
// WAN statistics exceed the int32 range on long running devices.
func (r ActionResult) Uint64(key string) (uint64, error) {
	v, err := r.String(key)
	if err != nil {
		return 0, err
	}
	i, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, errorf(KindProtocol, "Invalid unsigned int for result argument %s: %s", key, v)
	}
	return i, nil
}

// Bool returns a result value converted to bool. Devices report booleans as
// "0" and "1".
func (r ActionResult) Bool(key string) (bool, error) {
	i, err := r.Int(key)
	if err != nil {
		return false, err
	}
	return i != 0, nil
}

// fixed SOAP 1.1 envelope, the action element is inserted into the body
const (
	soapPrologue = `<?xml version="1.0" encoding="UTF-8"?>
<s:Envelope
    s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/"
    xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"
    xmlns:xsd="http://www.w3.org/2001/XMLSchema"
    xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
    <s:Header/>
    <s:Body>
`
	soapEpilogue = `</s:Body>
</s:Envelope>`
)

// Execute invokes a SOAP action on a control endpoint of the device. The uri
// is the control URI of the service (e.g. "/upnp/control/hosts"), namespace
// the service type URN, and args the named input arguments. Argument values
// are XML escaped. The flattened output arguments are returned.
//
// One HTTP round trip is performed per call; nothing is retried.
func (d *Device) Execute(uri, namespace, action string, timeout time.Duration, args map[string]string) (ActionResult, error) {
	if uri == "" {
		return nil, errorf(KindValidation, "No action URI has been defined")
	}
	if namespace == "" {
		return nil, errorf(KindValidation, "No namespace has been defined")
	}
	if action == "" {
		return nil, errorf(KindValidation, "No action has been defined")
	}

	body := buildEnvelope(namespace, action, args)
	location := d.baseURL(uri)
	if log.TraceEnabled() {
		log.Tracef("Executing %s on %s: %s", action, location, body)
	}

	req, err := http.NewRequest(http.MethodPost, location, strings.NewReader(body))
	if err != nil {
		return nil, wrapf(KindValidation, err, "Invalid control URL: %s", location)
	}
	req.Header.Set("Content-Type", `text/xml; charset="UTF-8"`)
	req.Header.Set("Soapaction", `"`+namespace+"#"+action+`"`)

	resp, err := d.httpClient(timeout, true).Do(req)
	if err != nil {
		return nil, wrapf(KindTransport, err, "Executing %s on %s failed", action, location)
	}
	defer resp.Body.Close()

	respBody, err := d.readBody(resp)
	if err != nil {
		return nil, wrapf(KindTransport, err, "Reading of response for %s from %s failed", action, location)
	}
	if log.TraceEnabled() {
		log.Tracef("Response for %s: %s", action, string(respBody))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, httpError("Executing "+action+" on "+location, resp, respBody)
	}

	return parseActionResponse(action, respBody)
}

// buildEnvelope builds the request body. Arguments are written in sorted
// order, so request bodies are reproducible.
func buildEnvelope(namespace, action string, args map[string]string) string {
	var b strings.Builder
	b.WriteString(soapPrologue)
	b.WriteString("        <u:" + action + ` xmlns="` + namespace + "\">\n")

	keys := make([]string, 0, len(args))
	for key := range args {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		b.WriteString("            <" + key + ">")
		xml.EscapeText(&escWriter{&b}, []byte(args[key]))
		b.WriteString("</" + key + ">\n")
	}

	b.WriteString("        </u:" + action + ">\n")
	b.WriteString(soapEpilogue)
	return b.String()
}

// escWriter adapts strings.Builder for xml.EscapeText.
type escWriter struct {
	b *strings.Builder
}

func (w *escWriter) Write(p []byte) (int, error) {
	return w.b.Write(p)
}

// parseActionResponse unwraps envelope, body and action response element and
// flattens the output arguments.
func parseActionResponse(action string, body []byte) (ActionResult, error) {
	root, err := parseXML(body)
	if err != nil {
		return nil, wrapf(KindParse, err, "Parsing of response for %s failed", action)
	}
	if len(root.Children) == 0 || len(root.Children[0].Children) == 0 {
		return nil, errorf(KindProtocol, "Incomplete SOAP response for %s", action)
	}
	actionNode := &root.Children[0].Children[0]

	if actionNode.XMLName.Local != action+"Response" {
		return nil, errorf(KindProtocol, "Unexpected SOAP response element, expected %q, got %q",
			action+"Response", actionNode.XMLName.Local)
	}

	results := make(ActionResult)
	for i := range actionNode.Children {
		c := &actionNode.Children[i]
		results[c.XMLName.Local] = c.Text
	}
	return results, nil
}
