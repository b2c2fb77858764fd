// Package xmlrpc implements the XML-RPC subset spoken by the CCU interface
// processes: client calls, an HTTP handler for callbacks and a query helper
// for the received value trees.
package xmlrpc

import (
	"encoding/xml"
	"fmt"
	"strconv"
)

// MethodCall is the wire model of an XML-RPC call.
type MethodCall struct {
	MethodName string   `xml:"methodName"`
	Params     *Params  `xml:"params"`
	XMLName    xml.Name `xml:"methodCall"`
}

// MethodResponse is the wire model of an XML-RPC response.
type MethodResponse struct {
	Params  *Params  `xml:"params"`
	Fault   *Value   `xml:"fault>value"`
	XMLName xml.Name `xml:"methodResponse"`
}

// Params holds the parameters of a call or response.
type Params struct {
	Param []*Param `xml:"param"`
}

// Param is a single parameter.
type Param struct {
	Value *Value
}

// Value is an XML-RPC value. Only one field is expected to be set. The CCU
// sends strings both as <string> and as bare character data.
type Value struct {
	I4         string   `xml:"i4,omitempty"`
	Int        string   `xml:"int,omitempty"`
	Boolean    string   `xml:"boolean,omitempty"`
	String     string   `xml:"string,omitempty"`
	FlatString string   `xml:",chardata"`
	Double     string   `xml:"double,omitempty"`
	DateTime   string   `xml:"dateTime.iso8601,omitempty"`
	Base64     string   `xml:"base64,omitempty"`
	Struct     *Struct  `xml:"struct"`
	Array      *Array   `xml:"array"`
	XMLName    xml.Name `xml:"value"`
}

// Values is a parameter list.
type Values []*Value

// Struct is an XML-RPC struct.
type Struct struct {
	Members []*Member `xml:"member"`
}

// Member is a named struct member.
type Member struct {
	Name  string `xml:"name"`
	Value *Value
}

// Array is an XML-RPC array.
type Array struct {
	Data []*Value `xml:"data>value"`
}

// MethodError is a received XML-RPC fault.
type MethodError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *MethodError) Error() string {
	return fmt.Sprintf("RPC fault (code: %d, message: %s)", e.Code, e.Message)
}

// NewValue creates a value from a native data type. Supported types: bool,
// int, float64, string, []string, []interface{} and map[string]interface{}.
func NewValue(in interface{}) (*Value, error) {
	out := &Value{}
	switch val := in.(type) {
	case bool:
		if val {
			out.Boolean = "1"
		} else {
			out.Boolean = "0"
		}
	case int:
		out.I4 = strconv.Itoa(val)
	case float64:
		out.Double = strconv.FormatFloat(val, 'f', -1, 64)
	case string:
		out.FlatString = val
	case []string:
		var es []*Value
		for _, e := range val {
			es = append(es, &Value{FlatString: e})
		}
		out.Array = &Array{es}
	case []interface{}:
		var es []*Value
		for _, e := range val {
			cv, err := NewValue(e)
			if err != nil {
				return nil, err
			}
			es = append(es, cv)
		}
		out.Array = &Array{es}
	case map[string]interface{}:
		var ms []*Member
		for n, v := range val {
			cv, err := NewValue(v)
			if err != nil {
				return nil, err
			}
			ms = append(ms, &Member{Name: n, Value: cv})
		}
		out.Struct = &Struct{Members: ms}
	default:
		return nil, fmt.Errorf("Conversion of type %[1]T with value %[1]v is not supported", in)
	}
	return out, nil
}

// NewBool creates an XML-RPC value of type boolean.
func NewBool(b bool) *Value {
	if b {
		return &Value{Boolean: "1"}
	}
	return &Value{Boolean: "0"}
}

// NewInt creates an XML-RPC value of type i4.
func NewInt(i int) *Value {
	return &Value{I4: strconv.Itoa(i)}
}

// NewFloat64 creates an XML-RPC value of type double.
func NewFloat64(f float64) *Value {
	return &Value{Double: strconv.FormatFloat(f, 'f', -1, 64)}
}

// NewString creates an XML-RPC value of type string.
func NewString(s string) *Value {
	return &Value{FlatString: s}
}

// NewStrings creates an XML-RPC array of strings.
func NewStrings(ss []string) *Value {
	es := make([]*Value, len(ss))
	for i, s := range ss {
		es[i] = &Value{FlatString: s}
	}
	return &Value{Array: &Array{Data: es}}
}

func newFaultResponse(err error) *MethodResponse {
	code := -1
	message := err.Error()
	if me, ok := err.(*MethodError); ok {
		code = me.Code
		message = me.Message
	}
	return &MethodResponse{
		Fault: &Value{
			Struct: &Struct{
				[]*Member{
					{"faultCode", &Value{I4: strconv.Itoa(code)}},
					{"faultString", &Value{FlatString: message}},
				},
			},
		},
	}
}

func newMethodResponse(value *Value) *MethodResponse {
	return &MethodResponse{
		Params: &Params{
			[]*Param{{value}},
		},
	}
}
