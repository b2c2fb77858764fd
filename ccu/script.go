package ccu

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/mdzio/go-logging"
	"golang.org/x/text/encoding/charmap"
)

// max. size of a valid script response, if not specified: 10 MB
// (max. size of a single response line is always 64 KB)
const scriptRespLimit = 10 * 1024 * 1024

const enumDevicesScript = `! Enumerating devices
object eobj = dom.GetObject(ID_DEVICES);
if (eobj) {
	WriteLine("OK");
	string id;
	foreach (id, eobj.EnumIDs()) {
		object obj = dom.GetObject(id);
		WriteLine(obj.ID() # "\t" # obj.Name() # "\t" # obj.Address() # "\t" # obj.HssType());
	}
} else {
	WriteLine("Object not found");
}`

const enumChannelsScript = `! Enumerating channels
object dobj = dom.GetObject({{ . }});
if (dobj && dobj.Type()==OT_DEVICE) {
	WriteLine("OK");
	string cid; foreach(cid, dobj.Channels()) {
		var cobj=dom.GetObject(cid);
		WriteLine(cobj.ID() # "\t" # cobj.Name() # "\t" # cobj.Address() # "\t" # cobj.HssType());
	}
} else {
	WriteLine("Object not found or has wrong type");
}`

const enumParamsScript = `! Enumerating datapoints
object cobj = dom.GetObject({{ . }});
if (cobj && cobj.Type()==OT_CHANNEL) {
	WriteLine("OK");
	string did; foreach(did, cobj.DPs().EnumIDs()) {
		var dp=dom.GetObject(did);
		var vt=dp.ValueType(); var st=dp.ValueSubType();
		var outvt="";
		if ((vt==ivtBinary) && (st==istBool)) { outvt="BOOL"; }
		if ((vt==ivtBinary) && (st==istAlarm)) { outvt="ALARM"; }
		if ((vt==ivtBinary) && (st==istAction)) { outvt="ACTION"; }
		if ((vt==ivtInteger) && (st==istEnum)) { outvt="ENUM"; }
		if ((vt==ivtInteger) && (st==istGeneric)) { outvt="INTEGER"; }
		if ((vt==ivtFloat) && (st==istGeneric)) { outvt="FLOAT"; }
		if ((vt==ivtString) && (st==istChar8859)) { outvt="STRING"; }
		if (outvt!="") { WriteLine(dp.ID() # "\t" # dp.HssType() # "\t" # outvt # "\t" #
			dp.ValueUnit() # "\t" # dp.Operations() # "\t" # dp.ValueMin() # "\t" # dp.ValueMax()); }
	}
} else {
	WriteLine("Object not found or has wrong type");
}`

const enumSysVarsScript = `! Enumerating system variables
string id; foreach(id, dom.GetObject(ID_SYSTEM_VARIABLES).EnumIDs()) {
	var sv=dom.GetObject(id);
	var vt=sv.ValueType(); var st=sv.ValueSubType();
	var outvt="";
	if ((vt==ivtBinary) && (st==istBool)) { outvt="BOOL"; }
	if ((vt==ivtBinary) && (st==istAlarm)) { outvt="ALARM"; }
	if ((vt==ivtInteger) && (st==istEnum)) { outvt="ENUM"; }
	if ((vt==ivtFloat) && (st==istGeneric)) { outvt="FLOAT"; }
	if ((vt==ivtString) && (st==istChar8859)) { outvt="STRING"; }
	var dpinfo=sv.DPInfo().Replace("\t", " ").Replace("\r\n", " ").Replace("\r", " ").Replace("\n", " ");
	if (outvt!="") { WriteLine(id # "\t" # sv.Name() # "\t" # dpinfo # "\t" # sv.ValueMax() # "\t" #
		sv.ValueUnit() # "\t" # sv.ValueMin() # "\t" # sv.Operations() # "\t" # outvt # "\t" #
		sv.ValueName0() # "\t" # sv.ValueName1() # "\t" # sv.ValueList()); }
}`

// readValuesScript expects as dot parameter a tab separated string of object
// IDs. Special characters in string data points are returned percent encoded.
const readValuesScript = `! Reading multiple values
string id; foreach(id,"{{ . }}") {
	var dp=dom.GetObject(id);
	if (dp) {
	  if (dp.IsTypeOf(OT_DP) || dp.IsTypeOf(OT_VARDP) || dp.IsTypeOf(OT_ALARMDP)) {
		WriteLine("OK");
		WriteLine(dp.Timestamp().ToInteger());
		WriteLine(dp.Value().ToString().Replace("%", "%25").Replace("\n", "%0A"));
	  } else {
		WriteLine("Object has wrong type");
	  }
	} else {
	  WriteLine("Not found");
	}
}`

const writeValueScript = `! Writing value
var sv=dom.GetObject({{ .ISEID }});
if (sv) {
	if (sv.IsTypeOf(OT_DP) || sv.IsTypeOf(OT_VARDP) || sv.IsTypeOf(OT_ALARMDP)) {
		sv.State({{ .Value }});
		WriteLine("OK");
	} else {
		WriteLine("Object has wrong type");
	}
} else {
	WriteLine("Not found");
}`

var (
	scriptLog = logging.Get("script-client")

	enumDevicesTempl  = template.Must(template.New("enumDevices").Parse(enumDevicesScript))
	enumChannelsTempl = template.Must(template.New("enumChannels").Parse(enumChannelsScript))
	enumParamsTempl   = template.Must(template.New("enumParams").Parse(enumParamsScript))
	enumSysVarsTempl  = template.Must(template.New("enumSysVars").Parse(enumSysVarsScript))
	readValuesTempl   = template.Must(template.New("readValues").Parse(readValuesScript))
	writeValueTempl   = template.Must(template.New("writeValue").Parse(writeValueScript))
)

// DeviceDef describes a device in the ReGaHss.
type DeviceDef struct {
	ISEID       string
	DisplayName string
	Address     string
	Type        string
}

// ChannelDef describes a channel of a device.
type ChannelDef struct {
	ISEID       string
	DisplayName string
	Address     string
	Type        string
}

// ParamDef describes a datapoint of a channel.
type ParamDef struct {
	ISEID string
	// datapoint name, e.g. STATE
	ID string
	// BOOL, ALARM, ACTION, INTEGER, ENUM, FLOAT or STRING
	Type       string
	Unit       string
	Operations int
	// only for types FLOAT and INTEGER
	Minimum *float64
	Maximum *float64
}

// SysVarDef contains meta data about a ReGaHss system variable.
type SysVarDef struct {
	ISEID       string
	Name        string
	Description string
	Unit        string
	Operations  int
	// BOOL, ALARM, ENUM, FLOAT or STRING
	Type string

	// only for type FLOAT
	Minimum *float64
	Maximum *float64

	// only for types BOOL and ALARM
	ValueName0 *string
	ValueName1 *string

	// only for type ENUM
	ValueList *[]string
}

// SysVarDefs is a by name sorted list of system variable definitions.
type SysVarDefs []*SysVarDef

// Find looks up a system variable by name. If not found, nil is returned.
func (s SysVarDefs) Find(name string) *SysVarDef {
	idx := sort.Search(len(s), func(i int) bool { return s[i].Name >= name })
	if idx == len(s) || s[idx].Name != name {
		return nil
	}
	return s[idx]
}

// ScriptClient executes HM scripts remotely on the CCU.
type ScriptClient struct {
	// IP address or network name of the CCU
	Addr string

	// Limits the size of a valid response
	RespLimit int64
}

// Execute remotely executes a HM script on the CCU. The response is returned
// line by line with the trailing status line removed.
func (sc *ScriptClient) Execute(script string) ([]string, error) {
	scriptLog.Trace("Executing HM script: ", script)

	// encode request body with ISO8859-1
	var reqBuf bytes.Buffer
	reqWriter := charmap.ISO8859_1.NewEncoder().Writer(&reqBuf)
	reqWriter.Write([]byte(script))

	// http post
	addr := "http://" + sc.Addr + ":8181/tclrega.exe"
	httpResp, err := http.Post(addr, "", bytes.NewReader(reqBuf.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed on %s: %v", addr, err)
	}
	defer httpResp.Body.Close()

	// check status
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 299 {
		return nil, fmt.Errorf("HTTP request failed on %s with code: %s", addr, httpResp.Status)
	}

	// limit response size
	limit := sc.RespLimit
	if limit == 0 {
		limit = scriptRespLimit
	}
	limitReader := io.LimitReader(httpResp.Body, limit)

	// decode response body with ISO8859-1
	decReader := charmap.ISO8859_1.NewDecoder().Reader(limitReader)

	// read response and split lines
	scn := bufio.NewScanner(decReader)
	var resp []string
	for scn.Scan() {
		l := scn.Text()
		if !strings.HasPrefix(l, "<xml><exec>") {
			resp = append(resp, l)
		}
	}
	if scn.Err() != nil {
		return nil, fmt.Errorf("Parsing of response failed from %s: %v", addr, scn.Err())
	}
	if scriptLog.TraceEnabled() {
		scriptLog.Trace("HM script response: ", strings.Join(resp, "\\n"))
	}
	return resp, nil
}

// ExecuteTempl executes a HM script template with the specified data remotely
// on the CCU.
func (sc *ScriptClient) ExecuteTempl(templ *template.Template, data interface{}) ([]string, error) {
	// fill template
	var sb strings.Builder
	err := templ.Execute(&sb, data)
	if err != nil {
		return nil, fmt.Errorf("Rendering of HM template with data %v failed: %v", data, err)
	}
	return sc.Execute(sb.String())
}

// Devices retrieves all devices from the CCU.
func (sc *ScriptClient) Devices() ([]DeviceDef, error) {
	scriptLog.Debug("Retrieving devices")
	resp, err := sc.ExecuteTempl(enumDevicesTempl, nil)
	if err != nil {
		return nil, err
	}
	if len(resp) < 1 {
		return nil, errors.New("Retrieving devices: Expected at least one response line")
	}
	if resp[0] != "OK" {
		return nil, fmt.Errorf("Retrieving devices: HM script signals error: %s", resp[0])
	}
	var ds []DeviceDef
	for _, l := range resp[1:] {
		fs := strings.Split(l, "\t")
		if len(fs) != 4 {
			return nil, fmt.Errorf("Retrieving devices: Invalid response line: %s", l)
		}
		ds = append(ds, DeviceDef{ISEID: fs[0], DisplayName: fs[1], Address: fs[2], Type: fs[3]})
	}
	return ds, nil
}

// Channels retrieves the channels of a device from the CCU.
func (sc *ScriptClient) Channels(iseID string) ([]ChannelDef, error) {
	scriptLog.Debugf("Retrieving channels of device: %s", iseID)
	resp, err := sc.ExecuteTempl(enumChannelsTempl, iseID)
	if err != nil {
		return nil, err
	}
	if len(resp) < 1 {
		return nil, fmt.Errorf("Retrieving channels of device %s: Expected at least one response line", iseID)
	}
	if resp[0] != "OK" {
		return nil, fmt.Errorf("Retrieving channels of device %s: HM script signals error: %s", iseID, resp[0])
	}
	var cs []ChannelDef
	for _, l := range resp[1:] {
		fs := strings.Split(l, "\t")
		if len(fs) != 4 {
			return nil, fmt.Errorf("Retrieving channels of device %s: Invalid response line: %s", iseID, l)
		}
		cs = append(cs, ChannelDef{ISEID: fs[0], DisplayName: fs[1], Address: fs[2], Type: fs[3]})
	}
	return cs, nil
}

// Params retrieves the datapoints of a channel from the CCU. Datapoints with
// an unsupported data type are left out.
func (sc *ScriptClient) Params(iseID string) ([]ParamDef, error) {
	scriptLog.Debugf("Retrieving datapoints of channel: %s", iseID)
	resp, err := sc.ExecuteTempl(enumParamsTempl, iseID)
	if err != nil {
		return nil, err
	}
	if len(resp) < 1 {
		return nil, fmt.Errorf("Retrieving datapoints of channel %s: Expected at least one response line", iseID)
	}
	if resp[0] != "OK" {
		return nil, fmt.Errorf("Retrieving datapoints of channel %s: HM script signals error: %s", iseID, resp[0])
	}
	var ps []ParamDef
	for _, l := range resp[1:] {
		fs := strings.Split(l, "\t")
		if len(fs) != 7 {
			return nil, fmt.Errorf("Retrieving datapoints of channel %s: Invalid response line: %s", iseID, l)
		}
		p := ParamDef{ISEID: fs[0], ID: fs[1], Type: fs[2], Unit: fs[3]}
		op, err := strconv.Atoi(fs[4])
		if err != nil {
			scriptLog.Warning("Retrieving datapoints: Invalid operations: ", l)
			continue
		}
		p.Operations = op
		switch p.Type {
		case "FLOAT", "INTEGER":
			min, err := strconv.ParseFloat(fs[5], 64)
			if err != nil {
				scriptLog.Warning("Retrieving datapoints: Invalid minimum: ", l)
				continue
			}
			p.Minimum = &min
			max, err := strconv.ParseFloat(fs[6], 64)
			if err != nil {
				scriptLog.Warning("Retrieving datapoints: Invalid maximum: ", l)
				continue
			}
			p.Maximum = &max
		}
		ps = append(ps, p)
	}
	return ps, nil
}

// SystemVariables retrieves the list of system variables in the ReGaHss.
// SysVarDefs is returned sorted by name.
func (sc *ScriptClient) SystemVariables() (SysVarDefs, error) {
	scriptLog.Debug("Retrieving list of system variables")

	// query ReGaHss
	lines, err := sc.ExecuteTempl(enumSysVarsTempl, nil)
	if err != nil {
		return nil, fmt.Errorf("Retrieving list of system variables failed: %v", err)
	}

	// parse response
	var sysvars SysVarDefs
	for _, l := range lines {
		fs := strings.Split(l, "\t")
		if len(fs) != 11 {
			scriptLog.Warning("Retrieving list of system variables: Invalid response line: ", l)
			continue
		}
		var sv SysVarDef
		sv.ISEID = fs[0]
		sv.Name = fs[1]
		sv.Description = fs[2]
		sv.Unit = fs[4]
		op, err := strconv.Atoi(fs[6])
		if err != nil {
			scriptLog.Warning("Retrieving list of system variables: Invalid operations: ", l)
			continue
		}
		sv.Operations = op
		sv.Type = fs[7]
		// fields for specific data types
		switch sv.Type {
		case "FLOAT":
			min, err := strconv.ParseFloat(fs[5], 64)
			if err != nil {
				scriptLog.Warning("Retrieving list of system variables: Invalid minimum: ", l)
				continue
			}
			sv.Minimum = &min
			max, err := strconv.ParseFloat(fs[3], 64)
			if err != nil {
				scriptLog.Warning("Retrieving list of system variables: Invalid maximum: ", l)
				continue
			}
			sv.Maximum = &max
		case "ALARM", "BOOL":
			sv.ValueName0 = &fs[8]
			sv.ValueName1 = &fs[9]
		case "ENUM":
			vl := strings.Split(fs[10], ";")
			sv.ValueList = &vl
		}
		sysvars = append(sysvars, &sv)
	}

	// sort by name for quick lookup
	sort.Slice(sysvars, func(i, j int) bool { return sysvars[i].Name < sysvars[j].Name })

	return sysvars, nil
}

// ValObjDef identifies a ReGaDom value object and its data type.
type ValObjDef struct {
	ISEID, Type string
}

// Value is the result of reading the value of a ReGaDom object.
type Value struct {
	Value     interface{}
	Timestamp time.Time
	Uncertain bool
	Err       error
}

// ReadValues reads the values of multiple ReGaDom objects.
func (sc *ScriptClient) ReadValues(objs []ValObjDef) ([]Value, error) {
	// build tab separated list of IDs
	sb := strings.Builder{}
	for idx, obj := range objs {
		if idx > 0 {
			sb.WriteRune('\t')
		}
		sb.WriteString(obj.ISEID)
	}
	ids := sb.String()
	if scriptLog.DebugEnabled() {
		scriptLog.Debug("Reading values of objects: ", strings.ReplaceAll(ids, "\t", " "))
	}

	// execute script
	resp, err := sc.ExecuteTempl(readValuesTempl, ids)
	if err != nil {
		return nil, fmt.Errorf("Reading object values failed: %v", err)
	}

	// parse result
	result := make([]Value, len(objs))
	line := 0
	for idx := range objs {
		// unexpected end of response?
		if line >= len(resp) || (resp[line] == "OK" && line+2 >= len(resp)) {
			return nil, errors.New("Reading object values failed: Unexpected end of response")
		}

		// HM script error?
		if resp[line] != "OK" {
			result[idx].Err = errors.New(resp[line])
			line++
			continue
		}

		// parse timestamp
		sec, err := strconv.ParseInt(resp[line+1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("Reading value of %s failed: Invalid timestamp: %s", objs[idx].ISEID, resp[line+1])
		}
		result[idx].Timestamp = time.Unix(sec, 0)
		// a timestamp of 0 means the value was never updated
		if sec == 0 {
			result[idx].Uncertain = true
		}

		// parse value
		strval, err := url.PathUnescape(resp[line+2])
		if err != nil {
			return nil, fmt.Errorf("Reading value of %s failed: Invalid percent encoding: %s", objs[idx].ISEID, resp[line+2])
		}
		switch objs[idx].Type {
		case "BOOL", "ALARM", "ACTION":
			if strval == "" {
				result[idx].Value = false
				result[idx].Uncertain = true
			} else {
				value, err := strconv.ParseBool(strval)
				if err != nil {
					return nil, fmt.Errorf("Reading value of %s failed: Invalid BOOL/ALARM/ACTION value: %s", objs[idx].ISEID, strval)
				}
				result[idx].Value = value
			}

		case "INTEGER", "ENUM":
			if strval == "" {
				result[idx].Value = 0
				result[idx].Uncertain = true
			} else {
				tmp, err := strconv.ParseInt(strval, 10, 32)
				if err != nil {
					return nil, fmt.Errorf("Reading value of %s failed: Invalid INTEGER/ENUM value: %s", objs[idx].ISEID, strval)
				}
				result[idx].Value = int(tmp)
			}

		case "FLOAT":
			if strval == "" {
				result[idx].Value = 0.0
				result[idx].Uncertain = true
			} else {
				value, err := strconv.ParseFloat(strval, 64)
				if err != nil {
					return nil, fmt.Errorf("Reading value of %s failed: Invalid FLOAT value: %s", objs[idx].ISEID, strval)
				}
				result[idx].Value = value
			}

		case "STRING":
			result[idx].Value = strval

		default:
			return nil, fmt.Errorf("Reading value of %s failed: Unsupported type: %s", objs[idx].ISEID, objs[idx].Type)
		}
		line += 3
	}
	return result, nil
}

// WriteValue sets the value of a ReGaDom object.
func (sc *ScriptClient) WriteValue(obj ValObjDef, value interface{}) error {
	scriptLog.Debugf("Writing value %v to object %s", value, obj.ISEID)

	// convert value
	var strval string
	switch obj.Type {
	case "BOOL", "ALARM", "ACTION":
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("Writing of object %s failed: Invalid type for BOOL/ALARM/ACTION: %#v", obj.ISEID, value)
		}
		strval = fmt.Sprint(b)

	case "INTEGER", "ENUM":
		i, ok := value.(int)
		if !ok {
			return fmt.Errorf("Writing of object %s failed: Invalid type for INTEGER/ENUM: %#v", obj.ISEID, value)
		}
		strval = fmt.Sprint(i)

	case "FLOAT":
		f, ok := value.(float64)
		if !ok {
			return fmt.Errorf("Writing of object %s failed: Invalid type for FLOAT: %#v", obj.ISEID, value)
		}
		// 6 decimal places are supported
		strval = fmt.Sprintf("%f", f)

	case "STRING":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("Writing of object %s failed: Invalid type for STRING: %#v", obj.ISEID, value)
		}
		strval = strconv.Quote(s)

	default:
		return fmt.Errorf("Writing of object %s failed: Unsupported type: %s", obj.ISEID, obj.Type)
	}

	// execute script
	resp, err := sc.ExecuteTempl(writeValueTempl, map[string]interface{}{"ISEID": obj.ISEID, "Value": strval})
	if err != nil {
		return fmt.Errorf("Writing of object %s failed: %v", obj.ISEID, err)
	}
	if len(resp) != 1 {
		return fmt.Errorf("Writing of object %s failed: Expected one response line", obj.ISEID)
	}
	if resp[0] != "OK" {
		return fmt.Errorf("Writing of object %s failed: HM script signals error: %s", obj.ISEID, resp[0])
	}
	return nil
}

// ReadSysVars reads the values of system variables.
func (sc *ScriptClient) ReadSysVars(sysVars SysVarDefs) ([]Value, error) {
	valObjs := make([]ValObjDef, len(sysVars))
	for idx, sysVar := range sysVars {
		valObjs[idx] = ValObjDef{sysVar.ISEID, sysVar.Type}
	}
	return sc.ReadValues(valObjs)
}

// WriteSysVar sets the value of a system variable.
func (sc *ScriptClient) WriteSysVar(sysVar *SysVarDef, value interface{}) error {
	return sc.WriteValue(ValObjDef{sysVar.ISEID, sysVar.Type}, value)
}
