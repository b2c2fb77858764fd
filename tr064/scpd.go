package tr064

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ActionMap holds the action definitions of one service type, keyed by
// action name.
type ActionMap map[string]*ActionSpec

// ActionSpec describes one action of a service with its input and output
// arguments, keyed by argument name.
type ActionSpec struct {
	In  map[string]*ArgumentSpec
	Out map[string]*ArgumentSpec
}

// ArgumentSpec describes one argument of an action. The data type and the
// optional default value are resolved from the referenced state variable.
type ArgumentSpec struct {
	Variable   string
	DataType   string
	Default    string
	HasDefault bool
}

// LoadSCPD downloads and parses the action definitions (Service Control
// Protocol Document) for one service type. The device description must be
// loaded before and must record an SCPD URL for the service.
func (d *Device) LoadSCPD(serviceType string, timeout time.Duration) error {
	if d.scpd == nil {
		d.scpd = make(map[string]ActionMap)
	}
	return d.loadSCPD(serviceType, timeout)
}

// LoadAllSCPD loads the action definitions for every known service type. With
// ignoreFailures a per service failure is recorded on the service definition
// and the remaining services are still loaded; otherwise the first failure
// aborts.
func (d *Device) LoadAllSCPD(timeout time.Duration, ignoreFailures bool) error {
	d.scpd = make(map[string]ActionMap)
	for serviceType, svc := range d.services {
		svc.Err = ""
		err := d.loadSCPD(serviceType, timeout)
		if err != nil {
			if !ignoreFailures {
				return err
			}
			svc.Err = err.Error()
		}
	}
	return nil
}

func (d *Device) loadSCPD(serviceType string, timeout time.Duration) error {
	svc, ok := d.services[serviceType]
	if !ok {
		return errorf(KindValidation, "Can not load SCPD, unknown service type: %s", serviceType)
	}
	if svc.SCPDURL == "" {
		return errorf(KindValidation, "No SCPD URL defined for service type: %s", serviceType)
	}

	// drop a previously loaded definition for this service type
	delete(d.scpd, serviceType)

	location := d.baseURL(svc.SCPDURL)
	log.Debugf("Loading SCPD for %s from %s", serviceType, location)

	req, err := http.NewRequest(http.MethodGet, location, nil)
	if err != nil {
		return wrapf(KindValidation, err, "Invalid SCPD URL for %s", serviceType)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.httpClient(timeout, true).Do(req)
	if err != nil {
		return wrapf(KindTransport, err, "Loading of SCPD for %s from %s failed", serviceType, location)
	}
	defer resp.Body.Close()

	body, err := d.readBody(resp)
	if err != nil {
		return wrapf(KindTransport, err, "Reading of SCPD for %s from %s failed", serviceType, location)
	}
	if resp.StatusCode != http.StatusOK {
		return httpError("Loading of SCPD for "+serviceType+" from "+location, resp, body)
	}

	// some devices serve an empty document for service types without actions
	if len(body) == 0 {
		return nil
	}

	actions, err := parseSCPD(body)
	if err != nil {
		if e, ok := err.(*Error); ok {
			e.Msg = fmt.Sprintf("Invalid SCPD for %s from %s: %s", serviceType, location, e.Msg)
			return e
		}
		return wrapf(KindParse, err, "Invalid SCPD for %s from %s", serviceType, location)
	}
	d.scpd[serviceType] = actions
	return nil
}

type stateVariable struct {
	dataType   string
	defValue   string
	hasDefault bool
}

func parseSCPD(body []byte) (ActionMap, error) {
	root, err := parseXML(body)
	if err != nil {
		return nil, wrapf(KindParse, err, "Parsing failed")
	}

	actions := make(ActionMap)
	variables := make(map[string]*stateVariable)
	// where each state variable is referenced, for resolving data types
	variableRefs := make(map[string][]*ArgumentSpec)

	for i := range root.Children {
		c := &root.Children[i]
		tag := c.tag()
		switch {
		case strings.HasSuffix(tag, "actionlist"):
			if err := parseSCPDActions(c, actions, variableRefs); err != nil {
				return nil, err
			}
		case strings.HasSuffix(tag, "servicestatetable"):
			if err := parseSCPDVariables(c, variables); err != nil {
				return nil, err
			}
		}
	}

	// resolve the referenced state variables into the arguments
	for name, args := range variableRefs {
		v, ok := variables[name]
		if !ok {
			return nil, errorf(KindProtocol, "Referenced state variable can not be resolved: %s", name)
		}
		for _, arg := range args {
			arg.DataType = v.dataType
			arg.Default = v.defValue
			arg.HasDefault = v.hasDefault
		}
	}
	return actions, nil
}

func parseSCPDActions(list *xmlNode, actions ActionMap, variableRefs map[string][]*ArgumentSpec) error {
	for i := range list.Children {
		actionNode := &list.Children[i]

		var name string
		spec := &ActionSpec{
			In:  make(map[string]*ArgumentSpec),
			Out: make(map[string]*ArgumentSpec),
		}

		for j := range actionNode.Children {
			c := &actionNode.Children[j]
			tag := c.tag()
			switch {
			case strings.HasSuffix(tag, "name"):
				name = c.Text
			case strings.HasSuffix(tag, "argumentlist"):
				for k := range c.Children {
					if err := parseSCPDArgument(&c.Children[k], spec, variableRefs); err != nil {
						return err
					}
				}
			}
		}

		if name == "" {
			return errorf(KindProtocol, "Action without a name")
		}
		if _, ok := actions[name]; ok {
			return errorf(KindProtocol, "Action is defined twice: %s", name)
		}
		actions[name] = spec
	}
	return nil
}

func parseSCPDArgument(n *xmlNode, spec *ActionSpec, variableRefs map[string][]*ArgumentSpec) error {
	var name, direction string
	arg := &ArgumentSpec{}

	for i := range n.Children {
		c := &n.Children[i]
		tag := c.tag()
		switch {
		case strings.HasSuffix(tag, "name"):
			name = c.Text
		case strings.HasSuffix(tag, "direction"):
			direction = c.Text
		case strings.HasSuffix(tag, "relatedstatevariable"):
			arg.Variable = c.Text
			variableRefs[arg.Variable] = append(variableRefs[arg.Variable], arg)
		}
	}

	if name == "" {
		return errorf(KindProtocol, "Argument without a name")
	}
	switch direction {
	case "in":
		spec.In[name] = arg
	case "out":
		spec.Out[name] = arg
	case "":
		return errorf(KindProtocol, "Argument without a direction: %s", name)
	default:
		return errorf(KindProtocol, "Argument %s with invalid direction: %s", name, direction)
	}
	return nil
}

func parseSCPDVariables(list *xmlNode, variables map[string]*stateVariable) error {
	for i := range list.Children {
		n := &list.Children[i]

		var name string
		v := &stateVariable{}
		for j := range n.Children {
			c := &n.Children[j]
			tag := c.tag()
			switch {
			case strings.HasSuffix(tag, "name"):
				name = c.Text
			case strings.HasSuffix(tag, "datatype"):
				v.dataType = c.Text
			case strings.HasSuffix(tag, "defaultvalue"):
				v.defValue = c.Text
				v.hasDefault = true
			}
		}

		if name == "" {
			return errorf(KindProtocol, "State variable without a name")
		}
		if v.dataType == "" {
			return errorf(KindProtocol, "State variable without a data type: %s", name)
		}
		if _, ok := variables[name]; ok {
			return errorf(KindProtocol, "State variable is defined twice: %s", name)
		}
		variables[name] = v
	}
	return nil
}
