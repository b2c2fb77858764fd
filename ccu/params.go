package ccu

import (
	"fmt"
	"sync"
	"time"
)

const (
	ParameterOperationRead = 1 << iota
	ParameterOperationWrite
	ParameterOperationEvent
)

// Parameter is a single datapoint of a channel. The last known value is
// cached. Value fetches the value again, when the cached one is older than
// the staleness window of the device set. Pushed events update the cache.
type Parameter struct {
	channel *Channel

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

	mtx       sync.Mutex
	value     interface{}
	timestamp time.Time
}

// Channel returns the channel the datapoint belongs to.
func (p *Parameter) Channel() *Channel {
	return p.channel
}

// Value returns the value of the datapoint. A cached value within the
// staleness window is returned directly, otherwise the value is read through
// the script client. The data type depends on the declared type: BOOL, ALARM
// and ACTION map to bool, INTEGER and ENUM to int, FLOAT to float64 and
// STRING to string.
func (p *Parameter) Value() (interface{}, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	set := p.channel.device.set
	staleness := set.Staleness
	if staleness == 0 {
		staleness = DefaultStaleness
	}
	if p.value != nil && time.Since(p.timestamp) < staleness {
		return p.value, nil
	}
	if p.ISEID == "" {
		if p.value != nil {
			return p.value, nil
		}
		return nil, fmt.Errorf("Datapoint %s.%s has no value yet", p.channel.Address, p.ID)
	}
	if set.Script == nil {
		return nil, fmt.Errorf("No script client configured")
	}
	vs, err := set.Script.ReadValues([]ValObjDef{{p.ISEID, p.Type}})
	if err != nil {
		return nil, err
	}
	if vs[0].Err != nil {
		return nil, fmt.Errorf("Reading datapoint %s.%s failed: %v", p.channel.Address, p.ID, vs[0].Err)
	}
	p.value = vs[0].Value
	p.timestamp = time.Now()
	return p.value, nil
}

// SetValue writes the value of the datapoint through the script client. The
// cache is updated on success.
func (p *Parameter) SetValue(value interface{}) error {
	v, err := convertValue(p.Type, value)
	if err != nil {
		return fmt.Errorf("Writing datapoint %s.%s failed: %v", p.channel.Address, p.ID, err)
	}
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if p.ISEID == "" {
		return fmt.Errorf("Datapoint %s.%s is not writable", p.channel.Address, p.ID)
	}
	set := p.channel.device.set
	if set.Script == nil {
		return fmt.Errorf("No script client configured")
	}
	if err := set.Script.WriteValue(ValObjDef{p.ISEID, p.Type}, v); err != nil {
		return err
	}
	p.value = v
	p.timestamp = time.Now()
	return nil
}

// Bool returns the value of a BOOL, ALARM or ACTION datapoint.
func (p *Parameter) Bool() (bool, error) {
	v, err := p.Value()
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("Datapoint %s.%s is not of type bool: %T", p.channel.Address, p.ID, v)
	}
	return b, nil
}

// Int returns the value of an INTEGER or ENUM datapoint.
func (p *Parameter) Int() (int, error) {
	v, err := p.Value()
	if err != nil {
		return 0, err
	}
	i, ok := v.(int)
	if !ok {
		return 0, fmt.Errorf("Datapoint %s.%s is not of type int: %T", p.channel.Address, p.ID, v)
	}
	return i, nil
}

// Float64 returns the value of a FLOAT datapoint.
func (p *Parameter) Float64() (float64, error) {
	v, err := p.Value()
	if err != nil {
		return 0, err
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("Datapoint %s.%s is not of type float64: %T", p.channel.Address, p.ID, v)
	}
	return f, nil
}

// Str returns the value of a STRING datapoint.
func (p *Parameter) Str() (string, error) {
	v, err := p.Value()
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("Datapoint %s.%s is not of type string: %T", p.channel.Address, p.ID, v)
	}
	return s, nil
}

func (p *Parameter) applyEvent(value interface{}) error {
	v, err := convertValue(p.Type, value)
	if err != nil {
		return fmt.Errorf("Event for datapoint %s.%s: %v", p.channel.Address, p.ID, err)
	}
	p.update(v, time.Now())
	return nil
}

func (p *Parameter) update(value interface{}, timestamp time.Time) {
	p.mtx.Lock()
	p.value = value
	p.timestamp = timestamp
	p.mtx.Unlock()
}

func (p *Parameter) cached() (interface{}, time.Time) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.value, p.timestamp
}

// convertValue converts a value to the Go type of the declared datapoint
// type.
func convertValue(typ string, value interface{}) (interface{}, error) {
	switch typ {
	case "BOOL", "ALARM", "ACTION":
		switch v := value.(type) {
		case bool:
			return v, nil
		case int:
			return v != 0, nil
		}
	case "INTEGER", "ENUM":
		switch v := value.(type) {
		case int:
			return v, nil
		case float64:
			return int(v), nil
		}
	case "FLOAT":
		switch v := value.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		}
	case "STRING":
		if v, ok := value.(string); ok {
			return v, nil
		}
	case "":
		// data type not known, store as is
		return value, nil
	default:
		return nil, fmt.Errorf("Unsupported data type: %s", typ)
	}
	return nil, fmt.Errorf("Invalid value for data type %s: %#v", typ, value)
}

// typeOfValue infers the datapoint type from a Go value.
func typeOfValue(value interface{}) string {
	switch value.(type) {
	case bool:
		return "BOOL"
	case int:
		return "INTEGER"
	case float64:
		return "FLOAT"
	case string:
		return "STRING"
	}
	return ""
}
