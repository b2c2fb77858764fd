// Package actions provides typed wrappers for common TR-064 service actions
// of routers and home gateways. Each wrapper embeds a tr064.Device and maps
// the flat action results into explicit result structs.
package actions

import (
	"strconv"
	"time"

	"github.com/hausnet/go-hausnet/tr064"

	"github.com/mdzio/go-logging"
)

var log = logging.Get("tr064-actions")

// call resolves the control URL of a service type and executes an action on
// it. Wrappers require a loaded device description.
func call(d *tr064.Device, serviceType, action string, timeout time.Duration, args map[string]string) (tr064.ActionResult, error) {
	uri, err := d.ControlURL(serviceType, "")
	if err != nil {
		return nil, err
	}
	return d.Execute(uri, serviceType, action, timeout, args)
}

// withID appends an interface id to a service type prefix. Whether interface
// counting starts at 0 or 1 depends on the device.
func withID(serviceType string, id int) string {
	return serviceType + strconv.Itoa(id)
}

func itoa(v int) string {
	return strconv.Itoa(v)
}

func boolArg(status bool) string {
	if status {
		return "1"
	}
	return "0"
}

// mapper populates result structs from an ActionResult. The first conversion
// failure sticks, following accesses are no-ops.
type mapper struct {
	res tr064.ActionResult
	err error
}

func (m *mapper) str(key string) string {
	if m.err != nil {
		return ""
	}
	var v string
	v, m.err = m.res.String(key)
	return v
}

// strOr returns a result value, falling back to def when the key is absent.
func (m *mapper) strOr(key, def string) string {
	if m.err != nil {
		return ""
	}
	if _, ok := m.res[key]; !ok {
		return def
	}
	return m.str(key)
}

func (m *mapper) num(key string) int {
	if m.err != nil {
		return 0
	}
	var v int
	v, m.err = m.res.Int(key)
	return v
}

func (m *mapper) num64(key string) uint64 {
	if m.err != nil {
		return 0
	}
	var v uint64
	v, m.err = m.res.Uint64(key)
	return v
}

func (m *mapper) flag(key string) bool {
	if m.err != nil {
		return false
	}
	var v bool
	v, m.err = m.res.Bool(key)
	return v
}
