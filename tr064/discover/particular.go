package discover

import (
	"bytes"
	"encoding/xml"
	"io"
	"io/ioutil"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hausnet/go-hausnet/tr064"

	"golang.org/x/net/html/charset"
)

// some devices respond differently without a User-Agent
const userAgent = "Mozilla/5.0; go-hausnet-3"

const descriptionSizeLimit = 10 * 1024 * 1024

// ParticularHost searches for a particular host and returns the most
// specific response found, or nil if the host did not answer.
//
// Some routers announce only their generic UPnP device type although they
// support the more capable dslforum-org services. After a broad first search
// the device description of the best announcement is loaded, its declared
// device type is made vendor specific, and a second targeted search tries to
// find a better match. This call is costly, the result should be cached.
//
// A non-empty deviceDefinitionURL skips the broad first search; in that case
// nil is returned when the targeted search finds nothing better.
func ParticularHost(host string, opts *Options, deviceDefinitionURL string) (*Response, error) {
	o := opts.withDefaults()

	addrs, err := net.LookupHost(host)
	if err != nil {
		return nil, wrapf(tr064.KindTransport, err, "Lookup of host %s failed", host)
	}
	hostIPs := make(map[string]bool, len(addrs))
	for _, a := range addrs {
		hostIPs[a] = true
	}

	var bestPick *Response
	var services []string

	if deviceDefinitionURL == "" {
		results, err := Discover(&o)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			if !hostIPs[r.LocationHost] {
				continue
			}
			// several announcements per host are expected, keep the best
			if rate(r) > rate(bestPick) {
				bestPick = r
			}
			services = appendUnique(services, r.Service)
		}
		if bestPick == nil {
			return nil, nil
		}
	} else {
		bestPick, err = NewResponse(deviceDefinitionURL, "uuid:none", "none")
		if err != nil {
			return nil, err
		}
	}

	body, err := fetchDescription(bestPick.Location, o.Timeout)
	if err != nil {
		return nil, err
	}
	deviceType, err := findDeviceType(bestPick.Location, body)
	if err != nil {
		return nil, err
	}

	if deviceType != "" {
		services = appendUnique(services, deviceType)
		specific := strings.Replace(deviceType, "schemas-upnp-org", "dslforum-org", 1)
		if specific == bestPick.Service {
			// already as specific as it gets
			return bestPick, nil
		}
		// devices answer differently depending on the searched service
		// type, so search for every vendor specific variant as well
		for _, s := range services {
			services = appendUnique(services, strings.Replace(s, "schemas-upnp-org", "dslforum-org", 1))
		}

		targeted := o
		targeted.ServiceTypes = services
		results, err := Discover(&targeted)
		if err != nil {
			return nil, err
		}
		var betterPick *Response
		for _, r := range results {
			if hostIPs[r.LocationHost] && rate(r) > rate(betterPick) {
				betterPick = r
			}
		}
		if betterPick != nil {
			return betterPick, nil
		}
	}

	if deviceDefinitionURL != "" {
		// the synthetic response is no search result
		return nil, nil
	}
	return bestPick, nil
}

func fetchDescription(location string, timeout time.Duration) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, location, nil)
	if err != nil {
		return nil, wrapf(tr064.KindValidation, err, "Invalid description URL: %s", location)
	}
	req.Header.Set("User-Agent", userAgent)

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, wrapf(tr064.KindTransport, err, "Loading of device description from %s failed", location)
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(io.LimitReader(resp.Body, descriptionSizeLimit))
	if err != nil {
		return nil, wrapf(tr064.KindTransport, err, "Reading of device description from %s failed", location)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errorf(tr064.KindTransport, "Loading of device description from %s failed: %s", location, resp.Status)
	}
	return body, nil
}

// findDeviceType returns the text of the first element whose tag ends in
// deviceType, or "" if the document has none.
func findDeviceType(location string, body []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.CharsetReader = charset.NewReaderLabel
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return "", nil
		}
		if err != nil {
			return "", wrapf(tr064.KindParse, err, "Parsing of device description from %s failed", location)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || !strings.HasSuffix(strings.ToLower(se.Name.Local), "devicetype") {
			continue
		}
		var text string
		if err := dec.DecodeElement(&text, &se); err != nil {
			return "", wrapf(tr064.KindParse, err, "Parsing of device description from %s failed", location)
		}
		return strings.TrimSpace(text), nil
	}
}

func appendUnique(list []string, s string) []string {
	for _, e := range list {
		if e == s {
			return list
		}
	}
	return append(list, s)
}
