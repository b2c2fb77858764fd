package tr064

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

// some devices respond differently without a User-Agent
const userAgent = "Mozilla/5.0; go-hausnet-1"

// LoadDescription downloads and parses the root device description from the
// given URL. On success all previously loaded services, device info and SCPD
// definitions are replaced wholesale; on failure the previous state stays
// untouched.
func (d *Device) LoadDescription(rawurl string, timeout time.Duration) error {
	log.Debugf("Loading device description from %s", rawurl)

	req, err := http.NewRequest(http.MethodGet, rawurl, nil)
	if err != nil {
		return wrapf(KindValidation, err, "Invalid description URL: %s", rawurl)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.httpClient(timeout, false).Do(req)
	if err != nil {
		return wrapf(KindTransport, err, "Loading of device description from %s failed", rawurl)
	}
	defer resp.Body.Close()

	body, err := d.readBody(resp)
	if err != nil {
		return wrapf(KindTransport, err, "Reading of device description from %s failed", rawurl)
	}
	if resp.StatusCode != http.StatusOK {
		return httpError("Loading of device description from "+rawurl, resp, body)
	}
	return d.parseDescription(rawurl, body)
}

// Fetch performs a plain GET with the device HTTP settings (proxies,
// authentication) and returns the response body. Some actions hand out URLs
// of additional documents, e.g. the call list of a Fritz!Box.
func (d *Device) Fetch(rawurl string, timeout time.Duration) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, rawurl, nil)
	if err != nil {
		return nil, wrapf(KindValidation, err, "Invalid URL: %s", rawurl)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.httpClient(timeout, true).Do(req)
	if err != nil {
		return nil, wrapf(KindTransport, err, "Loading of %s failed", rawurl)
	}
	defer resp.Body.Close()

	body, err := d.readBody(resp)
	if err != nil {
		return nil, wrapf(KindTransport, err, "Reading of %s failed", rawurl)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, httpError("Loading of "+rawurl, resp, body)
	}
	return body, nil
}

func (d *Device) parseDescription(rawurl string, body []byte) error {
	root, err := parseXML(body)
	if err != nil {
		return wrapf(KindParse, err, "Parsing of device description from %s failed", rawurl)
	}

	// base path for resolving relative endpoint URLs
	u, err := url.Parse(rawurl)
	if err != nil {
		return wrapf(KindValidation, err, "Invalid description URL: %s", rawurl)
	}
	basePath := u.Path[:strings.LastIndex(u.Path, "/")+1]
	if basePath == "" {
		basePath = "/"
	}

	// parse into fresh state, swap in only on success
	p := &descParser{
		basePath: basePath,
		services: make(map[string]*ServiceDefinition),
		info:     &DeviceInfo{RootURL: rawurl, Unknown: make(map[string]string)},
	}
	if err := p.walk(root); err != nil {
		return err
	}

	d.services = p.services
	d.info = p.info
	d.scpd = make(map[string]ActionMap)
	d.described = true
	log.Debugf("Device description loaded: %d services", len(d.services))
	return nil
}

type descParser struct {
	basePath string
	services map[string]*ServiceDefinition
	info     *DeviceInfo
}

// infoField returns a pointer to the DeviceInfo field for a known tag.
func (p *descParser) infoField(tag string) *string {
	switch tag {
	case "devicetype":
		return &p.info.DeviceType
	case "friendlyname":
		return &p.info.FriendlyName
	case "manufacturer":
		return &p.info.Manufacturer
	case "manufacturerurl":
		return &p.info.ManufacturerURL
	case "modeldescription":
		return &p.info.ModelDescription
	case "modelname":
		return &p.info.ModelName
	case "modelurl":
		return &p.info.ModelURL
	case "modelnumber":
		return &p.info.ModelNumber
	case "serialnumber":
		return &p.info.SerialNumber
	case "presentationurl":
		return &p.info.PresentationURL
	case "udn":
		return &p.info.UDN
	case "upc":
		return &p.info.UPC
	}
	return nil
}

func (p *descParser) walk(n *xmlNode) error {
	for i := range n.Children {
		c := &n.Children[i]
		tag := c.tag()
		switch {
		case strings.HasSuffix(tag, "servicelist"):
			if err := p.serviceList(c); err != nil {
				return err
			}
		case p.infoField(tag) != nil:
			// first occurrence wins
			if f := p.infoField(tag); *f == "" {
				*f = c.Text
			}
		case strings.HasSuffix(tag, "iconlist") || strings.HasSuffix(tag, "specversion"):
			// skip
		default:
			// embedded devices are descended, everything else is recorded as
			// a vendor specific key
			if !strings.HasSuffix(tag, "device") && !strings.HasSuffix(tag, "devicelist") {
				if len(c.Children) == 0 {
					p.info.Unknown[c.XMLName.Local] = c.Text
				}
			}
			if err := p.walk(c); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *descParser) serviceList(n *xmlNode) error {
	for i := range n.Children {
		svc := &n.Children[i]
		if !strings.HasSuffix(svc.tag(), "service") {
			return errorf(KindProtocol, "Unexpected tag in service list: %s", svc.XMLName.Local)
		}

		var serviceType, controlURL, scpdURL, eventURL string
		for j := range svc.Children {
			c := &svc.Children[j]
			tag := c.tag()
			switch {
			case strings.HasSuffix(tag, "servicetype"):
				serviceType = c.Text
			case strings.HasSuffix(tag, "spectype"):
				// fallback used by some vendors
				if serviceType == "" {
					serviceType = c.Text
				}
			case strings.HasSuffix(tag, "controlurl"):
				controlURL = p.resolve(c.Text)
			case strings.HasSuffix(tag, "scpdurl"):
				scpdURL = p.resolve(c.Text)
			case strings.HasSuffix(tag, "eventsuburl"):
				eventURL = p.resolve(c.Text)
			}
		}

		if serviceType == "" || controlURL == "" {
			return errorf(KindProtocol, "Incomplete service definition: type %q, control URL %q", serviceType, controlURL)
		}
		if _, ok := p.services[serviceType]; ok {
			return errorf(KindProtocol, "Service type is defined twice: %s", serviceType)
		}
		p.services[serviceType] = &ServiceDefinition{
			ControlURL:  controlURL,
			SCPDURL:     scpdURL,
			EventSubURL: eventURL,
		}
	}
	return nil
}

// resolve prefixes relative endpoint URLs with the base path of the
// description document.
func (p *descParser) resolve(uri string) string {
	if uri == "" || strings.HasPrefix(uri, "/") || strings.HasPrefix(uri, "http") {
		return uri
	}
	return p.basePath + uri
}
