package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/hausnet/go-hausnet/ccu/xmlrpc"
)

const (
	// delay before the first registration
	startupDelay = 1 * time.Second
	// if no callback arrives within this time period, a ping is triggered
	callbackTimeout = 5 * time.Minute
	// if no pong arrives within this time period, a reregistration is
	// triggered
	pingTimeout = 5 * time.Second
)

// InterfaceClient calls the XML-RPC API of an interface process.
type InterfaceClient struct {
	Name string
	xmlrpc.Caller
}

// Init registers a callback server. The receiverAddress should have the
// format http://hostname[:port][/Path]. If the path is not specified, the
// interface process calls back on /RPC2.
func (c *InterfaceClient) Init(receiverAddress, id string) error {
	log.Debugf("Calling method init(%s, %s) on %s", receiverAddress, id, c.Name)
	resp, err := c.Call("init", xmlrpc.Values{
		{FlatString: receiverAddress},
		{FlatString: id},
	})
	if err != nil {
		return err
	}
	if err := assertEmptyResponse(resp); err != nil {
		return fmt.Errorf("Invalid response for method init: %v", err)
	}
	return nil
}

// Deinit deregisters a callback server. The receiverAddress must match the
// one passed to Init.
func (c *InterfaceClient) Deinit(receiverAddress string) error {
	log.Debugf("Calling method init(%s) on %s", receiverAddress, c.Name)
	// init without a second parameter deregisters
	resp, err := c.Call("init", xmlrpc.Values{
		{FlatString: receiverAddress},
	})
	if err != nil {
		return err
	}
	if err := assertEmptyResponse(resp); err != nil {
		return fmt.Errorf("Invalid response for method init: %v", err)
	}
	return nil
}

// Ping triggers a PONG event to all registered callback servers. Returns true
// on success.
func (c *InterfaceClient) Ping(callerID string) (bool, error) {
	log.Debugf("Calling method ping(%s) on %s", callerID, c.Name)
	resp, err := c.Call("ping", xmlrpc.Values{
		{FlatString: callerID},
	})
	if err != nil {
		return false, err
	}
	q := xmlrpc.Q(resp)
	res := q.Bool()
	if q.Err() != nil {
		// BidCos-RF answers with an array containing one bool
		q2 := xmlrpc.Q(resp)
		res = q2.Idx(0).Bool()
		if q2.Err() != nil {
			return false, fmt.Errorf("Invalid response from method ping: %v, %v", q.Err(), q2.Err())
		}
	}
	return res, nil
}

func assertEmptyResponse(v *xmlrpc.Value) error {
	q := xmlrpc.Q(v)
	if s := q.String(); q.Err() == nil && s == "" {
		return nil
	}
	// some interface processes answer with an empty array
	q = xmlrpc.Q(v)
	if ar := q.Slice(); q.Err() == nil && len(ar) == 0 {
		return nil
	}
	return errors.New("Expected empty string or array as response")
}

// Registration registers a callback server at an interface process and
// monitors the registration. If no callback arrives within the callback
// timeout, a ping is sent. If the pong also fails to arrive, the
// registration is established again.
type Registration struct {
	*InterfaceClient

	// callback URL announced to the interface process
	ReceiverURL string
	// identifies this registration at the interface process
	InterfaceID string

	stopRequest chan struct{}
	stopped     chan struct{}
	callback    chan struct{}
	timer       *time.Timer
}

// Setup initializes the Registration. It must be called before Start.
func (r *Registration) Setup() {
	r.stopRequest = make(chan struct{})
	r.stopped = make(chan struct{})
	// buffered channel holds one callback notification
	r.callback = make(chan struct{}, 1)
}

// Start registers at the interface process and starts monitoring.
func (r *Registration) Start() {
	go func() {
		log.Debug("Starting registration ", r.InterfaceID)

		defer func() {
			if !r.timer.Stop() {
				<-r.timer.C
			}
			log.Trace("Registration stopped: ", r.InterfaceID)
			r.stopped <- struct{}{}
		}()

		// startup delay
		r.timer = time.NewTimer(startupDelay)
		for q := false; !q; {
			select {
			case <-r.stopRequest:
				return
			case <-r.callback:
				// ignore callbacks
			case <-r.timer.C:
				q = true
			}
		}

		r.register()
		defer r.unregister()
		r.timer.Reset(callbackTimeout)

		// re-registration loop
		for {
			// wait for time out
			for q := false; !q; {
				select {
				case <-r.stopRequest:
					return
				case <-r.callback:
					r.timer.Reset(callbackTimeout)
				case <-r.timer.C:
					q = true
				}
			}

			// ping
			ok, err := r.Ping(r.InterfaceID + "-Ping")
			if err != nil {
				log.Warning(err)
			} else if !ok {
				log.Warning("Ping returned a failure")
			}
			r.timer.Reset(pingTimeout)

			// wait for pong or time out
			select {
			case <-r.stopRequest:
				return
			case <-r.callback:
				// pong received
			case <-r.timer.C:
				// register again, if the ping timed out
				log.Errorf("Interface process %s timed out", r.InterfaceID)
				r.register()
			}
			r.timer.Reset(callbackTimeout)
		}
	}()
}

// Stop deregisters and stops the monitoring.
func (r *Registration) Stop() {
	r.stopRequest <- struct{}{}
	<-r.stopped
}

// CallbackReceived must be called when a callback from the interface process
// arrives. The call never blocks. Setup must have been called first.
func (r *Registration) CallbackReceived() {
	select {
	case r.callback <- struct{}{}:
	default:
		// a full channel is ok
	}
}

func (r *Registration) register() {
	if err := r.Init(r.ReceiverURL, r.InterfaceID); err != nil {
		log.Warning(err)
	}
}

func (r *Registration) unregister() {
	if err := r.Deinit(r.ReceiverURL); err != nil {
		log.Warning(err)
	}
}
