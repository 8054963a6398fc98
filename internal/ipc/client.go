package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"netsentry/internal/core"
)

const (
	defaultDialTimeout = 5 * time.Second

	// callTimeout bounds one request/response round trip. Operations
	// that wait out connect and settle windows on the daemon side get
	// the longer window from timeoutFor.
	callTimeout     = 10 * time.Second
	slowCallTimeout = 2 * time.Minute
)

func timeoutFor(req Request) time.Duration {
	switch req.Op {
	case OpReconcile, OpWifiConnect, OpWifiDisconnect, OpVPNStart, OpVPNStop:
		return slowCallTimeout
	case OpStatus:
		if req.Fix {
			return slowCallTimeout
		}
	}
	return callTimeout
}

// Client is a synchronous control connection to the daemon.
type Client struct {
	mu   sync.Mutex
	conn net.Conn
	enc  *json.Encoder
	dec  *json.Decoder
}

// Dial connects to the daemon's control pipe.
func Dial() (*Client, error) {
	return DialTimeout(defaultDialTimeout)
}

// DialTimeout connects to the control pipe with a custom wait.
func DialTimeout(timeout time.Duration) (*Client, error) {
	conn, err := DialPipe(timeout)
	if err != nil {
		return nil, fmt.Errorf("ipc: dial %s: %w", PipeName, err)
	}
	return NewClient(conn), nil
}

// NewClient wraps an established control connection.
func NewClient(conn net.Conn) *Client {
	return &Client{
		conn: conn,
		enc:  json.NewEncoder(conn),
		dec:  json.NewDecoder(conn),
	}
}

// Close disconnects from the daemon.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Do sends one request and waits for its response. Requests on a
// client are serialized.
func (c *Client) Do(req Request) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetDeadline(time.Now().Add(timeoutFor(req))); err == nil {
		defer c.conn.SetDeadline(time.Time{})
	}
	if err := c.enc.Encode(req); err != nil {
		return Response{}, fmt.Errorf("ipc: send %s: %w", req.Op, err)
	}
	var resp Response
	if err := c.dec.Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("ipc: read %s reply: %w", req.Op, err)
	}
	return resp, nil
}

// exec sends a request and turns a refused response into an error.
func (c *Client) exec(req Request) (Response, error) {
	resp, err := c.Do(req)
	if err != nil {
		return resp, err
	}
	if !resp.OK {
		if resp.Error == "" {
			return resp, fmt.Errorf("%s refused", req.Op)
		}
		return resp, errors.New(resp.Error)
	}
	return resp, nil
}

// --- Daemon ---

// Ping checks that the daemon is up and answering.
func (c *Client) Ping() error {
	_, err := c.exec(Request{Op: OpPing})
	return err
}

// Status returns the daemon's connectivity snapshot. With fix set the
// daemon runs a corrective sweep over Wi-Fi and internet first.
func (c *Client) Status(fix bool) (*Status, error) {
	resp, err := c.exec(Request{Op: OpStatus, Fix: fix})
	if err != nil {
		return nil, err
	}
	if resp.Status == nil {
		return nil, errors.New("status missing from reply")
	}
	return resp.Status, nil
}

// LogTail returns up to n recent daemon log lines, oldest first.
// n of zero or less returns everything buffered.
func (c *Client) LogTail(n int) ([]string, error) {
	resp, err := c.exec(Request{Op: OpLogTail, Lines: n})
	if err != nil {
		return nil, err
	}
	return resp.Lines, nil
}

// --- Reconciliation ---

// Reconcile runs one reconciliation pass. useVPN nil keeps the
// configured posture. The outcome and the resulting snapshot are
// returned even when the pass failed.
func (c *Client) Reconcile(useVPN *bool) (*ReconcileOutcome, *Status, error) {
	resp, err := c.Do(Request{Op: OpReconcile, UseVPN: useVPN})
	if err != nil {
		return nil, nil, err
	}
	if resp.Result == nil {
		if resp.Error != "" {
			return nil, nil, errors.New(resp.Error)
		}
		return nil, nil, errors.New("result missing from reply")
	}
	return resp.Result, resp.Status, nil
}

// AutoStart begins timer-driven reconciliation. A zero interval keeps
// the configured one.
func (c *Client) AutoStart(useVPN *bool, interval time.Duration) (*Status, error) {
	req := Request{Op: OpAutoStart, UseVPN: useVPN}
	if interval > 0 {
		req.Interval = interval.String()
	}
	resp, err := c.exec(req)
	if err != nil {
		return nil, err
	}
	return resp.Status, nil
}

// AutoStop halts timer-driven reconciliation, waiting out any pass in
// flight.
func (c *Client) AutoStop() (*Status, error) {
	resp, err := c.exec(Request{Op: OpAutoStop})
	if err != nil {
		return nil, err
	}
	return resp.Status, nil
}

// --- Wi-Fi and VPN ---

// ConnectWifi connects to ssid, or to the configured target when ssid
// is empty.
func (c *Client) ConnectWifi(ssid string) error {
	_, err := c.exec(Request{Op: OpWifiConnect, SSID: ssid})
	return err
}

// DisconnectWifi drops the wireless connection.
func (c *Client) DisconnectWifi() error {
	_, err := c.exec(Request{Op: OpWifiDisconnect})
	return err
}

// StartVPN launches the VPN client if it is not already running.
func (c *Client) StartVPN() error {
	_, err := c.exec(Request{Op: OpVPNStart})
	return err
}

// StopVPN terminates the VPN client processes.
func (c *Client) StopVPN() error {
	_, err := c.exec(Request{Op: OpVPNStop})
	return err
}

// --- Profiles ---

// Profiles lists the stored Wi-Fi credentials in insertion order.
func (c *Client) Profiles() ([]core.WifiCredential, error) {
	resp, err := c.exec(Request{Op: OpProfileList})
	if err != nil {
		return nil, err
	}
	return resp.Profiles, nil
}

// SaveProfile stores or overwrites one credential.
func (c *Client) SaveProfile(ssid, password string) error {
	_, err := c.exec(Request{Op: OpProfileSave, SSID: ssid, Password: password})
	return err
}

// DeleteProfile removes one credential.
func (c *Client) DeleteProfile(ssid string) error {
	_, err := c.exec(Request{Op: OpProfileDelete, SSID: ssid})
	return err
}

// ImportProfiles merges credentials into the store. With replace,
// duplicates with a different password are overwritten; otherwise they
// are kept and reported in the summary.
func (c *Client) ImportProfiles(creds []core.WifiCredential, replace bool) (*ImportSummary, error) {
	resolve := "skip"
	if replace {
		resolve = "replace"
	}
	resp, err := c.exec(Request{Op: OpProfileImport, Profiles: creds, Resolve: resolve})
	if err != nil {
		return nil, err
	}
	if resp.Import == nil {
		return nil, errors.New("import summary missing from reply")
	}
	return resp.Import, nil
}
