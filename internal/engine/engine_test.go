package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"netsentry/internal/core"
)

// fakeProbe scripts the system's answers and records every call. The
// scripted mutations behave like the real ones: connect flips the
// association, disconnect drops it, start/stop flip the client process.
type fakeProbe struct {
	mu sync.Mutex

	ssid     string
	password string

	wifiOK    bool // current association verdict
	connectOK bool // what ConnectWifi leaves wifiOK at
	online    bool
	// connectRestoresInternet makes a reconnect bring reachability back,
	// the healthy outcome of a Wi-Fi reset.
	connectRestoresInternet bool
	vpnRunning              bool
	startOK                 bool
	stopOK                  bool

	statusDelay time.Duration // slows WifiStatus for overlap tests
	inetFault   func()        // runs inside InternetReachable

	calls       []string
	inFlight    int
	maxInFlight int
}

func (f *fakeProbe) track(name string) func() {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	delay := time.Duration(0)
	if name == "wifi.status" {
		delay = f.statusDelay
	}
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	return func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}
}

func (f *fakeProbe) Target() (string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ssid, f.password
}

func (f *fakeProbe) WifiStatus(ctx context.Context, target string) (bool, string) {
	defer f.track("wifi.status")()
	f.mu.Lock()
	defer f.mu.Unlock()
	if target == "" {
		return false, "Wi-Fi not selected"
	}
	if f.wifiOK {
		return true, "Connected to " + target
	}
	return false, "Not Connected"
}

func (f *fakeProbe) ConnectWifi(ctx context.Context, ssid, password string) bool {
	defer f.track("wifi.connect")()
	f.mu.Lock()
	defer f.mu.Unlock()
	if ssid != "" {
		f.ssid, f.password = ssid, password
	}
	f.wifiOK = f.connectOK
	if f.wifiOK && f.connectRestoresInternet {
		f.online = true
	}
	return f.wifiOK
}

func (f *fakeProbe) DisconnectWifi(ctx context.Context) bool {
	defer f.track("wifi.disconnect")()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wifiOK = false
	return true
}

func (f *fakeProbe) InternetReachable(ctx context.Context) bool {
	defer f.track("inet.check")()
	if f.inetFault != nil {
		f.inetFault()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online
}

func (f *fakeProbe) VPNUIRunning(ctx context.Context) bool {
	defer f.track("vpn.running")()
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.vpnRunning
}

func (f *fakeProbe) StartVPN(ctx context.Context) bool {
	defer f.track("vpn.start")()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startOK {
		f.vpnRunning = true
	}
	return f.startOK
}

func (f *fakeProbe) StopVPN(ctx context.Context) bool {
	defer f.track("vpn.stop")()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopOK {
		f.vpnRunning = false
	}
	return f.stopOK
}

func (f *fakeProbe) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeProbe) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeProbe) maxConcurrent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInFlight
}

// confirmRecorder approves by default and records what was asked.
type confirmRecorder struct {
	mu    sync.Mutex
	asked []Action
	deny  map[Action]bool
}

func (c *confirmRecorder) confirm(ctx context.Context, a Action) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.asked = append(c.asked, a)
	return !c.deny[a]
}

func (c *confirmRecorder) askedActions() []Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Action(nil), c.asked...)
}

type sleepRecorder struct {
	mu    sync.Mutex
	slept []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) {
	s.mu.Lock()
	s.slept = append(s.slept, d)
	s.mu.Unlock()
}

func (s *sleepRecorder) all() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.slept...)
}

// resultCollector gathers reconcile results in publish order.
type resultCollector struct {
	mu      sync.Mutex
	results []Result
}

func collectResults(bus *core.EventBus) *resultCollector {
	c := &resultCollector{}
	bus.Subscribe(core.EventReconcileResult, func(ev core.Event) {
		res, ok := ev.Payload.(Result)
		if !ok {
			return
		}
		c.mu.Lock()
		c.results = append(c.results, res)
		c.mu.Unlock()
	})
	return c
}

func (c *resultCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

func (c *resultCollector) last() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.results[len(c.results)-1]
}

func quietLogger() *core.Logger {
	return core.NewLogger(core.LogConfig{Level: "off"})
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not reached within deadline")
}

// newTestEngine wires an engine with recorded sleeps so settle waits cost
// nothing. Extra options are applied after, so tests can override.
func newTestEngine(f *fakeProbe, opts ...Option) (*Engine, *core.EventBus, *resultCollector, *sleepRecorder) {
	bus := core.NewEventBus()
	tracker := core.NewStateTracker(bus)
	col := collectResults(bus)
	slept := &sleepRecorder{}
	all := append([]Option{WithSleep(slept.sleep)}, opts...)
	e := New(f, tracker, bus, quietLogger(), all...)
	return e, bus, col, slept
}

func TestRunOnceAllHealthy(t *testing.T) {
	f := &fakeProbe{ssid: "HomeNet", password: "pw", wifiOK: true, online: true, vpnRunning: true}
	e, _, col, slept := newTestEngine(f)

	res := e.RunOnce(context.Background(), RunConfig{UseVPN: true})

	if res.Outcome != OutcomeOK {
		t.Fatalf("outcome = %v, want ok (err %v)", res.Outcome, res.Err)
	}
	if res.Err != nil {
		t.Errorf("unexpected error: %v", res.Err)
	}
	for _, op := range []string{"wifi.connect", "wifi.disconnect", "vpn.start", "vpn.stop"} {
		if n := f.callCount(op); n != 0 {
			t.Errorf("%s issued %d times on a healthy system", op, n)
		}
	}
	if n := len(slept.all()); n != 0 {
		t.Errorf("healthy pass slept %d times", n)
	}
	if col.count() != 1 {
		t.Fatalf("published %d results, want 1", col.count())
	}
	if !res.State.WifiConnected || !res.State.InternetConnected {
		t.Errorf("result state not refreshed: %+v", res.State)
	}
}

func TestRunOnceConnectsWifi(t *testing.T) {
	f := &fakeProbe{ssid: "HomeNet", password: "pw", wifiOK: false, connectOK: true, online: true}
	e, _, _, slept := newTestEngine(f)

	res := e.RunOnce(context.Background(), RunConfig{})

	if res.Outcome != OutcomeOK {
		t.Fatalf("outcome = %v, want ok (err %v)", res.Outcome, res.Err)
	}
	if n := f.callCount("wifi.connect"); n != 1 {
		t.Errorf("connect issued %d times, want 1", n)
	}
	waits := slept.all()
	if len(waits) != 1 || waits[0] != 3*time.Second {
		t.Errorf("post-connect wait = %v, want one 3s wait", waits)
	}
	if !res.State.WifiConnected {
		t.Errorf("state not updated after connect: %+v", res.State)
	}
}

func TestRunOnceWifiFailureShortCircuits(t *testing.T) {
	f := &fakeProbe{ssid: "HomeNet", wifiOK: false, connectOK: false, online: true, vpnRunning: true}
	e, _, col, _ := newTestEngine(f)

	res := e.RunOnce(context.Background(), RunConfig{UseVPN: true})

	if res.Outcome != OutcomeWifiFailed {
		t.Fatalf("outcome = %v, want wifi failed", res.Outcome)
	}
	if !errors.Is(res.Err, ErrWifiConnect) {
		t.Errorf("err = %v, want ErrWifiConnect", res.Err)
	}
	for _, op := range []string{"inet.check", "vpn.running", "vpn.start", "vpn.stop"} {
		if n := f.callCount(op); n != 0 {
			t.Errorf("%s ran %d times after fatal Wi-Fi failure", op, n)
		}
	}
	if res.State.WifiConnected {
		t.Errorf("state claims Wi-Fi connected after failure")
	}
	if col.count() != 1 {
		t.Errorf("failed pass published %d results, want 1", col.count())
	}
}

func TestRunOnceResetRestoresInternet(t *testing.T) {
	f := &fakeProbe{ssid: "HomeNet", wifiOK: true, connectOK: true, online: false, connectRestoresInternet: true}
	conf := &confirmRecorder{}
	e, _, _, _ := newTestEngine(f, WithConfirm(conf.confirm))

	res := e.RunOnce(context.Background(), RunConfig{})

	if res.Outcome != OutcomeOK {
		t.Fatalf("outcome = %v, want ok (err %v)", res.Outcome, res.Err)
	}
	if n := f.callCount("wifi.disconnect"); n != 1 {
		t.Errorf("disconnect issued %d times, want 1", n)
	}
	if n := f.callCount("wifi.connect"); n != 1 {
		t.Errorf("connect issued %d times, want 1", n)
	}
	if n := f.callCount("inet.check"); n != 2 {
		t.Errorf("reachability probed %d times, want 2", n)
	}
	asked := conf.askedActions()
	if len(asked) != 1 || asked[0] != ActionResetWifi {
		t.Errorf("confirmations asked = %v, want [reset Wi-Fi]", asked)
	}
	if !res.State.InternetConnected {
		t.Errorf("state not updated after reset: %+v", res.State)
	}
}

func TestRunOnceInternetFailureFatal(t *testing.T) {
	f := &fakeProbe{ssid: "HomeNet", wifiOK: true, connectOK: true, online: false, vpnRunning: false}
	e, _, _, _ := newTestEngine(f)

	res := e.RunOnce(context.Background(), RunConfig{UseVPN: true})

	if res.Outcome != OutcomeInternetFailed {
		t.Fatalf("outcome = %v, want internet failed", res.Outcome)
	}
	if !errors.Is(res.Err, ErrInternetUnreachable) {
		t.Errorf("err = %v, want ErrInternetUnreachable", res.Err)
	}
	if n := f.callCount("vpn.running"); n != 0 {
		t.Errorf("VPN stage ran after fatal internet failure")
	}
	if res.State.InternetConnected {
		t.Errorf("state claims internet up after failure")
	}
}

func TestRunOnceDeclinedResetIsFatal(t *testing.T) {
	f := &fakeProbe{ssid: "HomeNet", wifiOK: true, connectOK: true, online: false, connectRestoresInternet: true}
	conf := &confirmRecorder{deny: map[Action]bool{ActionResetWifi: true}}
	e, _, _, _ := newTestEngine(f, WithConfirm(conf.confirm))

	res := e.RunOnce(context.Background(), RunConfig{})

	if res.Outcome != OutcomeInternetFailed {
		t.Fatalf("outcome = %v, want internet failed", res.Outcome)
	}
	if f.callCount("wifi.disconnect") != 0 || f.callCount("wifi.connect") != 0 {
		t.Errorf("reset ran despite being declined: %v", f.calls)
	}
	asked := conf.askedActions()
	if len(asked) != 1 || asked[0] != ActionResetWifi {
		t.Errorf("confirmations asked = %v, want [reset Wi-Fi]", asked)
	}
}

func TestRunOnceStartsVPN(t *testing.T) {
	f := &fakeProbe{ssid: "HomeNet", wifiOK: true, online: true, vpnRunning: false, startOK: true}
	e, _, _, _ := newTestEngine(f)

	res := e.RunOnce(context.Background(), RunConfig{UseVPN: true})

	if res.Outcome != OutcomeOK {
		t.Fatalf("outcome = %v, want ok (err %v)", res.Outcome, res.Err)
	}
	if n := f.callCount("vpn.start"); n != 1 {
		t.Errorf("VPN started %d times, want 1", n)
	}
}

func TestRunOnceDegradedWhenVPNStartFails(t *testing.T) {
	f := &fakeProbe{ssid: "HomeNet", wifiOK: true, online: true, vpnRunning: false, startOK: false}
	e, _, col, _ := newTestEngine(f)

	res := e.RunOnce(context.Background(), RunConfig{UseVPN: true})

	if res.Outcome != OutcomeDegraded {
		t.Fatalf("outcome = %v, want degraded", res.Outcome)
	}
	if !errors.Is(res.Err, ErrVPNStart) {
		t.Errorf("err = %v, want ErrVPNStart", res.Err)
	}
	if res.Outcome.Fatal() {
		t.Errorf("degraded outcome reported as fatal")
	}
	if col.count() != 1 {
		t.Errorf("degraded pass published %d results, want 1", col.count())
	}
}

func TestRunOnceDeclinedVPNStartIsOK(t *testing.T) {
	f := &fakeProbe{ssid: "HomeNet", wifiOK: true, online: true, vpnRunning: false, startOK: true}
	conf := &confirmRecorder{deny: map[Action]bool{ActionStartVPN: true}}
	e, _, _, _ := newTestEngine(f, WithConfirm(conf.confirm))

	res := e.RunOnce(context.Background(), RunConfig{UseVPN: true})

	if res.Outcome != OutcomeOK {
		t.Fatalf("outcome = %v, want ok (err %v)", res.Outcome, res.Err)
	}
	if res.Err != nil {
		t.Errorf("declined start produced error: %v", res.Err)
	}
	if f.callCount("vpn.start") != 0 {
		t.Errorf("VPN started despite being declined")
	}
}

func TestRunOnceStopsUnwantedVPN(t *testing.T) {
	f := &fakeProbe{ssid: "HomeNet", password: "pw", wifiOK: true, online: true, vpnRunning: true, stopOK: true}
	e, _, _, _ := newTestEngine(f)

	res := e.RunOnce(context.Background(), RunConfig{UseVPN: false})

	if res.Outcome != OutcomeOK {
		t.Fatalf("outcome = %v, want ok (err %v)", res.Outcome, res.Err)
	}
	if n := f.callCount("vpn.stop"); n != 1 {
		t.Errorf("VPN stopped %d times, want 1", n)
	}
	if f.callCount("vpn.start") != 0 {
		t.Errorf("VPN started during a stop pass")
	}
	if res.State.VPNEstablished {
		t.Errorf("state claims tunnel established after stop")
	}
}

func TestRunOnceRecoversProbePanic(t *testing.T) {
	f := &fakeProbe{ssid: "HomeNet", wifiOK: true, online: true}
	f.inetFault = func() { panic("connectivity checker exploded") }
	e, _, col, _ := newTestEngine(f)

	res := e.RunOnce(context.Background(), RunConfig{})

	if res.Outcome != OutcomeUnexpected {
		t.Fatalf("outcome = %v, want unexpected", res.Outcome)
	}
	if res.Err == nil || !strings.Contains(res.Err.Error(), "connectivity checker exploded") {
		t.Errorf("err = %v, want wrapped panic cause", res.Err)
	}
	if col.count() != 1 {
		t.Errorf("crashed pass published %d results, want 1", col.count())
	}
}

func TestStartAutoInvalidInterval(t *testing.T) {
	f := &fakeProbe{ssid: "HomeNet", wifiOK: true, online: true}
	e, _, col, _ := newTestEngine(f)

	for _, interval := range []time.Duration{0, -time.Second} {
		if err := e.StartAuto(RunConfig{Interval: interval}); !errors.Is(err, ErrInvalidInterval) {
			t.Fatalf("StartAuto(%v) = %v, want ErrInvalidInterval", interval, err)
		}
	}
	if e.AutoRunning() {
		t.Fatalf("auto mode running after rejected start")
	}
	time.Sleep(30 * time.Millisecond)
	if f.totalCalls() != 0 || col.count() != 0 {
		t.Errorf("rejected start had side effects: %d calls, %d results", f.totalCalls(), col.count())
	}
}

func TestStartAutoTwice(t *testing.T) {
	f := &fakeProbe{ssid: "HomeNet", wifiOK: true, online: true}
	e, _, _, _ := newTestEngine(f)

	if err := e.StartAuto(RunConfig{Interval: 10 * time.Millisecond}); err != nil {
		t.Fatalf("StartAuto: %v", err)
	}
	defer e.StopAuto()

	if err := e.StartAuto(RunConfig{Interval: 10 * time.Millisecond}); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second StartAuto = %v, want ErrAlreadyRunning", err)
	}
}

func TestAutoModeRunsPasses(t *testing.T) {
	f := &fakeProbe{ssid: "HomeNet", wifiOK: true, online: true}
	e, bus, col, _ := newTestEngine(f)

	var modeMu sync.Mutex
	var modes []core.AutoModePayload
	bus.Subscribe(core.EventAutoMode, func(ev core.Event) {
		p := ev.Payload.(core.AutoModePayload)
		modeMu.Lock()
		modes = append(modes, p)
		modeMu.Unlock()
	})

	if err := e.StartAuto(RunConfig{UseVPN: false, Interval: 5 * time.Millisecond}); err != nil {
		t.Fatalf("StartAuto: %v", err)
	}
	if !e.AutoRunning() {
		t.Fatalf("auto mode not reported running")
	}
	waitFor(t, func() bool { return col.count() >= 2 })
	e.StopAuto()

	if res := col.last(); res.Outcome != OutcomeOK {
		t.Errorf("auto pass outcome = %v, want ok (err %v)", res.Outcome, res.Err)
	}
	modeMu.Lock()
	defer modeMu.Unlock()
	if len(modes) != 2 || !modes[0].Running || modes[1].Running {
		t.Errorf("auto mode events = %+v, want start then stop", modes)
	}
	if modes[0].Interval != 5*time.Millisecond {
		t.Errorf("start event interval = %v", modes[0].Interval)
	}
}

func TestStopAutoHaltsScheduling(t *testing.T) {
	f := &fakeProbe{ssid: "HomeNet", wifiOK: true, online: true}
	e, _, col, _ := newTestEngine(f)

	if err := e.StartAuto(RunConfig{Interval: 5 * time.Millisecond}); err != nil {
		t.Fatalf("StartAuto: %v", err)
	}
	waitFor(t, func() bool { return col.count() >= 1 })
	e.StopAuto()

	if e.AutoRunning() {
		t.Fatalf("auto mode reported running after stop")
	}
	n := col.count()
	time.Sleep(30 * time.Millisecond)
	if got := col.count(); got != n {
		t.Errorf("passes kept firing after StopAuto: %d -> %d", n, got)
	}

	// Stopping again, and stopping an engine that never started, are no-ops.
	e.StopAuto()
	e2, _, _, _ := newTestEngine(&fakeProbe{})
	e2.StopAuto()
}

func TestPassesNeverOverlap(t *testing.T) {
	f := &fakeProbe{ssid: "HomeNet", wifiOK: true, online: true, statusDelay: 20 * time.Millisecond}
	e, _, _, _ := newTestEngine(f)

	if err := e.StartAuto(RunConfig{Interval: 2 * time.Millisecond}); err != nil {
		t.Fatalf("StartAuto: %v", err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 3; j++ {
				e.RunOnce(context.Background(), RunConfig{})
			}
		}()
	}
	wg.Wait()
	e.StopAuto()

	if got := f.maxConcurrent(); got != 1 {
		t.Fatalf("observed %d concurrent probe calls, want 1", got)
	}
}

func TestAutoPassesAutoApprove(t *testing.T) {
	f := &fakeProbe{ssid: "HomeNet", wifiOK: true, connectOK: true, online: false, connectRestoresInternet: true}
	conf := &confirmRecorder{}
	e, _, _, _ := newTestEngine(f, WithConfirm(conf.confirm))

	if err := e.StartAuto(RunConfig{Interval: 5 * time.Millisecond}); err != nil {
		t.Fatalf("StartAuto: %v", err)
	}
	waitFor(t, func() bool { return f.callCount("wifi.disconnect") >= 1 })
	e.StopAuto()

	if asked := conf.askedActions(); len(asked) != 0 {
		t.Errorf("unattended pass consulted the confirm hook: %v", asked)
	}
}

func TestCheckStatusRepairsInteractively(t *testing.T) {
	f := &fakeProbe{
		ssid: "HomeNet", wifiOK: true, connectOK: true,
		online: false, connectRestoresInternet: true,
		vpnRunning: false, startOK: true,
	}
	conf := &confirmRecorder{}
	e, _, _, slept := newTestEngine(f, WithConfirm(conf.confirm))

	wifiOK, internetOK := e.CheckStatus(context.Background())

	if !wifiOK || !internetOK {
		t.Fatalf("CheckStatus = (%v, %v), want (true, true) after repairs", wifiOK, internetOK)
	}
	asked := conf.askedActions()
	if len(asked) != 2 || asked[0] != ActionResetWifi || asked[1] != ActionStartVPN {
		t.Errorf("confirmations asked = %v, want [reset Wi-Fi, start VPN]", asked)
	}
	if f.callCount("wifi.disconnect") != 1 || f.callCount("wifi.connect") != 1 {
		t.Errorf("reset not performed exactly once: %v", f.calls)
	}
	if f.callCount("vpn.start") != 1 {
		t.Errorf("VPN not started: %v", f.calls)
	}
	waits := slept.all()
	if len(waits) != 2 || waits[0] != statusSettle || waits[1] != statusSettle {
		t.Errorf("settle waits = %v, want two of %v", waits, statusSettle)
	}
}

func TestCheckStatusDeclined(t *testing.T) {
	f := &fakeProbe{ssid: "HomeNet", wifiOK: true, online: false, connectRestoresInternet: true, vpnRunning: false}
	conf := &confirmRecorder{deny: map[Action]bool{ActionResetWifi: true, ActionStartVPN: true}}
	e, _, _, _ := newTestEngine(f, WithConfirm(conf.confirm))

	wifiOK, internetOK := e.CheckStatus(context.Background())

	if !wifiOK || internetOK {
		t.Fatalf("CheckStatus = (%v, %v), want (true, false) untouched", wifiOK, internetOK)
	}
	for _, op := range []string{"wifi.disconnect", "wifi.connect", "vpn.start"} {
		if f.callCount(op) != 0 {
			t.Errorf("%s ran despite declined confirmation", op)
		}
	}
}

func TestCheckStatusHealthySkipsPrompts(t *testing.T) {
	f := &fakeProbe{ssid: "HomeNet", wifiOK: true, online: true, vpnRunning: true}
	conf := &confirmRecorder{}
	e, _, _, _ := newTestEngine(f, WithConfirm(conf.confirm))

	wifiOK, internetOK := e.CheckStatus(context.Background())

	if !wifiOK || !internetOK {
		t.Fatalf("CheckStatus = (%v, %v), want (true, true)", wifiOK, internetOK)
	}
	if asked := conf.askedActions(); len(asked) != 0 {
		t.Errorf("healthy sweep asked confirmations: %v", asked)
	}
}
