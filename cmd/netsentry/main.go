// netsentry keeps a Windows machine's connectivity converged: Wi-Fi
// associated, internet reachable, and the VPN client matching the
// configured posture. The root command runs the service together with
// the interactive dashboard; --headless runs the service alone with
// the named-pipe control server for netsentry-ctl. Started by the
// Windows Service Control Manager, the process runs headless under the
// SCM lifecycle instead of OS signals.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"netsentry/internal/core"
	"netsentry/internal/daemon"
	"netsentry/internal/engine"
	"netsentry/internal/ipc"
	"netsentry/internal/monitor"
	"netsentry/internal/notify"
	"netsentry/internal/probe"
	"netsentry/internal/process"
	"netsentry/internal/store"
	"netsentry/internal/tui"
	"netsentry/internal/winsvc"
)

// Build info, injected via ldflags at compile time.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

const logTag = "Main"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		headless   bool
	)
	cmd := &cobra.Command{
		Use:   "netsentry",
		Short: "netsentry keeps Wi-Fi, internet, and VPN connectivity converged",
		Long: `netsentry watches the machine's connectivity and reconciles it toward
the configured posture: Wi-Fi associated, internet reachable, and the
VPN client running (or stopped) as desired. Corrective actions go
through confirmation prompts on the dashboard; in headless mode they
are applied automatically.

Running without a subcommand starts the service and the dashboard.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if winsvc.IsWindowsService() {
				stop := make(chan struct{})
				return winsvc.Run(
					func() error { return run(configPath, true, stop) },
					func() { close(stop) },
				)
			}
			return run(configPath, headless, nil)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to configuration file (default ~/.netsentry/config.yaml)")
	cmd.Flags().BoolVar(&headless, "headless", false, "run the service without the dashboard")
	cmd.AddCommand(newVersionCmd(), newServiceCmd())
	return cmd
}

func newServiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage the Windows service registration",
	}

	var configPath string
	install := &cobra.Command{
		Use:   "install",
		Short: "Register netsentry as a Windows service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			exe, err := os.Executable()
			if err != nil {
				return err
			}
			if err := winsvc.Install(exe, configPath); err != nil {
				return err
			}
			fmt.Printf("Service %q installed\n", winsvc.Name)
			return nil
		},
	}
	install.Flags().StringVar(&configPath, "config", "", "config path recorded in the service command line")

	uninstall := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the Windows service registration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := winsvc.Uninstall(); err != nil {
				return err
			}
			fmt.Printf("Service %q removed\n", winsvc.Name)
			return nil
		},
	}

	start := &cobra.Command{
		Use:   "start",
		Short: "Start the installed service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := winsvc.Start(); err != nil {
				return err
			}
			fmt.Printf("Service %q running\n", winsvc.Name)
			return nil
		},
	}

	stop := &cobra.Command{
		Use:   "stop",
		Short: "Stop the installed service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := winsvc.Stop(); err != nil {
				return err
			}
			fmt.Printf("Service %q stopped\n", winsvc.Name)
			return nil
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the service registration state",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			switch {
			case !winsvc.Installed():
				fmt.Println("Service is not installed")
			case winsvc.Running():
				fmt.Println("Service is installed and running")
			default:
				fmt.Println("Service is installed but stopped")
			}
		},
	}

	cmd.AddCommand(install, uninstall, start, stop, status)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("netsentry %s (commit=%s, built=%s)\n", version, commit, buildDate)
		},
	}
}

func run(configPath string, headless bool, stop <-chan struct{}) error {
	// === 1. Core components ===
	bus := core.NewEventBus()
	buffer := core.NewLogBuffer(core.DefaultLogBufferSize)

	if configPath == "" {
		p, err := core.DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("resolve config path: %w", err)
		}
		configPath = p
	}

	bootLog := core.NewLogger(core.LogConfig{}, core.NewConsoleSink(), buffer)
	cfgManager := core.NewConfigManager(configPath, bus, bootLog)
	if err := cfgManager.Load(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := cfgManager.Get()

	sinks := []core.LogSink{core.NewConsoleSink(), buffer}
	if path, err := cfg.LogFilePath(); err != nil {
		bootLog.Warnf(logTag, "Log file path: %v", err)
	} else if path != "" {
		fs, err := core.NewFileSink(path)
		if err != nil {
			bootLog.Warnf(logTag, "Log file unavailable: %v", err)
		} else {
			defer fs.Close()
			sinks = append(sinks, fs)
		}
	}
	log := core.NewLogger(cfg.Logging, sinks...)
	log.Infof(logTag, "netsentry %s starting", version)

	tracker := core.NewStateTracker(bus)

	// === 2. Profile store ===
	dbPath, err := cfg.DatabasePath(configPath)
	if err != nil {
		return fmt.Errorf("resolve database path: %w", err)
	}
	st, err := store.Open(dbPath, log)
	if err != nil {
		return fmt.Errorf("open profile store: %w", err)
	}

	// === 3. System probe ===
	procs := process.NewTable(log)
	prober := probe.New(probe.ConfigFrom(cfg), probe.NewCommandRunner(), procs, st, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if ssid := cfg.Wifi.SSID; ssid != "" {
		password, found, err := st.Password(ctx, ssid)
		if err != nil {
			return fmt.Errorf("look up configured SSID: %w", err)
		}
		if !found {
			log.Warnf(logTag, "No stored profile for configured SSID %q", ssid)
		}
		prober.SetCredentials(ssid, password)
	}

	// === 4. Profile sync from the system ===
	syncSystemProfiles(ctx, prober, st, log)

	// === 5. Tunnel monitor ===
	sampler := monitor.NewProcessSampler(procs, cfg.VPN.UIImageOrDefault(), cfg.VPN.TunnelImageOrDefault())
	mon := monitor.New(sampler, tracker, bus, log, cfg.Monitor.IntervalDuration())
	if err := mon.Start(); err != nil {
		return fmt.Errorf("start tunnel monitor: %w", err)
	}

	// === 6. Reconciliation engine ===
	prompter := tui.NewPrompter()
	eng := engine.New(prober, tracker, bus, log, engine.WithConfirm(prompter.Ask))

	// === 7. Control server ===
	svc := daemon.NewService(daemon.Deps{
		Engine:  eng,
		Net:     prober,
		Store:   st,
		Tracker: tracker,
		Config:  cfgManager,
		Logs:    buffer,
	})
	var ctl *ipc.Server
	if ln, err := ipc.ListenPipe(); err != nil {
		log.Warnf(logTag, "Control pipe unavailable: %v", err)
	} else {
		ctl = ipc.NewServer(svc, log)
		go func() {
			if err := ctl.Serve(ln); err != nil {
				log.Errorf(logTag, "Control server failed: %v", err)
			}
		}()
		log.Infof(logTag, "Control server listening on %s", ipc.PipeName)
	}

	// === 8. Notifications ===
	toasts := notify.NewManager(cfg.Notifications.NotifyEnabled(), log)
	toasts.Attach(bus)

	// === 9. Frontend ===
	var runErr error
	if headless {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		log.Infof(logTag, "Running headless, control via netsentry-ctl")
		// A nil stop channel never fires; plain headless runs end on a
		// signal, service runs end when the SCM closes stop.
		select {
		case <-sig:
		case <-stop:
		}
	} else {
		runErr = tui.Run(tui.Deps{
			Engine:   eng,
			Net:      prober,
			Store:    st,
			Tracker:  tracker,
			Config:   cfgManager,
			Logs:     buffer,
			Bus:      bus,
			Log:      log,
			Prompter: prompter,
			Version:  version,
		})
	}

	// === Graceful shutdown ===
	log.Infof(logTag, "Shutting down")
	cancel()

	done := make(chan struct{})
	go func() {
		eng.StopAuto()
		mon.Stop()
		if ctl != nil {
			ctl.Close()
		}
		if err := st.Close(); err != nil {
			log.Warnf(logTag, "Closing profile store: %v", err)
		}
		close(done)
	}()

	select {
	case <-done:
		log.Infof(logTag, "Shutdown complete")
	case <-time.After(10 * time.Second):
		log.Errorf(logTag, "Shutdown timed out, forcing exit")
		os.Exit(1)
	}
	return runErr
}

// syncSystemProfiles folds the system's saved Wi-Fi profiles into the
// store. Conflicts never overwrite; they are logged and resolved later
// through the import flows.
func syncSystemProfiles(ctx context.Context, prober *probe.Prober, st store.Store, log *core.Logger) {
	saved, err := prober.SavedProfiles(ctx)
	if err != nil {
		log.Debugf(logTag, "System profiles unavailable: %v", err)
		return
	}
	if len(saved) == 0 {
		return
	}
	report, err := st.UpsertBatch(ctx, saved)
	if err != nil {
		log.Warnf(logTag, "Profile sync failed: %v", err)
		return
	}
	log.Infof(logTag, "Profile sync: %d added, %d unchanged, %d conflicts",
		report.Added, report.Skipped, len(report.Conflicts))
	for _, c := range report.Conflicts {
		log.Warnf(logTag, "Stored password for %q differs from the system profile; resolve with a profile import", c.SSID)
	}
}
