// netsentry-ctl drives a running netsentry service over its named
// pipe: status, one-shot reconciliation, auto mode, direct Wi-Fi and
// VPN control, profile management, and log retrieval.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"netsentry/internal/core"
	"netsentry/internal/ipc"
)

// Build info, injected via ldflags at compile time.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "netsentry-ctl",
		Short:        "Control a running netsentry service",
		SilenceUsage: true,
	}
	cmd.Version = fmt.Sprintf("%s (commit=%s, built=%s)", version, commit, buildDate)
	cmd.AddCommand(
		newPingCmd(),
		newStatusCmd(),
		newReconcileCmd(),
		newAutoCmd(),
		newWifiCmd(),
		newVPNCmd(),
		newProfilesCmd(),
		newLogsCmd(),
	)
	return cmd
}

// withClient dials the service for one command.
func withClient(fn func(*ipc.Client) error) error {
	c, err := ipc.Dial()
	if err != nil {
		return fmt.Errorf("connect to service: %w", err)
	}
	defer c.Close()
	return fn(c)
}

func newPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the service is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(c *ipc.Client) error {
				if err := c.Ping(); err != nil {
					return err
				}
				fmt.Println("Service is up")
				return nil
			})
		},
	}
}

func newStatusCmd() *cobra.Command {
	var fix bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the service's connectivity snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(c *ipc.Client) error {
				st, err := c.Status(fix)
				if err != nil {
					return err
				}
				printStatus(st)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "run a corrective sweep over Wi-Fi and internet first")
	return cmd
}

func newReconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconciliation pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			posture, err := postureFrom(cmd)
			if err != nil {
				return err
			}
			return withClient(func(c *ipc.Client) error {
				out, st, err := c.Reconcile(posture)
				if err != nil {
					return err
				}
				fmt.Printf("Outcome: %s (took %s)\n", out.Outcome, out.Took)
				if out.Outcome == "degraded" && out.Error != "" {
					fmt.Printf("Cause: %s\n", out.Error)
				}
				if st != nil {
					fmt.Println()
					printStatus(st)
				}
				switch out.Outcome {
				case "ok", "degraded":
					return nil
				default:
					return fmt.Errorf("reconciliation failed: %s", out.Error)
				}
			})
		},
	}
	addPostureFlags(cmd)
	return cmd
}

func newAutoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auto",
		Short: "Timer-driven reconciliation",
	}

	var interval time.Duration
	start := &cobra.Command{
		Use:   "start",
		Short: "Start timer-driven reconciliation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			posture, err := postureFrom(cmd)
			if err != nil {
				return err
			}
			return withClient(func(c *ipc.Client) error {
				st, err := c.AutoStart(posture, interval)
				if err != nil {
					return err
				}
				if st != nil && st.Interval != "" {
					fmt.Printf("Auto-configuration running every %s\n", st.Interval)
				} else {
					fmt.Println("Auto-configuration running")
				}
				return nil
			})
		},
	}
	addPostureFlags(start)
	start.Flags().DurationVar(&interval, "interval", 0, "pass interval (default from the service config)")

	stop := &cobra.Command{
		Use:   "stop",
		Short: "Stop timer-driven reconciliation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(c *ipc.Client) error {
				if _, err := c.AutoStop(); err != nil {
					return err
				}
				fmt.Println("Auto-configuration stopped")
				return nil
			})
		},
	}

	cmd.AddCommand(start, stop)
	return cmd
}

func newWifiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wifi",
		Short: "Direct Wi-Fi control",
	}

	connect := &cobra.Command{
		Use:   "connect [ssid]",
		Short: "Connect to a stored network (auto-select without an SSID)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ssid := ""
			if len(args) == 1 {
				ssid = args[0]
			}
			return withClient(func(c *ipc.Client) error {
				if err := c.ConnectWifi(ssid); err != nil {
					return err
				}
				fmt.Println("Wi-Fi connected")
				return nil
			})
		},
	}

	disconnect := &cobra.Command{
		Use:   "disconnect",
		Short: "Drop the wireless connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(c *ipc.Client) error {
				if err := c.DisconnectWifi(); err != nil {
					return err
				}
				fmt.Println("Wi-Fi disconnected")
				return nil
			})
		},
	}

	cmd.AddCommand(connect, disconnect)
	return cmd
}

func newVPNCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vpn",
		Short: "Direct VPN client control",
	}

	start := &cobra.Command{
		Use:   "start",
		Short: "Launch the VPN client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(c *ipc.Client) error {
				if err := c.StartVPN(); err != nil {
					return err
				}
				fmt.Println("VPN client started")
				return nil
			})
		},
	}

	stop := &cobra.Command{
		Use:   "stop",
		Short: "Terminate the VPN client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(c *ipc.Client) error {
				if err := c.StopVPN(); err != nil {
					return err
				}
				fmt.Println("VPN client stopped")
				return nil
			})
		},
	}

	cmd.AddCommand(start, stop)
	return cmd
}

func newProfilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Manage stored Wi-Fi credentials",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored profiles in insertion order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(c *ipc.Client) error {
				profiles, err := c.Profiles()
				if err != nil {
					return err
				}
				if len(profiles) == 0 {
					fmt.Println("No stored profiles")
					return nil
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "SSID\tPASSWORD")
				for _, p := range profiles {
					fmt.Fprintf(w, "%s\t%s\n", p.SSID, p.Password)
				}
				return w.Flush()
			})
		},
	}

	save := &cobra.Command{
		Use:   "save <ssid> <password>",
		Short: "Store or overwrite one profile",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(c *ipc.Client) error {
				if err := c.SaveProfile(args[0], args[1]); err != nil {
					return err
				}
				fmt.Printf("Saved profile %q\n", args[0])
				return nil
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <ssid>",
		Short: "Remove one profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(c *ipc.Client) error {
				if err := c.DeleteProfile(args[0]); err != nil {
					return err
				}
				fmt.Printf("Deleted profile %q\n", args[0])
				return nil
			})
		},
	}

	var replace bool
	imp := &cobra.Command{
		Use:   "import <file>",
		Short: "Merge profiles from a JSON file",
		Long: `Import reads a JSON array of {"ssid", "password"} objects and merges
it into the store. Profiles already stored with a different password
are kept and reported; pass --replace to overwrite them instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var creds []core.WifiCredential
			if err := json.Unmarshal(data, &creds); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			return withClient(func(c *ipc.Client) error {
				summary, err := c.ImportProfiles(creds, replace)
				if err != nil {
					return err
				}
				fmt.Printf("Added %d, unchanged %d, replaced %d\n",
					summary.Added, summary.Skipped, summary.Replaced)
				if len(summary.Conflicts) > 0 {
					fmt.Printf("%d profiles kept with their stored password (rerun with --replace to overwrite):\n",
						len(summary.Conflicts))
					for _, cf := range summary.Conflicts {
						fmt.Printf("  %s\n", cf.SSID)
					}
				}
				return nil
			})
		},
	}
	imp.Flags().BoolVar(&replace, "replace", false, "overwrite stored profiles on password conflicts")

	cmd.AddCommand(list, save, del, imp)
	return cmd
}

func newLogsCmd() *cobra.Command {
	var lines int
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print recent service log lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(c *ipc.Client) error {
				out, err := c.LogTail(lines)
				if err != nil {
					return err
				}
				for _, line := range out {
					fmt.Println(line)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "number of lines (0 for everything buffered)")
	return cmd
}

// --- Shared helpers ---

func addPostureFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("use-vpn", false, "force the VPN posture on for this operation")
	cmd.Flags().Bool("no-vpn", false, "force the VPN posture off for this operation")
}

// postureFrom folds the posture flags into the tri-state the wire
// format carries: nil means the service's configured posture.
func postureFrom(cmd *cobra.Command) (*bool, error) {
	useVPN, _ := cmd.Flags().GetBool("use-vpn")
	noVPN, _ := cmd.Flags().GetBool("no-vpn")
	if useVPN && noVPN {
		return nil, fmt.Errorf("--use-vpn and --no-vpn are mutually exclusive")
	}
	if useVPN {
		v := true
		return &v, nil
	}
	if noVPN {
		v := false
		return &v, nil
	}
	return nil, nil
}

func printStatus(st *ipc.Status) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Wi-Fi:\t%s\n", st.WifiMessage)
	fmt.Fprintf(w, "Internet:\t%s\n", pick(st.InternetConnected, "reachable", "unreachable"))
	fmt.Fprintf(w, "VPN client:\t%s\n", pick(st.VPNUIRunning, "running", "stopped"))
	fmt.Fprintf(w, "Tunnel:\t%s\n", tunnelText(st))
	fmt.Fprintf(w, "VPN:\t%s\n", pick(st.VPNEstablished, "established", "not established"))
	if st.AutoRunning {
		fmt.Fprintf(w, "Auto:\trunning every %s\n", st.Interval)
	} else {
		fmt.Fprintf(w, "Auto:\tstopped\n")
	}
	w.Flush()
}

func pick(v bool, yes, no string) string {
	if v {
		return yes
	}
	return no
}

func tunnelText(st *ipc.Status) string {
	switch {
	case st.TunnelActive:
		return "active"
	case st.TunnelRunning:
		return "starting"
	default:
		return "idle"
	}
}
