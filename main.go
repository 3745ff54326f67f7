package main

import (
	"fmt"
	"os"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"serial-monitor/config"
	"serial-monitor/logging"
	"serial-monitor/monitor"
	"serial-monitor/ui"
)

// Version is set at build time.
var Version = "0.0.0"

var (
	verbose   bool
	configDir string
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "serial-monitor",
		Short:         "Watch and talk to a serial port.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGUI()
		},
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging.")
	cmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Directory for settings and logs (default: user config dir).")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("serial-monitor version: %s\n", Version)
		},
	}

	cmd.AddCommand(versionCmd, newPortsCmd(), newMonitorCmd())
	return cmd
}

// setup resolves the config directory, configures logging and loads the
// settings. Settings errors fall back to defaults.
func setup() (string, config.Settings, func()) {
	dir := configDir
	if dir == "" {
		d, err := config.Dir()
		if err != nil {
			log.WithError(err).Warn("No config directory, settings will not persist")
		}
		dir = d
	}

	closer := logging.Setup(dir, verbose)

	settings := config.Default()
	if dir != "" {
		s, err := config.Load(dir)
		if err != nil {
			log.WithError(err).Warn("Using default settings")
		}
		settings = s
	}
	return dir, settings, func() { _ = closer.Close() }
}

// newController builds the GUI's controller. A nil open uses real serial
// ports.
func newController(settings config.Settings, queue *monitor.Queue, open monitor.OpenFunc) *monitor.Controller {
	return monitor.NewController(queue, monitor.Options{
		Open:        open,
		ReadTimeout: time.Duration(settings.ReadTimeoutMs) * time.Millisecond,
		Logger:      log.StandardLogger(),
	})
}

func runGUI() error {
	dir, settings, done := setup()
	defer done()

	queue := monitor.NewQueue(monitor.DefaultQueueSize)
	ctrl := newController(settings, queue, nil)

	a := app.NewWithID("com.github.serial-monitor")
	w := a.NewWindow("Serial Monitor")
	w.Resize(fyne.NewSize(980, 640))

	appUI := ui.NewAppUI(w, ctrl, queue, settings, dir, log.StandardLogger())
	appUI.Start()
	log.WithField("version", Version).Info("Starting")

	w.ShowAndRun()
	appUI.Close()
	log.WithField("stats", ctrl.Stats().Snapshot().String()).Info("Exiting")
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
