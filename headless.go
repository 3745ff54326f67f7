package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"serial-monitor/headless"
	"serial-monitor/monitor"
)

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := monitor.ListPorts()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "(No ports found)")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DEVICE\tDESCRIPTION\tVID:PID\tSERIAL")
			for _, p := range ports {
				ids := ""
				if p.IsUSB {
					ids = p.VID + ":" + p.PID
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Device, p.Description, ids, p.SerialNumber)
			}
			return tw.Flush()
		},
	}
}

type monitorFlags struct {
	port       string
	baud       int
	eol        string
	timestamps bool
}

func newMonitorCmd() *cobra.Command {
	var f monitorFlags
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Stream a serial port to stdout and send stdin lines to it",
		Example: "  serial-monitor monitor -p /dev/ttyUSB0 -b 9600\n" +
			"  serial-monitor monitor -p COM3 --eol '\\r\\n' --timestamps",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, settings, done := setup()
			defer done()

			if f.baud == 0 {
				f.baud = settings.BaudRate
			}
			if f.eol == "" {
				f.eol = settings.LineEnding
			}
			eol, err := monitor.ParseLineEnding(f.eol)
			if err != nil {
				return err
			}
			if !monitor.IsStandardBaudRate(f.baud) {
				log.WithField("baud", f.baud).Warn("Non-standard baud rate")
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			return headless.Run(ctx, headless.Options{
				Port:         f.port,
				BaudRate:     f.baud,
				LineEnding:   eol,
				Timestamps:   f.timestamps,
				PollInterval: time.Duration(settings.PollIntervalMs) * time.Millisecond,
				ReadTimeout:  time.Duration(settings.ReadTimeoutMs) * time.Millisecond,
				Logger:       log.StandardLogger(),
			}, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&f.port, "port", "p", "", "Serial device to open.")
	cmd.Flags().IntVarP(&f.baud, "baud", "b", 0, "Baud rate (default: saved setting).")
	cmd.Flags().StringVar(&f.eol, "eol", "", `Line ending appended to sent lines: None, \n, \r or \r\n (default: saved setting).`)
	cmd.Flags().BoolVarP(&f.timestamps, "timestamps", "t", false, "Prefix received rows with their timestamp.")
	_ = cmd.MarkFlagRequired("port")
	return cmd
}
