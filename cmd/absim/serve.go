package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tturner/absim/internal/capture"
	"github.com/tturner/absim/internal/config"
	"github.com/tturner/absim/internal/console"
	"github.com/tturner/absim/internal/logging"
	"github.com/tturner/absim/internal/randid"
	"github.com/tturner/absim/internal/simserver"
)

type serveFlags struct {
	plc      string
	path     string
	port     int
	debug    int
	rejectFO int
	delayMs  int
	tags     []string
	tagFile  string
	pcapFile string
	tui      bool
}

func newServeCmd() *cobra.Command {
	flags := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the simulator, listening for CIP/PCCC clients",
		Long: `serve starts the simulator's TCP listener and answers EtherNet/IP
encapsulation, CIP, and PCCC requests against the tag set given on the
command line, impersonating the chosen PLC family.`,
		Example: `  # ControlLogix with two tags, one of them a BOOL array
  absim serve --plc=ControlLogix --path=1,0 --tag=Counter:DINT[1] --tag=Flags:BOOL[100]

  # SLC 500 with an N-file and inject one Forward Open rejection
  absim serve --plc=SLC-500 --tag=N7[100] --reject_fo=1

  # Load many tags from a file and watch the console
  absim serve --plc=Micro800 --tagfile=tags.yaml --tui`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(flags)
		},
	}

	cmd.Flags().StringVar(&flags.plc, "plc", "", "PLC family: ControlLogix|Micro800|Omron|PLC-5|SLC-500|MicroLogix (required)")
	cmd.Flags().StringVar(&flags.path, "path", "", "connection path components, e.g. --path=1,0 (required for ControlLogix)")
	cmd.Flags().IntVar(&flags.port, "port", 44818, "TCP port to listen on")
	cmd.Flags().IntVar(&flags.debug, "debug", 2, "log verbosity 0 (silent) to 4 (debug)")
	cmd.Flags().IntVar(&flags.rejectFO, "reject_fo", 0, "inject N Forward Open rejections per connection before accepting")
	cmd.Flags().IntVar(&flags.delayMs, "delay", 0, "artificial per-response delay in milliseconds")
	cmd.Flags().StringArrayVar(&flags.tags, "tag", nil, "tag spec: name:TYPE[dims] (CIP) or FILE[size] (PCCC); repeatable")
	cmd.Flags().StringVar(&flags.tagFile, "tagfile", "", "YAML file of tag specs, combined with any --tag flags")
	cmd.Flags().StringVar(&flags.pcapFile, "pcap", "", "record every frame sent/received to this pcap file")
	cmd.Flags().BoolVar(&flags.tui, "tui", false, "run an interactive operator console instead of blocking on a signal")

	cmd.MarkFlagRequired("plc")
	return cmd
}

func runServe(flags *serveFlags) error {
	tmpl, err := config.BuildTemplate(config.Flags{
		PLC:      flags.plc,
		Path:     flags.path,
		Port:     flags.port,
		Debug:    flags.debug,
		RejectFO: flags.rejectFO,
		DelayMs:  flags.delayMs,
		Tags:     flags.tags,
		TagFile:  flags.tagFile,
	})
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(tmpl.DebugLevel, "")
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Close()

	var recorder *capture.Recorder
	if flags.pcapFile != "" {
		recorder, err = capture.NewRecorder(flags.pcapFile)
		if err != nil {
			return fmt.Errorf("start packet capture: %w", err)
		}
	}

	store := tagstoreFromTemplate(tmpl)

	srv := simserver.NewServer(simserver.Config{
		Family:        tmpl.Family,
		ExpectedEPATH: tmpl.ExpectedEPATH,
		Port:          tmpl.Port,
		RejectFOCount: tmpl.RejectFOCount,
		Delay:         tmpl.Delay,
		Logger:        logger,
		Store:         store,
		Capture:       recorder,
	}, randid.NewSource(time.Now().UnixNano()))

	if err := srv.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	if flags.tui {
		err := console.Run(srv, tmpl.Family.String())
		stopErr := srv.Stop()
		if err != nil {
			return err
		}
		return stopErr
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	fmt.Fprintln(os.Stdout, "shutting down...")
	return srv.Stop()
}
