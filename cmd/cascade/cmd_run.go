package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/equ-0/cascade/internal/config"
	"github.com/equ-0/cascade/internal/logging"
	"github.com/equ-0/cascade/internal/telemetry"
	"github.com/equ-0/cascade/pkg/wanagent"
)

var (
	runConfigPath string
	runWSPort     int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Load a configuration file and run the agent until interrupted",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "path to the JSON configuration file (required)")
	runCmd.Flags().IntVar(&runWSPort, "ws-port", 0, "port for the debug WebSocket telemetry feed (0 disables it)")
	runCmd.MarkFlagRequired("config")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		logging.EnableDebug()
	}

	printBanner()

	cfg, err := config.Load(runConfigPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	log := logging.New(cfg.LocalSiteID)
	stats := &telemetry.Stats{}

	var feed *telemetry.WSFeed
	if runWSPort > 0 {
		feed, err = telemetry.StartWSFeed(runWSPort)
		if err != nil {
			return fmt.Errorf("starting telemetry feed: %w", err)
		}
		defer feed.Close()
		log.Info("debug telemetry feed listening on 127.0.0.1:%d/feed", runWSPort)
	}

	opts := wanagent.AgentOptions{
		LocalSite:      wanagent.SiteID(cfg.LocalSiteID),
		ServerSites:    toSiteAddrs(cfg.ServerSites),
		SenderSites:    toSiteAddrs(cfg.SenderSites),
		LocalPort:      cfg.PrivatePort,
		WindowSize:     cfg.WindowSize,
		MaxPayloadSize: cfg.MaxPayloadSize,

		Callback: func(siteID wanagent.SiteID, payload []byte) {
			log.Debug("received %d bytes from site %d", len(payload), siteID)
		},

		Predicate: func(snapshot map[wanagent.SiteID]uint64) {
			if feed != nil {
				feed.Broadcast(toUint32Snapshot(snapshot))
			}
		},

		ServerReady: func() { log.Success("server core ready, accepting peer connections") },
		SenderReady: func() { log.Success("sender core ready, peers connected") },

		OnSent: stats.AddSent,
		OnAck:  stats.AddAck,
	}

	agent, err := wanagent.NewAgent(opts)
	if err != nil {
		return fmt.Errorf("starting agent: %w", err)
	}

	stats.StartReporter(cmd.Context())

	var once sync.Once
	shutdown := func() {
		once.Do(func() {
			log.Info("shutting down")
			if err := agent.ShutdownAndWait(); err != nil {
				log.Error("shutdown: %v", err)
			}
		})
	}

	go func() {
		<-cmd.Context().Done()
		shutdown()
	}()

	waitForKeypressOrSignal(cmd.Context())
	shutdown()

	return nil
}

// waitForKeypressOrSignal blocks until either stdin receives a line or ctx
// is cancelled by the interrupt signal registered in main, whichever comes
// first — the same keypress-to-quit convenience 1ureka-roj1/cmd/roj1 offers
// in interactive mode, generalized to also respect Ctrl+C.
func waitForKeypressOrSignal(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		var discard [1]byte
		os.Stdin.Read(discard[:])
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
}

func toSiteAddrs(entries []config.SiteEntry) []wanagent.SiteAddr {
	out := make([]wanagent.SiteAddr, len(entries))
	for i, e := range entries {
		out[i] = wanagent.SiteAddr{ID: wanagent.SiteID(e.ID), IP: e.IP, Port: e.Port}
	}
	return out
}

func toUint32Snapshot(in map[wanagent.SiteID]uint64) map[uint32]uint64 {
	out := make(map[uint32]uint64, len(in))
	for k, v := range in {
		out[uint32(k)] = v
	}
	return out
}
