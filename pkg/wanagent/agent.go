//go:build linux

package wanagent

import "errors"

// Agent is the facade an application constructs from a loaded Config. It
// owns an optional ServerCore (if other sites are configured to connect to
// this one) and an optional SenderCore (if this site is configured to send
// to others) — spec.md §2 allows a site to play either role or both.
// Grounded on the original's split between WanAgentServer and
// WanAgentSender, generalized into one facade per SPEC_FULL.md's
// supplemented-features note.
type Agent struct {
	Server *ServerCore
	Sender *SenderCore
}

// AgentOptions carries everything needed to construct an Agent from a
// validated configuration.
type AgentOptions struct {
	LocalSite      SiteID
	ServerSites    []SiteAddr // sites this process sends to
	SenderSites    []SiteAddr // sites expected to connect to this process
	LocalPort      uint16
	WindowSize     uint64
	MaxPayloadSize uint64

	Callback  RemoteMessageCallback
	Predicate PredicateLambda

	ServerReady ReadyNotifier
	SenderReady ReadyNotifier

	// OnSent and OnAck are optional observability hooks forwarded straight
	// to the SenderCore; nil is a valid "no telemetry" choice.
	OnSent CounterHook
	OnAck  CounterHook
}

// NewAgent builds whichever of ServerCore/SenderCore the options call for.
// If ServerSites is non-empty (and contains a peer other than LocalSite),
// a SenderCore is constructed; if SenderSites is non-empty, a ServerCore is
// constructed and Serve is started in a background goroutine.
func NewAgent(opts AgentOptions) (*Agent, error) {
	a := &Agent{}

	if len(opts.SenderSites) > 0 {
		server, err := NewServerCore(opts.LocalSite, len(opts.SenderSites), opts.LocalPort, opts.MaxPayloadSize, opts.Callback)
		if err != nil {
			return nil, err
		}
		a.Server = server
		go func() {
			_ = server.Serve(opts.ServerReady)
		}()
	}

	if hasRemotePeer(opts.LocalSite, opts.ServerSites) {
		sender, err := NewSenderCore(opts.LocalSite, opts.ServerSites, opts.WindowSize, opts.MaxPayloadSize, opts.Predicate, opts.SenderReady, opts.OnSent, opts.OnAck)
		if err != nil {
			if a.Server != nil {
				a.Server.Shutdown()
				a.Server.Wait()
			}
			return nil, err
		}
		a.Sender = sender
	}

	return a, nil
}

func hasRemotePeer(local SiteID, sites []SiteAddr) bool {
	for _, s := range sites {
		if s.ID != local {
			return true
		}
	}
	return false
}

// Enqueue forwards to the Sender, if one was constructed.
func (a *Agent) Enqueue(payload []byte) error {
	if a.Sender == nil {
		return errors.New("wanagent: this agent has no sender core configured")
	}
	return a.Sender.Enqueue(payload)
}

// GetMessageCounters forwards to the Sender, if one was constructed.
func (a *Agent) GetMessageCounters() map[SiteID]uint64 {
	if a.Sender == nil {
		return nil
	}
	return a.Sender.GetMessageCounters()
}

// ShutdownAndWait tears down both cores, idempotently.
func (a *Agent) ShutdownAndWait() error {
	var senderErr error
	if a.Sender != nil {
		senderErr = a.Sender.ShutdownAndWait()
	}
	if a.Server != nil {
		a.Server.Shutdown()
		a.Server.Wait()
	}
	return senderErr
}
