//go:build linux

package wanagent

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
)

// peerSendState is the per-site send state from spec.md §3, touched only by
// the send loop — no lock required, matching §5's locking discipline.
type peerSendState struct {
	id       SiteID
	conn     *os.File
	fd       int
	lastSent SeqNo
}

// SenderCore owns the outbound connections, the shared send buffer, and the
// send/ack-receive/predicate loops. Grounded on
// 1ureka-roj1/internal/transport/{sender,transport}.go — the single-writer
// goroutine and context-cancellation-driven shutdown pattern — generalized
// from one WebRTC DataChannel to N persistent TCP connections multiplexed
// through the two epoll pollers spec.md §4.2 calls for.
type SenderCore struct {
	localSite      SiteID
	maxPayloadSize uint64
	windowSize     uint64

	buf    *sendBuffer
	acks   *ackCounters
	peers  map[SiteID]*peerSendState
	fdSite map[int]SiteID

	writePoller *poller
	readPoller  *poller

	predicate PredicateLambda

	// onSent and onAck are optional observability hooks, fired synchronously
	// after a request is actually written and after a real (non-violating)
	// ack is processed, respectively — never on a shutdown-induced I/O error.
	onSent CounterHook
	onAck  CounterHook

	ackMu     sync.Mutex
	ackCond   *sync.Cond
	hasNewAck bool

	shutdown atomic.Bool
	fatal    atomic.Pointer[error]

	wg sync.WaitGroup
}

// NewSenderCore dials every configured server site (other than localSite),
// registers each connection on both pollers, and starts the three
// long-running tasks. Failure to connect any configured peer is fatal, per
// spec.md §3's lifecycle rules — partially opened sockets are released.
func NewSenderCore(
	localSite SiteID,
	serverSites []SiteAddr,
	windowSize uint64,
	maxPayloadSize uint64,
	predicate PredicateLambda,
	ready ReadyNotifier,
	onSent CounterHook,
	onAck CounterHook,
) (*SenderCore, error) {
	writeP, err := newPoller()
	if err != nil {
		return nil, err
	}
	readP, err := newPoller()
	if err != nil {
		writeP.close()
		return nil, err
	}

	s := &SenderCore{
		localSite:      localSite,
		maxPayloadSize: maxPayloadSize,
		windowSize:     windowSize,
		buf:            newSendBuffer(),
		peers:          make(map[SiteID]*peerSendState),
		fdSite:         make(map[int]SiteID),
		writePoller:    writeP,
		readPoller:     readP,
		predicate:      predicate,
		onSent:         onSent,
		onAck:          onAck,
	}
	s.ackCond = sync.NewCond(&s.ackMu)

	peerIDs := make([]SiteID, 0, len(serverSites))
	for _, site := range serverSites {
		if site.ID == localSite {
			continue
		}

		conn, err := dialSite(site.IP, site.Port)
		if err != nil {
			s.closeAllPeers()
			writeP.close()
			readP.close()
			return nil, err
		}

		fd := int(conn.Fd())
		if err := writeP.add(fd, epollout()); err != nil {
			conn.Close()
			s.closeAllPeers()
			writeP.close()
			readP.close()
			return nil, err
		}
		if err := readP.add(fd, epollin()); err != nil {
			conn.Close()
			s.closeAllPeers()
			writeP.close()
			readP.close()
			return nil, err
		}

		s.peers[site.ID] = &peerSendState{id: site.ID, conn: conn, fd: fd, lastSent: NoSeq}
		s.fdSite[fd] = site.ID
		peerIDs = append(peerIDs, site.ID)
	}

	s.acks = newAckCounters(peerIDs)

	if ready != nil {
		ready()
	}

	s.wg.Add(3)
	go s.sendLoop()
	go s.ackRecvLoop()
	go s.predicateLoop()

	return s, nil
}

func (s *SenderCore) closeAllPeers() {
	for _, p := range s.peers {
		p.conn.Close()
	}
}

// Enqueue copies payload into the shared send buffer and wakes the send
// loop. Payloads larger than max_payload_size are rejected without
// mutating the buffer.
func (s *SenderCore) Enqueue(payload []byte) error {
	if s.shutdown.Load() {
		return ErrShutdown
	}
	if uint64(len(payload)) > s.maxPayloadSize {
		return fmt.Errorf("%w: %d > %d", ErrOversizePayload, len(payload), s.maxPayloadSize)
	}
	s.buf.enqueue(payload)
	return nil
}

// GetMessageCounters returns a snapshot of the per-site ack counter map.
func (s *SenderCore) GetMessageCounters() map[SiteID]uint64 {
	return s.acks.Snapshot()
}

// Err returns the fatal error that caused the sender to stop, if any.
func (s *SenderCore) Err() error {
	p := s.fatal.Load()
	if p == nil {
		return nil
	}
	return *p
}

func (s *SenderCore) fail(err error) {
	s.fatal.CompareAndSwap(nil, &err)
	s.triggerShutdown()
}

// triggerShutdown is the internal half of ShutdownAndWait: it flips the
// shutdown flag and force-wakes every suspension point, but does not wait
// for the loops to exit (ShutdownAndWait does that, and is also the public,
// idempotent entry point).
func (s *SenderCore) triggerShutdown() {
	if !s.shutdown.CompareAndSwap(false, true) {
		return
	}
	// Closing a descriptor does not wake an epoll_wait already blocked on
	// it; shutdown(2) does, by raising EPOLLIN/EPOLLOUT|EPOLLHUP on the
	// still-registered sockets of both pollers.
	for _, p := range s.peers {
		syscall.Shutdown(p.fd, syscall.SHUT_RDWR)
	}
	s.writePoller.close()
	s.readPoller.close()
	s.closeAllPeers()
	s.buf.broadcastShutdown()

	s.ackMu.Lock()
	s.hasNewAck = true
	s.ackMu.Unlock()
	s.ackCond.Broadcast()
}

// ShutdownAndWait is idempotent: it signals shutdown, shuts down the sockets
// so the send/ack-receive loops unblock, closes the pollers and sockets
// (spec.md §9's open
// question, resolved per DESIGN.md decision #4), and joins all three tasks.
func (s *SenderCore) ShutdownAndWait() error {
	s.triggerShutdown()
	s.wg.Wait()
	return s.Err()
}

// sendLoop is the single task alternating between "wait for buffered
// work", "wait for writable sockets", and "send at most the front buffer
// node to each writable peer" — spec.md §4.2's algorithm, including the
// preserved front-node-only limitation flagged in §9.
func (s *SenderCore) sendLoop() {
	defer s.wg.Done()

	for {
		if s.shutdown.Load() {
			return
		}

		s.buf.waitNotEmpty(s.shutdown.Load)
		if s.shutdown.Load() {
			return
		}

		ready, err := s.writePoller.wait()
		if err != nil {
			return
		}

		payload, ok := s.buf.front()
		if !ok {
			continue
		}
		size := s.buf.sizeNow()

		for _, fd := range ready {
			site, ok := s.fdSite[fd]
			if !ok {
				continue
			}
			peer := s.peers[site]

			offset := uint64(peer.lastSent) - uint64(s.buf.lastAllSentSeqno())
			if offset == size {
				// This peer has already consumed everything currently
				// buffered — skip it this wake-up.
				continue
			}

			currSeq := peer.lastSent.Next()
			header := requestHeader{Seq: currSeq, SiteID: s.localSite, PayloadSize: uint64(len(payload))}
			if err := writeRequest(peer.conn, header, payload); err != nil {
				if s.shutdown.Load() {
					return
				}
				s.fail(fmt.Errorf("send to site %d: %w", site, err))
				return
			}
			peer.lastSent = currSeq
			if s.onSent != nil {
				s.onSent()
			}
		}

		minSent := s.minLastSent()
		s.buf.popFrontIfFrontierAdvanced(minSent)
	}
}

// minLastSent computes min over peers of last_sent_seqno, with NoSeq
// treated as smallest (spec.md §4.2 step 4).
func (s *SenderCore) minLastSent() SeqNo {
	first := true
	var min SeqNo
	for _, p := range s.peers {
		if first {
			min = p.lastSent
			first = false
			continue
		}
		min = minSeqNo(min, p.lastSent)
	}
	return min
}

// ackRecvLoop blocks on the read poller, reads one Response per readable
// socket, and enforces per-peer ack monotonicity (spec.md §4.2, §7).
func (s *SenderCore) ackRecvLoop() {
	defer s.wg.Done()

	for {
		if s.shutdown.Load() {
			return
		}

		ready, err := s.readPoller.wait()
		if err != nil {
			return
		}

		for _, fd := range ready {
			site, ok := s.fdSite[fd]
			if !ok {
				continue
			}
			peer := s.peers[site]

			res, err := readResponse(peer.conn)
			if err != nil {
				if s.shutdown.Load() {
					return
				}
				s.fail(fmt.Errorf("ack recv from site %d: %w", site, err))
				return
			}

			want := s.acks.Load(res.SiteID)
			if uint64(res.Seq) != want {
				s.fail(fmt.Errorf("%w: site %d counter=%d seqno=%d",
					ErrOrderingViolation, res.SiteID, want, res.Seq))
				return
			}
			s.acks.CompareAndAdvance(res.SiteID, want)
			if s.onAck != nil {
				s.onAck()
			}
			s.reportNewAck()
		}
	}
}

// reportNewAck wakes the predicate loop.
func (s *SenderCore) reportNewAck() {
	s.ackMu.Lock()
	s.hasNewAck = true
	s.ackMu.Unlock()
	s.ackCond.Signal()
}

// predicateLoop waits for has_new_ack, then snapshots and invokes the user
// predicate outside the lock — spec.md §4.2's predicate loop, including the
// forced final wake-up on shutdown so it can observe the flag and exit.
func (s *SenderCore) predicateLoop() {
	defer s.wg.Done()

	for {
		s.ackMu.Lock()
		for !s.hasNewAck {
			s.ackCond.Wait()
		}
		shuttingDown := s.shutdown.Load()
		snapshot := s.acks.Snapshot()
		s.hasNewAck = false
		s.ackMu.Unlock()

		if shuttingDown {
			return
		}
		if s.predicate != nil {
			s.predicate(snapshot)
		}
	}
}
