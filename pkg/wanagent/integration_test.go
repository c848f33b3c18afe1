//go:build linux

package wanagent

import (
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testMaxPayload = 1 << 16

func serverPort(t *testing.T, addr net.Addr) uint16 {
	t.Helper()
	_, portStr, err := net.SplitHostPort(addr.String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return uint16(port)
}

func TestSenderServerRoundtripOneMessage(t *testing.T) {
	const localSite SiteID = 0
	const serverSite SiteID = 1

	var mu sync.Mutex
	var received [][]byte

	server, err := NewServerCore(serverSite, 1, 0, testMaxPayload, func(siteID SiteID, payload []byte) {
		require.Equal(t, localSite, siteID)
		mu.Lock()
		cp := append([]byte(nil), payload...)
		received = append(received, cp)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer server.Shutdown()

	serveErrCh := make(chan error, 1)
	serverReady := make(chan struct{})
	go func() {
		serveErrCh <- server.Serve(func() { close(serverReady) })
	}()

	port := serverPort(t, server.Addr())

	predicateCh := make(chan map[SiteID]uint64, 8)
	sentCh := make(chan struct{}, 8)
	ackCh := make(chan struct{}, 8)
	sender, err := NewSenderCore(
		localSite,
		[]SiteAddr{{ID: serverSite, IP: "127.0.0.1", Port: port}},
		32,
		testMaxPayload,
		func(snapshot map[SiteID]uint64) { predicateCh <- snapshot },
		nil,
		func() { sentCh <- struct{}{} },
		func() { ackCh <- struct{}{} },
	)
	require.NoError(t, err)
	defer sender.ShutdownAndWait()

	<-serverReady

	require.NoError(t, sender.Enqueue([]byte("hello cascade")))

	select {
	case snap := <-predicateCh:
		require.Equal(t, uint64(1), snap[serverSite])
	case <-time.After(2 * time.Second):
		t.Fatal("predicate was not invoked after ack")
	}

	select {
	case <-sentCh:
	default:
		t.Fatal("onSent hook was not invoked for the written request")
	}
	select {
	case <-ackCh:
	default:
		t.Fatal("onAck hook was not invoked for the processed ack")
	}

	// Server workers exit only once their peer closes the connection.
	sender.ShutdownAndWait()
	server.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	require.Equal(t, []byte("hello cascade"), received[0])
}

func TestSenderServerFanOutThreeSites(t *testing.T) {
	const localSite SiteID = 0
	serverSites := []SiteID{1, 2}

	var mu sync.Mutex
	receivedCount := map[SiteID]int{}

	servers := make(map[SiteID]*ServerCore)
	ports := make(map[SiteID]uint16)
	readyChs := make(map[SiteID]chan struct{})

	for _, id := range serverSites {
		id := id
		srv, err := NewServerCore(id, 1, 0, testMaxPayload, func(siteID SiteID, payload []byte) {
			mu.Lock()
			receivedCount[id]++
			mu.Unlock()
		})
		require.NoError(t, err)
		defer srv.Shutdown()

		servers[id] = srv
		ports[id] = serverPort(t, srv.Addr())
		ready := make(chan struct{})
		readyChs[id] = ready

		go func() {
			_ = srv.Serve(func() { close(ready) })
		}()
	}

	var serverAddrs []SiteAddr
	for _, id := range serverSites {
		serverAddrs = append(serverAddrs, SiteAddr{ID: id, IP: "127.0.0.1", Port: ports[id]})
	}

	predicateCh := make(chan map[SiteID]uint64, 16)
	sender, err := NewSenderCore(localSite, serverAddrs, 32, testMaxPayload,
		func(snapshot map[SiteID]uint64) { predicateCh <- snapshot }, nil, nil, nil)
	require.NoError(t, err)
	defer sender.ShutdownAndWait()

	for _, id := range serverSites {
		<-readyChs[id]
	}

	require.NoError(t, sender.Enqueue([]byte("fan out payload")))

	deadline := time.After(2 * time.Second)
	for {
		counters := sender.GetMessageCounters()
		if counters[1] == 1 && counters[2] == 1 {
			break
		}
		select {
		case <-predicateCh:
		case <-deadline:
			t.Fatalf("did not observe both acks in time, counters=%v", counters)
		}
	}

	// Server workers exit only once their peer closes the connection.
	sender.ShutdownAndWait()
	for _, srv := range servers {
		srv.Wait()
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, receivedCount[1])
	require.Equal(t, 1, receivedCount[2])
}

// TestSenderSlowAckPeerLagsThenCatchesUp is spec.md §8 scenario 3: a peer
// that delays its acks lags behind a faster peer's ack counter, and both
// counters converge once the delayed acks arrive. The send frontier itself
// advances on writes, not acks; sender_test.go covers that invariant. The
// fake peer here is a plain net.Listener, not a ServerCore, so the ack delay
// is exact and not at the mercy of a real worker goroutine's scheduling.
func TestSenderSlowAckPeerLagsThenCatchesUp(t *testing.T) {
	const localSite SiteID = 0
	const fastSite SiteID = 1
	const slowSite SiteID = 2

	fastLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer fastLn.Close()

	slowLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer slowLn.Close()

	ackDelay := 150 * time.Millisecond
	runFakePeer := func(ln net.Listener, site SiteID, delay time.Duration) {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			req, err := readRequestHeader(conn)
			if err != nil {
				return
			}
			payload := make([]byte, req.PayloadSize)
			if err := readFull(conn, payload); err != nil {
				return
			}
			if delay > 0 {
				time.Sleep(delay)
			}
			if err := writeResponse(conn, response{Seq: req.Seq, SiteID: site}); err != nil {
				return
			}
		}
	}
	go runFakePeer(fastLn, fastSite, 0)
	go runFakePeer(slowLn, slowSite, ackDelay)

	predicateCh := make(chan map[SiteID]uint64, 16)
	sender, err := NewSenderCore(localSite, []SiteAddr{
		{ID: fastSite, IP: "127.0.0.1", Port: serverPort(t, fastLn.Addr())},
		{ID: slowSite, IP: "127.0.0.1", Port: serverPort(t, slowLn.Addr())},
	}, 32, testMaxPayload, func(snapshot map[SiteID]uint64) { predicateCh <- snapshot }, nil, nil, nil)
	require.NoError(t, err)
	defer sender.ShutdownAndWait()

	require.NoError(t, sender.Enqueue([]byte("first")))
	require.NoError(t, sender.Enqueue([]byte("second")))

	// Shortly after the first round trip, the fast site must already be
	// ahead of the slow one — the slow ack is still in flight for the
	// whole delay, so it is guaranteed to still read 0 at this point,
	// while the fast site has acked at least the first message.
	time.Sleep(ackDelay / 2)
	counters := sender.GetMessageCounters()
	require.GreaterOrEqual(t, counters[fastSite], uint64(1))
	require.Equal(t, uint64(0), counters[slowSite])

	deadline := time.After(2 * time.Second)
	for {
		counters = sender.GetMessageCounters()
		if counters[slowSite] == 2 {
			break
		}
		select {
		case <-predicateCh:
		case <-deadline:
			t.Fatalf("slow site never caught up, counters=%v", counters)
		}
	}
	require.Equal(t, uint64(2), counters[fastSite])
}

// TestSenderOrderingViolationIsFatal is spec.md §8 scenario 6: a peer that
// acks out of sequence must make ShutdownAndWait report ErrOrderingViolation
// rather than hang or succeed silently.
func TestSenderOrderingViolationIsFatal(t *testing.T) {
	const localSite SiteID = 0
	const serverSite SiteID = 1

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		req, err := readRequestHeader(conn)
		if err != nil {
			return
		}
		payload := make([]byte, req.PayloadSize)
		if err := readFull(conn, payload); err != nil {
			return
		}
		// The real next seqno is 0; 7 is a synthetic, out-of-order ack.
		_ = writeResponse(conn, response{Seq: 7, SiteID: serverSite})
	}()

	sender, err := NewSenderCore(localSite, []SiteAddr{{ID: serverSite, IP: "127.0.0.1", Port: serverPort(t, ln.Addr())}},
		32, testMaxPayload, nil, nil, nil, nil)
	require.NoError(t, err)

	require.NoError(t, sender.Enqueue([]byte("trigger")))

	// An intentional shutdown that wins the race with the bad ack returns
	// nil, so wait for the ack loop to record the violation first.
	for deadline := time.Now().Add(2 * time.Second); sender.Err() == nil && time.Now().Before(deadline); {
		time.Sleep(5 * time.Millisecond)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- sender.ShutdownAndWait() }()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrOrderingViolation)
	case <-time.After(2 * time.Second):
		t.Fatal("ShutdownAndWait did not return after an ordering violation")
	}
}

func TestSenderOversizePayloadRejected(t *testing.T) {
	const localSite SiteID = 0
	const serverSite SiteID = 1

	server, err := NewServerCore(serverSite, 1, 0, 16, func(SiteID, []byte) {})
	require.NoError(t, err)
	defer server.Shutdown()

	ready := make(chan struct{})
	go func() { _ = server.Serve(func() { close(ready) }) }()

	port := serverPort(t, server.Addr())

	sender, err := NewSenderCore(localSite, []SiteAddr{{ID: serverSite, IP: "127.0.0.1", Port: port}},
		32, 16, nil, nil, nil, nil)
	require.NoError(t, err)
	defer sender.ShutdownAndWait()

	<-ready

	err = sender.Enqueue(make([]byte, 17))
	require.Error(t, err)
	require.ErrorIs(t, err, ErrOversizePayload)
}
