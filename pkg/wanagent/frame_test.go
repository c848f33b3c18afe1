package wanagent

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestHeaderRoundtrip(t *testing.T) {
	h := requestHeader{Seq: 42, SiteID: 7, PayloadSize: 1024}
	got := decodeRequestHeader(encodeRequestHeader(h))
	require.Equal(t, h, got)
}

func TestRequestHeaderRoundtripSentinel(t *testing.T) {
	h := requestHeader{Seq: NoSeq, SiteID: 0, PayloadSize: 0}
	got := decodeRequestHeader(encodeRequestHeader(h))
	require.Equal(t, h, got)
}

func TestResponseRoundtrip(t *testing.T) {
	r := response{Seq: 9001, SiteID: 3}
	got := decodeResponse(encodeResponse(r))
	require.Equal(t, r, got)
}

func TestWriteReadRequest(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("hello cascade")
	h := requestHeader{Seq: 1, SiteID: 2, PayloadSize: uint64(len(payload))}

	require.NoError(t, writeRequest(&buf, h, payload))

	gotHeader, err := readRequestHeader(&buf)
	require.NoError(t, err)
	require.Equal(t, h, gotHeader)

	gotPayload := make([]byte, gotHeader.PayloadSize)
	require.NoError(t, readFull(&buf, gotPayload))
	require.Equal(t, payload, gotPayload)
}

func TestWriteReadResponse(t *testing.T) {
	var buf bytes.Buffer
	r := response{Seq: 5, SiteID: 1}
	require.NoError(t, writeResponse(&buf, r))

	got, err := readResponse(&buf)
	require.NoError(t, err)
	require.Equal(t, r, got)
}

func TestReadFullShortReadIsFramingError(t *testing.T) {
	buf := bytes.NewReader([]byte{1, 2, 3})
	err := readFull(buf, make([]byte, 8))
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrFraming))
}
