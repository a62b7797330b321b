package uds

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// Unix socket paths are capped at ~104 bytes on macOS, so sockets live
// under /tmp rather than t.TempDir().
func testSocketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("/tmp", "arrisd-uds-*")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "d.sock")
}

func startServer(t *testing.T, sock string) *Server {
	t.Helper()
	server := NewServer(sock)
	server.Handle("stats", func(req *Request) *Response {
		return SuccessResponse(map[string]int{"fast_queued": 0})
	})
	if err := server.Start(); err != nil {
		t.Fatalf("server start: %v", err)
	}
	t.Cleanup(func() { server.Stop() })
	return server
}

func newTestClient(sock string) *Client {
	c := NewClient(sock)
	c.SetTimeout(5 * time.Second)
	return c
}

func TestFrameRoundTrip(t *testing.T) {
	sock := testSocketPath(t)

	listener, err := net.Listen("unix", sock)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		var req Request
		if err := ReadFrame(conn, &req); err != nil {
			t.Errorf("server ReadFrame: %v", err)
			return
		}
		if req.Command != "position" {
			t.Errorf("command: got %q", req.Command)
		}
		if req.ProtocolVersion != ProtocolVersion {
			t.Errorf("protocol_version: got %d", req.ProtocolVersion)
		}
		if err := WriteFrame(conn, SuccessResponse(map[string]int{"queue_position": 2})); err != nil {
			t.Errorf("server WriteFrame: %v", err)
		}
	}()

	conn, err := net.Dial("unix", sock)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	req, _ := NewRequest("position", map[string]string{"creator_id": "c1", "proposal_id": "p1"})
	if err := WriteFrame(conn, req); err != nil {
		t.Fatalf("client WriteFrame: %v", err)
	}

	var resp Response
	if err := ReadFrame(conn, &resp); err != nil {
		t.Fatalf("client ReadFrame: %v", err)
	}
	if !resp.Success {
		t.Fatal("expected success")
	}

	var data map[string]int
	json.Unmarshal(resp.Data, &data)
	if data["queue_position"] != 2 {
		t.Errorf("queue_position: got %d", data["queue_position"])
	}

	<-done
}

func TestServer_DispatchAndUnknownCommand(t *testing.T) {
	sock := testSocketPath(t)
	startServer(t, sock)
	client := newTestClient(sock)

	resp, err := client.SendCommand("stats", nil)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if !resp.Success {
		t.Error("stats: expected success")
	}

	resp, err = client.SendCommand("reticulate", nil)
	if err != nil {
		t.Fatalf("unknown command send: %v", err)
	}
	if resp.Success {
		t.Error("expected failure for unknown command")
	}
	if resp.Error == nil || resp.Error.Code != ErrCodeUnknownCommand {
		t.Errorf("expected %q, got %+v", ErrCodeUnknownCommand, resp.Error)
	}
}

func TestServer_ProtocolVersionMismatch(t *testing.T) {
	sock := testSocketPath(t)
	startServer(t, sock)
	client := newTestClient(sock)

	resp, err := client.Send(&Request{ProtocolVersion: 999, Command: "stats"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if resp.Success {
		t.Error("expected failure for version mismatch")
	}
	if resp.Error == nil || resp.Error.Code != ErrCodeProtocolMismatch {
		t.Errorf("expected %q, got %+v", ErrCodeProtocolMismatch, resp.Error)
	}
}

func TestServer_ConcurrentClients(t *testing.T) {
	// The CLI and external workers hit the socket independently
	sock := testSocketPath(t)
	startServer(t, sock)

	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			resp, err := newTestClient(sock).SendCommand("stats", nil)
			if err == nil && !resp.Success {
				errs <- nil
				return
			}
			errs <- err
		}()
	}
	for i := 0; i < 8; i++ {
		if err := <-errs; err != nil {
			t.Errorf("client %d: %v", i, err)
		}
	}
}

func TestServer_IdleConnectionTimeout(t *testing.T) {
	sock := testSocketPath(t)
	server := NewServer(sock)
	server.SetConnTimeout(200 * time.Millisecond)
	server.Handle("stats", func(req *Request) *Response {
		return SuccessResponse(map[string]int{"fast_queued": 0})
	})
	if err := server.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { server.Stop() })

	// Connect without sending a frame; the deadline must reap it
	conn, err := net.Dial("unix", sock)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	time.Sleep(400 * time.Millisecond)

	buf := make([]byte, 1)
	conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	if _, err := conn.Read(buf); err == nil {
		t.Error("expected read error on reaped connection")
	}

	// Fresh clients still get served
	resp, err := newTestClient(sock).SendCommand("stats", nil)
	if err != nil {
		t.Fatalf("client after timeout: %v", err)
	}
	if !resp.Success {
		t.Error("expected success after timeout recovery")
	}
}

func TestServer_SocketOwnerOnly(t *testing.T) {
	sock := testSocketPath(t)
	startServer(t, sock)

	info, err := os.Stat(sock)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("socket permissions: got %04o, want 0600", perm)
	}
}

func TestServer_StopRemovesSocket(t *testing.T) {
	sock := testSocketPath(t)
	server := NewServer(sock)
	if err := server.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := os.Stat(sock); err != nil {
		t.Fatalf("socket missing while running: %v", err)
	}

	server.Stop()

	if _, err := os.Stat(sock); !os.IsNotExist(err) {
		t.Error("socket file left behind after stop")
	}
}

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestServer_LogsMalformedFrames(t *testing.T) {
	sock := testSocketPath(t)

	var buf syncBuffer
	server := NewServer(sock)
	server.SetLogger(log.New(&buf, "", 0))
	if err := server.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { server.Stop() })

	conn, err := net.Dial("unix", sock)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	payload := []byte("not json")
	binary.Write(conn, binary.BigEndian, uint32(len(payload)))
	conn.Write(payload)
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(buf.String(), "uds: read request") {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("malformed frame not logged, log contents: %q", buf.String())
}

func TestClient_DaemonNotRunning(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "nonexistent.sock")
	client := NewClient(sock)
	client.SetTimeout(time.Second)

	_, err := client.SendCommand("stats", nil)
	if err == nil {
		t.Fatal("expected error when daemon is down")
	}
	if !strings.Contains(err.Error(), "arrisd daemon") {
		t.Errorf("error should point at 'arrisd daemon', got: %v", err)
	}
}

func TestResponseHelpers(t *testing.T) {
	resp := ErrorResponse(ErrCodeNotFound, "no such request")
	if resp.Success || resp.Error.Code != ErrCodeNotFound || resp.Error.Message != "no such request" {
		t.Errorf("ErrorResponse: got %+v", resp)
	}

	ok := SuccessResponse(map[string]int{"evicted": 3})
	if !ok.Success {
		t.Error("SuccessResponse: expected success")
	}
	var data map[string]int
	json.Unmarshal(ok.Data, &data)
	if data["evicted"] != 3 {
		t.Errorf("data: got %d", data["evicted"])
	}

	if nilData := SuccessResponse(nil); nilData.Data != nil {
		t.Errorf("expected nil data, got %s", string(nilData.Data))
	}
}
