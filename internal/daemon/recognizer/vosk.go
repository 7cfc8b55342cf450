package recognizer

import (
	"context"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const voskIOTimeout = 10 * time.Second

// VoskClient speaks the vosk-server websocket protocol: a config message on
// connect, one binary message per audio frame answered by one JSON result,
// and {"eof":1} to flush the utterance.
type VoskClient struct {
	url        string
	sampleRate float64
	dialer     websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
}

type voskConfig struct {
	Config struct {
		SampleRate float64 `json:"sample_rate"`
	} `json:"config"`
}

type voskResult struct {
	Text    *string `json:"text"`
	Partial *string `json:"partial"`
}

// NewVoskClient creates a client for the server at url. The connection is
// opened lazily on the first Feed.
func NewVoskClient(url string, sampleRate float64) *VoskClient {
	return &VoskClient{
		url:        url,
		sampleRate: sampleRate,
		dialer:     websocket.Dialer{HandshakeTimeout: voskIOTimeout},
	}
}

// Connect dials the server now rather than on first use.
func (v *VoskClient) Connect(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, err := v.connection(ctx)
	return err
}

// Feed implements Engine.
func (v *VoskClient) Feed(ctx context.Context, frame []byte) (Transcript, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	conn, err := v.connection(ctx)
	if err != nil {
		return Transcript{}, err
	}

	deadline := ioDeadline(ctx)
	conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		v.dropLocked()
		return Transcript{}, fmt.Errorf("vosk: write frame: %w", err)
	}

	conn.SetReadDeadline(deadline)
	_, data, err := conn.ReadMessage()
	if err != nil {
		v.dropLocked()
		return Transcript{}, fmt.Errorf("vosk: read result: %w", err)
	}
	return parseVoskResult(data)
}

// Reset implements Engine. The server ends the session after eof, so the
// client flushes, drains the final result and reconnects.
func (v *VoskClient) Reset(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.conn != nil {
		deadline := ioDeadline(ctx)
		v.conn.SetWriteDeadline(deadline)
		if err := v.conn.WriteMessage(websocket.TextMessage, []byte(`{"eof":1}`)); err == nil {
			v.conn.SetReadDeadline(deadline)
			_, _, _ = v.conn.ReadMessage()
		}
		v.dropLocked()
	}

	_, err := v.connection(ctx)
	return err
}

// Close implements Engine.
func (v *VoskClient) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.conn == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = v.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	err := v.conn.Close()
	v.conn = nil
	return err
}

func (v *VoskClient) connection(ctx context.Context) (*websocket.Conn, error) {
	if v.conn != nil {
		return v.conn, nil
	}

	conn, _, err := v.dialer.DialContext(ctx, v.url, nil)
	if err != nil {
		return nil, fmt.Errorf("vosk: failed to connect to %s: %w", v.url, err)
	}

	var cfg voskConfig
	cfg.Config.SampleRate = v.sampleRate
	conn.SetWriteDeadline(ioDeadline(ctx))
	if err := conn.WriteJSON(cfg); err != nil {
		conn.Close()
		return nil, fmt.Errorf("vosk: send config: %w", err)
	}

	v.conn = conn
	return conn, nil
}

func (v *VoskClient) dropLocked() {
	if v.conn != nil {
		v.conn.Close()
		v.conn = nil
	}
}

func parseVoskResult(data []byte) (Transcript, error) {
	var res voskResult
	if err := json.Unmarshal(data, &res); err != nil {
		return Transcript{}, fmt.Errorf("vosk: malformed result: %w", err)
	}
	switch {
	case res.Text != nil:
		return Transcript{Kind: KindFinal, Text: *res.Text}, nil
	case res.Partial != nil && *res.Partial != "":
		return Transcript{Kind: KindPartial, Text: *res.Partial}, nil
	default:
		return Transcript{Kind: KindNone}, nil
	}
}

func ioDeadline(ctx context.Context) time.Time {
	deadline := time.Now().Add(voskIOTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		return d
	}
	return deadline
}
