package upstream

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var ErrEmptyCallID = errors.New("call id is required")

// Conn is the read side of an upstream audio socket.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Dialer opens the upstream voice socket for a call. The endpoint is always
// BaseURL + "/" + call id, so the same call id reaches the same stream.
type Dialer struct {
	BaseURL          string
	Header           http.Header
	HandshakeTimeout time.Duration
	Logger           *zap.Logger
}

// Endpoint returns the deterministic upstream URL for callID.
func (d *Dialer) Endpoint(callID string) string {
	return strings.TrimRight(d.BaseURL, "/") + "/" + url.PathEscape(callID)
}

// Dial connects to the upstream stream of callID. Failures are not retried.
func (d *Dialer) Dial(ctx context.Context, callID string) (Conn, error) {
	if callID == "" {
		return nil, ErrEmptyCallID
	}
	endpoint := d.Endpoint(callID)
	dialer := gws.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
	}
	if dialer.HandshakeTimeout == 0 {
		dialer.HandshakeTimeout = 10 * time.Second
	}
	conn, resp, err := dialer.DialContext(ctx, endpoint, d.Header)
	if err != nil {
		if resp != nil {
			return nil, errors.Wrapf(err, "dial upstream %s (status %d)", endpoint, resp.StatusCode)
		}
		return nil, errors.Wrapf(err, "dial upstream %s", endpoint)
	}
	if d.Logger != nil {
		d.Logger.Debug("connected to upstream", zap.String("endpoint", endpoint))
	}
	return &closingConn{Conn: conn}, nil
}

// closingConn sends a normal closure frame before dropping the TCP connection.
type closingConn struct {
	*gws.Conn
}

func (c *closingConn) Close() error {
	_ = c.Conn.WriteControl(gws.CloseMessage,
		gws.FormatCloseMessage(gws.CloseNormalClosure, "closing connection"),
		time.Now().Add(time.Second))
	return c.Conn.Close()
}

// IsNormalClosure reports whether err is the upstream ending the stream on purpose.
func IsNormalClosure(err error) bool {
	return gws.IsCloseError(err, gws.CloseNormalClosure, gws.CloseGoingAway)
}
