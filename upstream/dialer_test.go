package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointIsDeterministic(t *testing.T) {
	d := &Dialer{BaseURL: "ws://voice.local/audio/"}
	assert.Equal(t, "ws://voice.local/audio/abc", d.Endpoint("abc"))
	assert.Equal(t, d.Endpoint("a b"), d.Endpoint("a b"))
	assert.Equal(t, "ws://voice.local/audio/a%20b", d.Endpoint("a b"))
}

func TestDialReadsFrames(t *testing.T) {
	var gotPath string
	upgrader := gws.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		_ = c.WriteMessage(gws.BinaryMessage, []byte{1, 2, 3, 4})
		_, _, _ = c.ReadMessage()
	}))
	defer srv.Close()

	d := &Dialer{BaseURL: "ws" + strings.TrimPrefix(srv.URL, "http") + "/audio"}
	conn, err := d.Dial(context.Background(), "call-1")
	require.NoError(t, err)
	defer conn.Close()

	mt, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, gws.BinaryMessage, mt)
	assert.Equal(t, []byte{1, 2, 3, 4}, data)
	assert.Equal(t, "/audio/call-1", gotPath)
}

func TestDialFailures(t *testing.T) {
	d := &Dialer{BaseURL: "ws://127.0.0.1:1"}
	_, err := d.Dial(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyCallID)

	_, err = d.Dial(context.Background(), "call-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ws://127.0.0.1:1/call-1")
}
