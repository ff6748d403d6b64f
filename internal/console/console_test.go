package console

import (
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/modbridge/internal/config"
	"github.com/zeusync/modbridge/internal/core/observability/log"
)

type evalFunc func(string) (string, error)

func (f evalFunc) Eval(code string) (string, error) { return f(code) }

func startConsole(t *testing.T, ev Evaluator) (*Server, string) {
	t.Helper()
	srv := New(config.Default().Console, log.Nop())
	hs := httptest.NewServer(srv.Handler())

	stop := make(chan struct{})
	go func() {
		tick := time.NewTicker(time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tick.C:
				srv.Drain(ev)
			}
		}
	}()
	t.Cleanup(func() {
		close(stop)
		srv.Close()
		hs.Close()
	})
	return srv, "ws" + strings.TrimPrefix(hs.URL, "http") + "/console"
}

func TestConsoleRoundTrip(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	_, url := startConsole(t, evalFunc(func(code string) (string, error) {
		mu.Lock()
		seen = append(seen, code)
		mu.Unlock()
		if code == "bad" {
			return "", errors.New("undefined: bad")
		}
		return strings.ToUpper(code), nil
	}))

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(Submission{Code: "hello"}))
	var rep Reply
	require.NoError(t, conn.ReadJSON(&rep))
	assert.Equal(t, Reply{Output: "HELLO"}, rep)

	require.NoError(t, conn.WriteJSON(Submission{Code: "bad"}))
	rep = Reply{}
	require.NoError(t, conn.ReadJSON(&rep))
	assert.Empty(t, rep.Output)
	assert.Equal(t, "undefined: bad", rep.Error)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"hello", "bad"}, seen)
}

func TestDrainWithoutSubmissions(t *testing.T) {
	srv := New(config.Default().Console, log.Nop())
	assert.Zero(t, srv.Drain(evalFunc(func(string) (string, error) {
		t.Fatal("nothing was submitted")
		return "", nil
	})))
}

func TestCloseDropsClients(t *testing.T) {
	srv, url := startConsole(t, evalFunc(func(code string) (string, error) { return code, nil }))

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(Submission{Code: "ping"}))
	var rep Reply
	require.NoError(t, conn.ReadJSON(&rep))
	assert.Equal(t, "ping", rep.Output)

	srv.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 503, resp.StatusCode)
}

func TestUnknownPath(t *testing.T) {
	_, url := startConsole(t, evalFunc(func(code string) (string, error) { return code, nil }))
	_, resp, err := websocket.DefaultDialer.Dial(strings.TrimSuffix(url, "/console")+"/other", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 404, resp.StatusCode)
}
