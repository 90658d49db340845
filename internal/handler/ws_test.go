package handler

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hospitalbooking/internal/apiclient"
	"github.com/hospitalbooking/internal/storage"
	"github.com/hospitalbooking/internal/storage/memory"
	"github.com/hospitalbooking/internal/ws"
)

type wsMessage struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

func readUntil(t *testing.T, conn *websocket.Conn, typ string) wsMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var msg wsMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == typ {
			return msg
		}
	}
}

// Две вкладки одного браузера: выход через HTTP в одной отправляет navigate в открытую вкладку дашборда.
func TestWS_LogoutInAnotherTab(t *testing.T) {
	store := memory.New()
	defer store.Close()
	hub := ws.NewHub(store, nil, 0)
	hubCtx, hubCancel := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		hub.Run(hubCtx)
		close(hubDone)
	}()
	defer func() {
		hubCancel()
		<-hubDone
	}()

	srv := httptest.NewServer(NewRouter(Deps{
		Store:         store,
		API:           apiclient.New("http://127.0.0.1:1", time.Second),
		Hub:           hub,
		ProfileCookie: cookieName,
	}))
	defer srv.Close()

	profile := uuid.NewString()
	require.NoError(t, store.Set(context.Background(), profile, storage.KeyAuthToken, "jwt-1"))

	header := http.Header{}
	header.Set("Cookie", cookieName+"="+profile)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?path=" + url.QueryEscape("/dashboard")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	msg := readUntil(t, conn, "session")
	assert.Equal(t, true, msg.Payload["authenticated"])
	require.Eventually(t, func() bool { return hub.Tabs(profile) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	base, err := url.Parse(srv.URL)
	require.NoError(t, err)
	jar.SetCookies(base, []*http.Cookie{{Name: cookieName, Value: profile}})
	client := &http.Client{Jar: jar}
	logoutResp, err := client.Post(srv.URL+"/auth/logout", "application/json", nil)
	require.NoError(t, err)
	logoutResp.Body.Close()
	require.Equal(t, http.StatusOK, logoutResp.StatusCode)

	nav := readUntil(t, conn, "navigate")
	assert.Equal(t, "/login", nav.Payload["location"])
	assert.Equal(t, true, nav.Payload["replace"])
}

func TestWS_RequiresOrigin(t *testing.T) {
	store := memory.New()
	defer store.Close()
	h := NewWSHandler(ws.NewHub(store, nil, 0), "https://console.example.test")

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "https://evil.example.test")
	assert.False(t, h.checkOrigin(req))

	req.Header.Set("Origin", "https://console.example.test")
	assert.True(t, h.checkOrigin(req))

	rec := httptest.NewRecorder()
	h.ServeWS(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "no profile in context")
}
