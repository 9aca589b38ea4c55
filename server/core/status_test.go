package core

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/automoto/lockstep/network"
	"github.com/gin-gonic/gin"
)

type fixedStatus network.SessionStatus

func (f fixedStatus) Status() network.SessionStatus { return network.SessionStatus(f) }

func TestStatusEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	want := network.SessionStatus{
		SessionID:     "abc",
		Map:           "Crossing",
		Started:       true,
		CommittedTime: 4200,
		NetworkSpeed:  1000,
		SyncRounds:    3,
		Peers: []network.PeerStatus{
			{Name: "alice", Player: 1, State: "playing", AckTime: 4000, Lag: 200, DesiredSpeed: 1000, RTTMillis: 12},
		},
	}
	router := SetupRouter(fixedStatus(want))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	var got network.SessionStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v\nwant %+v", got, want)
	}
}

func TestPeersEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := SetupRouter(fixedStatus{Peers: []network.PeerStatus{{Name: "bob", Player: 2}}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status/peers", nil))
	var peers []network.PeerStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &peers); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(peers) != 1 || peers[0].Name != "bob" {
		t.Fatalf("peers = %+v", peers)
	}
}

func TestHealthEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	SetupRouter(fixedStatus{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
}
