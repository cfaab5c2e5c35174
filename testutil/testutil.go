package testutil

// Helpers for building feeds and feed servers in tests.

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tidbyt.dev/trainsignal/feedcrypt"
)

const (
	PrivateKey = "f00dcafe-1234-4321-abcd-0123456789ab"
	KeySuffix  = "20230501120000"
)

// Formats a time the way the feed does.
func FeedTime(t time.Time) string {
	return t.Format("01/02/2006 15:04:05")
}

// A train in a synthetic feed. Each stop is the decoded form of one
// "StationN" property, e.g. {"code": "WAS", "scharr": "..."}.
type Train struct {
	ID        int
	RouteName string
	TrainNum  string
	DestCode  string
	Stops     []map[string]string

	// Additional raw properties
	Extra map[string]interface{}
}

// Builds plaintext feed JSON. Stops are double encoded, as in the
// real thing.
func BuildFeedJSON(t testing.TB, trains []Train) string {
	features := []map[string]interface{}{}

	for _, train := range trains {
		props := map[string]interface{}{
			"RouteName": train.RouteName,
			"TrainNum":  train.TrainNum,
			"DestCode":  train.DestCode,
		}
		for k, v := range train.Extra {
			props[k] = v
		}
		for i, stop := range train.Stops {
			inner, err := json.Marshal(stop)
			require.NoError(t, err)
			props[fmt.Sprintf("Station%d", i+1)] = string(inner)
		}

		features = append(features, map[string]interface{}{
			"id":         train.ID,
			"type":       "Feature",
			"properties": props,
			"geometry": map[string]interface{}{
				"type":        "Point",
				"coordinates": []float64{-77.0, 38.9},
			},
		})
	}

	buf, err := json.Marshal(map[string]interface{}{
		"type":     "FeatureCollection",
		"features": features,
	})
	require.NoError(t, err)

	return string(buf)
}

// Encrypts plaintext into a full feed response.
func EncryptFeed(t testing.TB, plaintext string) string {
	body, err := feedcrypt.EncryptResponse(plaintext, PrivateKey, KeySuffix, feedcrypt.PublicKey)
	require.NoError(t, err)
	return body
}

// Serves encrypted feed responses. The body can be swapped between
// requests.
type FeedServer struct {
	Server *httptest.Server

	mutex    sync.Mutex
	body     string
	status   int
	requests int
}

func NewFeedServer(t testing.TB, plaintext string) *FeedServer {
	fs := &FeedServer{status: http.StatusOK}
	fs.SetFeed(t, plaintext)
	fs.Server = httptest.NewServer(http.HandlerFunc(fs.handler))
	t.Cleanup(fs.Server.Close)
	return fs
}

func (fs *FeedServer) SetFeed(t testing.TB, plaintext string) {
	body := EncryptFeed(t, plaintext)
	fs.mutex.Lock()
	defer fs.mutex.Unlock()
	fs.body = body
}

func (fs *FeedServer) handler(w http.ResponseWriter, r *http.Request) {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()

	fs.requests++
	if fs.status != http.StatusOK {
		w.WriteHeader(fs.status)
		return
	}
	w.Write([]byte(fs.body))
}

func (fs *FeedServer) SetStatus(status int) {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()
	fs.status = status
}

func (fs *FeedServer) Requests() int {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()
	return fs.requests
}

func (fs *FeedServer) URL() string {
	return fs.Server.URL
}
