package httpapi_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	benbclock "github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdot-network/ibc-relayer-supervisor/internal/httpapi"
	"github.com/cdot-network/ibc-relayer-supervisor/internal/supervisor"
)

type fakeSupervisor struct {
	cmdCh    chan supervisor.SupervisorCmd
	lastTick time.Time
}

func (f *fakeSupervisor) Commands() chan<- supervisor.SupervisorCmd { return f.cmdCh }
func (f *fakeSupervisor) LastTick() time.Time                      { return f.lastTick }

func TestServer_Healthz(t *testing.T) {
	mockClock := benbclock.NewMock()
	fs := &fakeSupervisor{cmdCh: make(chan supervisor.SupervisorCmd, 1), lastTick: mockClock.Now()}
	srv := httpapi.New(fs, prometheus.NewRegistry(), mockClock, logrus.NewEntry(logrus.New()))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	mockClock.Add(10 * time.Second)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_StateRepliesFromCommandChannel(t *testing.T) {
	mockClock := benbclock.NewMock()
	fs := &fakeSupervisor{cmdCh: make(chan supervisor.SupervisorCmd, 1), lastTick: mockClock.Now()}
	srv := httpapi.New(fs, prometheus.NewRegistry(), mockClock, logrus.NewEntry(logrus.New()))

	go func() {
		cmd := <-fs.cmdCh
		require.NotNil(t, cmd.ReplyCh)
		cmd.ReplyCh <- supervisor.SupervisorState{}
	}()

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/state", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
