package observability

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/matrixctl/internal/testutil/testlog"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	before := testutil.ToFloat64(sessions.WithLabelValues("done"))
	RecordSession("done", 12*time.Millisecond)
	if got := testutil.ToFloat64(sessions.WithLabelValues("done")); got != before+1 {
		t.Fatalf("sessions counter=%v want %v", got, before+1)
	}

	pollsBefore := testutil.ToFloat64(polls.WithLabelValues(PollReplyNotYet))
	RecordPoll(PollReplyNotYet)
	RecordPoll(PollReplyNotYet)
	if got := testutil.ToFloat64(polls.WithLabelValues(PollReplyNotYet)); got != pollsBefore+2 {
		t.Fatalf("polls counter=%v want %v", got, pollsBefore+2)
	}
}

func TestRecordPollFoldsUnknownReplies(t *testing.T) {
	testlog.Start(t)
	before := testutil.ToFloat64(polls.WithLabelValues(PollReplyOther))
	RecordPoll("\xff\xfe\xfd")
	RecordPoll("WIP")
	if got := testutil.ToFloat64(polls.WithLabelValues(PollReplyOther)); got != before+2 {
		t.Fatalf("other counter=%v want %v", got, before+2)
	}
}

func TestServeMetrics(t *testing.T) {
	testlog.Start(t)
	RecordPoll(PollReplyDone)
	srv, err := ServeMetrics("127.0.0.1:0")
	if err != nil {
		t.Fatalf("serve metrics: %v", err)
	}
	defer srv.Close()

	resp, err := http.Get("http://" + srv.Addr + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "matrixctl_session_polls_total") {
		t.Fatalf("metrics body missing poll counter")
	}
}
