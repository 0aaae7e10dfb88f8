package observability

import (
	"testing"
	"time"

	"github.com/alexbleotu/ferrumfix/internal/testutil/testlog"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("inspector", "GET", "/health", 200, 12*time.Millisecond)
	RecordEncoded("FIX.4.4", "D", 180)

	before := testutil.ToFloat64(messagesDecoded.WithLabelValues("FIX.4.2", "0"))
	RecordDecoded("FIX.4.2", "0", 64)
	if got := testutil.ToFloat64(messagesDecoded.WithLabelValues("FIX.4.2", "0")); got != before+1 {
		t.Fatalf("decoded counter = %v, want %v", got, before+1)
	}

	errBefore := testutil.ToFloat64(decodeErrors.WithLabelValues("checksum"))
	RecordDecodeError("checksum")
	if got := testutil.ToFloat64(decodeErrors.WithLabelValues("checksum")); got != errBefore+1 {
		t.Fatalf("decode error counter = %v", got)
	}
}

func TestConnOpenedDecrementsOnce(t *testing.T) {
	testlog.Start(t)
	base := testutil.ToFloat64(activeConns)
	done := ConnOpened()
	if got := testutil.ToFloat64(activeConns); got != base+1 {
		t.Fatalf("active = %v, want %v", got, base+1)
	}
	done()
	done()
	if got := testutil.ToFloat64(activeConns); got != base {
		t.Fatalf("active = %v after close, want %v", got, base)
	}
}
