package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestWeeklyRemainderTracksLatestPerPool(t *testing.T) {
	m := Settlement()
	m.SetWeeklyRemainder("a", 42)
	m.SetWeeklyRemainder("a", 7)
	m.SetWeeklyRemainder("b", 3)

	if got := testutil.ToFloat64(m.weeklyRemainder.WithLabelValues("a")); got != 7 {
		t.Fatalf("pool a remainder = %v, want the latest value 7", got)
	}
	if got := testutil.ToFloat64(m.weeklyRemainder.WithLabelValues("b")); got != 3 {
		t.Fatalf("pool b remainder = %v, want 3", got)
	}
	// One series per pool regardless of how many weeks have settled.
	if series := testutil.CollectAndCount(m.weeklyRemainder); series != 2 {
		t.Fatalf("remainder gauge has %d series, want 2", series)
	}
}

func TestNilReceiverMethodsAreSafe(t *testing.T) {
	var m *SettlementMetrics
	m.ObserveDistributorRun("ok")
	m.ObserveInvariantAbort()
	m.ObserveOracleFailure()
	m.ObserveSnapshotSkip()
	m.AddRewardRows(1)
	m.AddReferralRows(1)
	m.ObserveReferralDegraded()
	m.AddActivations(1)
	m.SetWeeklyRemainder("a", 1)
}
