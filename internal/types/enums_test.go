package types

import "testing"

func TestBroadcastStatus_CanTransitionTo(t *testing.T) {
	all := []BroadcastStatus{
		StatusDraft, StatusPendingApproval, StatusBroadcasting, StatusCancelled,
		StatusRejected, StatusCompleted, StatusTechnicalFailure,
	}
	allowed := map[[2]BroadcastStatus]bool{
		{StatusDraft, StatusPendingApproval}:        true,
		{StatusPendingApproval, StatusRejected}:     true,
		{StatusPendingApproval, StatusDraft}:        true,
		{StatusPendingApproval, StatusBroadcasting}: true,
		{StatusBroadcasting, StatusCompleted}:       true,
		{StatusBroadcasting, StatusCancelled}:       true,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]BroadcastStatus{from, to}]
			if got := from.CanTransitionTo(to); got != want {
				t.Errorf("%s -> %s: got %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestBroadcastStatus_UnknownIsTerminal(t *testing.T) {
	if BroadcastStatus("bogus").CanTransitionTo(StatusDraft) {
		t.Error("unknown status should not transition anywhere")
	}
}

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in     string
		want   Provider
		wantOK bool
	}{
		{"ee", ProviderEE, true},
		{" Vodafone ", ProviderVodafone, true},
		{"O2", ProviderO2, true},
		{"three", ProviderThree, true},
		{"all", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseProvider(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseProvider(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
