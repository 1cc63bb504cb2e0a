package event

import "testing"

func TestFanOutPublishDropsWhenFull(t *testing.T) {
	persist := make(chan Envelope, 4)
	publish := make(chan Envelope, 1)

	drops := 0
	sink := NewFanOut(persist, publish, func() { drops++ })

	sink.Emit(Envelope{Sequence: 1})
	sink.Emit(Envelope{Sequence: 2}) // publish buffer full, must drop

	if got := len(persist); got != 2 {
		t.Fatalf("persist received %d envelopes, want 2", got)
	}
	if got := len(publish); got != 1 {
		t.Fatalf("publish received %d envelopes, want 1", got)
	}
	if drops != 1 {
		t.Fatalf("drops = %d, want 1", drops)
	}
}

func TestFanOutNilChannels(t *testing.T) {
	sink := NewFanOut(nil, nil, nil)
	sink.Emit(Envelope{Sequence: 1}) // must not panic or block
}

func TestTypeString(t *testing.T) {
	cases := []struct {
		typ  Type
		want string
	}{
		{TypeAuctionStarted, "auction_started"},
		{TypeBidPlaced, "bid_placed"},
		{TypeSettled, "settled"},
		{TypeSwept, "swept"},
		{Type(99), "unknown"},
	}
	for _, tc := range cases {
		if got := tc.typ.String(); got != tc.want {
			t.Errorf("Type(%d).String() = %q, want %q", tc.typ, got, tc.want)
		}
	}
}
