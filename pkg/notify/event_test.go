package notify

import "testing"

func TestEncode(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{"opened", Event{Kind: KindOpened, Actor: "alice"}, "OPEN##alice"},
		{"deleted", Event{Kind: KindDeleted, Actor: "bob"}, "DELETE##bob"},
		{"updated", Event{Kind: KindUpdated, Actor: "carol"}, "UPDATE##carol"},
		{"empty actor", Event{Kind: KindOpened}, "OPEN##"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.event.Encode(); got != tt.want {
				t.Errorf("Encode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Event
	}{
		{"opened", "OPEN##alice", Event{Kind: KindOpened, Actor: "alice"}},
		{"deleted", "DELETE##bob", Event{Kind: KindDeleted, Actor: "bob"}},
		{"updated", "UPDATE##carol", Event{Kind: KindUpdated, Actor: "carol"}},
		{"unknown kind preserved", "RENAME##dave", Event{Kind: "RENAME", Actor: "dave"}},
		{"no separator", "garbage", Event{Kind: "garbage"}},
		{"empty payload", "", Event{}},
		{"actor containing separator", "OPEN##a##b", Event{Kind: KindOpened, Actor: "a##b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decode(tt.payload); got != tt.want {
				t.Errorf("Decode(%q) = %+v, want %+v", tt.payload, got, tt.want)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	original := Event{Kind: KindDeleted, Actor: "mallory"}
	if got := Decode(original.Encode()); got != original {
		t.Errorf("round trip = %+v, want %+v", got, original)
	}
}
