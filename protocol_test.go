package main

import (
	"encoding/json"
	"testing"
)

func TestSanitizeIconBoundaries(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{iconMin - 1, iconUnknown},
		{iconMin, iconMin},
		{iconMax, iconMax},
		{iconMax + 1, iconUnknown},
		{0, iconUnknown},
		{-1, iconUnknown},
	}
	for _, c := range cases {
		if got := sanitizeIcon(c.in); got != c.want {
			t.Errorf("sanitizeIcon(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestLoginDataRequestedIconPrecedence(t *testing.T) {
	iconID := 5
	viewerIconID := 10

	both := LoginData{IconID: &iconID, ViewerIconID: &viewerIconID}
	if got := both.requestedIcon(99); got != 5 {
		t.Errorf("IconID should take precedence, got %d", got)
	}

	onlyViewer := LoginData{ViewerIconID: &viewerIconID}
	if got := onlyViewer.requestedIcon(99); got != 10 {
		t.Errorf("ViewerIconID fallback failed, got %d", got)
	}

	neither := LoginData{}
	if got := neither.requestedIcon(7); got != 7 {
		t.Errorf("expected fallback 7 when neither field set, got %d", got)
	}

	outOfRange := 999
	clamped := LoginData{IconID: &outOfRange}
	if got := clamped.requestedIcon(7); got != iconUnknown {
		t.Errorf("expected out-of-range icon sanitized to %d, got %d", iconUnknown, got)
	}
}

func TestMustMarshalProducesValidJSON(t *testing.T) {
	data := mustMarshal(LoginResponse{
		Type:    TypeLoginResponse,
		Success: true,
		Data:    LoginResponseData{ID: "alice", Name: "Alice", IconID: 5},
	})

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("mustMarshal produced invalid JSON: %v", err)
	}
	if decoded["type"] != string(TypeLoginResponse) {
		t.Errorf("type = %v, want %v", decoded["type"], TypeLoginResponse)
	}
}

func TestEnvelopeParsesKnownFields(t *testing.T) {
	raw := []byte(`{"type":"watch_request","target_id":"bob","viewer_id":"alice"}`)
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Type != TypeWatchRequest || env.TargetID != "bob" || env.ViewerID != "alice" {
		t.Errorf("unexpected envelope: %+v", env)
	}
}

func TestEnvelopeUnknownTypeIsZeroValue(t *testing.T) {
	raw := []byte(`{}`)
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Type != TypeUnknown {
		t.Errorf("Type = %q, want empty/unknown", env.Type)
	}
}
