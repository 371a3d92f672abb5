package domain

import "testing"

func TestValidPermission(t *testing.T) {
	tests := []struct {
		name  string
		p     PermissionState
		valid bool
	}{
		{"default", PermissionDefault, true},
		{"granted", PermissionGranted, true},
		{"denied", PermissionDenied, true},
		{"invalid empty", "", false},
		{"invalid prompt", "prompt", false},
		{"invalid capitalized", "Granted", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidPermission(tt.p); got != tt.valid {
				t.Errorf("ValidPermission(%q) = %v, want %v", tt.p, got, tt.valid)
			}
		})
	}
}

func TestKnownNotificationType(t *testing.T) {
	if !KnownNotificationType(NotifTypeNewPublicCase) {
		t.Errorf("KnownNotificationType(%q) = false, want true", NotifTypeNewPublicCase)
	}
	if KnownNotificationType("case_closed") {
		t.Error("KnownNotificationType(\"case_closed\") = true, want false")
	}
}

func TestNotificationURL(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
		want string
	}{
		{"nil data", nil, ""},
		{"no url", map[string]any{"case_id": 42}, ""},
		{"string url", map[string]any{"url": "/cases/42"}, "/cases/42"},
		{"non-string url", map[string]any{"url": 42}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := Notification{Options: NotificationOptions{Data: tt.data}}
			if got := n.URL(); got != tt.want {
				t.Errorf("URL() = %q, want %q", got, tt.want)
			}
		})
	}
}
