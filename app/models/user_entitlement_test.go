package models

import (
	"testing"
	"time"
)

func TestUserEntitlement_IsActiveAt(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		grant UserEntitlement
		at    time.Time
		want  bool
	}{
		{"within window", UserEntitlement{StartsAt: start, ExpiresAt: &end}, start.Add(time.Hour), true},
		{"before start", UserEntitlement{StartsAt: start, ExpiresAt: &end}, start.Add(-time.Hour), false},
		{"at expiry", UserEntitlement{StartsAt: start, ExpiresAt: &end}, end, false},
		{"after expiry", UserEntitlement{StartsAt: start, ExpiresAt: &end}, end.Add(time.Hour), false},
		{"lifetime", UserEntitlement{StartsAt: start}, end.AddDate(50, 0, 0), true},
		{"at start", UserEntitlement{StartsAt: start, ExpiresAt: &end}, start, true},
	}

	for _, tt := range tests {
		if got := tt.grant.IsActiveAt(tt.at); got != tt.want {
			t.Fatalf("%s: IsActiveAt = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSubscription_IsEntitling(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{SubscriptionStatusActive, true},
		{SubscriptionStatusCancelled, true},
		{SubscriptionStatusGracePeriod, true},
		{SubscriptionStatusExpired, false},
		{SubscriptionStatusRefunded, false},
		{SubscriptionStatusPaused, false},
	}

	for _, tt := range tests {
		s := Subscription{Status: tt.status}
		if got := s.IsEntitling(); got != tt.want {
			t.Fatalf("IsEntitling(%q) = %v, want %v", tt.status, got, tt.want)
		}
	}
}
