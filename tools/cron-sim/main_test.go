package main

import "testing"

func TestBuildTarget(t *testing.T) {
	got := buildTarget("http://localhost:8080/", "s3cret", false)
	if got != "http://localhost:8080/api/v1/cron/reminders" {
		t.Fatalf("header mode target = %q", got)
	}

	got = buildTarget("http://localhost:8080", "a&b+c%d", true)
	// Reserved characters in the secret must survive query encoding.
	if got != "http://localhost:8080/api/v1/cron/reminders?secret=a%26b%2Bc%25d" {
		t.Fatalf("query mode target = %q", got)
	}
}
