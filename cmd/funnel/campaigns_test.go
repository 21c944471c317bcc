package main

import (
	"reflect"
	"testing"
)

func TestParsePatch(t *testing.T) {
	patch, err := parsePatch([]string{
		"name=Boulder Dinner",
		"status=live",
		"launch_date=null",
		"workers=3",
		"archived=true",
	})
	if err != nil {
		t.Fatalf("parsePatch: %v", err)
	}
	want := map[string]any{
		"name":        "Boulder Dinner",
		"status":      "live",
		"launch_date": nil,
		"workers":     float64(3),
		"archived":    true,
	}
	if !reflect.DeepEqual(patch, want) {
		t.Errorf("patch = %#v, want %#v", patch, want)
	}
}

func TestParsePatchRejectsBareKeys(t *testing.T) {
	if _, err := parsePatch([]string{"name"}); err == nil {
		t.Error("expected error for missing '='")
	}
	if _, err := parsePatch([]string{"=value"}); err == nil {
		t.Error("expected error for empty key")
	}
}
