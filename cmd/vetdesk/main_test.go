package main

import (
	"testing"

	"github.com/vetdesk/vetdesk/internal/app"
	_ "github.com/vetdesk/vetdesk/internal/testing/guard"
)

func TestMainReturnsInTestMode(t *testing.T) {
	if !app.InTestMode() {
		t.Fatalf("expected guard to enable test mode")
	}
	main()
}
