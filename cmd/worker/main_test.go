package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/odyssey-erp/quotewizard/internal/app"
	_ "github.com/odyssey-erp/quotewizard/testing"
)

func TestMainSkipsStartupInTestMode(t *testing.T) {
	app.RefreshTestMode()
	assert.True(t, app.InTestMode())
	assert.NotPanics(t, main)
}
