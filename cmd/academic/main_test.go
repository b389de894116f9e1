package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-academic/internal/app"
	_ "github.com/odyssey-erp/odyssey-academic/internal/testing/guard"
)

func TestMainSkipsStartupInTestMode(t *testing.T) {
	app.RefreshTestMode()
	require.True(t, app.InTestMode())
	// returns before parsing flags or dialing Postgres and Redis
	main()
}
