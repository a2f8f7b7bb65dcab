package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/wolfman30/lead-crm/cmd/mainconfig"
	"github.com/wolfman30/lead-crm/internal/app/bootstrap"
	appconfig "github.com/wolfman30/lead-crm/internal/config"
	"github.com/wolfman30/lead-crm/internal/leads"
	"github.com/wolfman30/lead-crm/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd(&app{open: openService}).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openService opens the configured backend. Logs go to stderr so command
// output on stdout stays machine readable.
func openService(ctx context.Context) (*leads.LeadService, func(), error) {
	cfg := appconfig.Load()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logger := logging.NewWithWriter(cfg.LogLevel, "text", os.Stderr)

	var loadAWS bootstrap.AWSConfigLoader
	if bootstrap.NeedsAWS(cfg) {
		loadAWS = mainconfig.Loader(cfg)
	}
	store, cleanup, err := bootstrap.BuildLeadStore(ctx, cfg, loadAWS, logger)
	if err != nil {
		return nil, nil, err
	}
	return leads.NewLeadService(store, logger), cleanup, nil
}
