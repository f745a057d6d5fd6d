package server

import (
	"fmt"
	"io"

	"github.com/stephnangue/steward/config"
)

// devModeConfig builds the throwaway configuration for -dev: one plaintext
// listener, the default shared secret unless API_KEY overrides it, debug
// logging, and no Azure credentials (the in-memory directory needs none).
func devModeConfig(address string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.LogLevel = "debug"
	cfg.Listeners = []config.ListenerBlock{
		{Name: "api", Protocol: "tcp", Address: address},
	}
	return cfg
}

// printDevBanner prints the dev mode startup banner with the shared secret.
func printDevBanner(w io.Writer, apiKey string) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "==> Steward server started in dev mode! <==\n")
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "WARNING! dev mode is enabled! In this mode, Steward runs against an\n")
	fmt.Fprintf(w, "in-memory directory. Nothing reaches a real tenant and all provisioned\n")
	fmt.Fprintf(w, "state is lost on restart. Do NOT run dev mode in production!\n")
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Shared secret (Authorization header): %s\n", apiKey)
	fmt.Fprintf(w, "\n")
}
