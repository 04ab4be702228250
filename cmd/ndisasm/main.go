package main

import (
	"log/slog"
	"net/http"
	"os"

	_ "net/http/pprof" // profiling

	"github.com/bitdefender/bddisasm/internal/ndisasm/cmd"
	"github.com/bitdefender/bddisasm/internal/ndisasm/log"
)

func main() {
	defer log.RecoverPanic("main", func() {
		slog.Error("ndisasm terminated due to unhandled panic")
	})

	if os.Getenv("NDISASM_PROFILE") != "" {
		go func() {
			slog.Info("Serving pprof at localhost:6060")
			if httpErr := http.ListenAndServe("localhost:6060", nil); httpErr != nil {
				slog.Error("Failed to pprof listen", "error", httpErr)
			}
		}()
	}

	cmd.Execute()
}
