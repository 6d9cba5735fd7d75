// mockcrm runs the in-memory CRM backend on its own port for local
// development against the bot server.
package main

import (
	"net/http"
	"os"

	"voicebot-service/internal/common/logger"
	"voicebot-service/internal/crm/crmmock"
)

func main() {
	addr := os.Getenv("MOCKCRM_ADDRESS")
	if addr == "" {
		addr = ":8001"
	}

	log := logger.NewStructured("info", "json")
	srv := crmmock.New(log)

	log.Info("mock CRM listening", map[string]interface{}{"address": addr})
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		log.Error("mock CRM stopped", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}
