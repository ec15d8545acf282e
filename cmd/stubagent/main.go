// Command stubagent serves a fixture-driven stand-in for the browser
// automation agent API, for local development and smoke tests.
package main

import (
	"net/http"

	"github.com/taskbeat/taskbeat/internal/config"
	"github.com/taskbeat/taskbeat/internal/logging"
	"github.com/taskbeat/taskbeat/internal/stub"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	var fixtures *stub.Fixtures
	if cfg.StubFixtures != "" {
		f, err := stub.LoadFixtures(cfg.StubFixtures)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.StubFixtures).Msg("load fixtures")
		}
		fixtures = f
		log.Info().Int("rules", len(f.Rules)).Str("path", cfg.StubFixtures).Msg("fixtures loaded")
	}

	srv := stub.NewServer(cfg.AgentAPIKey, fixtures, log)
	log.Info().Str("addr", cfg.StubAddr).Msg("stub agent listening")
	if err := http.ListenAndServe(cfg.StubAddr, srv.Router()); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
