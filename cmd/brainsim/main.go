// Command brainsim runs a demo brain for the face: it announces the face
// contract to every face that connects and answers input with a streamed
// reply. Replies come from Gemini when GEMINI_API_KEY (or GOOGLE_API_KEY)
// is set and echo the input otherwise.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/kevingtzz/BMO-project/internal/brainsim"
	"github.com/kevingtzz/BMO-project/internal/config"
	"github.com/kevingtzz/BMO-project/internal/contract"
	"github.com/kevingtzz/BMO-project/internal/logging"
)

func main() {
	_ = godotenv.Load()

	// Read only: the demo brain never writes the face's config file.
	cfg, err := config.Read()
	if err != nil {
		// Keep going on defaults; the demo brain needs none of the face settings.
		cfg = config.DefaultConfig()
	}

	listen := flag.String("listen", cfg.Sim.Listen, "Address to listen on")
	contractFile := flag.String("contract", cfg.Brain.ContractFile, "Face contract file (default: built-in)")
	flag.DurationVar(&cfg.Sim.EmotionDuration, "emotion-duration", cfg.Sim.EmotionDuration, "duration_ms attached to inferred emotions")
	flag.DurationVar(&cfg.Sim.ChunkDelay, "chunk-delay", cfg.Sim.ChunkDelay, "Pause between reply chunks")
	flag.StringVar(&cfg.Sim.Model, "model", cfg.Sim.Model, "Gemini model used when an API key is set")
	level := flag.String("level", "info", "Log level")
	flag.Parse()

	logger, err := logging.New(&logging.Config{
		Level:      logging.LogLevel(*level),
		MaxHistory: 100,
		Console:    true,
	})
	if err != nil {
		os.Exit(1)
	}
	defer logger.Close()
	log := logger.Component("main")

	catalog := contract.Default()
	if *contractFile != "" {
		catalog, err = contract.LoadFile(*contractFile)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load face contract")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	responder := brainsim.Echo
	replies := "echo"
	if key := apiKey(); key != "" {
		gemini, err := brainsim.NewGeminiResponder(ctx, key, cfg.Sim.Model)
		if err != nil {
			log.Warn().Err(err).Msg("Model replies unavailable, echoing input")
		} else {
			responder = gemini
			replies = gemini.Model()
		}
	}

	server := brainsim.NewServer(brainsim.Config{
		ContractVersion: catalog.Version(),
		EmotionDuration: cfg.Sim.EmotionDuration,
		ChunkDelay:      cfg.Sim.ChunkDelay,
		Responder:       responder,
	}, logger.Zerolog())

	log.Info().
		Str("listen", *listen).
		Str("contract", catalog.Version()).
		Str("replies", replies).
		Msg("Starting demo brain")

	if err := server.ListenAndServe(ctx, *listen); err != nil {
		log.Error().Err(err).Msg("Demo brain stopped")
		os.Exit(1)
	}
	log.Info().Msg("Demo brain stopped")
}

func apiKey() string {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return key
	}
	return os.Getenv("GOOGLE_API_KEY")
}
