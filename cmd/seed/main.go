package main

import (
	"context"
	"flag"
	"os"

	"github.com/joho/godotenv"

	"github.com/oggyb/matchbot/internal/config"
	"github.com/oggyb/matchbot/internal/db"
	"github.com/oggyb/matchbot/internal/logger"
	"github.com/oggyb/matchbot/internal/seed"
)

func main() {
	opts := seed.DefaultOptions()
	flag.IntVar(&opts.Users, "users", opts.Users, "number of demo users")
	flag.IntVar(&opts.LikesPerUser, "likes", opts.LikesPerUser, "likes sent per user")
	flag.IntVar(&opts.MaxPhotos, "photos", opts.MaxPhotos, "max photos per user")
	flag.IntVar(&opts.BannedEvery, "ban-every", opts.BannedEvery, "ban every n-th user, 0 disables")
	flag.Uint64Var(&opts.Seed, "seed", opts.Seed, "random seed")
	flag.BoolVar(&opts.Reset, "reset", opts.Reset, "delete existing data first")
	flag.Parse()

	// Load configuration; the bot token is not needed here
	_ = godotenv.Load()
	cfg := config.New()
	logger.InitFromConfig(cfg)
	log := logger.L()

	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		os.Exit(1)
	}

	res, err := seed.Run(context.Background(), database, log, opts)
	if err != nil {
		log.Error("failed to seed", "err", err)
		os.Exit(1)
	}

	log.Info("seeding completed",
		"users", res.Users,
		"photos", res.Photos,
		"likes", res.Likes,
		"matches", res.Matches,
		"banned", res.Banned,
	)
}
