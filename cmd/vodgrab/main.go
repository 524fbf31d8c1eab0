package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vodgrab/vodgrab/internal/api"
	"github.com/vodgrab/vodgrab/internal/catalog"
	"github.com/vodgrab/vodgrab/internal/config"
	"github.com/vodgrab/vodgrab/internal/download"
	"github.com/vodgrab/vodgrab/internal/encode"
	"github.com/vodgrab/vodgrab/internal/model"
	"github.com/vodgrab/vodgrab/internal/platform"
	"github.com/vodgrab/vodgrab/internal/playback"
	"github.com/vodgrab/vodgrab/internal/segment"
)

var version = "dev"

// staticTokens serves the account credential from the config file
type staticTokens struct {
	token string
}

func (s staticTokens) OAuthToken() string {
	return s.token
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("vodgrab", version)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	if err := platform.CreateDirectoryIfNotExists(cfg.Download.Dir); err != nil {
		log.Fatalf("failed to create download directory: %v", err)
	}

	cat := catalog.NewClient(cfg.Catalog.Endpoint, cfg.Catalog.ClientID,
		catalog.WithTokenSource(staticTokens{token: cfg.Catalog.OAuthToken}))
	resolver := playback.NewResolver(cat, nil)
	fetcher := segment.NewHTTPFetcher(&http.Client{Timeout: cfg.FetchTimeout()})

	var processor download.Processor
	if !cfg.Encode.Disabled {
		processor = encode.NewProcessorWithPaths(cfg.Encode.FFmpegPath, cfg.Encode.FFprobePath)
	}

	events := download.NewPublisher()
	events.Subscribe(func(e download.Event) {
		switch e.Type {
		case download.EventFinished:
			log.Printf("Task %s finished (%d segments, %s)", e.TaskID, e.Progress.File, e.Progress.Size)
		case download.EventFinishedWithError:
			log.Printf("Task %s failed: %v", e.TaskID, e.Err)
		}
	})

	sched := download.NewScheduler(cfg.Download.MaxConcurrent, events)
	sched.Start()
	defer sched.Close()

	taskCfg := download.TaskConfig{
		DownloadDir:  cfg.Download.Dir,
		RetryBudget:  cfg.Download.RetryBudget,
		RetryBackoff: cfg.RetryBackoff(),
		WaitingTime:  cfg.WaitingTime(),
	}
	factory := func(descriptor model.ContentDescriptor, setup model.TaskSetup) *download.Task {
		deps := download.Deps{
			Resolver:  resolver,
			Fetcher:   fetcher,
			Processor: processor,
			Events:    events,
		}
		return download.NewTask(descriptor, setup, deps, taskCfg)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()
	api.RegisterHandlers(r, cat, sched, factory)

	log.Printf("vodgrab %s serving on :%d, downloads in %s", version, cfg.Server.Port, cfg.Download.Dir)
	if err := r.Run(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
