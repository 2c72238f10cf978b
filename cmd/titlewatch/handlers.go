package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/elonfeng/titlewatch/internal/config"
	"github.com/elonfeng/titlewatch/internal/scheduler"
	"github.com/elonfeng/titlewatch/internal/store"
	"github.com/elonfeng/titlewatch/pkg/comment"
	"github.com/elonfeng/titlewatch/pkg/server"
	"github.com/elonfeng/titlewatch/pkg/source"
	"github.com/elonfeng/titlewatch/pkg/track"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

// buildTracking wires the sampling client, optional comment backend,
// discoverer and processor from config.
func buildTracking(cfg *config.Config, db store.Store) (*track.Discoverer, *track.Processor) {
	src := source.NewClient()

	var comments track.Commenter
	if !cfg.Comments.Skip {
		comments = comment.New(
			cfg.Comments.ClientID,
			cfg.Comments.ClientSecret,
			cfg.Comments.RefreshToken,
		)
	} else {
		fmt.Fprintln(os.Stderr, "comments disabled (skip mode)")
	}

	disc := track.NewDiscoverer(db, src, cfg.Tracking.ParseCutoffDate())
	proc := track.NewProcessor(db, src, comments, track.Options{
		SamplesPerRun: cfg.Sampling.PerRun,
		FastSamples:   cfg.Sampling.Fast,
		MinBeforePost: cfg.Sampling.MinBeforePost,
		SampleDelay:   cfg.Sampling.ParseDelay(),
		InactiveDays:  cfg.Tracking.InactiveDaysThreshold,
		Intros:        cfg.Comments.Intros,
	})
	return disc, proc
}

func runCheck() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	disc, proc := buildTracking(cfg, db)
	ctx := context.Background()

	for _, ch := range cfg.ParseChannels() {
		fmt.Fprintf(os.Stderr, "checking %s...\n", ch.Name)
		newVideos, err := disc.Discover(ctx, ch)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  error: %v\n", err)
			continue
		}
		fmt.Fprintf(os.Stderr, "  %d new videos\n", len(newVideos))
		for _, v := range newVideos {
			proc.Process(ctx, v, ch.Name)
		}
	}
	return nil
}

func runVideos(jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	sums, err := db.VideoSummaries(context.Background())
	if err != nil {
		return fmt.Errorf("list videos: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sums)
	}

	if len(sums) == 0 {
		fmt.Println("no videos tracked yet (try: titlewatch check)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VIDEO\tCHANNEL\tPUBLISHED\tSTATE\tTITLES\tSAMPLES\tCOMMENT")
	for i := range sums {
		v := &sums[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			v.VideoID, v.ChannelName,
			store.DateOf(v.PublishedAt),
			videoState(v), v.UniqueTitles, v.TotalSamples,
			v.CommentID.String)
	}
	return w.Flush()
}

func videoState(v *store.VideoSummary) string {
	switch {
	case v.IsShort:
		return "short"
	case v.IsDeleted:
		return "deleted"
	case v.IsIgnored:
		return "ignored"
	case !v.IsActive:
		return "finalized"
	default:
		return "active"
	}
}

func runServe(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if port == 0 {
		port = cfg.Server.Port
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	return server.New(db, port).ListenAndServe()
}

func runDaemon(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if port == 0 {
		port = cfg.Server.Port
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	disc, proc := buildTracking(cfg, db)
	channels := cfg.ParseChannels()

	fmt.Fprintf(os.Stderr, "starting titlewatch: %d channels, cutoff %s, inactive threshold %d days\n",
		len(channels), cfg.Tracking.CutoffDate, cfg.Tracking.InactiveDaysThreshold)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.New(db, disc, proc, channels,
		cfg.Schedule.ParseDiscoveryInterval(),
		cfg.Schedule.ParseRecheckInterval(),
		cfg.Schedule.Workers,
	)

	// Scheduler in the background, status server in the foreground.
	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "scheduler error: %v\n", err)
		}
	}()

	go func() {
		<-ctx.Done()
		fmt.Fprintln(os.Stderr, "\nshutting down...")
		// Give in-flight tasks a moment, then force exit.
		time.Sleep(2 * time.Second)
		os.Exit(0)
	}()

	return server.New(db, port).ListenAndServe()
}
