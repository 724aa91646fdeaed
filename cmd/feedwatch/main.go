// Command feedwatch mounts a live feed view against a running feedsync API and
// prints it whenever it changes. Commands typed on stdin page, post, comment
// and delete through the same view.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"feedsync/internal/config"
	"feedsync/internal/feed"
	"feedsync/internal/middleware"
	"feedsync/internal/models"
	"feedsync/internal/remote"
)

func main() {
	mode := flag.String("mode", "profile", "View to mount: profile, home or post")
	userID := flag.Uint("user", 0, "Profile owner (profile mode); defaults to the token's user")
	postID := flag.Uint("post", 0, "Post to watch (post mode)")
	apiURL := flag.String("api", "", "API base URL; overrides API_BASE_URL")
	token := flag.String("token", "", "Bearer token; overrides API_TOKEN")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *apiURL != "" {
		cfg.APIBaseURL = *apiURL
	}
	if *token != "" {
		cfg.APIToken = *token
	}

	viewer, err := viewerFromToken(cfg.APIToken)
	if err != nil {
		log.Fatalf("Invalid token: %v", err)
	}

	logger := middleware.Logger.With(slog.String("component", "feedwatch"))
	client := remote.NewClient(cfg.APIBaseURL, cfg.APIToken, cfg.RequestTimeout)
	store := remote.NewStore(client)
	changes := remote.NewStreamClient(client, logger)
	users := remote.NewUsers(client)
	opts := feed.Options{PageSize: cfg.FeedPageSize, ViewerID: viewer, Logger: logger}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		mount  func(context.Context) feed.Result
		cmds   map[string]command
		render func()
		closer func()
		done   <-chan struct{}
	)

	switch *mode {
	case "profile", "home":
		var f *feed.PostFeed
		title := "home"
		if *mode == "home" {
			f = feed.NewHomeView(store, changes, users, opts)
		} else {
			owner := models.ID(*userID)
			if owner == 0 {
				owner = viewer
			}
			if owner == 0 {
				log.Fatal("profile mode needs -user or a token")
			}
			f = feed.NewProfileView(store, changes, users, owner, opts)
			title = "profile " + owner.String()
		}
		mount, cmds, closer, done = f.Mount, postCommands(f), f.Close, f.Done()
		render = func() { renderPosts(os.Stdout, title, f.Snapshot()) }
		go watch(ctx, f.Updates(), render)
	case "post":
		if *postID == 0 {
			log.Fatal("post mode needs -post")
		}
		v := feed.NewPostDetailsView(store, changes, users, remote.NewDispatcher(client), models.ID(*postID), opts)
		mount, cmds, closer, done = v.Mount, detailCommands(v), v.Close, v.Done()
		render = func() { renderComments(os.Stdout, v.Post(), v.Snapshot()) }
		go watch(ctx, v.Updates(), render)
	default:
		log.Fatalf("unknown mode %q", *mode)
	}
	defer closer()

	if res := mount(ctx); !res.Success {
		log.Fatalf("Mount failed: %s", res.Msg)
	}
	render()
	fmt.Println("type help for commands")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			log.Println("view closed")
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if err := dispatch(ctx, os.Stdout, line, cmds); errors.Is(err, errQuit) {
				return
			}
		}
	}
}

// watch re-renders on every published snapshot until ctx ends or the view closes.
func watch[T any](ctx context.Context, updates <-chan feed.Snapshot[T], render func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-updates:
			if !ok {
				return
			}
			render()
		}
	}
}
