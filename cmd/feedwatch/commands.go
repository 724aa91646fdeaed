package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"feedsync/internal/feed"
	"feedsync/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

var errQuit = errors.New("quit")

// command runs one interactive action. arg is the rest of the input line.
type command struct {
	usage string
	run   func(ctx context.Context, arg string) feed.Result
}

// dispatch parses line and runs the matching command, writing the outcome to out.
func dispatch(ctx context.Context, out io.Writer, line string, cmds map[string]command) error {
	name, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "":
		return nil
	case "quit", "exit":
		return errQuit
	case "help":
		printHelp(out, cmds)
		return nil
	}

	cmd, ok := cmds[name]
	if !ok {
		_, _ = fmt.Fprintf(out, "unknown command %q, try help\n", name)
		return nil
	}
	res := cmd.run(ctx, arg)
	switch {
	case !res.Success:
		_, _ = fmt.Fprintf(out, "✗ %s\n", res.Msg)
	case res.Msg != "":
		_, _ = fmt.Fprintf(out, "· %s\n", res.Msg)
	}
	return nil
}

func printHelp(out io.Writer, cmds map[string]command) {
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		_, _ = fmt.Fprintf(out, "  %-8s %s\n", name, cmds[name].usage)
	}
	_, _ = fmt.Fprintf(out, "  %-8s %s\n", "quit", "leave")
}

// withID adapts an id-taking operation to a command.
func withID(op func(context.Context, models.ID) feed.Result) func(context.Context, string) feed.Result {
	return func(ctx context.Context, arg string) feed.Result {
		id, err := models.ParseID(arg)
		if err != nil || id == 0 {
			return feed.Result{Msg: "expected a numeric id"}
		}
		return op(ctx, id)
	}
}

// withIDAndText adapts an operation taking an id and free text, as in "<id> <text>".
func withIDAndText(op func(context.Context, models.ID, string) feed.Result) func(context.Context, string) feed.Result {
	return func(ctx context.Context, arg string) feed.Result {
		head, text, _ := strings.Cut(arg, " ")
		id, err := models.ParseID(head)
		if err != nil || id == 0 {
			return feed.Result{Msg: "expected a numeric id"}
		}
		return op(ctx, id, strings.TrimSpace(text))
	}
}

func postCommands(f *feed.PostFeed) map[string]command {
	return map[string]command{
		"more": {usage: "load the next page", run: func(ctx context.Context, _ string) feed.Result {
			return f.LoadMore(ctx)
		}},
		"post": {usage: "<text> publish a post", run: func(ctx context.Context, arg string) feed.Result {
			return f.CreatePost(ctx, feed.NewPost{Body: arg})
		}},
		"edit": {usage: "<id> <text> rewrite one of your posts", run: withIDAndText(func(ctx context.Context, id models.ID, text string) feed.Result {
			return f.EditPost(ctx, id, feed.NewPost{Body: text})
		})},
		"delete": {usage: "<id> delete one of your posts", run: withID(f.DeletePost)},
		"like":   {usage: "<id> like a post", run: withID(f.Like)},
		"unlike": {usage: "<id> remove your like", run: withID(f.Unlike)},
	}
}

func detailCommands(v *feed.PostDetailsView) map[string]command {
	return map[string]command{
		"more": {usage: "load older comments", run: func(ctx context.Context, _ string) feed.Result {
			return v.LoadMore(ctx)
		}},
		"comment": {usage: "<text> reply to the post", run: v.CreateComment},
		"delete":  {usage: "<id> delete a comment", run: withID(v.DeleteComment)},
	}
}

func renderPosts(out io.Writer, title string, snap feed.Snapshot[models.Post]) {
	_, _ = fmt.Fprintf(out, "── %s (%d) ──\n", title, len(snap.Items))
	for _, p := range snap.Items {
		text := p.Body
		if text == "" {
			text = p.File
		}
		_, _ = fmt.Fprintf(out, "#%d %s: %s  [♥ %d  💬 %d]\n", p.ID, authorName(p.User), text, p.LikesCount, p.CommentsCount)
	}
	renderFooter(out, snap.NoMore)
}

func renderComments(out io.Writer, post models.Post, snap feed.Snapshot[models.Comment]) {
	_, _ = fmt.Fprintf(out, "── #%d %s: %s ──\n", post.ID, authorName(post.User), post.Body)
	for _, c := range snap.Items {
		_, _ = fmt.Fprintf(out, "  #%d %s: %s\n", c.ID, authorName(c.User), c.Text)
	}
	renderFooter(out, snap.NoMore)
}

func renderFooter(out io.Writer, noMore bool) {
	if noMore {
		_, _ = fmt.Fprintln(out, "   (end)")
	}
}

func authorName(u models.User) string {
	if u.Name != "" {
		return u.Name
	}
	return "user " + u.ID.String()
}

// viewerFromToken reads the subject of token without verifying it. The server
// verifies; the client only needs to know who it acts as.
func viewerFromToken(token string) (models.ID, error) {
	if token == "" {
		return 0, nil
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return 0, fmt.Errorf("parse token: %w", err)
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil {
		return 0, fmt.Errorf("token subject: %w", err)
	}
	return models.ParseID(sub)
}
