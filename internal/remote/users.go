package remote

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"feedsync/internal/feed"
	"feedsync/internal/models"

	"github.com/graph-gophers/dataloader/v7"
)

const (
	userBatchWait     = 5 * time.Millisecond
	userBatchCapacity = 100
)

// Users resolves author summaries through GET /api/users?ids=. Lookups
// issued close together share one request, and answers are cached for the
// life of the Users value. Failed lookups are not cached.
type Users struct {
	client *Client
	loader *dataloader.Loader[models.ID, *models.Author]
}

// NewUsers returns a batched lookup backed by client.
func NewUsers(client *Client) *Users {
	return newUsers(client, userBatchWait)
}

func newUsers(client *Client, wait time.Duration) *Users {
	u := &Users{client: client}
	u.loader = dataloader.NewBatchedLoader(u.batch,
		dataloader.WithWait[models.ID, *models.Author](wait),
		dataloader.WithBatchCapacity[models.ID, *models.Author](userBatchCapacity),
	)
	return u
}

var _ feed.UserLookup = (*Users)(nil)

// LookupUser returns the author summary for id.
func (u *Users) LookupUser(ctx context.Context, id models.ID) (*models.Author, error) {
	author, err := u.loader.Load(ctx, id)()
	if err != nil {
		u.loader.Clear(ctx, id)
		return nil, err
	}
	return author, nil
}

func (u *Users) batch(ctx context.Context, ids []models.ID) []*dataloader.Result[*models.Author] {
	results := make([]*dataloader.Result[*models.Author], len(ids))

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	q := url.Values{}
	q.Set("ids", strings.Join(parts, ","))

	var authors []models.Author
	if err := u.client.get(ctx, "/api/users", q, &authors); err != nil {
		err = fmt.Errorf("lookup users: %w", err)
		for i := range results {
			results[i] = &dataloader.Result[*models.Author]{Error: err}
		}
		return results
	}

	byID := make(map[models.ID]models.Author, len(authors))
	for _, a := range authors {
		byID[a.ID] = a
	}
	for i, id := range ids {
		a, ok := byID[id]
		if !ok {
			results[i] = &dataloader.Result[*models.Author]{Error: models.NewNotFoundError("User", id)}
			continue
		}
		results[i] = &dataloader.Result[*models.Author]{Data: &a}
	}
	return results
}
