package solana

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Post is one entry of a user's social feed.
type Post struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
	Author    string `json:"author"`
}

// SocialClient fetches recent posts for the social-trigger strategy.
type SocialClient struct {
	core *restCore
}

// NewSocialClient creates a client for the social feed service.
func NewSocialClient(baseURL string, rateLimit float64, burst int, logger *zap.Logger) *SocialClient {
	return &SocialClient{core: newRestCore(baseURL, rateLimit, burst, logger.Named("social"))}
}

// RecentPosts returns up to the five most recent posts of a user,
// newest first.
func (c *SocialClient) RecentPosts(ctx context.Context, username string) ([]Post, error) {
	var result struct {
		Posts []Post `json:"posts"`
	}
	req := c.core.client.R().
		SetResult(&result).
		SetHeader("Content-Type", "application/json")

	if _, err := c.core.doRequest(ctx, "GET", "/users/"+username+"/posts", req); err != nil {
		return nil, fmt.Errorf("failed to fetch posts for @%s: %w", username, err)
	}

	if len(result.Posts) > 5 {
		result.Posts = result.Posts[:5]
	}
	return result.Posts, nil
}
