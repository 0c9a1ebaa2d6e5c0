// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	"github.com/pdiddy/research-brief/internal/httputil"
)

// robotsEntry caches one host's robots.txt group. A nil group allows everything.
type robotsEntry struct {
	once  sync.Once
	group *robotstxt.Group
}

// allowed reports whether robots.txt for u's host permits fetching u. An
// unreachable robots.txt allows the fetch.
func (f *Fetcher) allowed(ctx context.Context, u *url.URL) bool {
	host := u.Scheme + "://" + u.Host

	f.mu.Lock()
	if f.robots == nil {
		f.robots = make(map[string]*robotsEntry)
	}
	e, ok := f.robots[host]
	if !ok {
		e = &robotsEntry{}
		f.robots[host] = e
	}
	f.mu.Unlock()

	e.once.Do(func() { e.group = f.loadRobots(ctx, host) })
	if e.group == nil {
		return true
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return e.group.Test(path)
}

func (f *Fetcher) loadRobots(ctx context.Context, host string) *robotstxt.Group {
	if f.Config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Config.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	agent := f.Config.UserAgent
	if agent != "" {
		req.Header.Set("User-Agent", agent)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		f.logger().Debug("robots.txt unavailable", zap.String("host", host), zap.Error(err))
		return nil
	}
	body, err := httputil.ReadLimited(resp, f.maxBytes())
	if err != nil {
		f.logger().Debug("robots.txt unreadable", zap.String("host", host), zap.Error(err))
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		f.logger().Debug("robots.txt unparseable", zap.String("host", host), zap.Error(err))
		return nil
	}
	if agent == "" {
		agent = "*"
	}
	return data.FindGroup(agent)
}
