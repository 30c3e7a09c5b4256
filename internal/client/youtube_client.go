package client

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/ppalone/ytsearch"
	"github.com/raitonoberu/ytmusic"

	"github.com/cobardes/radia-fm-sub000/internal/model"
)

// Searcher is the search backend consumed by the song resolver. Best-effort:
// may return zero results.
type Searcher interface {
	Search(ctx context.Context, query string) ([]model.Track, error)
}

// YouTubeClient resolves textual song candidates against YouTube Music and
// YouTube search, and turns a video id into a streamable audio URL.
type YouTubeClient struct {
	maxResults int
	proxy      string
}

// NewYouTubeClient creates a YouTube search/resolution client.
func NewYouTubeClient(maxResults int) *YouTubeClient {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &YouTubeClient{maxResults: maxResults}
}

// Search queries YouTube Music and plain YouTube concurrently and merges the
// hits, deduplicated by video id, music results first. A failure of either
// source degrades to the other's results.
func (c *YouTubeClient) Search(ctx context.Context, query string) ([]model.Track, error) {
	searchCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var mu sync.Mutex
	var music, video []model.Track
	seen := make(map[string]bool)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		s := ytmusic.TrackSearch(query)
		r, err := s.Next()
		if err != nil {
			log.Printf("[YouTube] music search %q failed: %v", query, err)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		for _, t := range r.Tracks {
			if t.VideoID == "" || seen[t.VideoID] {
				continue
			}
			seen[t.VideoID] = true
			var artists []string
			for _, a := range t.Artists {
				artists = append(artists, a.Name)
			}
			var thumb string
			if len(t.Thumbnails) > 0 {
				thumb = t.Thumbnails[len(t.Thumbnails)-1].URL
			}
			music = append(music, model.Track{
				ID:        t.VideoID,
				Title:     t.Title,
				Artists:   artists,
				Thumbnail: thumb,
			})
		}
	}()

	go func() {
		defer wg.Done()
		s := ytsearch.NewClient(nil)
		r, err := s.Search(searchCtx, query)
		if err != nil {
			log.Printf("[YouTube] video search %q failed: %v", query, err)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		for _, v := range r.Results {
			if v.VideoID == "" || seen[v.VideoID] {
				continue
			}
			seen[v.VideoID] = true
			video = append(video, model.Track{
				ID:      v.VideoID,
				Title:   v.Title,
				Artists: []string{v.Channel},
			})
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-searchCtx.Done():
	}

	mu.Lock()
	defer mu.Unlock()
	merged := append(append([]model.Track{}, music...), video...)
	if len(merged) > c.maxResults {
		merged = merged[:c.maxResults]
	}
	return merged, nil
}

// StreamURL resolves a video id to a direct audio stream URL via yt-dlp.
// The returned URL expires server-side after a few hours, so callers cache
// it with a TTL rather than persisting it.
func (c *YouTubeClient) StreamURL(ctx context.Context, videoID string) (string, error) {
	cmd := ytdlp.New().
		Quiet().
		NoWarnings().
		NoPlaylist().
		Format("bestaudio[ext=m4a]/bestaudio").
		Print("%(urls)s")
	if c.proxy != "" {
		cmd = cmd.Proxy(c.proxy)
	}

	res, err := cmd.Run(ctx, "https://www.youtube.com/watch?v="+videoID)
	if err != nil {
		return "", fmt.Errorf("yt-dlp resolution failed for %s: %w", videoID, err)
	}

	url := strings.TrimSpace(res.Stdout)
	if url == "" {
		return "", fmt.Errorf("no stream URL for %s", videoID)
	}
	if i := strings.IndexByte(url, '\n'); i >= 0 {
		url = url[:i]
	}
	return url, nil
}

// SetProxy routes yt-dlp traffic through the given proxy.
func (c *YouTubeClient) SetProxy(proxy string) {
	c.proxy = proxy
}
