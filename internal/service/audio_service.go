package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cobardes/radia-fm-sub000/internal/client"
	"github.com/cobardes/radia-fm-sub000/internal/store"
)

const (
	songURLKeyPrefix    = "songurl:"
	segmentURLKeyPrefix = "segmenturl:"
)

// StreamResolver resolves a YouTube video id to a direct audio stream URL.
type StreamResolver interface {
	StreamURL(ctx context.Context, videoID string) (string, error)
}

// AudioService resolves playable audio for both halves of the queue. Song
// stream URLs expire upstream, so they live in redis under a short TTL.
// Synthesized speech is immutable once rendered, so its object URL is
// cached without expiry.
type AudioService struct {
	redis       *redis.Client
	segments    *store.StationStore
	streams     StreamResolver
	synthesizer client.Synthesizer
	storage     client.StorageClient
	songURLTTL  time.Duration
}

func NewAudioService(redisClient *redis.Client, segments *store.StationStore, streams StreamResolver, synthesizer client.Synthesizer, storage client.StorageClient, songURLTTL time.Duration) *AudioService {
	return &AudioService{
		redis:       redisClient,
		segments:    segments,
		streams:     streams,
		synthesizer: synthesizer,
		storage:     storage,
		songURLTTL:  songURLTTL,
	}
}

// SongStreamURL returns a direct audio URL for a song, resolving through
// yt-dlp on cache miss.
func (s *AudioService) SongStreamURL(ctx context.Context, songID string) (string, error) {
	key := songURLKeyPrefix + songID
	if url, err := s.redis.Get(ctx, key).Result(); err == nil && url != "" {
		return url, nil
	}

	url, err := s.streams.StreamURL(ctx, songID)
	if err != nil {
		return "", err
	}

	if err := s.redis.Set(ctx, key, url, s.songURLTTL).Err(); err != nil {
		log.Printf("[Audio] failed to cache stream URL for %s: %v", songID, err)
	}
	return url, nil
}

// SegmentAudio returns the audio for a talk segment. When object storage is
// configured the speech is synthesized once, uploaded, and the public URL is
// returned on every later call. Without storage the synthesized stream is
// returned directly and the caller pipes it to the client.
func (s *AudioService) SegmentAudio(ctx context.Context, segmentID string) (string, io.ReadCloser, error) {
	seg, err := s.segments.Segment(ctx, segmentID)
	if err != nil {
		return "", nil, err
	}

	if s.storage == nil {
		stream, err := s.synthesizer.Synthesize(ctx, seg.Text, seg.Language)
		if err != nil {
			return "", nil, fmt.Errorf("speech synthesis failed for %s: %w", segmentID, err)
		}
		return "", stream, nil
	}

	key := segmentURLKeyPrefix + segmentID
	if url, err := s.redis.Get(ctx, key).Result(); err == nil && url != "" {
		return url, nil, nil
	}

	stream, err := s.synthesizer.Synthesize(ctx, seg.Text, seg.Language)
	if err != nil {
		return "", nil, fmt.Errorf("speech synthesis failed for %s: %w", segmentID, err)
	}
	defer stream.Close()

	objectKey := fmt.Sprintf("segments/%s.mp3", segmentID)
	url, err := s.storage.Upload(ctx, objectKey, stream, "audio/mpeg")
	if err != nil {
		return "", nil, fmt.Errorf("failed to upload segment audio for %s: %w", segmentID, err)
	}

	if err := s.redis.Set(ctx, key, url, 0).Err(); err != nil {
		log.Printf("[Audio] failed to cache segment URL for %s: %v", segmentID, err)
	}
	return url, nil, nil
}
