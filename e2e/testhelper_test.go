package e2e

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/cobardes/radia-fm-sub000/internal/auth"
	"github.com/cobardes/radia-fm-sub000/internal/client"
	"github.com/cobardes/radia-fm-sub000/internal/config"
	"github.com/cobardes/radia-fm-sub000/internal/handler"
	"github.com/cobardes/radia-fm-sub000/internal/middleware"
	"github.com/cobardes/radia-fm-sub000/internal/service"
	"github.com/cobardes/radia-fm-sub000/internal/store"
)

const testSessionSecret = "test-secret-for-e2e"

// testApp holds all components needed for testing
type testApp struct {
	app    *fiber.App
	tokens *auth.TokenManager
}

// setupApp creates a Fiber app identical to main.go but with unconfigured
// external clients and no worker server, so nothing reaches the model or
// search backends. Requests that would need them are not exercised here.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	// Redis (localhost — must be running)
	redisClient := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // use DB 15 for tests to avoid collision
	})

	// Asynq client (tasks are enqueued but never processed)
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr: "localhost:6379",
		DB:   15,
	})
	t.Cleanup(func() { asynqClient.Close() })

	validate := validator.New()

	// External clients, unconfigured; the covered routes never call them
	openaiClient := client.NewOpenAIClient(&config.OpenAIConfig{}, &config.TTSConfig{})
	youtubeClient := client.NewYouTubeClient(5)

	stationStore := store.NewStationStore(redisClient, 10*time.Minute)
	tokens := auth.NewTokenManager(testSessionSecret, time.Hour)

	stationService := service.NewStationService(stationStore, youtubeClient, tokens, asynqClient)
	audioService := service.NewAudioService(redisClient, stationStore, youtubeClient, openaiClient, nil, 30*time.Minute)

	stationHandler := handler.NewStationHandler(stationService, validate)
	audioHandler := handler.NewAudioHandler(audioService)

	authMiddleware := middleware.NewAuthMiddleware(tokens)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	app := fiber.New()

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"timestamp": time.Now().Unix()})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"openai": openaiClient.IsConfigured(),
				"r2":     false,
				"redis":  redisClient.Ping(c.Context()).Err() == nil,
			},
		})
	})

	api := app.Group("/api")

	// Use very high rate limits so tests don't get blocked
	api.Post("/stations", rateLimiter.StationLimit(10000), stationHandler.Create)

	station := api.Group("/stations/:id", authMiddleware.RequireStation())
	station.Get("/", stationHandler.Get)
	station.Get("/queue", stationHandler.Queue)
	station.Post("/extend", rateLimiter.ExtendLimit(10000), stationHandler.Extend)

	audio := app.Group("/audio", authMiddleware.RequireStation())
	audio.Get("/songs/:songId", audioHandler.Song)
	audio.Get("/segments/:segmentId", audioHandler.Segment)

	return &testApp{app: app, tokens: tokens}
}

// mintToken creates a listener token for the given station id.
func mintToken(t *testing.T, ta *testApp, stationID string) string {
	t.Helper()
	token, err := ta.tokens.Mint(stationID)
	if err != nil {
		t.Fatalf("failed to mint test token: %v", err)
	}
	return token
}

// createStation creates a station from a seed song and returns its id and
// listener token.
func createStation(t *testing.T, ta *testApp) (string, string) {
	t.Helper()

	body := `{"seed":{"id":"dQw4w9WgXcQ","title":"Never Gonna Give You Up","artist":"Rick Astley"}}`
	resp, err := doRequest(ta.app, "POST", "/api/stations", body, nil)
	if err != nil {
		t.Fatalf("failed to create station: %v", err)
	}
	assertStatus(t, resp, 201)

	result := parseJSON(t, resp)
	token, _ := result["token"].(string)
	stationMap, _ := result["station"].(map[string]interface{})
	id, _ := stationMap["id"].(string)
	if id == "" || token == "" {
		t.Fatalf("incomplete create response: %v", result)
	}
	return id, token
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs a request with a station token.
func doAuthRequest(app *fiber.App, method, path, body, token string) (*http.Response, error) {
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// assertErrorCode checks the error envelope code.
func assertErrorCode(t *testing.T, result map[string]interface{}, expected string) {
	t.Helper()
	errObj, _ := result["error"].(map[string]interface{})
	if errObj == nil {
		t.Fatalf("expected error envelope, got %v", result)
	}
	if code, _ := errObj["code"].(string); code != expected {
		t.Errorf("expected error code %s, got %v", expected, errObj["code"])
	}
}
