package e2e

import (
	"fmt"
	"testing"
)

func TestCreateStation_WithSeed(t *testing.T) {
	ta := setupApp(t)

	id, token := createStation(t, ta)

	resp, err := doAuthRequest(ta.app, "GET", "/api/stations/"+id, "", token)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, 200)

	result := parseJSON(t, resp)
	if result["id"] != id {
		t.Errorf("expected station id %s, got %v", id, result["id"])
	}
	if name, _ := result["name"].(string); name == "" {
		t.Error("expected a generated station name")
	}
}

func TestCreateStation_Validation(t *testing.T) {
	ta := setupApp(t)

	cases := []struct {
		name string
		body string
	}{
		{"empty body", `{}`},
		{"seed and query together", `{"seed":{"id":"a","title":"b","artist":"c"},"query":"something"}`},
		{"seed missing artist", `{"seed":{"id":"a","title":"b"}}`},
		{"query too short", `{"query":"x"}`},
		{"unsupported language", `{"query":"synthwave classics","language":"xx"}`},
		{"malformed json", `{"seed":`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := doRequest(ta.app, "POST", "/api/stations", tc.body, nil)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			assertStatus(t, resp, 400)
			assertErrorCode(t, parseJSON(t, resp), "VALIDATION_ERROR")
		})
	}
}

func TestStationAuth(t *testing.T) {
	ta := setupApp(t)
	id, _ := createStation(t, ta)

	// No token
	resp, err := doRequest(ta.app, "GET", "/api/stations/"+id, "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, 401)
	assertErrorCode(t, parseJSON(t, resp), "UNAUTHORIZED")

	// Garbage token
	resp, err = doAuthRequest(ta.app, "GET", "/api/stations/"+id, "", "not-a-token")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, 401)

	// Token minted for a different station
	otherToken := mintToken(t, ta, "some-other-station")
	resp, err = doAuthRequest(ta.app, "GET", "/api/stations/"+id, "", otherToken)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, 403)
	assertErrorCode(t, parseJSON(t, resp), "FORBIDDEN")
}

func TestStationAuth_QueryParamToken(t *testing.T) {
	ta := setupApp(t)
	id, token := createStation(t, ta)

	// Media elements cannot set headers; the token is accepted as a query
	// parameter too.
	resp, err := doRequest(ta.app, "GET", fmt.Sprintf("/api/stations/%s/queue?token=%s", id, token), "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, 200)
}

func TestStationNotFound(t *testing.T) {
	ta := setupApp(t)

	ghostToken := mintToken(t, ta, "ghost-station")
	resp, err := doAuthRequest(ta.app, "GET", "/api/stations/ghost-station", "", ghostToken)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, 404)
	assertErrorCode(t, parseJSON(t, resp), "NOT_FOUND")
}

func TestStationQueue(t *testing.T) {
	ta := setupApp(t)
	id, token := createStation(t, ta)

	resp, err := doAuthRequest(ta.app, "GET", "/api/stations/"+id+"/queue", "", token)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, 200)

	result := parseJSON(t, resp)
	if result["stationId"] != id {
		t.Errorf("expected stationId %s, got %v", id, result["stationId"])
	}
	if _, ok := result["isExtending"]; !ok {
		t.Error("expected isExtending flag in queue response")
	}
}

func TestExtendQueued(t *testing.T) {
	ta := setupApp(t)
	id, token := createStation(t, ta)

	resp, err := doAuthRequest(ta.app, "POST", "/api/stations/"+id+"/extend", "", token)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, 202)

	result := parseJSON(t, resp)
	if result["queued"] != true {
		t.Errorf("expected queued true, got %v", result["queued"])
	}
	if result["stationId"] != id {
		t.Errorf("expected stationId %s, got %v", id, result["stationId"])
	}
}

func TestExtendNotFound(t *testing.T) {
	ta := setupApp(t)

	ghostToken := mintToken(t, ta, "ghost-station")
	resp, err := doAuthRequest(ta.app, "POST", "/api/stations/ghost-station/extend", "", ghostToken)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, 404)
}
