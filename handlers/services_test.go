package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"watchsync/services/arr"
	"watchsync/services/plex"
)

type fakePlexTester struct {
	user *plex.UserInfo
	err  error
}

func (f *fakePlexTester) TestConnection(token string) (*plex.UserInfo, error) {
	return f.user, f.err
}

type fakeArrTester struct {
	status *arr.SystemStatus
	err    error

	gotService arr.ServiceType
	gotURL     string
	gotKey     string
}

func (f *fakeArrTester) TestConnection() (*arr.SystemStatus, error) {
	return f.status, f.err
}

func testServicesHandler(plexFake *fakePlexTester, arrFake *fakeArrTester) *ServicesHandler {
	h := NewServicesHandler(plexFake)
	h.newArr = func(service arr.ServiceType, baseURL, apiKey string) arrTester {
		arrFake.gotService = service
		arrFake.gotURL = baseURL
		arrFake.gotKey = apiKey
		return arrFake
	}
	return h
}

func postTest(t *testing.T, h *ServicesHandler, body string) (*httptest.ResponseRecorder, testResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/services/test", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Test(rec, req)

	var resp testResponse
	if rec.Code == http.StatusOK {
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return rec, resp
}

func TestServicesTest_Plex(t *testing.T) {
	h := testServicesHandler(&fakePlexTester{user: &plex.UserInfo{Username: "alice"}}, &fakeArrTester{})

	rec, resp := postTest(t, h, `{"service_type":"plex","url":"","api_key":"tok"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !resp.Success {
		t.Errorf("expected success, got %+v", resp)
	}
	if !strings.Contains(resp.Message, "alice") {
		t.Errorf("expected account name in message, got %q", resp.Message)
	}
}

func TestServicesTest_PlexInvalidToken(t *testing.T) {
	h := testServicesHandler(&fakePlexTester{err: errors.New("401 unauthorized")}, &fakeArrTester{})

	rec, resp := postTest(t, h, `{"service_type":"plex","url":"","api_key":"bad"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("test outcomes are 200, got %d", rec.Code)
	}
	if resp.Success {
		t.Error("expected success false")
	}
	if resp.Message == "" {
		t.Error("expected failure message")
	}
}

func TestServicesTest_Radarr(t *testing.T) {
	arrFake := &fakeArrTester{status: &arr.SystemStatus{AppName: "Radarr", Version: "5.2.6"}}
	h := testServicesHandler(&fakePlexTester{}, arrFake)

	rec, resp := postTest(t, h, `{"service_type":"radarr","url":"http://radarr:7878","api_key":"key"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !resp.Success || resp.Version != "5.2.6" {
		t.Errorf("unexpected response: %+v", resp)
	}
	// Submitted values are used, not saved config.
	if arrFake.gotService != arr.ServiceRadarr || arrFake.gotURL != "http://radarr:7878" || arrFake.gotKey != "key" {
		t.Errorf("wrong client construction: %s %s %s", arrFake.gotService, arrFake.gotURL, arrFake.gotKey)
	}
}

func TestServicesTest_SonarrFailure(t *testing.T) {
	arrFake := &fakeArrTester{err: errors.New("connection refused")}
	h := testServicesHandler(&fakePlexTester{}, arrFake)

	rec, resp := postTest(t, h, `{"service_type":"sonarr","url":"http://sonarr:8989","api_key":"key"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if resp.Success {
		t.Error("expected success false")
	}
}

func TestServicesTest_UnknownService(t *testing.T) {
	h := testServicesHandler(&fakePlexTester{}, &fakeArrTester{})

	rec, resp := postTest(t, h, `{"service_type":"jellyfin","url":"","api_key":""}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if resp.Success {
		t.Error("expected success false for unknown service")
	}
}

func TestServicesTest_MalformedBody(t *testing.T) {
	h := testServicesHandler(&fakePlexTester{}, &fakeArrTester{})

	rec, _ := postTest(t, h, `{"service_type":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
