package ali

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"atv-server/internal/config"
)

type fakeSettings map[string]string

func (f fakeSettings) GetSetting(_ context.Context, key string) (string, error) {
	return f[key], nil
}

func newTestClient(server *httptest.Server, settings fakeSettings) *Client {
	cfg := config.Load()
	cfg.Ali.TokenURL = server.URL + "/v2/account/token"
	cfg.Ali.OpenTokenURL = server.URL + "/access_token"
	cfg.Ali.MemberURL = server.URL
	return NewClient(cfg, settings)
}

func TestRefreshToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/account/token" {
			t.Errorf("意外的请求路径: %s", r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		if body["refresh_token"] != "old-token" {
			t.Errorf("refresh_token 不匹配: %s", body["refresh_token"])
		}
		if body["grant_type"] != "refresh_token" {
			t.Errorf("grant_type 不匹配: %s", body["grant_type"])
		}
		json.NewEncoder(w).Encode(map[string]string{
			"access_token":  "new-access",
			"refresh_token": "new-refresh",
			"nick_name":     "测试用户",
		})
	}))
	defer server.Close()

	client := newTestClient(server, fakeSettings{})
	resp, err := client.RefreshToken(context.Background(), "old-token")
	if err != nil {
		t.Fatalf("刷新失败: %v", err)
	}
	if resp.AccessToken != "new-access" || resp.RefreshToken != "new-refresh" {
		t.Errorf("令牌不匹配: %+v", resp)
	}
	if resp.NickName != "测试用户" {
		t.Errorf("昵称不匹配: %s", resp.NickName)
	}
}

func TestRefreshTokenError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":"InvalidParameter.RefreshToken"}`))
	}))
	defer server.Close()

	client := newTestClient(server, fakeSettings{})
	if _, err := client.RefreshToken(context.Background(), "bad-token"); err == nil {
		t.Fatal("应当返回错误")
	}
}

func TestRefreshOpenToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["client_id"] != "cid" || body["client_secret"] != "csec" {
			t.Errorf("client 凭据不匹配: %+v", body)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"access_token":  "open-access",
			"refresh_token": "open-refresh",
		})
	}))
	defer server.Close()

	settings := fakeSettings{
		"open_token_url":         server.URL + "/custom_token",
		"open_api_client_id":     "cid",
		"open_api_client_secret": "csec",
	}
	client := newTestClient(server, settings)
	resp, err := client.RefreshOpenToken(context.Background(), "open-old")
	if err != nil {
		t.Fatalf("刷新失败: %v", err)
	}
	if resp.AccessToken != "open-access" {
		t.Errorf("令牌不匹配: %+v", resp)
	}
}

func TestSignIn(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/activity/sign_in_list" {
			t.Errorf("意外的请求路径: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer access" {
			t.Errorf("Authorization 不匹配: %s", auth)
		}
		w.Write([]byte(`{"success":true,"result":{"signInCount":5}}`))
	}))
	defer server.Close()

	client := newTestClient(server, fakeSettings{})
	result, err := client.SignIn(context.Background(), "access", "refresh")
	if err != nil {
		t.Fatalf("签到失败: %v", err)
	}
	if result.SignInCount != 5 {
		t.Errorf("签到次数不匹配: %d", result.SignInCount)
	}
}

func TestSignInList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/activity/sign_in_list" {
			t.Errorf("意外的请求路径: %s", r.URL.Path)
		}
		if canary := r.Header.Get("X-Canary"); canary == "" {
			t.Error("缺少 X-Canary 头")
		}
		w.Write([]byte(`{"success":true,"result":{"signInInfos":[{"day":1,"rewards":[{"name":"好礼","status":"verification"}]}]}}`))
	}))
	defer server.Close()

	client := newTestClient(server, fakeSettings{})
	result, err := client.SignInList(context.Background(), "access")
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if len(result.SignInInfos) != 1 {
		t.Fatalf("签到日历长度不匹配: %d", len(result.SignInInfos))
	}
}
