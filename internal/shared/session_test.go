package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestManager(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sm := NewSessionManager(client, "test_session", "secret", time.Hour, 24*time.Hour, false)
	return sm, mr
}

func commit(t *testing.T, sm *SessionManager, sess *Session) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	res := httptest.NewRecorder()
	if err := sm.Commit(context.Background(), res, req, sess); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return res
}

func TestIssueAndLoadSession(t *testing.T) {
	sm, _ := newTestManager(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	sess.SetUser("42", false)
	commit(t, sm, sess)

	reload := httptest.NewRequest(http.MethodGet, "/", nil)
	reload.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: sess.ID})
	loaded, err := sm.Load(context.Background(), reload)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.User() != "42" {
		t.Fatalf("expected user 42, got %q", loaded.User())
	}
	if loaded.Remembered() {
		t.Fatalf("session must not be remembered")
	}
}

func TestRememberFlagSelectsExtendedTTL(t *testing.T) {
	sm, mr := newTestManager(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	sess.SetUser("7", true)
	commit(t, sm, sess)

	ttl := mr.TTL("session:" + sess.ID)
	if ttl <= time.Hour {
		t.Fatalf("expected remember TTL above base hour, got %v", ttl)
	}
}

func TestCommitSlidesExpirationOnReadOnlyRequests(t *testing.T) {
	sm, mr := newTestManager(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	sess.SetUser("9", false)
	commit(t, sm, sess)

	key := "session:" + sess.ID
	mr.SetTTL(key, time.Minute)

	reload := httptest.NewRequest(http.MethodGet, "/", nil)
	reload.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: sess.ID})
	loaded, err := sm.Load(context.Background(), reload)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	commit(t, sm, loaded)

	if ttl := mr.TTL(key); ttl <= time.Minute {
		t.Fatalf("expected TTL refreshed past one minute, got %v", ttl)
	}
}

func TestFlashSurvivesRedirectCommit(t *testing.T) {
	sm, _ := newTestManager(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	sess.AddFlash(FlashMessage{Kind: "success", Message: "Account created. Please log in."})
	commit(t, sm, sess)

	// The rendering request after the redirect must still see the flash.
	reload := httptest.NewRequest(http.MethodGet, "/", nil)
	reload.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: sess.ID})
	loaded, err := sm.Load(context.Background(), reload)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	flash := loaded.PopFlash()
	if flash == nil || flash.Message != "Account created. Please log in." {
		t.Fatalf("expected flash to survive the redirect commit, got %+v", flash)
	}
	commit(t, sm, loaded)

	// Once rendered, the flash is gone.
	again := httptest.NewRequest(http.MethodGet, "/", nil)
	again.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: loaded.ID})
	final, err := sm.Load(context.Background(), again)
	if err != nil {
		t.Fatalf("final load: %v", err)
	}
	if final.PopFlash() != nil {
		t.Fatalf("expected flash cleared after rendering")
	}
}

func TestSetUserRotatesExistingSessionID(t *testing.T) {
	sm, mr := newTestManager(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	commit(t, sm, sess)
	anonymousID := sess.ID

	reload := httptest.NewRequest(http.MethodGet, "/", nil)
	reload.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: anonymousID})
	loaded, err := sm.Load(context.Background(), reload)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	loaded.SetUser("42", false)
	if loaded.ID == anonymousID {
		t.Fatalf("expected a new session ID on authentication")
	}
	commit(t, sm, loaded)

	if mr.Exists("session:" + anonymousID) {
		t.Fatalf("expected pre-login session key removed")
	}
	if !mr.Exists("session:" + loaded.ID) {
		t.Fatalf("expected rotated session key stored")
	}
}

func TestLoadIgnoresForgedCookieValue(t *testing.T) {
	sm, _ := newTestManager(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: "attacker-chosen-id"})
	sess, err := sm.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if sess.ID == "attacker-chosen-id" {
		t.Fatalf("client-supplied value must not become the session ID")
	}
}

func TestDestroyRemovesSessionAndExpiresCookie(t *testing.T) {
	sm, mr := newTestManager(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	sess.SetUser("11", false)
	commit(t, sm, sess)

	sm.Destroy(sess)
	res := commit(t, sm, sess)

	if mr.Exists("session:" + sess.ID) {
		t.Fatalf("expected session key removed")
	}
	cookies := res.Result().Cookies()
	if len(cookies) == 0 || cookies[0].MaxAge != -1 {
		t.Fatalf("expected expired cookie, got %+v", cookies)
	}
}

func TestResetWipesEverySession(t *testing.T) {
	sm, mr := newTestManager(t)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		sess, err := sm.Load(context.Background(), req)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		sess.SetUser("1", false)
		commit(t, sm, sess)
	}

	if err := sm.Reset(context.Background()); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("expected empty keyspace after reset, got %v", keys)
	}
}
