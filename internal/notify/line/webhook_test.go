package line

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/cueline/internal/core/roster"
)

const testSecret = "channel-secret"

type fakeRoster struct {
	mu      sync.Mutex
	members map[int64]roster.Member
}

func newFakeRoster(names ...string) *fakeRoster {
	f := &fakeRoster{members: make(map[int64]roster.Member)}
	for i, name := range names {
		id := int64(i + 1)
		f.members[id] = roster.Member{ID: id, Name: name, Active: true}
	}
	return f
}

func (f *fakeRoster) Create(_ context.Context, m roster.Member) (roster.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.ID = int64(len(f.members) + 1)
	f.members[m.ID] = m
	return m, nil
}

func (f *fakeRoster) Get(_ context.Context, id int64) (roster.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[id]
	if !ok {
		return roster.Member{}, roster.ErrNotFound
	}
	return m, nil
}

func (f *fakeRoster) GetByName(_ context.Context, name string) (roster.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.members {
		if m.Name == name && m.Active {
			return m, nil
		}
	}
	return roster.Member{}, roster.ErrNotFound
}

func (f *fakeRoster) GetByLineUserID(_ context.Context, lineUserID string) (roster.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.members {
		if m.LineUserID == lineUserID && m.Active {
			return m, nil
		}
	}
	return roster.Member{}, roster.ErrNotFound
}

func (f *fakeRoster) ListActive(_ context.Context) ([]roster.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var members []roster.Member
	for _, m := range f.members {
		if m.Active {
			members = append(members, m)
		}
	}
	return members, nil
}

func (f *fakeRoster) SetLineUserID(_ context.Context, id int64, lineUserID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[id]
	if !ok {
		return roster.ErrNotFound
	}
	m.LineUserID = lineUserID
	f.members[id] = m
	return nil
}

type fakeReplier struct {
	mu      sync.Mutex
	replies []string
}

func (r *fakeReplier) Reply(_ context.Context, _, text string) error {
	r.mu.Lock()
	r.replies = append(r.replies, text)
	r.mu.Unlock()
	return nil
}

func (r *fakeReplier) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.replies) == 0 {
		return ""
	}
	return r.replies[len(r.replies)-1]
}

func sign(body string) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func textEventBody(userID, text string) string {
	return fmt.Sprintf(`{"events":[{"type":"message","replyToken":"rt-1","source":{"userId":%q},"message":{"type":"text","text":%q}}]}`, userID, text)
}

func postWebhook(t *testing.T, h http.Handler, body, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/line", strings.NewReader(body))
	if signature != "" {
		req.Header.Set("X-Line-Signature", signature)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWebhookHandler_Signature(t *testing.T) {
	members := newFakeRoster("Aoi")
	h := NewWebhookHandler(testSecret, members, &fakeReplier{}, zerolog.Nop())

	body := textEventBody("U1", "Aoi")

	t.Run("missing signature", func(t *testing.T) {
		rec := postWebhook(t, h, body, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("wrong signature", func(t *testing.T) {
		rec := postWebhook(t, h, body, sign(body+"tampered"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("valid signature", func(t *testing.T) {
		rec := postWebhook(t, h, body, sign(body))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestWebhookHandler_Linking(t *testing.T) {
	ctx := context.Background()

	t.Run("links on exact name match", func(t *testing.T) {
		members := newFakeRoster("Aoi", "Hana")
		replier := &fakeReplier{}
		h := NewWebhookHandler(testSecret, members, replier, zerolog.Nop())

		body := textEventBody("U1", "Aoi")
		rec := postWebhook(t, h, body, sign(body))
		require.Equal(t, http.StatusOK, rec.Code)

		m, err := members.GetByLineUserID(ctx, "U1")
		require.NoError(t, err)
		assert.Equal(t, "Aoi", m.Name)
		assert.Contains(t, replier.last(), "Linked this account to Aoi")
	})

	t.Run("whitespace is trimmed", func(t *testing.T) {
		members := newFakeRoster("Aoi")
		h := NewWebhookHandler(testSecret, members, &fakeReplier{}, zerolog.Nop())

		body := textEventBody("U1", "  Aoi  ")
		postWebhook(t, h, body, sign(body))

		_, err := members.GetByLineUserID(ctx, "U1")
		require.NoError(t, err)
	})

	t.Run("no match replies without linking", func(t *testing.T) {
		members := newFakeRoster("Aoi")
		replier := &fakeReplier{}
		h := NewWebhookHandler(testSecret, members, replier, zerolog.Nop())

		body := textEventBody("U1", "Nobody")
		rec := postWebhook(t, h, body, sign(body))
		require.Equal(t, http.StatusOK, rec.Code)

		_, err := members.GetByLineUserID(ctx, "U1")
		require.ErrorIs(t, err, roster.ErrNotFound)
		assert.Contains(t, replier.last(), "No member named")
	})

	t.Run("already linked to the same member", func(t *testing.T) {
		members := newFakeRoster("Aoi")
		replier := &fakeReplier{}
		h := NewWebhookHandler(testSecret, members, replier, zerolog.Nop())

		body := textEventBody("U1", "Aoi")
		postWebhook(t, h, body, sign(body))
		postWebhook(t, h, body, sign(body))

		assert.Contains(t, replier.last(), "already linked")
	})

	t.Run("member linked elsewhere is not stolen", func(t *testing.T) {
		members := newFakeRoster("Aoi")
		replier := &fakeReplier{}
		h := NewWebhookHandler(testSecret, members, replier, zerolog.Nop())

		body := textEventBody("U1", "Aoi")
		postWebhook(t, h, body, sign(body))
		body = textEventBody("U2", "Aoi")
		postWebhook(t, h, body, sign(body))

		m, err := members.GetByLineUserID(ctx, "U1")
		require.NoError(t, err)
		assert.Equal(t, "Aoi", m.Name)
		assert.Contains(t, replier.last(), "already linked to a different account")
	})

	t.Run("relink moves the account", func(t *testing.T) {
		members := newFakeRoster("Aoi", "Hana")
		replier := &fakeReplier{}
		h := NewWebhookHandler(testSecret, members, replier, zerolog.Nop())

		body := textEventBody("U1", "Aoi")
		postWebhook(t, h, body, sign(body))
		body = textEventBody("U1", "Hana")
		postWebhook(t, h, body, sign(body))

		m, err := members.GetByLineUserID(ctx, "U1")
		require.NoError(t, err)
		assert.Equal(t, "Hana", m.Name)

		// The previous member is unlinked.
		aoi, err := members.GetByName(ctx, "Aoi")
		require.NoError(t, err)
		assert.False(t, aoi.Linked())
	})

	t.Run("non-text events are ignored", func(t *testing.T) {
		members := newFakeRoster("Aoi")
		h := NewWebhookHandler(testSecret, members, &fakeReplier{}, zerolog.Nop())

		body := `{"events":[{"type":"follow","source":{"userId":"U1"}}]}`
		rec := postWebhook(t, h, body, sign(body))
		assert.Equal(t, http.StatusOK, rec.Code)

		_, err := members.GetByLineUserID(ctx, "U1")
		require.ErrorIs(t, err, roster.ErrNotFound)
	})
}
