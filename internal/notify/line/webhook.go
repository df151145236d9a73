package line

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/colonyops/cueline/internal/core/roster"
)

const maxWebhookBody = 1 << 20

// Replier answers webhook events. Satisfied by Client; swapped for a fake
// in tests.
type Replier interface {
	Reply(ctx context.Context, replyToken, text string) error
}

// WebhookHandler receives LINE webhook events and links chat accounts to
// roster members by exact name match: a member texts their roster name to
// the bot and the account id is stored against their entry.
type WebhookHandler struct {
	secret  string
	members roster.Store
	replier Replier
	log     zerolog.Logger
}

// NewWebhookHandler creates the webhook endpoint handler. secret is the
// channel secret used to verify request signatures.
func NewWebhookHandler(secret string, members roster.Store, replier Replier, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{secret: secret, members: members, replier: replier, log: log}
}

type webhookEvent struct {
	Type       string `json:"type"`
	ReplyToken string `json:"replyToken"`
	Source     struct {
		UserID string `json:"userId"`
	} `json:"source"`
	Message struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"message"`
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	if !h.validSignature(body, r.Header.Get("X-Line-Signature")) {
		h.log.Warn().Msg("webhook signature mismatch")
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	var payload struct {
		Events []webhookEvent `json:"events"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	for _, ev := range payload.Events {
		if ev.Type != "message" || ev.Message.Type != "text" || ev.Source.UserID == "" {
			continue
		}
		h.handleLink(r.Context(), ev)
	}

	w.WriteHeader(http.StatusOK)
}

// validSignature checks the HMAC-SHA256 signature LINE sends with every
// webhook delivery.
func (h *WebhookHandler) validSignature(body []byte, header string) bool {
	if header == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}

func (h *WebhookHandler) handleLink(ctx context.Context, ev webhookEvent) {
	name := strings.TrimSpace(ev.Message.Text)
	userID := ev.Source.UserID

	member, err := h.members.GetByName(ctx, name)
	if errors.Is(err, roster.ErrNotFound) {
		h.reply(ctx, ev.ReplyToken, fmt.Sprintf("No member named %q was found. Send your exact roster name to link this account.", name))
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("name", name).Msg("member lookup failed")
		return
	}

	if member.Linked() && member.LineUserID != userID {
		h.reply(ctx, ev.ReplyToken, fmt.Sprintf("%s is already linked to a different account. Ask an operator to unlink it first.", member.Name))
		return
	}

	// One chat account links to at most one member. If this account already
	// points somewhere, move the link rather than duplicating it.
	existing, err := h.members.GetByLineUserID(ctx, userID)
	switch {
	case err == nil && existing.ID == member.ID:
		h.reply(ctx, ev.ReplyToken, fmt.Sprintf("This account is already linked to %s.", member.Name))
		return
	case err == nil:
		if err := h.members.SetLineUserID(ctx, existing.ID, ""); err != nil {
			h.log.Error().Err(err).Int64("member_id", existing.ID).Msg("unlink previous member failed")
			return
		}
	case !errors.Is(err, roster.ErrNotFound):
		h.log.Error().Err(err).Msg("linked member lookup failed")
		return
	}

	if err := h.members.SetLineUserID(ctx, member.ID, userID); err != nil {
		h.log.Error().Err(err).Int64("member_id", member.ID).Msg("link member failed")
		return
	}

	h.log.Info().Int64("member_id", member.ID).Str("member", member.Name).Msg("line account linked")
	h.reply(ctx, ev.ReplyToken, fmt.Sprintf("Linked this account to %s. You will now receive run-sheet notifications.", member.Name))
}

// reply is best-effort; the link itself already succeeded or failed by the
// time we answer.
func (h *WebhookHandler) reply(ctx context.Context, token, text string) {
	if token == "" || h.replier == nil {
		return
	}
	if err := h.replier.Reply(ctx, token, text); err != nil {
		h.log.Warn().Err(err).Msg("webhook reply failed")
	}
}
