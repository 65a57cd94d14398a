package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"

	"github.com/soulink/companion-backend/internal/auth"
	"github.com/soulink/companion-backend/internal/chat"
	"github.com/soulink/companion-backend/internal/common"
)

// endOfStream terminates every streamed reply so clients know the turn ended
// even when fragment boundaries are arbitrary.
const endOfStream = "[END_OF_STREAM]"

func (h *Handler) ListMessages(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	comp, err := h.Companions.Get(c.Request.Context(), uid, c.Param("companion_id"))
	if err != nil {
		h.companionError(c, err)
		return
	}

	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	// order=desc returns the newest messages first, for chat UIs that render
	// the tail of the conversation and page backwards
	var msgs []chat.Message
	if c.Query("order") == "desc" {
		msgs, err = h.ChatRepo.ListRecentDesc(c.Request.Context(), comp.ID, uid, limit)
	} else {
		msgs, err = h.ChatRepo.ListAscending(c.Request.Context(), comp.ID, uid, offset, limit)
	}
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "failed to load history")
		return
	}

	common.OK(c, gin.H{"messages": msgs})
}

// ChatWS upgrades to a WebSocket and runs the conversation loop. Browsers
// can't set Authorization headers on WebSocket upgrades, so the JWT rides in
// the token query parameter instead.
func (h *Handler) ChatWS(c *gin.Context) {
	token := c.Query("token")
	uid, err := auth.ParseJWT(token, h.Cfg.JWTSecret)
	if err != nil {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	companionID := c.Param("companion_id")

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		// Same-origin is enforced upstream by CORS config; the WS endpoint
		// trusts the token, not the Origin header.
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx := c.Request.Context()

	// Ownership check after the upgrade so the client gets a proper close
	// frame instead of a failed handshake.
	if _, err := h.Companions.Get(ctx, uid, companionID); err != nil {
		conn.Close(websocket.StatusPolicyViolation, "companion not found")
		return
	}

	slog.Info("chat session opened", "user_id", uid, "companion_id", companionID)

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				slog.Info("chat session closed", "user_id", uid, "companion_id", companionID)
			} else {
				slog.Warn("chat session dropped", "user_id", uid, "companion_id", companionID, "error", err)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			continue
		}

		send := func(fragment string) error {
			return conn.Write(ctx, websocket.MessageText, []byte(fragment))
		}

		err = h.Orchestrator.RespondTo(ctx, uid, companionID, text, send)
		if err != nil {
			if errors.Is(err, chat.ErrCompanionUnavailable) {
				conn.Close(websocket.StatusPolicyViolation, "companion no longer exists")
				return
			}
			if ctx.Err() != nil {
				return
			}
			// A failed turn doesn't kill the connection. Tell the client and
			// let them try again.
			slog.Error("chat turn failed", "user_id", uid, "companion_id", companionID, "error", err)
			if werr := send("[ERROR] An internal error occurred."); werr != nil {
				return
			}
		}
		if werr := send(endOfStream); werr != nil {
			return
		}
	}
}
