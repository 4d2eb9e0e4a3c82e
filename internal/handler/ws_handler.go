/*
Package handler provides the HTTP handlers and routing setup for the chat relay.

This file contains the WebSocket connection handler: it authenticates the
bearer credential carried in the handshake, resolves it to a user identity
through the store, upgrades the connection, and starts the client lifecycle.
An unauthenticated connection never reaches the gateway.
*/
package handler

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"chatrelay/internal/app/chat"
	"chatrelay/internal/app/store"
	"chatrelay/internal/pkg/auth/jwt"
	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/limiter"
	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/resp"
)

// handshakeToken extracts the bearer credential from the upgrade request.
// Browsers cannot set headers on WebSocket upgrades, so the token query
// parameter is accepted alongside the Authorization header.
func handshakeToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}

	return ""
}

// HandleWebSocket creates the HandlerFunc that processes WebSocket connection
// requests on the chat endpoint.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if ip == "" {
			ip = "unknown_ip"
		}

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		token := handshakeToken(r)
		if token == "" {
			logx.Warn("WebSocket connection rejected: Missing credential.")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthenticated))
			return
		}

		payload, err := jwt.ParseToken(token, deps.Config.JWTSecret)
		if err != nil {
			logx.Warn("WebSocket connection rejected: Invalid credential.", "error", err)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthenticated))
			return
		}

		// The subject must still exist; a token outliving its account is dead.
		u, err := deps.Store.UserByID(r.Context(), payload.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				logx.Warn("WebSocket connection rejected: Credential subject no longer exists.", "user_id", payload.UserID)
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthenticated))
				return
			}
			logx.Error(err, "WebSocket connection rejected: User lookup failed.", "user_id", payload.UserID)
			resp.RespondError(w, r, errs.NewError(errs.ErrStoreUnavailable))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client := chat.NewClient(deps.Gateway, deps.Coordinator, conn, u)
		deps.Gateway.Connect(client)

		logx.Info("WebSocket connection established", "connection_id", client.ID(), "user_id", u.ID)

		go client.WritePump()
		client.ReadPump()
	}
}
