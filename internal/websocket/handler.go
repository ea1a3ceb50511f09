package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	ws "github.com/coder/websocket"
	"github.com/dukerupert/homewise/internal/auth"
)

// RoomResolver returns the household a session's events come from. ok is
// false when the user has no household.
type RoomResolver func(ctx context.Context, sess auth.Session) (householdID int64, ok bool, err error)

// Handler upgrades authenticated requests and joins the connection to the
// caller's household room. allowedOrigins are full origins such as
// https://app.home-wise.app.
func Handler(hub *Hub, resolve RoomResolver, allowedOrigins []string, logger *slog.Logger) http.HandlerFunc {
	patterns := originPatterns(allowedOrigins)

	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := auth.FromContext(r.Context())
		if !ok {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}

		householdID, ok, err := resolve(r.Context(), sess)
		if err != nil {
			logger.Error("resolve websocket room", "user_id", sess.UserID, "error", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, "household not found", http.StatusNotFound)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: patterns})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}
		defer conn.CloseNow()

		logger.Debug("websocket connected", "user_id", sess.UserID, "household_id", householdID)
		NewClient(hub, conn, householdID, sess.UserID).Run(r.Context())
	}
}

// originPatterns turns origins into the host patterns ws.Accept matches.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			continue
		}
		patterns = append(patterns, u.Host)
	}
	return patterns
}
