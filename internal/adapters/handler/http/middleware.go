package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/vncsmyrnk/mcvotes/internal/core/domain"
	"github.com/vncsmyrnk/mcvotes/internal/core/ports"
)

type contextKey string

const (
	UserIDKey contextKey = "user_id"
	UserKey   contextKey = "user"
	ServerKey contextKey = "server"
)

// AuthMiddleware accepts the platform access token from the access_token
// cookie or an Authorization bearer header.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := accessToken(r)
			if raw == "" {
				http.Error(w, "Unauthorized: missing access token", http.StatusUnauthorized)
				return
			}

			user, err := parseAccessToken(raw, secret)
			if err != nil {
				http.Error(w, "Unauthorized: "+err.Error(), http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, user.ID)
			ctx = context.WithValue(ctx, UserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func accessToken(r *http.Request) string {
	if cookie, err := r.Cookie("access_token"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return bearerToken(r)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func parseAccessToken(raw, secret string) (domain.User, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return domain.User{}, fmt.Errorf("invalid token: %w", err)
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return domain.User{}, fmt.Errorf("invalid token subject: %w", err)
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return domain.User{}, fmt.Errorf("invalid token subject: %w", err)
	}

	isAdmin, _ := claims["admin"].(bool)
	return domain.User{ID: userID, IsAdmin: isAdmin}, nil
}

// AgentMiddleware authenticates in-game agents by their server token.
func AgentMiddleware(auth ports.AgentAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeJSON(w, http.StatusUnauthorized, agentResponse{Success: false, Message: "Missing API token"})
				return
			}

			server, err := auth.Authenticate(r.Context(), token, clientIP(r))
			if err != nil {
				switch {
				case errors.Is(err, domain.ErrInvalidToken):
					writeJSON(w, http.StatusUnauthorized, agentResponse{Success: false, Message: "Invalid or revoked token"})
				case errors.Is(err, domain.ErrForbidden):
					writeJSON(w, http.StatusForbidden, agentResponse{Success: false, Message: "Server is not approved"})
				default:
					writeAgentError(w, err)
				}
				return
			}

			ctx := context.WithValue(r.Context(), ServerKey, server)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CORSMiddleware echoes listed origins and allows credentials for them. A "*"
// entry opens the API to any origin without credentials, so the
// access_token cookie is never usable cross-site through it.
func CORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				switch {
				case originListed(allowedOrigins, origin):
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Credentials", "true")
					w.Header().Add("Vary", "Origin")
					setCORSMethods(w)
				case originListed(allowedOrigins, "*"):
					w.Header().Set("Access-Control-Allow-Origin", "*")
					setCORSMethods(w)
				}
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func setCORSMethods(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
}

func originListed(allowed []string, origin string) bool {
	for _, o := range allowed {
		if o == origin {
			return true
		}
	}
	return false
}

func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
