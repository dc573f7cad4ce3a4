package middleware

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/mantrailing/cardservice/internal/authz"
	"github.com/mantrailing/cardservice/internal/logging"
	"github.com/mantrailing/cardservice/internal/models"
	"github.com/spf13/viper"
)

var (
	userDB      *sql.DB
	redisClient *redis.Client
)

var errUnknownUser = errors.New("user no longer exists")

// InitAuthMiddleware sets the users table the caller's role is read from and
// the Redis client for the logout blacklist. A nil client disables the
// blacklist check.
func InitAuthMiddleware(db *sql.DB, client *redis.Client) {
	userDB = db
	redisClient = client
}

func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Get token from Authorization header
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
			return
		}

		token := parts[1]

		if isBlacklisted(r.Context(), token) {
			http.Error(w, "Token revoked", http.StatusUnauthorized)
			return
		}

		actor, err := validateToken(token)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		// Role and card link may have changed since the token was issued
		actor, err = loadActor(r.Context(), actor)
		if errors.Is(err, errUnknownUser) {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		if err != nil {
			logging.Component("auth").WithError(err).WithField("user_id", actor.UserID).Error("Loading user failed")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		next.ServeHTTP(w, r.WithContext(authz.WithActor(r.Context(), actor)))
	})
}

// Require rejects callers the policy does not allow to perform action. The
// {id} route parameter, when present, names the customer the action targets.
func Require(policy authz.Policy, action authz.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := authz.ActorFrom(r.Context())
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			resource := authz.Resource{CustomerID: chi.URLParam(r, "id")}
			if policy.Authorize(actor, action, resource) == authz.Deny {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isBlacklisted(ctx context.Context, token string) bool {
	if redisClient == nil {
		return false
	}
	n, err := redisClient.Exists(ctx, "blacklist:"+token).Result()
	return err == nil && n > 0
}

func validateToken(tokenString string) (authz.Actor, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(viper.GetString("jwt.secret_key")), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return authz.Actor{}, err
	}
	if !token.Valid {
		return authz.Actor{}, errors.New("token not valid")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return authz.Actor{}, errors.New("unexpected claims type")
	}

	userID, ok := claims["user_id"]
	if !ok {
		return authz.Actor{}, errors.New("missing user_id claim")
	}

	return authz.Actor{UserID: fmt.Sprintf("%v", userID)}, nil
}

// loadActor fills role, email and card link of the token's user from the
// users table
func loadActor(ctx context.Context, actor authz.Actor) (authz.Actor, error) {
	id, err := strconv.Atoi(actor.UserID)
	if err != nil {
		return actor, errUnknownUser
	}

	var role string
	var customerID sql.NullString
	err = userDB.QueryRowContext(ctx,
		"SELECT email, role, customer_id FROM users WHERE id = $1", id).
		Scan(&actor.Email, &role, &customerID)
	if errors.Is(err, sql.ErrNoRows) {
		return actor, errUnknownUser
	}
	if err != nil {
		return actor, err
	}

	actor.Role = models.Role(role)
	actor.CustomerID = customerID.String
	return actor, nil
}
