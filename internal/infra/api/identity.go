package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"pawplan/internal/domain/model"
	"pawplan/internal/infra/logging"
)

// ClaimTokenHeader carries a guest plan's claim token.
const ClaimTokenHeader = "X-Claim-Token"

var errMissingToken = errors.New("missing token")

// UserClaims is what the auth provider puts in its session JWT.
type UserClaims struct {
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// IdentityVerifier turns a bearer token into an Identity. Tokens are HS256 signed by the
// auth provider with a shared secret.
type IdentityVerifier struct {
	secret []byte
	issuer string
}

func NewIdentityVerifier(secret, issuer string) *IdentityVerifier {
	return &IdentityVerifier{secret: []byte(secret), issuer: issuer}
}

func (v *IdentityVerifier) FromRequest(r *http.Request) (model.Identity, error) {
	hdr := r.Header.Get("Authorization")
	if hdr == "" {
		return model.Anonymous, errMissingToken
	}
	if len(hdr) < 7 || !strings.EqualFold(hdr[:7], "bearer ") {
		return model.Anonymous, errors.New("malformed authorization header")
	}
	return v.Parse(strings.TrimSpace(hdr[7:]))
}

func (v *IdentityVerifier) Parse(tok string) (model.Identity, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	claims := &UserClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !tkn.Valid {
		return model.Anonymous, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return model.Anonymous, errors.New("token has no subject")
	}
	return model.Identity{UserID: claims.Subject, Email: claims.Email, Roles: claims.Roles}, nil
}

type identityKey struct{}

// Authenticate attaches the caller's Identity to the request. No token means a guest;
// a bad token is rejected rather than treated as a guest.
func Authenticate(v *IdentityVerifier, logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			idn, err := v.FromRequest(r)
			switch {
			case errors.Is(err, errMissingToken):
				idn = model.Anonymous
			case err != nil:
				logging.With(r.Context(), logger).Debug().Err(err).Msg("rejected bearer token")
				writeError(w, http.StatusUnauthorized, "invalid session")
				return
			}
			ctx := context.WithValue(r.Context(), identityKey{}, idn)
			if !idn.IsZero() {
				ctx = logging.WithUserID(ctx, idn.UserID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFrom returns the caller set by Authenticate, or Anonymous.
func IdentityFrom(ctx context.Context) model.Identity {
	if idn, ok := ctx.Value(identityKey{}).(model.Identity); ok {
		return idn
	}
	return model.Anonymous
}
