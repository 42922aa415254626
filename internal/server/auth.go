package server

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/receipt-verifier/internal/common"
)

// TokenVerifier turns a bearer token into the acting user.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (common.Actor, error)
}

// OIDCVerifier checks ID tokens against an OpenID Connect issuer.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

type actorClaims struct {
	Subject     string   `json:"sub"`
	Permissions []string `json:"permissions"`
	Scope       string   `json:"scope"`
}

// NewOIDCVerifier discovers the issuer's signing keys.
func NewOIDCVerifier(ctx context.Context, issuerURL, clientID string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, err
	}
	return &OIDCVerifier{verifier: provider.Verifier(&oidc.Config{ClientID: clientID})}, nil
}

// NewOIDCVerifierFromKeySet builds a verifier over a fixed key set, skipping discovery.
func NewOIDCVerifierFromKeySet(issuerURL, clientID string, keys oidc.KeySet) *OIDCVerifier {
	return &OIDCVerifier{verifier: oidc.NewVerifier(issuerURL, keys, &oidc.Config{ClientID: clientID})}
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (common.Actor, error) {
	tok, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return common.Actor{}, err
	}
	var c actorClaims
	if err := tok.Claims(&c); err != nil {
		return common.Actor{}, err
	}
	perms := append([]string(nil), c.Permissions...)
	perms = append(perms, strings.Fields(c.Scope)...)
	return common.Actor{ID: tok.Subject, Permissions: perms}, nil
}

// UnaryInterceptor builds the request context: request id, tenant, and the
// acting user. With a nil verifier the actor is taken from x-actor-id and
// x-actor-roles as set by a trusted gateway.
func UnaryInterceptor(verifier TokenVerifier, logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		md, _ := metadata.FromIncomingContext(ctx)
		get := func(k string) string {
			if v := md.Get(k); len(v) > 0 {
				return strings.TrimSpace(v[0])
			}
			return ""
		}

		reqID := get(MetadataRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx = common.WithRequestID(ctx, reqID)
		if org := get(MetadataOrgID); org != "" {
			ctx = common.WithOrgID(ctx, org)
		}

		if !strings.HasPrefix(info.FullMethod, "/"+ServiceName+"/") {
			return handler(ctx, req)
		}

		if verifier != nil {
			raw, ok := strings.CutPrefix(get("authorization"), "Bearer ")
			if !ok || raw == "" {
				return nil, status.Error(codes.Unauthenticated, "bearer token required")
			}
			actor, err := verifier.Verify(ctx, raw)
			if err != nil {
				logger.Warn("server.auth.rejected", "method", info.FullMethod, "request_id", reqID, "error", err)
				return nil, status.Error(codes.Unauthenticated, "invalid token")
			}
			ctx = common.WithActor(ctx, actor)
		} else if id := get(MetadataActorID); id != "" {
			ctx = common.WithActor(ctx, common.Actor{ID: id, Permissions: splitList(get(MetadataActorRoles))})
		}

		resp, err := handler(ctx, req)
		logger.Info("server.rpc",
			"method", info.FullMethod,
			"request_id", reqID,
			"code", status.Code(err).String(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
