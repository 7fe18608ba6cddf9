package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	cloudstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mrpixelvns-oss/vntech-sub000/internal/platform/auth"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/platform/config"
	pfirestore "github.com/mrpixelvns-oss/vntech-sub000/internal/platform/firestore"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/platform/idempotency"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/platform/jobs"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/platform/secrets"
	platformstorage "github.com/mrpixelvns-oss/vntech-sub000/internal/platform/storage"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/repositories"
	firestoreRepo "github.com/mrpixelvns-oss/vntech-sub000/internal/repositories/firestore"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/repositories/memory"
	"github.com/mrpixelvns-oss/vntech-sub000/internal/services"
)

const probeTimeout = time.Second

// infrastructure is everything the services need from GCP. Optional features are nil
// interfaces when their settings are absent.
type infrastructure struct {
	registry    repositories.Registry
	publisher   services.QuotePublisher
	audits      services.AuditWriter
	idempotency idempotency.Store
}

func openInfrastructure(ctx context.Context, cfg config.Config, fetcher *secrets.Fetcher, logger *zap.Logger, closers *closeStack) (infrastructure, error) {
	var (
		out    infrastructure
		checks []repositories.DependencyCheck
	)
	clientOpts := googleClientOptions(cfg)

	publisher, check, err := openQuotePublisher(ctx, cfg, clientOpts, closers)
	switch {
	case err != nil:
		return out, err
	case publisher == nil:
		logger.Info("quote notifications disabled, no pubsub topic configured")
	default:
		out.publisher = publisher
		checks = append(checks, check)
	}

	audits, check, err := openAuditWriter(ctx, cfg, clientOpts, logger, closers)
	switch {
	case err != nil:
		return out, err
	case audits == nil:
		logger.Info("seo audit exports disabled, no bucket configured")
	default:
		out.audits = audits
		checks = append(checks, check)
	}

	checks = append(checks, secretManagerCheck(fetcher))

	if cfg.Persistence.Driver == config.PersistenceMemory {
		logger.Warn("using in-memory persistence, data is lost on restart")
		out.registry = memory.NewRegistry(time.Now)
		out.idempotency = idempotency.NewMemoryStore()
		return out, nil
	}

	var providerOpts []pfirestore.ProviderOption
	if raw := strings.TrimSpace(cfg.Firebase.CredentialsJSON); raw != "" {
		providerOpts = append(providerOpts, pfirestore.WithCredentialsJSON(raw))
	} else if len(clientOpts) > 0 {
		providerOpts = append(providerOpts, pfirestore.WithClientOptions(clientOpts...))
	}
	provider := pfirestore.NewProvider(cfg.Firestore, providerOpts...)

	out.registry, err = firestoreRepo.NewRegistry(provider, cfg.Firestore, checks...)
	if err != nil {
		return out, fmt.Errorf("firestore repositories: %w", err)
	}
	if out.idempotency, err = idempotency.NewFirestoreStore(provider); err != nil {
		return out, fmt.Errorf("idempotency store: %w", err)
	}
	return out, nil
}

func openQuotePublisher(ctx context.Context, cfg config.Config, opts []option.ClientOption, closers *closeStack) (services.QuotePublisher, repositories.DependencyCheck, error) {
	topicName := strings.TrimSpace(cfg.PubSub.QuoteTopic)
	if topicName == "" || cfg.PubSub.ProjectID == "" {
		return nil, repositories.DependencyCheck{}, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID, opts...)
	if err != nil {
		return nil, repositories.DependencyCheck{}, fmt.Errorf("pubsub client: %w", err)
	}
	closers.push("pubsub", func(context.Context) error { return client.Close() })

	topic := client.Topic(topicName)
	publisher, err := jobs.NewPubSubQuotePublisher(topic)
	if err != nil {
		return nil, repositories.DependencyCheck{}, fmt.Errorf("quote publisher: %w", err)
	}
	closers.push("quote publisher", func(context.Context) error { publisher.Stop(); return nil })

	return publisher, repositories.DependencyCheck{
		Name:    "pubsub",
		Timeout: probeTimeout,
		Check: func(ctx context.Context) error {
			exists, err := topic.Exists(ctx)
			if err == nil && !exists {
				err = fmt.Errorf("topic %q not found", topicName)
			}
			return err
		},
	}, nil
}

func openAuditWriter(ctx context.Context, cfg config.Config, opts []option.ClientOption, logger *zap.Logger, closers *closeStack) (services.AuditWriter, repositories.DependencyCheck, error) {
	bucket := strings.TrimSpace(cfg.Storage.ExportsBucket)
	if bucket == "" {
		return nil, repositories.DependencyCheck{}, nil
	}
	client, err := cloudstorage.NewClient(ctx, opts...)
	if err != nil {
		return nil, repositories.DependencyCheck{}, fmt.Errorf("storage client: %w", err)
	}
	closers.push("storage", func(context.Context) error { return client.Close() })

	writerOpts := []platformstorage.AuditWriterOption{platformstorage.WithPrefix(cfg.Storage.ExportPrefix)}
	if raw := strings.TrimSpace(cfg.Firebase.CredentialsJSON); raw != "" {
		if signer, err := platformstorage.NewServiceAccountSigner([]byte(raw)); err != nil {
			logger.Warn("audit exports will not carry signed urls", zap.Error(err))
		} else {
			writerOpts = append(writerOpts, platformstorage.WithSigner(signer, 0))
		}
	}
	writer, err := platformstorage.NewAuditWriter(bucket, platformstorage.GCSWriterFactory(client), writerOpts...)
	if err != nil {
		return nil, repositories.DependencyCheck{}, fmt.Errorf("audit writer: %w", err)
	}
	return writer, repositories.DependencyCheck{
		Name:    "storage",
		Timeout: probeTimeout,
		Check: func(ctx context.Context) error {
			_, err := client.Bucket(bucket).Attrs(ctx)
			return err
		},
	}, nil
}

// secretManagerCheck probes a well-known reference. NotFound still proves the API answers.
func secretManagerCheck(fetcher *secrets.Fetcher) repositories.DependencyCheck {
	return repositories.DependencyCheck{
		Name:    "secretManager",
		Timeout: probeTimeout,
		Check: func(ctx context.Context) error {
			if fetcher == nil {
				return nil
			}
			_, err := fetcher.Resolve(ctx, "secret://system/healthz?version=latest")
			if status.Code(err) == codes.NotFound {
				return nil
			}
			return err
		},
	}
}

func googleClientOptions(cfg config.Config) []option.ClientOption {
	if raw := strings.TrimSpace(cfg.Firebase.CredentialsJSON); raw != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
	}
	if path := strings.TrimSpace(cfg.Firebase.CredentialsFile); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

// buildAuthenticator returns nil without a Firebase project; console routes then answer 503.
func buildAuthenticator(ctx context.Context, logger *zap.Logger, cfg config.Config) (*auth.Authenticator, error) {
	if strings.TrimSpace(cfg.Firebase.ProjectID) == "" {
		logger.Warn("firebase project not configured, console routes will answer 503")
		return nil, nil
	}
	verifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		return nil, err
	}
	return auth.NewAuthenticator(verifier, auth.WithLogger(logger.Named("auth"))), nil
}

// buildOIDCMiddleware guards scheduler hooks. Without a JWKS URL the internal group is open,
// which is only expected behind a private ingress.
func buildOIDCMiddleware(logger *zap.Logger, cfg config.Config) func(http.Handler) http.Handler {
	oidcCfg := cfg.Security.OIDC
	if strings.TrimSpace(oidcCfg.JWKSURL) == "" {
		return nil
	}
	oidcLogger := logger.Named("oidc")
	if strings.TrimSpace(oidcCfg.Audience) == "" || len(oidcCfg.Issuers) == 0 {
		oidcLogger.Warn("oidc audience or issuers missing, internal routes will reject every request")
	}
	validator := auth.NewOIDCValidator(
		auth.NewJWKSCache(oidcCfg.JWKSURL, auth.WithJWKSLogger(oidcLogger)),
		auth.WithOIDCLogger(oidcLogger),
	)
	return validator.RequireOIDC(auth.OIDCPolicy{
		Audience:        strings.TrimSpace(oidcCfg.Audience),
		Issuers:         oidcCfg.Issuers,
		ServiceAccounts: oidcCfg.ServiceAccounts,
	})
}
