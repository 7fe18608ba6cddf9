package main

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/mrpixelvns-oss/vntech-sub000/internal/platform/secrets"
)

// newSecretFetcher reads the SITE_SECRET_* settings straight from env because the fetcher
// must exist before config.Load can resolve secret references.
func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	get := func(key string) string { return strings.TrimSpace(env[key]) }

	opts := []secrets.Option{
		secrets.WithEnvironment(orDefault(get("SITE_SECURITY_ENVIRONMENT"), "local")),
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(orDefault(get("SITE_SECRET_FALLBACK_FILE"), ".secrets.local")),
		secrets.WithProjectMap(parseKeyValueList(get("SITE_SECRET_PROJECT_IDS"), strings.ToLower)),
		secrets.WithVersionPins(secretVersionPinsFromEnv(get("SITE_SECRET_VERSION_PINS"))),
	}
	if project := orDefault(get("SITE_SECRET_DEFAULT_PROJECT_ID"), get("SITE_FIREBASE_PROJECT_ID")); project != "" {
		opts = append(opts, secrets.WithDefaultProject(project))
	}
	if file := get("SITE_FIREBASE_CREDENTIALS_FILE"); file != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(file)))
	}
	return secrets.NewFetcher(ctx, opts...)
}

// requiredSecretNames: signed audit URLs need the service account key once an exports
// bucket is configured outside local runs.
func requiredSecretNames(env map[string]string) []string {
	environment := strings.ToLower(strings.TrimSpace(env["SITE_SECURITY_ENVIRONMENT"]))
	if strings.TrimSpace(env["SITE_STORAGE_EXPORTS_BUCKET"]) == "" || environment == "" || environment == "local" {
		return nil
	}
	return []string{"Firebase.CredentialsJSON"}
}

// secretVersionPinsFromEnv turns "prod:sm://site/signer=7,firebase/key=3" into fetcher pin
// keys. An optional "env:" prefix scopes the pin; bare names get the secret:// scheme.
func secretVersionPinsFromEnv(raw string) map[string]string {
	pins := make(map[string]string)
	for ref, version := range parseKeyValueList(raw, nil) {
		scope := ""
		if head, tail, ok := strings.Cut(ref, ":"); ok && !strings.HasPrefix(tail, "//") {
			scope = strings.ToLower(strings.TrimSpace(head)) + ":"
			ref = strings.TrimSpace(tail)
		}
		switch {
		case strings.HasPrefix(ref, "sm://"):
			ref = "secret://" + ref[len("sm://"):]
		case !strings.HasPrefix(ref, "secret://"):
			ref = "secret://" + ref
		}
		pins[scope+ref] = version
	}
	return pins
}

// parseKeyValueList reads "k1=v1,k2=v2". Entries missing either side are skipped.
func parseKeyValueList(raw string, normalizeKey func(string) string) map[string]string {
	out := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if normalizeKey != nil {
			key = normalizeKey(key)
		}
		if key != "" && value != "" {
			out[key] = value
		}
	}
	return out
}
