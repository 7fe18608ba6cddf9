package secrets

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const latestVersion = "latest"

// Reference is a parsed secret://name?version=N&project=P URI.
type Reference struct {
	// Name is the URI without query, used as the cache and pin key.
	Name    string
	Secret  string
	Version string
	Project string
}

// ParseReference parses ref. The legacy sm:// scheme is accepted as an alias.
func ParseReference(ref string) (Reference, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Reference{}, errors.New("secrets: empty reference")
	}
	if rest, ok := strings.CutPrefix(ref, "sm://"); ok {
		ref = "secret://" + rest
	}
	u, err := url.Parse(ref)
	if err != nil {
		return Reference{}, fmt.Errorf("secrets: invalid reference %q: %w", ref, err)
	}
	if u.Scheme != "secret" {
		return Reference{}, fmt.Errorf("secrets: unsupported scheme %q", u.Scheme)
	}
	secret := strings.Trim(u.Host+u.Path, "/")
	if secret == "" {
		return Reference{}, fmt.Errorf("secrets: missing secret name in %q", ref)
	}

	query := u.Query()
	u.RawQuery = ""
	u.Fragment = ""
	return Reference{
		Name:    u.String(),
		Secret:  secret,
		Version: strings.TrimSpace(query.Get("version")),
		Project: strings.TrimSpace(query.Get("project")),
	}, nil
}

// resource is the Secret Manager version path for project.
func (r Reference) resource(project, version string) string {
	return fmt.Sprintf("projects/%s/secrets/%s/versions/%s", project, r.Secret, version)
}

// masked hides the reference in logs and metric attributes.
func (r Reference) masked() string {
	sum := sha256.Sum256([]byte(r.Name))
	return hex.EncodeToString(sum[:8])
}

func versionKey(name, version string) string {
	return name + "#" + version
}
