package uploads

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"docextract-backend/internal/shared/util"
)

const (
	DefaultTTL = 15 * time.Minute
	clockSkew  = 5 * time.Minute
)

var DefaultAllowedExts = []string{"pdf", "doc", "docx"}

var ErrNotConfigured = errors.New("storage is not configured")

// Permission is the access a signed URL grants on a single object.
type Permission int

const (
	// PermWrite allows creating and writing the object.
	PermWrite Permission = iota
	// PermRead allows reading the object.
	PermRead
)

// Signer produces signed object URLs for one storage backend.
type Signer interface {
	Sign(ctx context.Context, key string, perm Permission, start, expiry time.Time) (string, error)
	UploadHeaders(contentType string) map[string]string
}

// Intent describes the upload the client is about to make.
type Intent struct {
	OriginalName string
	ContentType  string
	Prefix       string
}

// Credential is a pair of signed URLs for one freshly named object.
type Credential struct {
	BlobName      string
	BlobURL       string
	UploadURL     string
	ReadURL       string
	UploadHeaders map[string]string
	StartsOn      time.Time
	ExpiresOn     time.Time
}

// UnsupportedTypeError reports an extension outside the allow-list.
type UnsupportedTypeError struct {
	Ext     string
	Allowed []string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("Unsupported file type .%s. Allowed: %s", e.Ext, strings.Join(e.Allowed, ", "))
}

// Issuer hands out upload and read credentials under unique object keys.
type Issuer struct {
	Signer      Signer
	AllowedExts []string
	TTL         time.Duration
	Now         func() time.Time
	NewToken    func() string
}

// NewIssuer builds an issuer. Empty settings take the defaults.
func NewIssuer(signer Signer, allowedExts []string, ttl time.Duration) *Issuer {
	if len(allowedExts) == 0 {
		allowedExts = DefaultAllowedExts
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{
		Signer:      signer,
		AllowedExts: allowedExts,
		TTL:         ttl,
		Now:         time.Now,
		NewToken:    uuid.NewString,
	}
}

// Issue validates the extension, names the object and signs both URLs over
// the same validity window.
func (i *Issuer) Issue(ctx context.Context, intent Intent) (*Credential, error) {
	if i == nil || i.Signer == nil {
		return nil, ErrNotConfigured
	}
	ext := util.ExtensionOf(intent.OriginalName)
	if !slices.Contains(i.AllowedExts, ext) {
		return nil, &UnsupportedTypeError{Ext: ext, Allowed: i.AllowedExts}
	}

	now := time.Now
	if i.Now != nil {
		now = i.Now
	}
	token := uuid.NewString
	if i.NewToken != nil {
		token = i.NewToken
	}
	ttl := i.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	key := util.SanitizePrefix(intent.Prefix) + token() + "." + ext
	issuedAt := now().UTC()
	startsOn := issuedAt.Add(-clockSkew)
	expiresOn := issuedAt.Add(ttl)

	uploadURL, err := i.Signer.Sign(ctx, key, PermWrite, startsOn, expiresOn)
	if err != nil {
		return nil, fmt.Errorf("sign upload url: %w", err)
	}
	readURL, err := i.Signer.Sign(ctx, key, PermRead, startsOn, expiresOn)
	if err != nil {
		return nil, fmt.Errorf("sign read url: %w", err)
	}

	return &Credential{
		BlobName:      key,
		BlobURL:       stripQuery(uploadURL),
		UploadURL:     uploadURL,
		ReadURL:       readURL,
		UploadHeaders: i.Signer.UploadHeaders(strings.TrimSpace(intent.ContentType)),
		StartsOn:      startsOn,
		ExpiresOn:     expiresOn,
	}, nil
}

func stripQuery(raw string) string {
	if idx := strings.IndexByte(raw, '?'); idx >= 0 {
		return raw[:idx]
	}
	return raw
}
