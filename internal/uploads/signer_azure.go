package uploads

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
)

// AzureSigner signs blob SAS URLs with a storage account shared key.
type AzureSigner struct {
	account   string
	container string
	cred      *azblob.SharedKeyCredential
}

// NewAzureSigner validates the account key, which must be base64.
func NewAzureSigner(account, accountKey, container string) (*AzureSigner, error) {
	account = strings.TrimSpace(account)
	container = strings.TrimSpace(container)
	if account == "" || container == "" || strings.TrimSpace(accountKey) == "" {
		return nil, ErrNotConfigured
	}
	cred, err := azblob.NewSharedKeyCredential(account, strings.TrimSpace(accountKey))
	if err != nil {
		return nil, fmt.Errorf("azure shared key: %w", err)
	}
	return &AzureSigner{account: account, container: container, cred: cred}, nil
}

func (s *AzureSigner) Sign(_ context.Context, key string, perm Permission, start, expiry time.Time) (string, error) {
	perms := sas.BlobPermissions{Read: true}
	if perm == PermWrite {
		perms = sas.BlobPermissions{Create: true, Write: true}
	}
	params, err := sas.BlobSignatureValues{
		Protocol:      sas.ProtocolHTTPS,
		StartTime:     start,
		ExpiryTime:    expiry,
		Permissions:   perms.String(),
		ContainerName: s.container,
		BlobName:      key,
	}.SignWithSharedKey(s.cred)
	if err != nil {
		return "", err
	}
	return s.blobURL(key) + "?" + params.Encode(), nil
}

func (s *AzureSigner) UploadHeaders(contentType string) map[string]string {
	headers := map[string]string{"x-ms-blob-type": "BlockBlob"}
	if contentType != "" {
		headers["Content-Type"] = contentType
	}
	return headers
}

func (s *AzureSigner) blobURL(key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return fmt.Sprintf("https://%s.blob.core.windows.net/%s/%s", s.account, url.PathEscape(s.container), strings.Join(segments, "/"))
}

var _ Signer = (*AzureSigner)(nil)
