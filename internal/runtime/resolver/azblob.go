package resolver

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// SpecAzureBlob resolves datums against Azure Blob Storage.
const SpecAzureBlob = "AZURE_BLOB"

// blobDownloader is the one call the resolver makes against the storage account.
type blobDownloader interface {
	Download(ctx context.Context, container, blob string) ([]byte, error)
}

// AzureBlob downloads the blob named by resource_path (or the "blob"
// parameter) from the container in the resource kwargs and decodes it as
// JSON. An "index" parameter selects one element of an array payload.
type AzureBlob struct {
	client           blobDownloader
	defaultContainer string
}

// NewAzureBlob builds a resolver from a storage connection string. The
// container is used when a resource does not name one.
func NewAzureBlob(connectionString, defaultContainer string) (*AzureBlob, error) {
	client, err := newSharedKeyClient(connectionString)
	if err != nil {
		return nil, err
	}
	return &AzureBlob{client: client, defaultContainer: defaultContainer}, nil
}

func (a *AzureBlob) Resolve(ctx context.Context, res Resource, params map[string]any) (any, error) {
	container := stringParam(params, ParamContainer, a.defaultContainer)
	if container == "" {
		return nil, fmt.Errorf("azure blob: %s parameter is required", ParamContainer)
	}
	blob := stringParam(params, ParamBlob, res.ResourcePath)
	if blob == "" {
		return nil, fmt.Errorf("azure blob: no blob name in resource %s", res.UID)
	}

	data, err := a.client.Download(ctx, container, blob)
	if err != nil {
		return nil, err
	}

	selected := make(map[string]any, 1)
	if idx, ok := params[ParamIndex]; ok {
		selected[ParamIndex] = idx
	}
	return decodePayload(data, selected)
}

type sharedKeyClient struct {
	client *azblob.Client
}

func newSharedKeyClient(connectionString string) (*sharedKeyClient, error) {
	if connectionString == "" {
		return nil, fmt.Errorf("azure blob: connection string is required")
	}

	params := parseConnectionString(connectionString)
	accountName := params["AccountName"]
	accountKey := params["AccountKey"]
	serviceURL := params["BlobEndpoint"]
	if accountName == "" || accountKey == "" {
		return nil, fmt.Errorf("azure blob: account name and key are required in the connection string")
	}
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net", accountName)
	}

	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("azure blob: shared key credential: %w", err)
	}

	var opts *azblob.ClientOptions
	if strings.HasPrefix(strings.ToLower(serviceURL), "http://") {
		// Azurite and other local emulators serve plain HTTP.
		opts = &azblob.ClientOptions{
			ClientOptions: azcore.ClientOptions{InsecureAllowCredentialWithHTTP: true},
		}
	}

	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, credential, opts)
	if err != nil {
		return nil, fmt.Errorf("azure blob: create client: %w", err)
	}
	return &sharedKeyClient{client: client}, nil
}

func (c *sharedKeyClient) Download(ctx context.Context, container, blob string) ([]byte, error) {
	resp, err := c.client.DownloadStream(ctx, container, blob, nil)
	if err != nil {
		return nil, fmt.Errorf("azure blob download %s/%s: %w", container, blob, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("azure blob read %s/%s: %w", container, blob, err)
	}
	return data, nil
}

func parseConnectionString(connectionString string) map[string]string {
	parts := strings.Split(connectionString, ";")
	params := make(map[string]string, len(parts))
	for _, part := range parts {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || key == "" {
			continue
		}
		params[key] = value
	}
	return params
}
