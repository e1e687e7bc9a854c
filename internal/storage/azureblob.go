package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// copyPollInterval is how often Move polls a pending server-side copy for
// completion before it is safe to delete the source blob.
const copyPollInterval = 150 * time.Millisecond

// AzureBlobStore is a BlobStore backed by an Azure Storage container. Like
// S3, Azure has no rename primitive, so Move copies then deletes.
type AzureBlobStore struct {
	client    *azblob.Client
	container string
}

// NewAzureBlobStore builds a store for container in the given storage
// account, authenticating via the ambient Azure credential chain.
func NewAzureBlobStore(account, container string) (*AzureBlobStore, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, err
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", account)
	client, err := azblob.NewClient(serviceURL, cred, nil)
	if err != nil {
		return nil, err
	}

	return &AzureBlobStore{client: client, container: container}, nil
}

func (a *AzureBlobStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := a.client.ServiceClient().NewContainerClient(a.container).NewBlobClient(key).GetProperties(ctx, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (a *AzureBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := a.client.DownloadStream(ctx, a.container, key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (a *AzureBlobStore) OpenReader(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := a.client.DownloadStream(ctx, a.container, key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return out.Body, nil
}

func (a *AzureBlobStore) Put(ctx context.Context, key string, data []byte) error {
	_, err := a.client.UploadBuffer(ctx, a.container, key, data, nil)
	return err
}

func (a *AzureBlobStore) Move(ctx context.Context, src, dst string) error {
	srcClient := a.client.ServiceClient().NewContainerClient(a.container).NewBlobClient(src)
	dstClient := a.client.ServiceClient().NewContainerClient(a.container).NewBlobClient(dst)

	_, err := dstClient.StartCopyFromURL(ctx, srcClient.URL(), nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return ErrNotFound
		}
		return err
	}
	if err := waitForCopy(ctx, dstClient); err != nil {
		return err
	}
	return a.Delete(ctx, src)
}

// waitForCopy blocks until dst's asynchronous server-side copy (started by
// StartCopyFromURL) reports success, so Move never deletes the source blob
// out from under a copy that hasn't actually landed yet.
func waitForCopy(ctx context.Context, dst *blob.Client) error {
	for {
		props, err := dst.GetProperties(ctx, nil)
		if err != nil {
			return err
		}
		if props.CopyStatus == nil {
			return nil
		}
		switch *props.CopyStatus {
		case blob.CopyStatusTypeSuccess:
			return nil
		case blob.CopyStatusTypeFailed, blob.CopyStatusTypeAborted:
			return fmt.Errorf("storage: azure copy to %s did not complete: %s", dst.URL(), *props.CopyStatus)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(copyPollInterval):
		}
	}
}

func (a *AzureBlobStore) List(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	pager := a.client.NewListBlobsFlatPager(a.container, &azblob.ListBlobsFlatOptions{
		Prefix: &prefix,
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name != nil {
				out = append(out, *item.Name)
			}
		}
	}
	return out, nil
}

func (a *AzureBlobStore) Delete(ctx context.Context, key string) error {
	_, err := a.client.DeleteBlob(ctx, a.container, key, nil)
	if err != nil && bloberror.HasCode(err, bloberror.BlobNotFound) {
		return nil
	}
	return err
}
