package objstore

import (
	"context"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
)

// Azure stores archived objects as blobs in a single container.
type Azure struct {
	client    *azblob.Client
	container string
}

func NewAzure(accountURL, containerName string, cred azblob.SharedKeyCredential) (*Azure, error) {
	client, err := azblob.NewClientWithSharedKeyCredential(accountURL, &cred, nil)
	if err != nil {
		return nil, err
	}
	return &Azure{client: client, container: containerName}, nil
}

func (a *Azure) Put(ctx context.Context, key string, r io.Reader, _ int64) error {
	_, err := a.client.UploadStream(ctx, a.container, key, r, nil)
	return err
}

func (a *Azure) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := a.client.DownloadStream(ctx, a.container, key, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (a *Azure) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	pager := a.client.NewListBlobsFlatPager(a.container, &container.ListBlobsFlatOptions{
		Prefix: to.Ptr(prefix),
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, blob := range page.Segment.BlobItems {
			if blob.Name == nil || !strings.HasPrefix(*blob.Name, prefix) {
				continue
			}
			var size int64
			if blob.Properties != nil && blob.Properties.ContentLength != nil {
				size = *blob.Properties.ContentLength
			}
			out = append(out, ObjectInfo{Key: *blob.Name, Size: size})
		}
	}
	return out, nil
}

func (a *Azure) Delete(ctx context.Context, key string) error {
	_, err := a.client.DeleteBlob(ctx, a.container, key, nil)
	if bloberror.HasCode(err, bloberror.BlobNotFound) {
		return nil
	}
	return err
}
