// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package blob

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/juju/errors"
	"github.com/reelsense/reelsense/base/log"
	"github.com/reelsense/reelsense/config"
	"go.uber.org/zap"
)

// AzureBlob stores snapshots in a container of an Azure storage account.
type AzureBlob struct {
	client    *azblob.Client
	container string
	prefix    string
}

func newAzureClient(cfg config.AzureBlobConfig) (*azblob.Client, error) {
	if cfg.ConnectionString != "" {
		return azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	}
	if cfg.AccountName == "" || cfg.AccountKey == "" {
		return nil, errors.NotValidf("azure blob credentials")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccountName)
	}
	credential, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, err
	}
	return azblob.NewClientWithSharedKeyCredential(endpoint, credential, nil)
}

func NewAzureBlob(cfg config.AzureBlobConfig, container, prefix string) (*AzureBlob, error) {
	client, err := newAzureClient(cfg)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &AzureBlob{
		client:    client,
		container: container,
		prefix:    strings.Trim(prefix, "/"),
	}, nil
}

func (a *AzureBlob) key(name string) string {
	return path.Join(a.prefix, name)
}

func (a *AzureBlob) Open(name string) (io.ReadCloser, error) {
	resp, err := a.client.DownloadStream(context.Background(), a.container, a.key(name), nil)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return resp.Body, nil
}

func (a *AzureBlob) Create(name string) (io.WriteCloser, chan struct{}, error) {
	key := a.key(name)
	pr, pw := io.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := a.client.UploadStream(context.Background(), a.container, key, pr, nil); err != nil {
			log.Logger().Error("failed to upload model to Azure Blob", zap.String("blob", key), zap.Error(err))
			_ = pr.CloseWithError(err)
		}
	}()
	return pw, done, nil
}

func (a *AzureBlob) List() ([]string, error) {
	options := &azblob.ListBlobsFlatOptions{}
	if a.prefix != "" {
		prefix := a.prefix + "/"
		options.Prefix = &prefix
	}
	var names []string
	pager := a.client.NewListBlobsFlatPager(a.container, options)
	for pager.More() {
		resp, err := pager.NextPage(context.Background())
		if err != nil {
			return nil, errors.Trace(err)
		}
		for _, item := range resp.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			name := strings.TrimPrefix(strings.TrimPrefix(*item.Name, a.prefix), "/")
			if name != "" {
				names = append(names, name)
			}
		}
	}
	return names, nil
}

func (a *AzureBlob) Remove(name string) error {
	_, err := a.client.DeleteBlob(context.Background(), a.container, a.key(name), nil)
	return errors.Trace(err)
}
