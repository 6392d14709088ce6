package storage

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: make(map[string][]byte)} }

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.objects[*in.Bucket+"/"+*in.Key] = data
	f.mu.Unlock()
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &s3types.NotFound{}
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(data))),
		LastModified:  aws.Time(time.Date(2025, 10, 7, 6, 0, 0, 0, time.UTC)),
	}, nil
}

func TestS3Blob(t *testing.T) {
	fake := newFakeS3()
	s := NewS3(fake, "reports", "ga4")
	ctx := context.Background()

	_, err := s.Get(ctx, "./data/consolidated-reports.json")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Stat(ctx, "./data/consolidated-reports.json")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "./data/consolidated-reports.json", []byte(`{"data":{}}`)))
	assert.Contains(t, fake.objects, "reports/ga4/data/consolidated-reports.json")

	data, err := s.Get(ctx, "data/consolidated-reports.json")
	require.NoError(t, err)
	assert.Equal(t, `{"data":{}}`, string(data))

	info, err := s.Stat(ctx, "data/consolidated-reports.json")
	require.NoError(t, err)
	assert.Equal(t, int64(11), info.Size)
	assert.Equal(t, 2025, info.ModTime.Year())
}

type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func itemID(av map[string]types.AttributeValue) string {
	pk := av["PK"].(*types.AttributeValueMemberS).Value
	sk := av["SK"].(*types.AttributeValueMemberS).Value
	return pk + "|" + sk
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[itemID(in.Key)]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[itemID(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func TestDynamoBlob(t *testing.T) {
	fake := newFakeDynamo()
	s := NewDynamo(fake, "ga4-reports")
	fixed := time.Date(2025, 10, 7, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	ctx := context.Background()

	_, err := s.Get(ctx, "config/urls.json")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "./config/urls.json", []byte(`{"urls":["/a/"]}`)))
	assert.Contains(t, fake.items, "BLOB#config/urls.json|CURRENT")

	data, err := s.Get(ctx, "config/urls.json")
	require.NoError(t, err)
	assert.Equal(t, `{"urls":["/a/"]}`, string(data))

	info, err := s.Stat(ctx, "config/urls.json")
	require.NoError(t, err)
	assert.Equal(t, int64(len(`{"urls":["/a/"]}`)), info.Size)
	assert.True(t, info.ModTime.Equal(fixed))
}
