package archive

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBucket struct {
	objects map[string][]byte
	headErr error
}

func (b *fakeBucket) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if b.headErr != nil {
		return nil, b.headErr
	}
	if _, ok := b.objects[*in.Key]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (b *fakeBucket) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	b.objects[*in.Key] = data
	return &manager.UploadOutput{Key: in.Key}, nil
}

func writeCert(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "1-2 марта 2024")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	file := filepath.Join(dir, "Иванову_Ивану-0123456789ab.jpeg")
	require.NoError(t, os.WriteFile(file, []byte("jpeg"), 0o600))
	return file
}

func TestS3Archive_UploadsOnce(t *testing.T) {
	bucket := &fakeBucket{objects: map[string][]byte{}}
	a := newS3Archive(bucket, bucket, S3Config{Bucket: "certs"}, zerolog.Nop())
	file := writeCert(t)

	require.NoError(t, a.Archive(context.Background(), file))
	key := "certificates/1-2 марта 2024/Иванову_Ивану-0123456789ab.jpeg"
	assert.Equal(t, key, a.Key(file))
	assert.Equal(t, []byte("jpeg"), bucket.objects[key])

	bucket.objects[key] = []byte("existing")
	require.NoError(t, a.Archive(context.Background(), file))
	assert.Equal(t, []byte("existing"), bucket.objects[key])
}

func TestS3Archive_HeadFailure(t *testing.T) {
	boom := errors.New("access denied")
	bucket := &fakeBucket{objects: map[string][]byte{}, headErr: boom}
	a := newS3Archive(bucket, bucket, S3Config{Bucket: "certs", Prefix: "archive"}, zerolog.Nop())

	err := a.Archive(context.Background(), writeCert(t))
	require.ErrorIs(t, err, boom)
	assert.Empty(t, bucket.objects)
}

func isolateAWSEnv(t *testing.T) {
	t.Helper()
	empty := filepath.Join(t.TempDir(), "aws")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	t.Setenv("AWS_CONFIG_FILE", empty)
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", empty)
	t.Setenv("AWS_PROFILE", "")
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")
}

func TestLoadAWSConfig_StaticCredentials(t *testing.T) {
	isolateAWSEnv(t)
	ctx := context.Background()

	awsCfg, err := loadAWSConfig(ctx, S3Config{
		Region:          "eu-central-1",
		Bucket:          "certs",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
	}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "eu-central-1", awsCfg.Region)

	creds, err := awsCfg.Credentials.Retrieve(ctx)
	require.NoError(t, err)
	assert.Equal(t, "AKIDEXAMPLE", creds.AccessKeyID)
	assert.Equal(t, "secret", creds.SecretAccessKey)
}

func TestNewS3Archive_RequiresBucket(t *testing.T) {
	_, err := NewS3Archive(context.Background(), S3Config{AccessKeyID: "a", SecretAccessKey: "b"}, zerolog.Nop())
	require.Error(t, err)
}
