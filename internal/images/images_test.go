package images

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dukerupert/homewise/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = data
	m.types[*input.Key] = *input.ContentType
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func testStore(client s3Client) *Store {
	s := New(Config{Bucket: "avatars", PublicURL: "https://cdn.test/"}, logging.Discard())
	s.client = client
	return s
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestAvatarCropsAndResizes(t *testing.T) {
	out, err := Avatar(bytes.NewReader(pngBytes(t, 300, 200)), AvatarSize)
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, AvatarSize, img.Bounds().Dx())
	assert.Equal(t, AvatarSize, img.Bounds().Dy())
}

func TestAvatarRejectsUnknownFormat(t *testing.T) {
	_, err := Avatar(strings.NewReader("definitely not an image"), AvatarSize)
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}

func TestAvatarRejectsLargeUpload(t *testing.T) {
	_, err := Avatar(bytes.NewReader(make([]byte, MaxUploadSize+1)), AvatarSize)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestCoverRect(t *testing.T) {
	assert.Equal(t, image.Rect(50, 0, 250, 200), coverRect(image.Rect(0, 0, 300, 200)))
	assert.Equal(t, image.Rect(0, 25, 100, 125), coverRect(image.Rect(0, 0, 100, 150)))
}

func TestAvatarKey(t *testing.T) {
	key := AvatarKey("user-1", "My Holiday Photo.PNG")
	assert.True(t, strings.HasPrefix(key, "avatars/user-1/"), key)
	assert.True(t, strings.HasSuffix(key, "-my-holiday-photo.jpg"), key)
	assert.NotEqual(t, key, AvatarKey("user-1", "My Holiday Photo.PNG"))

	assert.True(t, strings.HasSuffix(AvatarKey("u", ""), "-avatar.jpg"))
}

func TestPutAndDelete(t *testing.T) {
	client := newMockS3()
	s := testStore(client)
	ctx := context.Background()

	url, err := s.Put(ctx, "avatars/u1/abc-me.jpg", []byte("jpeg"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/avatars/u1/abc-me.jpg", url)
	assert.Equal(t, []byte("jpeg"), client.objects["avatars/u1/abc-me.jpg"])
	assert.Equal(t, "image/jpeg", client.types["avatars/u1/abc-me.jpg"])

	require.NoError(t, s.Delete(ctx, url))
	assert.Empty(t, client.objects)
}

func TestDeleteIgnoresForeignURL(t *testing.T) {
	client := newMockS3()
	client.objects["keep"] = []byte("x")
	s := testStore(client)

	require.NoError(t, s.Delete(context.Background(), "https://elsewhere.test/keep"))
	assert.Len(t, client.objects, 1)
}

func TestPutErrors(t *testing.T) {
	client := newMockS3()
	client.putErr = errors.New("bucket unavailable")
	_, err := testStore(client).Put(context.Background(), "k", []byte("x"), "image/jpeg")
	assert.ErrorContains(t, err, "bucket unavailable")

	unconfigured := New(Config{}, logging.Discard())
	assert.False(t, unconfigured.Configured())
	_, err = unconfigured.Put(context.Background(), "k", []byte("x"), "image/jpeg")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t, "https://minio.test/avatars", publicURL(Config{Endpoint: "https://minio.test/", Bucket: "avatars"}))
	assert.Equal(t, "https://avatars.s3.eu-west-1.amazonaws.com", publicURL(Config{Bucket: "avatars", Region: "eu-west-1"}))
}
