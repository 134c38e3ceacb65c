package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fileflux/fileflux/pkg/catalog"
	"github.com/fileflux/fileflux/pkg/store/object"
)

type fakeObjects struct {
	key         string
	contentType string
	body        []byte
	putErr      error
}

func (f *fakeObjects) PutStream(ctx context.Context, key string, body io.Reader, contentType string) (object.PutResult, error) {
	f.key = key
	f.contentType = contentType
	data, err := io.ReadAll(body)
	f.body = data
	if err != nil {
		return object.PutResult{}, fmt.Errorf("upload aborted: %w", err)
	}
	if f.putErr != nil {
		return object.PutResult{}, f.putErr
	}
	return object.PutResult{Key: key, Size: int64(len(data))}, nil
}

func (f *fakeObjects) GetStream(ctx context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.body)), nil
}

func (f *fakeObjects) Probe(ctx context.Context) error { return nil }

type fakeCatalog struct {
	created *catalog.File
	err     error
}

func (f *fakeCatalog) Create(ctx context.Context, key, originalName string, size int64, contentType string) (*catalog.File, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = &catalog.File{
		ID:           primitive.NewObjectID(),
		Key:          key,
		OriginalName: originalName,
		Size:         size,
		ContentType:  contentType,
		Status:       catalog.StatusUploaded,
	}
	return f.created, nil
}

func multipartBody(t *testing.T, fieldName, fileName, contentType, content string) *multipart.Reader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name=%q; filename=%q`, fieldName, fileName))
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return multipart.NewReader(&buf, w.Boundary())
}

func TestUploadStreamsToStoreAndRegisters(t *testing.T) {
	objects := &fakeObjects{}
	files := &fakeCatalog{}
	ing := New(objects, files, Config{MaxFileSize: 1 << 20})

	content := "id,name\n1,alice\n2,bob\n"
	mr := multipartBody(t, "file", "users.csv", "text/csv", content)

	file, err := ing.Upload(context.Background(), mr)
	require.NoError(t, err)

	assert.Equal(t, content, string(objects.body))
	assert.Equal(t, "text/csv", objects.contentType)
	assert.Contains(t, objects.key, "users.csv")

	require.NotNil(t, files.created)
	assert.Equal(t, "users.csv", file.OriginalName)
	assert.Equal(t, int64(len(content)), file.Size)
	assert.Equal(t, catalog.StatusUploaded, file.Status)
}

func TestUploadSkipsPlainFormFields(t *testing.T) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("description", "quarterly export"))

	fw, err := w.CreateFormFile("file", "data.json")
	require.NoError(t, err)
	_, err = io.WriteString(fw, `{"ok":true}`)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	objects := &fakeObjects{}
	ing := New(objects, &fakeCatalog{}, Config{})

	file, err := ing.Upload(context.Background(), multipart.NewReader(&buf, w.Boundary()))
	require.NoError(t, err)
	assert.Equal(t, "data.json", file.OriginalName)
}

func TestUploadNoFilePart(t *testing.T) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("description", "no file here"))
	require.NoError(t, w.Close())

	ing := New(&fakeObjects{}, &fakeCatalog{}, Config{})
	_, err := ing.Upload(context.Background(), multipart.NewReader(&buf, w.Boundary()))
	assert.ErrorIs(t, err, ErrNoFile)
}

func TestUploadRejectsDisallowedType(t *testing.T) {
	objects := &fakeObjects{}
	ing := New(objects, &fakeCatalog{}, Config{MaxFileSize: 1 << 20})

	mr := multipartBody(t, "file", "movie.mp4", "video/mp4", "not really a video")
	_, err := ing.Upload(context.Background(), mr)
	assert.ErrorIs(t, err, ErrUnsupportedType)
	assert.Empty(t, objects.key, "rejected upload must not reach the object store")
}

func TestUploadEnforcesSizeCap(t *testing.T) {
	objects := &fakeObjects{}
	ing := New(objects, &fakeCatalog{}, Config{MaxFileSize: 64})

	mr := multipartBody(t, "file", "big.txt", "text/plain", strings.Repeat("x", 200))
	_, err := ing.Upload(context.Background(), mr)
	assert.ErrorIs(t, err, ErrFileTooLarge)

	// The error names the configured cap so the API layer can report it.
	var sizeErr *SizeLimitError
	require.ErrorAs(t, err, &sizeErr)
	assert.Equal(t, int64(64), sizeErr.Limit)
	assert.Contains(t, sizeErr.Error(), "64B")
}

func TestUploadAtCapExactly(t *testing.T) {
	objects := &fakeObjects{}
	ing := New(objects, &fakeCatalog{}, Config{MaxFileSize: 64})

	mr := multipartBody(t, "file", "fits.txt", "text/plain", strings.Repeat("x", 64))
	file, err := ing.Upload(context.Background(), mr)
	require.NoError(t, err)
	assert.Equal(t, int64(64), file.Size)
}

func TestPartContentTypeFallsBackToExtension(t *testing.T) {
	mr := multipartBody(t, "file", "report.csv", "", "a,b\n1,2\n")
	part, err := nextFilePart(mr)
	require.NoError(t, err)
	defer part.Close()

	assert.Equal(t, "text/csv", partContentType(part, "report.csv"))
}

func TestTypeAllowed(t *testing.T) {
	allowed := []string{"text/csv", "application/json"}
	assert.True(t, typeAllowed("text/csv", allowed))
	assert.True(t, typeAllowed("TEXT/CSV", allowed))
	assert.False(t, typeAllowed("text/html", allowed))
	assert.False(t, typeAllowed("", allowed))
}

func TestCappedReaderPassesThroughUnderCap(t *testing.T) {
	r := newCappedReader(strings.NewReader("hello"), 10)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestCappedReaderStopsOverCap(t *testing.T) {
	r := newCappedReader(strings.NewReader(strings.Repeat("z", 100)), 10)
	_, err := io.ReadAll(r)
	assert.ErrorIs(t, err, ErrFileTooLarge)
}
