package protocol

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ers "github.com/caresuite/bix-app/bix/errors"
	"github.com/caresuite/bix-app/bix/models"
)

func testFileHandler(t *testing.T) (*fileHandler, string) {
	dir := t.TempDir()
	h := newFileHandler(models.AdapterConfig{
		Service:   "payer-drop",
		Protocol:  models.ProtocolFile,
		Directory: dir,
	}, logrus.New())
	return h, dir
}

func TestFileHandlerListFiles(t *testing.T) {
	h, dir := testFileHandler(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.835"), []byte("ISA"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv"), []byte("x"), 0600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive"), 0750))

	resp, err := h.Handle(context.Background(), "listFiles", nil, models.RequestOptions{})
	require.NoError(t, err)

	names := resp.Data.([]string)
	assert.ElementsMatch(t, []string{"a.835", "b.csv"}, names)
}

func TestFileHandlerGetFile(t *testing.T) {
	h, dir := testFileHandler(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "remit.csv"), []byte("claim,paid"), 0600))

	resp, err := h.Handle(context.Background(), "getFile",
		map[string]interface{}{"file": "remit.csv"}, models.RequestOptions{})
	require.NoError(t, err)
	assert.Equal(t, []byte("claim,paid"), resp.Data)
}

func TestFileHandlerGetFileMissingIsRetryable(t *testing.T) {
	h, _ := testFileHandler(t)

	_, err := h.Handle(context.Background(), "getFile",
		map[string]interface{}{"file": "nope.csv"}, models.RequestOptions{})

	var ie *ers.IntegrationError
	require.ErrorAs(t, err, &ie)
	assert.True(t, ie.Retryable)
}

func TestFileHandlerMoveFile(t *testing.T) {
	h, dir := testFileHandler(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "remit.csv"), []byte("x"), 0600))

	_, err := h.Handle(context.Background(), "moveFile",
		map[string]interface{}{"file": "remit.csv", "destination": "processed/remit.csv"},
		models.RequestOptions{})
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(dir, "remit.csv"))
	assert.FileExists(t, filepath.Join(dir, "processed", "remit.csv"))
}

func TestFileHandlerDeleteFile(t *testing.T) {
	h, dir := testFileHandler(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "remit.csv"), []byte("x"), 0600))

	_, err := h.Handle(context.Background(), "deleteFile",
		map[string]interface{}{"file": "remit.csv"}, models.RequestOptions{})
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "remit.csv"))
}

func TestFileHandlerUnknownOperation(t *testing.T) {
	h, _ := testFileHandler(t)

	_, err := h.Handle(context.Background(), "getClient", nil, models.RequestOptions{})

	var ce *ers.ConfigError
	assert.ErrorAs(t, err, &ce)
}

func TestFileHandlerMissingDirectory(t *testing.T) {
	h := newFileHandler(models.AdapterConfig{Service: "svc"}, logrus.New())

	_, err := h.Handle(context.Background(), "listFiles", nil, models.RequestOptions{})

	var ce *ers.ConfigError
	assert.ErrorAs(t, err, &ce)
}
