package protocol

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	ers "github.com/caresuite/bix-app/bix/errors"
	"github.com/caresuite/bix-app/bix/models"
)

// fileHandler serves the same list/get/delete/move semantics as the SFTP
// handler against a local drop directory.
type fileHandler struct {
	cfg    models.AdapterConfig
	logger logrus.FieldLogger
}

func newFileHandler(cfg models.AdapterConfig, logger logrus.FieldLogger) *fileHandler {
	return &fileHandler{cfg: cfg, logger: logger}
}

func (h *fileHandler) Handle(ctx context.Context, operation string, data interface{}, opts models.RequestOptions) (*models.IntegrationResponse, error) {
	root := h.cfg.Directory
	if root == "" {
		return nil, &ers.ConfigError{Service: h.cfg.Service, Msg: "missing directory for FILE endpoint"}
	}

	switch operation {
	case "listFiles":
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, h.wrap(err, root)
		}
		var names []string
		for _, e := range entries {
			if !e.IsDir() {
				names = append(names, e.Name())
			}
		}
		return newResponse(200, names, map[string]interface{}{"path": root}), nil

	case "getFile":
		name := stringField(data, "file", "name", "path")
		if name == "" {
			return nil, &ers.ConfigError{Service: h.cfg.Service, Msg: "getFile requires a file name"}
		}
		local := filepath.Join(root, filepath.Clean(name))
		contents, err := os.ReadFile(local) // #nosec G304 -- path rooted at configured drop dir
		if err != nil {
			return nil, h.wrap(err, local)
		}
		return newResponse(200, contents, map[string]interface{}{"path": local, "size": len(contents)}), nil

	case "deleteFile":
		name := stringField(data, "file", "name", "path")
		if name == "" {
			return nil, &ers.ConfigError{Service: h.cfg.Service, Msg: "deleteFile requires a file name"}
		}
		local := filepath.Join(root, filepath.Clean(name))
		if err := os.Remove(local); err != nil {
			return nil, h.wrap(err, local)
		}
		return newResponse(200, nil, map[string]interface{}{"path": local}), nil

	case "moveFile":
		name := stringField(data, "file", "name", "path")
		dest := stringField(data, "destination", "to")
		if name == "" || dest == "" {
			return nil, &ers.ConfigError{Service: h.cfg.Service, Msg: "moveFile requires a file name and destination"}
		}
		from := filepath.Join(root, filepath.Clean(name))
		to := filepath.Join(root, filepath.Clean(dest))
		if err := os.MkdirAll(filepath.Dir(to), 0750); err != nil {
			return nil, h.wrap(err, to)
		}
		if err := os.Rename(from, to); err != nil {
			return nil, h.wrap(err, from)
		}
		return newResponse(200, nil, map[string]interface{}{"from": from, "to": to}), nil

	default:
		return nil, &ers.ConfigError{Service: h.cfg.Service,
			Msg: fmt.Sprintf("no FILE mapping for operation %s", operation)}
	}
}

// Local filesystem failures indicate a missing or locked drop location;
// a retry after the next delivery window can succeed.
func (h *fileHandler) wrap(err error, p string) error {
	return &ers.IntegrationError{
		Err: err, Service: h.cfg.Service, Endpoint: p, Retryable: true,
	}
}
