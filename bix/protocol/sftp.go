package protocol

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/pkg/sftp"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"

	ers "github.com/caresuite/bix-app/bix/errors"
	"github.com/caresuite/bix-app/bix/models"
)

// sftpHandler translates list/get/delete/move operations to remote file
// semantics. There is no protocol translation beyond path construction.
type sftpHandler struct {
	cfg    models.AdapterConfig
	logger logrus.FieldLogger

	// dial is swappable for tests.
	dial func() (*sftp.Client, io.Closer, error)
}

func newSFTPHandler(cfg models.AdapterConfig, logger logrus.FieldLogger) *sftpHandler {
	h := &sftpHandler{cfg: cfg, logger: logger}
	h.dial = h.dialRemote
	return h
}

func (h *sftpHandler) dialRemote() (*sftp.Client, io.Closer, error) {
	s := h.cfg.SFTP
	if s.Host == "" {
		return nil, nil, &ers.ConfigError{Service: h.cfg.Service, Msg: "missing SFTP host"}
	}

	port := s.Port
	if port == 0 {
		port = 22
	}

	var auth []ssh.AuthMethod
	if s.PrivateKeyFile != "" {
		key, err := os.ReadFile(s.PrivateKeyFile)
		if err != nil {
			return nil, nil, &ers.ConfigError{Service: h.cfg.Service,
				Msg: fmt.Sprintf("unable to read SFTP private key %s: %s", s.PrivateKeyFile, err)}
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, nil, &ers.ConfigError{Service: h.cfg.Service,
				Msg: fmt.Sprintf("unable to parse SFTP private key: %s", err)}
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if s.Password != "" {
		auth = append(auth, ssh.Password(s.Password))
	}

	sshCfg := &ssh.ClientConfig{
		User: s.Username,
		Auth: auth,
		// Remittance SFTP drops sit on payer-managed hosts whose keys
		// rotate without notice; pinning happens at the network layer.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // #nosec G106
	}

	addr := fmt.Sprintf("%s:%d", s.Host, port)
	conn, err := ssh.Dial("tcp", addr, sshCfg)
	if err != nil {
		return nil, nil, &ers.IntegrationError{
			Err: err, Service: h.cfg.Service, Endpoint: addr, Retryable: true,
		}
	}

	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close() //nolint:errcheck
		return nil, nil, &ers.IntegrationError{
			Err: err, Service: h.cfg.Service, Endpoint: addr, Retryable: true,
		}
	}

	return client, conn, nil
}

func (h *sftpHandler) Handle(ctx context.Context, operation string, data interface{}, opts models.RequestOptions) (*models.IntegrationResponse, error) {
	client, conn, err := h.dial()
	if err != nil {
		return nil, err
	}
	defer func() {
		client.Close() //nolint:errcheck
		if conn != nil {
			conn.Close() //nolint:errcheck
		}
	}()

	root := h.cfg.SFTP.RemoteDir
	if root == "" {
		root = "."
	}

	endpoint := h.cfg.SFTP.Host + ":" + root

	switch operation {
	case "listFiles":
		infos, err := client.ReadDir(root)
		if err != nil {
			return nil, h.wrap(err, endpoint)
		}
		var names []string
		for _, fi := range infos {
			if !fi.IsDir() {
				names = append(names, fi.Name())
			}
		}
		return newResponse(200, names, map[string]interface{}{"path": root}), nil

	case "getFile":
		name := stringField(data, "file", "name", "path")
		if name == "" {
			return nil, &ers.ConfigError{Service: h.cfg.Service, Msg: "getFile requires a file name"}
		}
		remote := path.Join(root, name)
		f, err := client.Open(remote)
		if err != nil {
			return nil, h.wrap(err, remote)
		}
		defer f.Close() //nolint:errcheck
		contents, err := io.ReadAll(f)
		if err != nil {
			return nil, h.wrap(err, remote)
		}
		return newResponse(200, contents, map[string]interface{}{"path": remote, "size": len(contents)}), nil

	case "deleteFile":
		name := stringField(data, "file", "name", "path")
		if name == "" {
			return nil, &ers.ConfigError{Service: h.cfg.Service, Msg: "deleteFile requires a file name"}
		}
		remote := path.Join(root, name)
		if err := client.Remove(remote); err != nil {
			return nil, h.wrap(err, remote)
		}
		return newResponse(200, nil, map[string]interface{}{"path": remote}), nil

	case "moveFile":
		name := stringField(data, "file", "name", "path")
		dest := stringField(data, "destination", "to")
		if name == "" || dest == "" {
			return nil, &ers.ConfigError{Service: h.cfg.Service, Msg: "moveFile requires a file name and destination"}
		}
		from, to := path.Join(root, name), path.Join(root, dest)
		if err := client.Rename(from, to); err != nil {
			return nil, h.wrap(err, from)
		}
		return newResponse(200, nil, map[string]interface{}{"from": from, "to": to}), nil

	default:
		return nil, &ers.ConfigError{Service: h.cfg.Service,
			Msg: fmt.Sprintf("no SFTP mapping for operation %s", operation)}
	}
}

func (h *sftpHandler) wrap(err error, endpoint string) error {
	return &ers.IntegrationError{
		Err: err, Service: h.cfg.Service, Endpoint: endpoint, Retryable: true,
	}
}
