package remit

import (
	"bytes"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// LocalFileProcessor reads remittance drops from a directory on disk.
type LocalFileProcessor struct {
	Logger logrus.FieldLogger
}

func (processor *LocalFileProcessor) LoadRemitFiles(path string) ([]*RemitFileMetadata, int, error) {
	var (
		files   []*RemitFileMetadata
		skipped int
	)

	err := filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return errors.Wrapf(err, "error walking remittance directory at %s", p)
		}
		if info.IsDir() {
			return nil
		}

		if stillDownloading(info.ModTime()) {
			processor.Logger.Warnf("Skipping %s: still downloading (last modified %s)", p, info.ModTime())
			return nil
		}

		metadata, err := GetRemitFileMetadata(info.Name())
		if err != nil {
			// An unknown file in the drop dir isn't a blocker.
			skipped++
			processor.Logger.Warnf("Unknown file found: %s. Skipping.", p)
			return nil
		}

		metadata.FilePath = filepath.Clean(p)
		metadata.DeliveryDate = info.ModTime()
		files = append(files, &metadata)
		return nil
	})
	if err != nil {
		return nil, skipped, err
	}

	return files, skipped, nil
}

func (processor *LocalFileProcessor) OpenFile(metadata *RemitFileMetadata) (*bytes.Reader, func(), error) {
	processor.Logger.Infof("Opening remittance file %s", metadata.FilePath)
	data, err := os.ReadFile(filepath.Clean(metadata.FilePath))
	if err != nil {
		return nil, nil, errors.Wrapf(err, "could not read remittance file %s", metadata.FilePath)
	}
	return bytes.NewReader(data), func() {}, nil
}

func (processor *LocalFileProcessor) CleanupRemitFiles(files []*RemitFileMetadata) error {
	errCount := 0
	for _, file := range files {
		if !file.Imported {
			// Not imported; move to the failed subdirectory for review.
			failedDir := filepath.Join(filepath.Dir(file.FilePath), "failed")
			if err := moveInto(file.FilePath, failedDir); err != nil {
				errCount++
				processor.Logger.Errorf("File %s failed to clean up properly: %v", file, err)
			} else {
				processor.Logger.Infof("File %s never ingested, moved to the failed directory", file)
			}
			continue
		}

		if err := os.Remove(file.FilePath); err != nil {
			errCount++
			processor.Logger.Errorf("File %s failed to clean up properly: %v", file, err)
		} else {
			processor.Logger.Infof("File %s deleted after successful import", file)
		}
	}

	if errCount > 0 {
		return errors.Errorf("%d files could not be cleaned up", errCount)
	}
	return nil
}

func moveInto(path, dir string) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}
	return os.Rename(path, filepath.Join(dir, filepath.Base(path)))
}

// Payer SFTP pushes can take minutes; treat very recent modifications as
// in-flight transfers.
func stillDownloading(modTime time.Time) bool {
	return modTime.After(time.Now().Add(-1 * time.Minute))
}
