package remit

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/caresuite/bix-app/bix/monitoring"
)

// Importer runs the remittance ingestion pipeline: discover files, parse
// each into the normalized model, validate, and hand off to the Saver.
type Importer struct {
	Logger        logrus.FieldLogger
	FileProcessor FileProcessor
	Transformer   Transformer
	Saver         Saver
}

// ImportAll ingests every recognizable remittance file under path.
// Individual file failures don't abort the run; they count as failures and
// the files are left in place for review.
func (imp Importer) ImportAll(ctx context.Context, path string) (success, failure, skipped int, err error) {
	files, skipped, err := imp.FileProcessor.LoadRemitFiles(path)
	if err != nil {
		return 0, 0, skipped, errors.Wrapf(err, "failed to discover remittance files at %s", path)
	}

	if len(files) == 0 {
		imp.Logger.Infof("No remittance files found at %s", path)
		return 0, 0, skipped, nil
	}

	for _, file := range files {
		closeTimer := monitoring.NewChild(ctx, file.Name)
		importErr := imp.ImportFile(ctx, file)
		closeTimer()
		if importErr != nil {
			failure++
			imp.Logger.WithFields(logrus.Fields{"file": file.String()}).Error(importErr)
			continue
		}
		success++
	}

	if cleanupErr := imp.FileProcessor.CleanupRemitFiles(files); cleanupErr != nil {
		imp.Logger.Error(cleanupErr)
	}

	imp.Logger.WithFields(logrus.Fields{
		"success": success, "failure": failure, "skipped": skipped,
	}).Info("completed remittance import run")
	return success, failure, skipped, nil
}

// ImportFile ingests a single remittance file. The file type is detected
// from content, not extension; payer drop conventions disagree on naming.
func (imp Importer) ImportFile(ctx context.Context, metadata *RemitFileMetadata) error {
	reader, closer, err := imp.FileProcessor.OpenFile(metadata)
	if err != nil {
		return err
	}
	defer closer()

	data, err := io.ReadAll(reader)
	if err != nil {
		return errors.Wrapf(err, "could not read remittance file %s", metadata)
	}

	remittance, err := imp.Transformer.Parse(data, DetectFileType(data))
	if err != nil {
		return err
	}

	if err := imp.Transformer.Validate(remittance.Info, remittance.Details); err != nil {
		return err
	}

	imp.Logger.Infof("Importing remittance file %s...", metadata.Name)

	fileID, err := imp.Saver.SaveRemittance(ctx, remittance, *metadata)
	if err != nil {
		return errors.Wrapf(err, "failed to persist remittance file %s", metadata)
	}

	metadata.FileID = fileID
	metadata.Imported = true
	return nil
}
