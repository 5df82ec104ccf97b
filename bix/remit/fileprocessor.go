package remit

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/caresuite/bix-app/bix/utils"
	"github.com/caresuite/bix-app/conf"
)

// FileProcessors are interfaces so the importer can run against a local
// drop directory in development and an S3 bucket in deployed environments.
type FileProcessor interface {
	// LoadRemitFiles discovers remittance files under path and returns
	// their metadata, plus a count of unrecognized files skipped.
	LoadRemitFiles(path string) (files []*RemitFileMetadata, skipped int, err error)
	// OpenFile fetches the file contents. The returned func releases any
	// resources held for the read.
	OpenFile(metadata *RemitFileMetadata) (*bytes.Reader, func(), error)
	// CleanupRemitFiles removes or archives files that imported
	// successfully; failed files are left for the retention policy.
	CleanupRemitFiles(files []*RemitFileMetadata) error
}

type RemitFileMetadata struct {
	Name         string
	Env          string
	PayerID      string
	Timestamp    time.Time
	DeliveryDate time.Time
	FilePath     string
	FileID       uint
	Imported     bool
}

func (m RemitFileMetadata) String() string {
	if m.FilePath != "" {
		return m.FilePath
	}
	return m.Name
}

// Remittance drop filename convention: (P|T).RMT.<PAYER_ID>.Dyymmdd.Thhmmss
// P = production, T = test; payer ID is the payer's trading partner code.
var remitFileRegexp = regexp.MustCompile(`(P|T)\.RMT\.([A-Z0-9]+)\.(D\d{6}\.T\d{6})\d*`)

// GetRemitFileMetadata converts a remittance drop filename into a metadata
// entry, rejecting files outside the configured age window.
func GetRemitFileMetadata(fileName string) (RemitFileMetadata, error) {
	var metadata RemitFileMetadata

	parts := remitFileRegexp.FindStringSubmatch(fileName)
	if len(parts) != 4 {
		return metadata, fmt.Errorf("invalid filename ('%s') for remittance file, parts: %v", fileName, parts)
	}

	t, err := time.Parse("D060102.T150405", parts[3])
	if err != nil || t.IsZero() {
		return metadata, errors.Wrapf(err, "failed to parse date '%s' from file: %s", parts[3], fileName)
	}

	maxFileDays := utils.GetEnvInt("REMIT_MAX_AGE", 45)
	refDateString := conf.GetEnv("REMIT_REF_DATE")
	refDate, err := time.Parse("060102", refDateString)
	if err != nil {
		refDate = time.Now()
	}

	// Files must not be too old
	filesNotBefore := refDate.Add(-1 * time.Duration(int64(maxFileDays*24)*int64(time.Hour)))
	filesNotAfter := refDate
	if t.Before(filesNotBefore) || t.After(filesNotAfter) {
		return metadata, fmt.Errorf("date '%s' from file %s out of range; comparison date %s",
			parts[3], fileName, refDate.Format("060102"))
	}

	switch parts[1] {
	case "T":
		metadata.Env = "test"
	case "P":
		metadata.Env = "production"
	}

	metadata.Name = fileName
	metadata.PayerID = parts[2]
	metadata.Timestamp = t

	return metadata, nil
}

// ParseS3Uri splits s3://bucket/prefix into its parts.
func ParseS3Uri(path string) (bucket, prefix string, err error) {
	trimmed := strings.TrimPrefix(path, "s3://")
	if trimmed == path {
		return "", "", fmt.Errorf("invalid S3 URI %s", path)
	}
	parts := strings.SplitN(trimmed, "/", 2)
	bucket = parts[0]
	if len(parts) > 1 {
		prefix = parts[1]
	}
	return bucket, prefix, nil
}
