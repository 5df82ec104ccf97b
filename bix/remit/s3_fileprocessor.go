package remit

import (
	"bytes"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials/stscreds"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/sirupsen/logrus"
)

// S3FileProcessor reads remittance drops from an S3 bucket.
type S3FileProcessor struct {
	Logger logrus.FieldLogger
	// Optional S3 endpoint to use for connection.
	Endpoint string
	// Optional role to assume when connecting to S3.
	AssumeRoleArn string
}

func (processor *S3FileProcessor) LoadRemitFiles(path string) ([]*RemitFileMetadata, int, error) {
	var (
		files   []*RemitFileMetadata
		skipped int
	)

	bucket, prefix, err := ParseS3Uri(path)
	if err != nil {
		processor.Logger.Errorf("Failed to parse S3 path: %s", err)
		return nil, skipped, err
	}

	sess, err := processor.createSession()
	if err != nil {
		processor.Logger.Errorf("Failed to create S3 session: %s", err)
		return nil, skipped, err
	}

	svc := s3.New(sess)

	processor.Logger.Infof("Listing objects in bucket %s, prefix %s", bucket, prefix)
	resp, err := svc.ListObjects(&s3.ListObjectsInput{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		processor.Logger.Errorf("Failed to list objects in S3 bucket %s, prefix %s: %s", bucket, prefix, err)
		return nil, skipped, err
	}

	for _, obj := range resp.Contents {
		metadata, err := GetRemitFileMetadata(baseName(*obj.Key))
		if err != nil {
			// Skip files with a bad name. An unknown file in this
			// bucket isn't a blocker.
			skipped++
			processor.Logger.Warningf("Unknown file found: s3://%s/%s. Skipping.", bucket, *obj.Key)
			continue
		}

		metadata.FilePath = fmt.Sprintf("s3://%s/%s", bucket, *obj.Key)
		metadata.DeliveryDate = *obj.LastModified
		files = append(files, &metadata)
	}

	return files, skipped, nil
}

func (processor *S3FileProcessor) OpenFile(metadata *RemitFileMetadata) (*bytes.Reader, func(), error) {
	processor.Logger.Infof("Opening remittance file %s", metadata.FilePath)
	bucket, key, err := ParseS3Uri(metadata.FilePath)
	if err != nil {
		return nil, nil, err
	}

	sess, err := processor.createSession()
	if err != nil {
		return nil, nil, err
	}

	downloader := s3manager.NewDownloader(sess)
	buff := &aws.WriteAtBuffer{}
	numBytes, err := downloader.Download(buff, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		processor.Logger.Errorf("Failed to download bucket %s, key %s", bucket, key)
		return nil, nil, err
	}

	processor.Logger.Infof("file downloaded: size=%d", numBytes)
	return bytes.NewReader(buff.Bytes()), func() {}, nil
}

func (processor *S3FileProcessor) CleanupRemitFiles(files []*RemitFileMetadata) error {
	sess, err := processor.createSession()
	if err != nil {
		return err
	}

	svc := s3.New(sess)
	errCount := 0
	for _, file := range files {
		if !file.Imported {
			// Leave the object alone; the bucket retention policy
			// cleans up files after the review window.
			processor.Logger.Warningf("File %s was not imported successfully. Skipping cleanup.", file)
			continue
		}

		bucket, key, err := ParseS3Uri(file.FilePath)
		if err != nil {
			return err
		}

		processor.Logger.Infof("Cleaning up file %s", file)
		if _, err := svc.DeleteObject(&s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		}); err != nil {
			errCount++
			processor.Logger.Errorf("File %s failed to clean up properly: %v", file, err)
		}
	}

	if errCount > 0 {
		return fmt.Errorf("%d files could not be cleaned up", errCount)
	}
	return nil
}

func (processor *S3FileProcessor) createSession() (*session.Session, error) {
	config := aws.NewConfig()
	if processor.Endpoint != "" {
		config = config.WithEndpoint(processor.Endpoint).WithS3ForcePathStyle(true)
	}

	sess, err := session.NewSession(config)
	if err != nil {
		return nil, err
	}

	if processor.AssumeRoleArn != "" {
		creds := stscreds.NewCredentials(sess, processor.AssumeRoleArn)
		sess, err = session.NewSession(config.WithCredentials(creds))
		if err != nil {
			return nil, err
		}
	}

	return sess, nil
}

func baseName(key string) string {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '/' {
			return key[i+1:]
		}
	}
	return key
}
