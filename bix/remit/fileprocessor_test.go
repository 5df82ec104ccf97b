package remit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caresuite/bix-app/bix/testUtils"
)

func TestGetRemitFileMetadata(t *testing.T) {
	restore := testUtils.SetAndRestoreEnvKey("REMIT_REF_DATE", "240315")
	defer restore()

	metadata, err := GetRemitFileMetadata("P.RMT.AETNA01.D240301.T1200000")
	require.NoError(t, err)

	assert.Equal(t, "production", metadata.Env)
	assert.Equal(t, "AETNA01", metadata.PayerID)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), metadata.Timestamp)
	assert.Equal(t, "P.RMT.AETNA01.D240301.T1200000", metadata.Name)
}

func TestGetRemitFileMetadataTestEnv(t *testing.T) {
	restore := testUtils.SetAndRestoreEnvKey("REMIT_REF_DATE", "240315")
	defer restore()

	metadata, err := GetRemitFileMetadata("T.RMT.BCBS99.D240310.T0930000")
	require.NoError(t, err)
	assert.Equal(t, "test", metadata.Env)
}

func TestGetRemitFileMetadataInvalidName(t *testing.T) {
	_, err := GetRemitFileMetadata("remit_final_v2.csv")
	assert.Error(t, err)
}

func TestGetRemitFileMetadataTooOld(t *testing.T) {
	restoreRef := testUtils.SetAndRestoreEnvKey("REMIT_REF_DATE", "240315")
	defer restoreRef()
	restoreAge := testUtils.SetAndRestoreEnvKey("REMIT_MAX_AGE", "45")
	defer restoreAge()

	_, err := GetRemitFileMetadata("P.RMT.AETNA01.D231001.T1200000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestGetRemitFileMetadataFutureDated(t *testing.T) {
	restore := testUtils.SetAndRestoreEnvKey("REMIT_REF_DATE", "240315")
	defer restore()

	_, err := GetRemitFileMetadata("P.RMT.AETNA01.D240401.T1200000")
	assert.Error(t, err)
}

func TestParseS3Uri(t *testing.T) {
	bucket, prefix, err := ParseS3Uri("s3://remit-drops/incoming/2024")
	require.NoError(t, err)
	assert.Equal(t, "remit-drops", bucket)
	assert.Equal(t, "incoming/2024", prefix)

	bucket, prefix, err = ParseS3Uri("s3://remit-drops")
	require.NoError(t, err)
	assert.Equal(t, "remit-drops", bucket)
	assert.Empty(t, prefix)

	_, _, err = ParseS3Uri("/local/path")
	assert.Error(t, err)
}
