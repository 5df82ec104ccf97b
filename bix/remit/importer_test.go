package remit

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/caresuite/bix-app/bix/testUtils"
)

type ImporterTestSuite struct {
	suite.Suite
	dir        string
	saver      *FakeSaver
	importer   Importer
	restoreRef func()
}

func (s *ImporterTestSuite) SetupTest() {
	s.dir = s.T().TempDir()
	s.saver = &FakeSaver{}
	s.importer = Importer{
		Logger:        logrus.New(),
		FileProcessor: &LocalFileProcessor{Logger: logrus.New()},
		Transformer:   Transformer{},
		Saver:         s.saver,
	}
	s.restoreRef = testUtils.SetAndRestoreEnvKey("REMIT_REF_DATE", "240315")
}

func (s *ImporterTestSuite) TearDownTest() {
	s.restoreRef()
}

// writeDropFile places a remittance file in the drop dir with a modtime old
// enough that the processor does not treat it as an in-flight transfer.
func (s *ImporterTestSuite) writeDropFile(name string, contents []byte) string {
	p := filepath.Join(s.dir, name)
	s.NoError(os.WriteFile(p, contents, 0600))
	old := time.Now().Add(-10 * time.Minute)
	s.NoError(os.Chtimes(p, old, old))
	return p
}

func (s *ImporterTestSuite) csvContents(remitNumber string) []byte {
	return []byte("Remit Number,Remit Date,Claim Number,Service Date,Billed Amount,Paid Amount\n" +
		remitNumber + ",2024-03-01,CLM-1,2024-02-15,100.00,95.00\n")
}

func (s *ImporterTestSuite) TestImportAll() {
	s.writeDropFile("P.RMT.AETNA01.D240301.T1200000", s.csvContents("RA-1"))
	s.writeDropFile("P.RMT.BCBS99.D240302.T1200000", []byte(sample835))

	success, failure, skipped, err := s.importer.ImportAll(context.Background(), s.dir)
	s.NoError(err)
	s.Equal(2, success)
	s.Equal(0, failure)
	s.Equal(0, skipped)

	s.Len(s.saver.Remittances, 2)

	// Imported files are deleted by cleanup.
	entries, readErr := os.ReadDir(s.dir)
	s.NoError(readErr)
	s.Empty(entries)
}

func (s *ImporterTestSuite) TestImportAllSkipsUnknownFiles() {
	s.writeDropFile("P.RMT.AETNA01.D240301.T1200000", s.csvContents("RA-1"))
	s.writeDropFile("notes.txt", []byte("not a remittance"))

	success, failure, skipped, err := s.importer.ImportAll(context.Background(), s.dir)
	s.NoError(err)
	s.Equal(1, success)
	s.Equal(0, failure)
	s.Equal(1, skipped)

	// Skipped files stay where they were.
	s.FileExists(filepath.Join(s.dir, "notes.txt"))
}

func (s *ImporterTestSuite) TestImportAllFailedFileMovedAside() {
	// Parseable name, invalid contents: the remittance has no details.
	s.writeDropFile("P.RMT.AETNA01.D240301.T1200000",
		[]byte("Claim Number,Service Date,Billed Amount,Paid Amount\n"))

	success, failure, _, err := s.importer.ImportAll(context.Background(), s.dir)
	s.NoError(err)
	s.Equal(0, success)
	s.Equal(1, failure)

	s.FileExists(filepath.Join(s.dir, "failed", "P.RMT.AETNA01.D240301.T1200000"))
	s.Empty(s.saver.Remittances)
}

func (s *ImporterTestSuite) TestImportAllEmptyDirectory() {
	success, failure, skipped, err := s.importer.ImportAll(context.Background(), s.dir)
	s.NoError(err)
	s.Zero(success)
	s.Zero(failure)
	s.Zero(skipped)
}

func (s *ImporterTestSuite) TestImportFileValidationFailure() {
	// Detail rows missing claim numbers fail validation before the saver
	// is ever invoked.
	p := s.writeDropFile("P.RMT.AETNA01.D240301.T1200000",
		[]byte("Claim Number,Service Date,Billed Amount,Paid Amount\n,2024-02-15,100.00,95.00\n"))

	metadata, err := GetRemitFileMetadata(filepath.Base(p))
	s.NoError(err)
	metadata.FilePath = p

	err = s.importer.ImportFile(context.Background(), &metadata)
	s.Error(err)
	s.False(metadata.Imported)
	s.Empty(s.saver.Remittances)
}

func (s *ImporterTestSuite) TestImportFileMarksImported() {
	p := s.writeDropFile("P.RMT.AETNA01.D240301.T1200000", s.csvContents("RA-9"))

	metadata, err := GetRemitFileMetadata(filepath.Base(p))
	s.NoError(err)
	metadata.FilePath = p

	s.NoError(s.importer.ImportFile(context.Background(), &metadata))
	s.True(metadata.Imported)
	s.Equal(uint(1), metadata.FileID)

	s.Len(s.saver.Remittances, 1)
	saved := s.saver.Remittances[0]
	s.Equal("RA-9", saved.Info.RemittanceNumber)
	s.Equal(int64(9500), saved.Info.TotalAmount)
}

func TestImporterTestSuite(t *testing.T) {
	suite.Run(t, new(ImporterTestSuite))
}

func TestImportAllFromFixtureDirectory(t *testing.T) {
	restore := testUtils.SetAndRestoreEnvKey("REMIT_REF_DATE", "240315")
	defer restore()

	// Import from a throwaway copy so the canned drop survives the run.
	dir, cleanup := testUtils.CopyToTemporaryDirectory(t, filepath.Join("testdata", "dropdir"))
	defer cleanup()

	// Freshly copied files look like in-flight transfers; age them out.
	old := time.Now().Add(-10 * time.Minute)
	entries, err := os.ReadDir(dir)
	assert.NoError(t, err)
	for _, e := range entries {
		assert.NoError(t, os.Chtimes(filepath.Join(dir, e.Name()), old, old))
	}

	saver := &FakeSaver{}
	imp := Importer{
		Logger:        logrus.New(),
		FileProcessor: &LocalFileProcessor{Logger: logrus.New()},
		Transformer:   Transformer{},
		Saver:         saver,
	}

	success, failure, skipped, err := imp.ImportAll(context.Background(), dir)
	assert.NoError(t, err)
	assert.Equal(t, 2, success)
	assert.Equal(t, 0, failure)
	assert.Equal(t, 1, skipped)

	var numbers []string
	for _, r := range saver.Remittances {
		numbers = append(numbers, r.Info.RemittanceNumber)
	}
	assert.ElementsMatch(t, []string{"RA-FIX-1", "RA-FIX-2"}, numbers)

	// Cleanup deletes the imported drops; the stray file stays put.
	entries, err = os.ReadDir(dir)
	assert.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, "notes.txt", entries[0].Name())

	// The fixture itself is untouched.
	assert.FileExists(t, filepath.Join("testdata", "dropdir", "P.RMT.AETNA01.D240301.T1200000"))
}

func TestImportFileDetectsFormat(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "P.RMT.AETNA01.D240301.T1200000")
	assert.NoError(t, os.WriteFile(p, []byte(sample835), 0600))

	imp := Importer{
		Logger:        logrus.New(),
		FileProcessor: &LocalFileProcessor{Logger: logrus.New()},
		Transformer:   Transformer{},
		Saver:         &FakeSaver{},
	}

	metadata := RemitFileMetadata{Name: filepath.Base(p), FilePath: p}
	assert.NoError(t, imp.ImportFile(context.Background(), &metadata))
}
