package bixcli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/caresuite/bix-app/bix/adapters"
	"github.com/caresuite/bix-app/bix/constants"
	"github.com/caresuite/bix-app/bix/database"
	"github.com/caresuite/bix-app/bix/health"
	"github.com/caresuite/bix-app/bix/metrics"
	"github.com/caresuite/bix-app/bix/models"
	"github.com/caresuite/bix-app/bix/monitoring"
	"github.com/caresuite/bix-app/bix/remit"
	"github.com/caresuite/bix-app/bix/utils"
	"github.com/caresuite/bix-app/conf"
	"github.com/caresuite/bix-app/db"
	"github.com/caresuite/bix-app/log"
)

// App Name and usage.  Edit them here to prevent breaking tests
const Name = "bix"
const Usage = "Billing Integration Exchange CLI"

func GetApp() *cli.App {
	return setUpApp()
}

func setUpApp() *cli.App {
	app := cli.NewApp()
	app.Name = Name
	app.Usage = Usage
	app.Version = constants.Version
	var filePath, s3URI, inputPath, outputPath, format, service, migrationsSource string
	app.Commands = []cli.Command{
		{
			Name:     "import-remittance",
			Category: "Data import",
			Usage:    "Import all remittance advice files from a directory or S3 location",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:        "directory",
					Usage:       "Directory where remittance files are located",
					Destination: &filePath,
				},
				cli.StringFlag{
					Name:        "s3-uri",
					Usage:       "S3 URI (s3://bucket/prefix) where remittance files are located",
					Destination: &s3URI,
				},
			},
			Action: func(c *cli.Context) error {
				success, failure, skipped, err := importRemittance(filePath, s3URI)
				fmt.Fprintf(app.Writer, "Completed remittance import.  Successfully imported %v files.  Failed to import %v files.  Skipped %v files.  See logs for more details.", success, failure, skipped)
				return err
			},
		},
		{
			Name:     "export-remittance",
			Category: "Data export",
			Usage:    "Convert a remittance advice file to another format",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:        "input",
					Usage:       "Path of the remittance file to convert",
					Destination: &inputPath,
				},
				cli.StringFlag{
					Name:        "format",
					Usage:       "Target format (EDI_835, CSV, CUSTOM)",
					Destination: &format,
				},
				cli.StringFlag{
					Name:        "output",
					Usage:       "Path to write the converted file (stdout when omitted)",
					Destination: &outputPath,
				},
			},
			Action: func(c *cli.Context) error {
				out, err := exportRemittance(inputPath, format)
				if err != nil {
					return err
				}
				if outputPath == "" {
					fmt.Fprintf(app.Writer, "%s\n", out)
					return nil
				}
				return os.WriteFile(outputPath, out, 0644)
			},
		},
		{
			Name:     "sync-accounting",
			Category: "Integration",
			Usage:    "Post payments from a remittance file to the configured accounting system",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:        "input",
					Usage:       "Path of the remittance file whose payments should be posted",
					Destination: &inputPath,
				},
				cli.StringFlag{
					Name:        "service",
					Usage:       "Adapter configuration prefix (e.g. QUICKBOOKS)",
					Destination: &service,
				},
			},
			Action: func(c *cli.Context) error {
				posted, failed, err := syncAccounting(inputPath, service)
				fmt.Fprintf(app.Writer, "Completed accounting sync.  Posted %v payments.  Failed to post %v payments.\n", posted, failed)
				return err
			},
		},
		{
			Name:     "migrate-database",
			Category: "Database",
			Usage:    "Apply pending schema migrations to the bix database",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:        "migrations-source",
					Usage:       "Migration source URL (defaults to the checked-in db/migrations/bix directory)",
					Destination: &migrationsSource,
				},
			},
			Action: func(c *cli.Context) error {
				version, err := db.RunMigrations(conf.GetEnv("DATABASE_URL"), migrationsSource)
				if err != nil {
					return err
				}
				fmt.Fprintf(app.Writer, "Database schema is at version %d.\n", version)
				return nil
			},
		},
		{
			Name:     "health",
			Category: "Monitoring",
			Usage:    "Report database and adapter health",
			Action: func(c *cli.Context) error {
				report, err := healthReport()
				if err != nil {
					return err
				}
				fmt.Fprintf(app.Writer, "%s\n", report)
				return nil
			},
		},
	}
	return app
}

func importRemittance(filePath, s3URI string) (success, failure, skipped int, err error) {
	var processor remit.FileProcessor
	var path string

	switch {
	case s3URI != "":
		processor = &remit.S3FileProcessor{
			Logger:        log.Remit,
			Endpoint:      conf.GetEnv("BIX_S3_ENDPOINT"),
			AssumeRoleArn: conf.GetEnv("BIX_IMPORT_ROLE_ARN"),
		}
		path = s3URI
	case filePath != "":
		processor = &remit.LocalFileProcessor{Logger: log.Remit}
		path = filePath
	default:
		return 0, 0, 0, errors.New("either --directory or --s3-uri must be provided")
	}

	ctx := context.Background()
	pool := database.GetPgxPool(ctx)
	defer pool.Close()

	importer := remit.Importer{
		Logger:        log.Remit,
		FileProcessor: processor,
		Transformer:   remit.Transformer{Mapper: remit.HeuristicMapper{}},
		Saver:         &remit.PgxSaver{Logger: log.Remit, PgxPool: pool},
	}

	timer := monitoring.GetTimer()
	defer timer.Close()
	ctx = monitoring.NewContext(ctx, timer)
	ctx, closeParent := monitoring.NewParent(ctx, "import-remittance")
	defer closeParent()

	success, failure, skipped, err = importer.ImportAll(ctx, path)

	if ns := conf.GetEnv("CLOUDWATCH_NAMESPACE"); ns != "" {
		sampler, samplerErr := metrics.NewSampler(ns, "Count")
		if samplerErr != nil {
			log.Remit.Error(samplerErr)
		} else if putErr := sampler.PutImportSample("remittance", constants.ImportComplete, success); putErr != nil {
			log.Remit.Error(putErr)
		}
	}

	return success, failure, skipped, err
}

func exportRemittance(inputPath, format string) ([]byte, error) {
	if inputPath == "" {
		return nil, errors.New("input file (--input) must be provided")
	}
	if format == "" {
		return nil, errors.New("target format (--format) must be provided")
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, err
	}

	t := remit.Transformer{Mapper: remit.HeuristicMapper{}}
	r, err := t.Parse(data, remit.DetectFileType(data))
	if err != nil {
		return nil, err
	}

	target := models.RemittanceFileType(strings.ToUpper(format))
	return t.Generate(r, target, remit.GeneratorOptions{})
}

func syncAccounting(inputPath, service string) (posted, failed int, err error) {
	if inputPath == "" {
		return 0, 0, errors.New("input file (--input) must be provided")
	}
	if service == "" {
		service = "ACCOUNTING"
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return 0, 0, err
	}

	t := remit.Transformer{Mapper: remit.HeuristicMapper{}}
	r, err := t.Parse(data, remit.DetectFileType(data))
	if err != nil {
		return 0, 0, err
	}

	adapter, err := adapters.NewAccountingAdapter(adapterConfigFromEnv(service), log.Integration)
	if err != nil {
		return 0, 0, err
	}

	ctx := context.Background()
	if err := connectWithRetry(ctx, adapter); err != nil {
		return 0, 0, err
	}
	defer func() {
		if dErr := adapter.Disconnect(); dErr != nil {
			log.Integration.Error(dErr)
		}
	}()

	opts := models.RequestOptions{
		RetryCount:   utils.GetEnvInt("BIX_SYNC_RETRY_COUNT", 2),
		RetryDelayMS: utils.GetEnvInt("BIX_SYNC_RETRY_DELAY_MS", 500),
	}

	for _, d := range r.Details {
		resp, execErr := adapter.Execute(ctx, "postPayment", map[string]interface{}{
			"remittanceNumber": r.Info.RemittanceNumber,
			"claimNumber":      d.ClaimNumber,
			"paidAmount":       d.PaidAmount,
			"serviceDate":      d.ServiceDate,
		}, opts)
		if execErr != nil {
			return posted, failed, execErr
		}
		if !resp.Success {
			failed++
			log.Integration.WithField("claim", d.ClaimNumber).Error(resp.Error)
			continue
		}
		posted++
	}

	return posted, failed, nil
}

// connectWithRetry retries Connect with exponential backoff; transient
// startup failures of the remote system should not fail the whole run.
func connectWithRetry(ctx context.Context, adapter adapters.Adapter) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = time.Duration(utils.GetEnvInt("BIX_CONNECT_MAX_ELAPSED_SEC", 60)) * time.Second

	return backoff.Retry(func() error {
		return adapter.Connect(ctx)
	}, backoff.WithContext(b, ctx))
}

// adapterConfigFromEnv assembles an AdapterConfig from <prefix>_* env vars.
func adapterConfigFromEnv(prefix string) models.AdapterConfig {
	return models.AdapterConfig{
		Service:  strings.ToLower(prefix),
		Protocol: models.IntegrationProtocol(utils.FromEnv(prefix+"_PROTOCOL", string(models.ProtocolREST))),
		BaseURL:  conf.GetEnv(prefix + "_BASE_URL"),
		Auth: models.AuthConfig{
			Type:     models.AuthenticationType(utils.FromEnv(prefix+"_AUTH_TYPE", string(models.AuthNone))),
			Username: conf.GetEnv(prefix + "_USERNAME"),
			Password: conf.GetEnv(prefix + "_PASSWORD"),
			APIKey:   conf.GetEnv(prefix + "_API_KEY"),
			Token:    conf.GetEnv(prefix + "_TOKEN"),
		},
		TimeoutMS:        utils.GetEnvInt(prefix+"_TIMEOUT_MS", constants.DefaultRequestTimeoutMS),
		FailureThreshold: utils.GetEnvInt(prefix+"_FAILURE_THRESHOLD", 0),
		ResetTimeoutMS:   utils.GetEnvInt(prefix+"_RESET_TIMEOUT_MS", 0),
	}
}

func healthReport() (string, error) {
	ctx := context.Background()
	pool := database.GetPgxPool(ctx)
	defer pool.Close()

	checker := health.NewHealthChecker(pool)
	dbResult, dbOK := checker.IsDatabaseOK(ctx)

	report := map[string]interface{}{
		"database": dbResult,
		"healthy":  dbOK,
		"adapters": checker.AdapterStatuses(ctx),
	}

	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
