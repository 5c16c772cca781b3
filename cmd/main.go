package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"shipfee-agent/internal/app"
	"shipfee-agent/internal/config"
	"shipfee-agent/internal/integrations/paramstore"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	params := paramstore.Chain{app.EnvParams(cfg.ParamPrefix), ssmClient}

	var dynamoClient *awsdynamodb.Client
	if cfg.Backend() == config.BackendDynamoDB {
		dynamoClient = awsdynamodb.NewFromConfig(awsCfg)
	}

	// ---- Handler ----
	h, cleanup, err := app.Build(ctx, cfg, app.Deps{
		Params:   params,
		DynamoDB: dynamoClient,
		Logger:   logger,
	})
	if err != nil {
		slog.Error("failed to build ship fee service", "err", err)
		os.Exit(1)
	}
	defer cleanup()

	lambda.Start(h.Handle)
}
