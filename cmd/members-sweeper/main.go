package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/jacentio/members/account"
	"github.com/jacentio/members/config"
	"github.com/jacentio/members/records"
	"github.com/jacentio/members/stream"
)

func main() {
	props, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: props.Level()}))

	client, err := props.DynamoClient(context.Background())
	if err != nil {
		logger.Error("Failed to initialize DynamoDB client", "error", err)
		os.Exit(1)
	}

	// Purging never touches profile images, so no asset store is needed.
	svc := account.New(records.NewDynamoStore(client, props.StoreConfig()), nil,
		account.WithConfig(props.AccountConfig()),
		account.WithLogger(logger),
	)

	lambda.Start(stream.NewHandler(svc, logger).HandleUserRemoved)
}
