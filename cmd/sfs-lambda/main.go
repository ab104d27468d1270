// Command sfs-lambda is the AWS Lambda function behind the remote backend.
// It decodes one work unit per invocation and returns its result.
package main

import (
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/aryankumar/sfs/internal/forecast"
	"github.com/aryankumar/sfs/internal/invoke"
)

func main() {
	lambda.Start(invoke.Handler(forecast.Compute))
}
