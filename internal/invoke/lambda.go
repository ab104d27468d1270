package invoke

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/smithy-go"

	"github.com/aryankumar/sfs/internal/util"
)

// LambdaAPI is the subset of the Lambda client used by LambdaInvoker
type LambdaAPI interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
	GetFunction(ctx context.Context, params *lambda.GetFunctionInput, optFns ...func(*lambda.Options)) (*lambda.GetFunctionOutput, error)
}

// LambdaInvoker invokes AWS Lambda functions synchronously
type LambdaInvoker struct {
	client LambdaAPI
}

// NewLambdaInvoker wraps an existing client
func NewLambdaInvoker(client LambdaAPI) *LambdaInvoker {
	return &LambdaInvoker{client: client}
}

// NewLambdaInvokerFromConfig builds a client from the default AWS credential
// chain. An empty region defers to the environment.
func NewLambdaInvokerFromConfig(ctx context.Context, region string) (*LambdaInvoker, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewLambdaInvoker(lambda.NewFromConfig(cfg)), nil
}

// Invoke calls function with payload and returns its response payload.
// Throttling, service faults and network errors are transient; a function
// error reported by the runtime is final.
func (l *LambdaInvoker) Invoke(ctx context.Context, function string, payload []byte) ([]byte, error) {
	out, err := l.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(function),
		InvocationType: types.InvocationTypeRequestResponse,
		Payload:        payload,
	})
	if err != nil {
		return nil, classify(err)
	}
	if out.FunctionError != nil {
		return nil, &RemoteError{Message: fmt.Sprintf("%s: %s", aws.ToString(out.FunctionError), string(out.Payload))}
	}
	return out.Payload, nil
}

// Ping checks that function exists and is visible to the caller
func (l *LambdaInvoker) Ping(ctx context.Context, function string) error {
	_, err := l.client.GetFunction(ctx, &lambda.GetFunctionInput{FunctionName: aws.String(function)})
	if err != nil {
		return fmt.Errorf("function %q is not reachable: %w", function, err)
	}
	return nil
}

// classify wraps retryable invocation errors in *util.TransientError
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var throttled *types.TooManyRequestsException
	if errors.As(err, &throttled) {
		return util.NewTransientError(err, retryAfter(throttled.RetryAfterSeconds))
	}

	var (
		serviceErr  *types.ServiceException
		ec2Throttle *types.EC2ThrottledException
		notReady    *types.ResourceNotReadyException
	)
	if errors.As(err, &serviceErr) || errors.As(err, &ec2Throttle) || errors.As(err, &notReady) {
		return util.NewTransientError(err, 0)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorFault() == smithy.FaultServer {
		return util.NewTransientError(err, 0)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return util.NewTransientError(err, 0)
	}
	return err
}

func retryAfter(seconds *string) time.Duration {
	if seconds == nil {
		return 0
	}
	n, err := strconv.Atoi(*seconds)
	if err != nil || n < 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
