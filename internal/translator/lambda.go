package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/lambda"

	"github.com/valpere/bhasha/internal/lang"
)

const DefaultLambdaPrefix = "bhasha-translator"

// lambdaInvoker is the subset of the Lambda client the engine uses.
type lambdaInvoker interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

type lambdaRequest struct {
	Chunks     [][]string `json:"chunks"`
	TargetLang string     `json:"target_lang"`
}

type lambdaResponse struct {
	Translations [][]string `json:"translations"`
	Error        string     `json:"error,omitempty"`
}

// LambdaEngine calls an opus-mt model deployed as an AWS Lambda function.
// One function exists per model, named <prefix>-<model base name>.
type LambdaEngine struct {
	client       lambdaInvoker
	functionName string
	target       lang.Code
}

// LambdaFunctionName maps a model identifier to its function name.
func LambdaFunctionName(prefix, model string) string {
	if prefix == "" {
		prefix = DefaultLambdaPrefix
	}
	return prefix + "-" + path.Base(model)
}

func NewLambdaEngine(ctx context.Context, region, prefix, model string, target lang.Code) (*LambdaEngine, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &LambdaEngine{
		client:       lambda.NewFromConfig(cfg),
		functionName: LambdaFunctionName(prefix, model),
		target:       target,
	}, nil
}

func (e *LambdaEngine) Name() string {
	return "lambda:" + e.functionName
}

func (e *LambdaEngine) Translate(ctx context.Context, req TranslateRequest) (*Result, error) {
	start := time.Now()

	payload, err := json.Marshal(lambdaRequest{
		Chunks:     [][]string{{req.Text}},
		TargetLang: string(e.target),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	out, err := e.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName: aws.String(e.functionName),
		Payload:      payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke %s: %w", e.functionName, err)
	}
	if out.FunctionError != nil {
		return nil, fmt.Errorf("lambda error: %s", *out.FunctionError)
	}

	var resp lambdaResponse
	if err := json.Unmarshal(out.Payload, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("translator error: %s", resp.Error)
	}
	if len(resp.Translations) == 0 || len(resp.Translations[0]) == 0 {
		return nil, fmt.Errorf("no translation returned")
	}

	return &Result{
		Text:    resp.Translations[0][0],
		Engine:  e.Name(),
		Latency: time.Since(start),
	}, nil
}
