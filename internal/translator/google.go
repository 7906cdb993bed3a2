package translator

import (
	"context"
	"fmt"
	"time"

	translate "cloud.google.com/go/translate"
	"golang.org/x/text/language"
	"google.golang.org/api/option"

	"github.com/valpere/bhasha/internal/lang"
)

// GoogleEngine uses Cloud Translation for one direction. The client is
// created once per handle and reused across requests.
type GoogleEngine struct {
	client *translate.Client
	source language.Tag
	target language.Tag
}

func NewGoogleEngine(ctx context.Context, credentials, projectID string, dir lang.Direction) (*GoogleEngine, error) {
	opts := []option.ClientOption{}
	if credentials != "" {
		opts = append(opts, option.WithCredentialsFile(credentials))
	}
	if projectID != "" {
		opts = append(opts, option.WithQuotaProject(projectID))
	}

	client, err := translate.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &GoogleEngine{
		client: client,
		source: dir.Source.Tag(),
		target: dir.Target.Tag(),
	}, nil
}

func (e *GoogleEngine) Name() string {
	return "google"
}

func (e *GoogleEngine) Translate(ctx context.Context, req TranslateRequest) (*Result, error) {
	start := time.Now()

	translations, err := e.client.Translate(ctx, []string{req.Text}, e.target, &translate.Options{
		Source: e.source,
		Format: translate.Text,
	})
	if err != nil {
		return nil, fmt.Errorf("translation failed: %w", err)
	}
	if len(translations) == 0 {
		return nil, fmt.Errorf("no translation returned")
	}

	return &Result{
		Text:    translations[0].Text,
		Engine:  e.Name(),
		Latency: time.Since(start),
	}, nil
}

func (e *GoogleEngine) Close() error {
	return e.client.Close()
}
