package acquire

import (
	"context"
	"fmt"

	"github.com/ethpandaops/llmsentinel/pkg/llm"
	"github.com/sirupsen/logrus"
)

type localModel struct {
	log    logrus.FieldLogger
	client llm.Client
}

// Prompt builds the instruction sent to the target model.
func Prompt(query, referenceContext string) string {
	return fmt.Sprintf("Using the following context, answer the query:\n\nQuery: %s\n\nContext: %s", query, referenceContext)
}

func (s *localModel) Name() Mode {
	return ModeLocalModel
}

func (s *localModel) Acquire(ctx context.Context, query, referenceContext string) (string, error) {
	s.log.Debug("Invoking target model")

	out, err := s.client.Complete(ctx, []llm.Message{llm.User(Prompt(query, referenceContext))})
	if err != nil {
		return "", fmt.Errorf("invoking target model: %w", err)
	}

	return out, nil
}
