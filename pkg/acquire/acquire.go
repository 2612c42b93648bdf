package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethpandaops/llmsentinel/pkg/llm"
	"github.com/sirupsen/logrus"
)

// Mode selects how the output under evaluation is obtained.
type Mode string

const (
	ModeLocalModel     Mode = "local-model"
	ModeManual         Mode = "manual"
	ModeRemoteEndpoint Mode = "remote-endpoint"
)

// DefaultRemoteTimeout bounds a remote-endpoint call when none is configured.
const DefaultRemoteTimeout = 30 * time.Second

var (
	// ErrMissingURL is returned when remote-endpoint mode has no URL.
	ErrMissingURL = errors.New("an api url is required for remote-endpoint mode")

	// ErrMissingClient is returned when local-model mode has no target client.
	ErrMissingClient = errors.New("a target model client is required for local-model mode")
)

var modeAliases = map[string]Mode{
	string(ModeLocalModel):     ModeLocalModel,
	string(ModeManual):         ModeManual,
	string(ModeRemoteEndpoint): ModeRemoteEndpoint,
	"ollama":                   ModeLocalModel,
	"api":                      ModeRemoteEndpoint,
}

// ParseMode parses a mode name. The historical names "ollama" and "api" are
// accepted as aliases.
func ParseMode(s string) (Mode, error) {
	if m, ok := modeAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return m, nil
	}

	return "", fmt.Errorf("invalid mode %q: use %s, %s or %s", s, ModeLocalModel, ModeManual, ModeRemoteEndpoint)
}

// Modes lists the canonical mode names.
func Modes() []Mode {
	return []Mode{ModeLocalModel, ModeManual, ModeRemoteEndpoint}
}

// Strategy produces the text to be judged for a query/context pair.
type Strategy interface {
	Name() Mode
	Acquire(ctx context.Context, query, referenceContext string) (string, error)
}

// Deps holds what the strategies may need. Only the fields used by the
// selected mode have to be set.
type Deps struct {
	// Target answers local-model prompts.
	Target llm.Client

	// APIURL and HTTPClient serve remote-endpoint mode.
	APIURL        string
	HTTPClient    *http.Client
	RemoteTimeout time.Duration

	// In and Out are the console used by manual mode.
	In  io.Reader
	Out io.Writer
}

// New builds the strategy for the given mode.
func New(log logrus.FieldLogger, mode Mode, deps Deps) (Strategy, error) {
	log = log.WithFields(logrus.Fields{
		"component": "acquire",
		"mode":      mode,
	})

	switch mode {
	case ModeLocalModel:
		if deps.Target == nil {
			return nil, ErrMissingClient
		}

		return &localModel{log: log, client: deps.Target}, nil
	case ModeRemoteEndpoint:
		if strings.TrimSpace(deps.APIURL) == "" {
			return nil, ErrMissingURL
		}

		return newRemoteEndpoint(log, deps), nil
	case ModeManual:
		return newManual(log, deps), nil
	default:
		return nil, fmt.Errorf("invalid mode %q", mode)
	}
}
