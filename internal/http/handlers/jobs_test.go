package handlers

import (
	"errors"
	"fmt"
	"testing"

	"github.com/danielgtaylor/huma/v2"

	"github.com/lsendel/LLMRank-app-sub001/internal/service"
)

func TestMapServiceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"job not found", service.ErrJobNotFound, 404},
		{"wrapped job not found", fmt.Errorf("context: %w", service.ErrJobNotFound), 404},
		{"project not found", service.ErrProjectNotFound, 404},
		{"invalid batch", fmt.Errorf("%w: duplicate URL", service.ErrInvalidBatch), 422},
		{"terminal job", fmt.Errorf("%w: cancelled", service.ErrJobNotActive), 409},
		{"unknown", errors.New("boom"), 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapServiceError(tt.err)
			var statusErr huma.StatusError
			if !errors.As(err, &statusErr) {
				t.Fatalf("mapped error %T is not a StatusError", err)
			}
			if statusErr.GetStatus() != tt.want {
				t.Errorf("status = %d, want %d", statusErr.GetStatus(), tt.want)
			}
		})
	}
}
