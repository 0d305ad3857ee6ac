package mongostore

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{URI: "mongodb://localhost", Database: "pathdag"}
	cfg.withDefaults()

	if cfg.Collection != "links" {
		t.Errorf("Collection = %q, want links", cfg.Collection)
	}
	if cfg.Counters != "counters" {
		t.Errorf("Counters = %q, want counters", cfg.Counters)
	}
	if cfg.ConnectTimeout != 10*time.Second {
		t.Errorf("ConnectTimeout = %v, want 10s", cfg.ConnectTimeout)
	}
}

func TestOpenValidation(t *testing.T) {
	ctx := context.Background()
	if _, err := Open(ctx, Config{Database: "pathdag"}); err == nil {
		t.Error("Open without URI succeeded, want error")
	}
	if _, err := Open(ctx, Config{URI: "mongodb://localhost"}); err == nil {
		t.Error("Open without database succeeded, want error")
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "TransientCommandError",
			err:  mongo.CommandError{Labels: []string{"TransientTransactionError"}},
			want: true,
		},
		{
			name: "UnknownCommitResult",
			err:  mongo.CommandError{Labels: []string{"UnknownTransactionCommitResult"}},
			want: true,
		},
		{
			name: "PlainCommandError",
			err:  mongo.CommandError{Code: 11000},
			want: false,
		},
		{
			name: "WrappedTransient",
			err:  errors.Join(errors.New("outer"), mongo.CommandError{Labels: []string{"TransientTransactionError"}}),
			want: true,
		},
		{
			name: "OrdinaryError",
			err:  errors.New("boom"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTransient(tt.err); got != tt.want {
				t.Errorf("isTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
