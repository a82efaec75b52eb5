package app

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Command
	}{
		{"引数なしはserve", nil, CommandServe},
		{"serve", []string{"serve"}, CommandServe},
		{"worker", []string{"worker"}, CommandWorker},
		{"migrate", []string{"migrate"}, CommandMigrate},
		{"healthcheck", []string{"healthcheck"}, CommandHealthcheck},
		{"余分な引数は無視", []string{"worker", "--flag", "value"}, CommandWorker},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(tt.args)
			if err != nil {
				t.Fatalf("ParseCommand(%v) returned error: %v", tt.args, err)
			}
			if got != tt.want {
				t.Errorf("ParseCommand(%v) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

func TestParseCommand_UnknownIsRejected(t *testing.T) {
	_, err := ParseCommand([]string{"sevre"})
	if !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("error = %v, want ErrUnknownCommand", err)
	}
	if !strings.Contains(err.Error(), "serve|worker|migrate|healthcheck") {
		t.Errorf("使い方が含まれていない: %v", err)
	}
}

func TestRun_UnknownCommandDoesNotStartServer(t *testing.T) {
	var buf bytes.Buffer
	err := Run(&buf, []string{"sevre"})
	if !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("Run error = %v, want ErrUnknownCommand", err)
	}
	if buf.Len() != 0 {
		t.Errorf("未知のコマンドで初期化が行われた: %s", buf.String())
	}
}
