package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		want    zapcore.Level
		wantErr bool
	}{
		{name: "defaults", want: zapcore.InfoLevel},
		{name: "json debug", level: "debug", format: "json", want: zapcore.DebugLevel},
		{name: "console warn", level: "warn", format: "console", want: zapcore.WarnLevel},
		{name: "upper case format", level: "error", format: "CONSOLE", want: zapcore.ErrorLevel},
		{name: "bad level", level: "loud", wantErr: true},
		{name: "bad format", format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.level, tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got := l.Level(); got != tt.want {
				t.Errorf("New() level = %v, want %v", got, tt.want)
			}
		})
	}
}
