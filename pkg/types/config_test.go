package types

import (
	"errors"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{
			name:    "zero config is valid after defaults",
			config:  Config{},
			wantErr: nil,
		},
		{
			name:    "unknown local driver returns ErrLocalDriverUnknown",
			config:  Config{Local: LocalConfig{Driver: "leveldb"}},
			wantErr: ErrLocalDriverUnknown,
		},
		{
			name:    "unknown remote driver returns ErrRemoteDriverUnknown",
			config:  Config{Remote: RemoteConfig{Driver: "mongo"}},
			wantErr: ErrRemoteDriverUnknown,
		},
		{
			name:    "negative timeout returns ErrTimeoutInvalid",
			config:  Config{Remote: RemoteConfig{Driver: RemotePostgres, Timeout: -time.Second}},
			wantErr: ErrTimeoutInvalid,
		},
		{
			name:    "unknown log level returns ErrLogLevelUnknown",
			config:  Config{LogLevel: "verbose"},
			wantErr: ErrLogLevelUnknown,
		},
		{
			name: "valid sqlite and dynamo config",
			config: Config{
				DataDir: "/tmp/data",
				Local:   LocalConfig{Driver: LocalSQLite},
				Remote:  RemoteConfig{Driver: RemoteDynamo, Table: "records", Timeout: 2 * time.Second},
			},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected nil error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error %v, got nil", tt.wantErr)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfigWithDefaults(t *testing.T) {
	c := Config{}.WithDefaults()
	if c.Local.Driver != LocalJSONL {
		t.Errorf("expected local driver %q, got %q", LocalJSONL, c.Local.Driver)
	}
	if c.Remote.Driver != RemoteMemory {
		t.Errorf("expected remote driver %q, got %q", RemoteMemory, c.Remote.Driver)
	}
	if c.Remote.Timeout != DefaultRemoteTimeout {
		t.Errorf("expected timeout %v, got %v", DefaultRemoteTimeout, c.Remote.Timeout)
	}
}
