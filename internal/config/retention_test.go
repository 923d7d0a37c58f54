package config

import (
	"strings"
	"testing"
)

var retentionEnv = []string{
	"ITER8_BACKUP_DIR",
	"ITER8_BACKUP_CEILING",
	"ITER8_BACKUP_EVICT_PERCENT",
}

func TestBackupRetentionConfigApplyEnv(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(t *testing.T, cfg BackupRetentionConfig)
	}{
		{
			name:    "no environment variables uses defaults",
			envVars: map[string]string{},
			check: func(t *testing.T, cfg BackupRetentionConfig) {
				if cfg != DefaultBackupRetentionConfig() {
					t.Errorf("got %v, want defaults %v", cfg, DefaultBackupRetentionConfig())
				}
			},
		},
		{
			name: "valid custom configuration",
			envVars: map[string]string{
				"ITER8_BACKUP_DIR":           ".backups",
				"ITER8_BACKUP_CEILING":       "500",
				"ITER8_BACKUP_EVICT_PERCENT": "50",
			},
			check: func(t *testing.T, cfg BackupRetentionConfig) {
				if cfg.Dir != ".backups" {
					t.Errorf("Dir = %v, want .backups", cfg.Dir)
				}
				if cfg.Ceiling != 500 {
					t.Errorf("Ceiling = %v, want 500", cfg.Ceiling)
				}
				if cfg.EvictPercent != 50 {
					t.Errorf("EvictPercent = %v, want 50", cfg.EvictPercent)
				}
			},
		},
		{
			name:    "unlimited ceiling (zero value)",
			envVars: map[string]string{"ITER8_BACKUP_CEILING": "0"},
			check: func(t *testing.T, cfg BackupRetentionConfig) {
				if cfg.Ceiling != 0 {
					t.Errorf("Ceiling = %v, want 0 (unlimited)", cfg.Ceiling)
				}
				if n := cfg.Policy().EvictionCount(100000); n != 0 {
					t.Errorf("EvictionCount = %d, want 0 when unlimited", n)
				}
			},
		},
		{
			name:    "invalid int value",
			envVars: map[string]string{"ITER8_BACKUP_CEILING": "lots"},
			wantErr: true,
		},
		{
			name:    "ceiling too low (not zero)",
			envVars: map[string]string{"ITER8_BACKUP_CEILING": "5"},
			wantErr: true,
		},
		{
			name:    "ceiling too high",
			envVars: map[string]string{"ITER8_BACKUP_CEILING": "20000"},
			wantErr: true,
		},
		{
			name:    "evict percent out of range",
			envVars: map[string]string{"ITER8_BACKUP_EVICT_PERCENT": "0"},
			wantErr: true,
		},
		{
			name:    "backup dir at project root",
			envVars: map[string]string{"ITER8_BACKUP_DIR": "."},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range retentionEnv {
				t.Setenv(key, "")
			}
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg := DefaultBackupRetentionConfig()
			err := cfg.applyEnv()
			if err == nil {
				err = cfg.Validate()
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("applyEnv() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestBackupRetentionConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  BackupRetentionConfig
		wantErr bool
		errMsg  string
	}{
		{
			name:   "default config is valid",
			config: DefaultBackupRetentionConfig(),
		},
		{
			name:   "minimum ceiling",
			config: BackupRetentionConfig{Dir: ".b", Ceiling: 10, EvictPercent: 1},
		},
		{
			name:   "evict everything",
			config: BackupRetentionConfig{Dir: ".b", Ceiling: 10, EvictPercent: 100},
		},
		{
			name:    "empty dir",
			config:  BackupRetentionConfig{Dir: "  ", Ceiling: 100, EvictPercent: 20},
			wantErr: true,
			errMsg:  "backup dir cannot be empty",
		},
		{
			name:    "dir is project root",
			config:  BackupRetentionConfig{Dir: "./", Ceiling: 100, EvictPercent: 20},
			wantErr: true,
			errMsg:  "cannot be the project root",
		},
		{
			name:    "dir collapses to root",
			config:  BackupRetentionConfig{Dir: "src/..", Ceiling: 100, EvictPercent: 20},
			wantErr: true,
			errMsg:  "cannot be the project root",
		},
		{
			name:    "dir escapes root",
			config:  BackupRetentionConfig{Dir: "../x", Ceiling: 100, EvictPercent: 20},
			wantErr: true,
			errMsg:  "cannot contain '..'",
		},
		{
			name:   "nested dir",
			config: BackupRetentionConfig{Dir: "var/iter8-backups", Ceiling: 100, EvictPercent: 20},
		},
		{
			name:    "negative ceiling",
			config:  BackupRetentionConfig{Dir: ".b", Ceiling: -1, EvictPercent: 20},
			wantErr: true,
			errMsg:  "ceiling cannot be negative",
		},
		{
			name:    "evict percent too high",
			config:  BackupRetentionConfig{Dir: ".b", Ceiling: 100, EvictPercent: 101},
			wantErr: true,
			errMsg:  "evict_percent must be between 1 and 100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Validate() error = %v, want error containing %q", err, tt.errMsg)
			}
		})
	}
}

func TestBackupRetentionConfigString(t *testing.T) {
	got := DefaultBackupRetentionConfig().String()
	want := "BackupRetentionConfig{Dir: .iter8_backups, Ceiling: 100, EvictPercent: 20}"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestBackupRetentionConfigPolicy(t *testing.T) {
	p := DefaultBackupRetentionConfig().Policy()
	if err := p.Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}
	if n := p.EvictionCount(100); n != 20 {
		t.Errorf("EvictionCount(100) = %d, want 20", n)
	}
}
