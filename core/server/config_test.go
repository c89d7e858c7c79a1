package server_test

import (
	"testing"

	"trust-ledger/core/server"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     server.Config
		wantErr bool
	}{
		{"Valid", server.Config{Port: "8080", ApiKey: "k"}, false},
		{"Missing port", server.Config{ApiKey: "k"}, true},
		{"Missing key", server.Config{Port: "8080"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_Helpers(t *testing.T) {
	c := server.Config{Port: "9000"}
	assert.Equal(t, ":9000", c.Address())
	assert.Equal(t, 64*1024, c.BodyLimit())
	c.BodyLimitKB = 2
	assert.Equal(t, 2048, c.BodyLimit())
}
