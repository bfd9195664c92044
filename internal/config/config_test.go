package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfigFile(t, `
rpc_list:
  - https://api.mainnet-beta.solana.com
data_api_url: https://api.helius.xyz
data_api_key: test-key
export_dir: out
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://api.mainnet-beta.solana.com"}, cfg.RPCList)
	assert.Equal(t, "https://api.helius.xyz", cfg.DataAPIURL)
	assert.Equal(t, "test-key", cfg.DataAPIKey)
	assert.Equal(t, "out", cfg.ExportDir)

	// Unset values fall back to defaults.
	assert.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout)
	assert.Equal(t, DefaultRetries, cfg.Retries)
	assert.Equal(t, DefaultWorkers, cfg.Workers)
	assert.Equal(t, DefaultTxFetchLimit, cfg.TxFetchLimit)
	assert.Equal(t, DefaultPriceAPIURL, cfg.PriceAPIURL)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigEnvOverridesKeys(t *testing.T) {
	path := writeConfigFile(t, `
rpc_list:
  - https://api.mainnet-beta.solana.com
data_api_url: https://api.helius.xyz
data_api_key: from-file
`)

	t.Setenv("LPA_DATA_API_KEY", "from-env")
	t.Setenv("LPA_PRICE_API_KEY", "price-from-env")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.DataAPIKey)
	assert.Equal(t, "price-from-env", cfg.PriceAPIKey)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "empty rpc list",
			content: "data_api_url: https://api.helius.xyz\n",
			wantErr: "rpc_list is empty",
		},
		{
			name: "bad rpc scheme",
			content: `
rpc_list:
  - ftp://bad.example.com
data_api_url: https://api.helius.xyz
`,
			wantErr: "invalid RPC URL protocol",
		},
		{
			name: "missing data api url",
			content: `
rpc_list:
  - https://api.mainnet-beta.solana.com
`,
			wantErr: "missing data_api_url",
		},
		{
			name: "zero workers",
			content: `
rpc_list:
  - https://api.mainnet-beta.solana.com
data_api_url: https://api.helius.xyz
workers: 0
`,
			wantErr: "invalid workers count",
		},
		{
			name: "negative retries",
			content: `
rpc_list:
  - https://api.mainnet-beta.solana.com
data_api_url: https://api.helius.xyz
retries: -1
`,
			wantErr: "invalid retries count",
		},
		{
			name: "zero tx fetch limit",
			content: `
rpc_list:
  - https://api.mainnet-beta.solana.com
data_api_url: https://api.helius.xyz
tx_fetch_limit: 0
`,
			wantErr: "invalid tx_fetch_limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfigFile(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
