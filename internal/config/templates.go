package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# CLAMM Options Engine Configuration

[engine]
# The engine's own ledger account
account = "engine"
# Privileged admin account
operator = "operator"
# Fee recipient account; empty disables the protocol fee
fee_recipient = ""
# Flat protocol fee in basis points of the premium
fee_bps = 34
# Approved collateral markets
markets = ["ETH-USDC"]
# Approved settler accounts
settlers = ["operator"]

[database]
# SQLite database path; defaults next to this file when empty
path = ""

[logging]
# Log level: debug, info, warn, error
level = "info"
console = true
file = true
max_size = 100
max_backups = 7
max_age = 30

# Volatility table: one entry per mintable time-to-live.
[[volatility]]
ttl = "24h"
id = 1
# Annualized volatility the simulated pricer quotes for this id
sigma = 0.6

[[volatility]]
ttl = "168h"
id = 2
sigma = 0.55

# Simulated market world.
[sim]
pool_account = "amm"
swap_account = "swapper"

[[sim.asset]]
name = "WETH"
decimals = 18

[[sim.asset]]
name = "USDC"
decimals = 6

[[sim.pool]]
market = "ETH-USDC"
call_asset = "WETH"
put_asset = "USDC"
call_is_token0 = true
# sqrt(price) in Q64.96, decimal string; about 2000 USDC per WETH
sqrt_price_x96 = "3543191142285914205922034"

[[sim.balance]]
asset = "USDC"
account = "trader"
amount = "1000000000000"

[[sim.balance]]
asset = "WETH"
account = "trader"
amount = "1000000000000000000000"

# Pool reserves backing the withdrawable liquidity below.
[[sim.balance]]
asset = "WETH"
account = "amm"
amount = "100000000000000000000000"

[[sim.balance]]
asset = "USDC"
account = "amm"
amount = "100000000000000"

# Swap desk inventory.
[[sim.balance]]
asset = "WETH"
account = "swapper"
amount = "100000000000000000000000"

[[sim.balance]]
asset = "USDC"
account = "swapper"
amount = "100000000000000"

# Withdrawable liquidity per tick range. With WETH as token0 the pool
# price sits near tick -200310; ranges below it hold only USDC (put
# collateral), ranges above it hold only WETH (call collateral).
[[sim.position]]
handler = "range"
market = "ETH-USDC"
tick_lower = -200400
tick_upper = -200320
liquidity = "1000000000000000000"

[[sim.position]]
handler = "range"
market = "ETH-USDC"
tick_lower = -200300
tick_upper = -200220
liquidity = "1000000000000000000"
`

// createTemplateConfig writes a starter config.toml so a first run has
// something to edit.
func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}
	return nil
}
