package config

func DefaultConfig() Config {
	return Config{
		Receiver: ReceiverConfig{
			GRPCPort: 4317,
			HTTPPort: 4318,
			Bind:     "127.0.0.1",
			Enabled:  true,
		},
		Engine: EngineConfig{
			AuditBufferSize: 500,
			LedgerCapacity:  10000,
			QueueSize:       256,
		},
		Storage: StorageConfig{
			Backend:     "sqlite",
			Path:        "~/.local/share/po-stats/stats.db",
			Key:         "cumulativeStats",
			RedisAddr:   "127.0.0.1:6379",
			RedisPrefix: "po-stats:",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Display: DisplayConfig{
			RefreshRateMS:        500,
			AuditLines:           8,
			CostColorGreenBelow:  0.50,
			CostColorYellowBelow: 2.00,
		},
		// USD per million tokens, [input, output].
		Pricing: map[string][2]float64{
			"gpt-4o":            {2.50, 10.00},
			"gpt-4o-mini":       {0.15, 0.60},
			"deepseek-chat":     {0.28, 0.42},
			"deepseek-reasoner": {0.28, 0.42},
		},
	}
}
