package internal

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	req := require.New(t)
	t.Chdir(t.TempDir())

	config, err := LoadConfig()

	req.NoError(err)
	req.Equal("/api/chat/socket", config.ChatPath)
	req.Equal(StoreBadger, config.StoreDriver)
	req.Equal(domain.RoutingBroadcast, config.Routing())
	req.Equal([]string{"*"}, config.Origins())
	req.Nil(config.HistoryLimit)
	req.Equal(5*time.Second, config.SendTimeout)
}

func TestLoadConfig_From_Environment(t *testing.T) {
	req := require.New(t)
	t.Chdir(t.TempDir())
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("ROUTING_MODE", "conversation")
	t.Setenv("HISTORY_LIMIT", "50")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("PORT", "3000")

	config, err := LoadConfig()

	req.NoError(err)
	req.Equal(domain.RoutingConversation, config.Routing())
	req.Equal(50, *config.HistoryLimit)
	req.Equal([]string{"https://a.example", "https://b.example"}, config.Origins())
	req.Equal("0.0.0.0:3000", config.Address())
}

func TestConfig_Validate_Rejects_Unknown_Values(t *testing.T) {
	valid := Config{
		ChatPath:          "/api/chat/socket",
		StoreDriver:       StoreMemory,
		RoutingMode:       "broadcast",
		SendTimeout:       time.Second,
		WriteTimeout:      time.Second,
		PongWait:          time.Minute,
		HeartbeatInterval: time.Second,
		RestartInterval:   time.Second,
		MetricInterval:    time.Second,
		MaxMessageSize:    1024,
	}

	t.Run("routing", func(t *testing.T) {
		config := valid
		config.RoutingMode = "multicast"
		require.ErrorIs(t, config.Validate(), errors.ErrInvalidRouting)
	})
	t.Run("store", func(t *testing.T) {
		config := valid
		config.StoreDriver = "postgres"
		require.ErrorIs(t, config.Validate(), errors.ErrInvalidStore)
	})
	t.Run("heartbeat", func(t *testing.T) {
		config := valid
		config.HeartbeatInterval = 2 * time.Minute
		require.Error(t, config.Validate())
	})
	for name, mutate := range map[string]func(*Config){
		"zero send timeout":         func(c *Config) { c.SendTimeout = 0 },
		"negative write timeout":    func(c *Config) { c.WriteTimeout = -time.Second },
		"zero heartbeat interval":   func(c *Config) { c.HeartbeatInterval = 0 },
		"zero metric interval":      func(c *Config) { c.MetricInterval = 0 },
		"zero restart interval":     func(c *Config) { c.RestartInterval = 0 },
		"negative max message size": func(c *Config) { c.MaxMessageSize = -1 },
		"zero max message size":     func(c *Config) { c.MaxMessageSize = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			config := valid
			mutate(&config)
			require.ErrorIs(t, config.Validate(), errors.ErrInvalidConfig)
		})
	}
	t.Run("valid", func(t *testing.T) {
		require.NoError(t, valid.Validate())
	})
}

func TestLoadConfig_Rejects_Zero_Durations(t *testing.T) {
	req := require.New(t)
	t.Chdir(t.TempDir())

	// Given timeouts disabled through the environment
	t.Setenv("SEND_TIMEOUT", "0s")
	t.Setenv("HEARTBEAT_INTERVAL", "0s")
	t.Setenv("METRIC_INTERVAL", "0s")
	t.Setenv("WRITE_TIMEOUT", "0s")

	// When the configuration is loaded
	_, err := LoadConfig()

	// Then it is refused before anything is wired
	req.ErrorIs(err, errors.ErrInvalidConfig)
}
