package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultEscrow is the ledger account holding collateral and in-flight funds.
const DefaultEscrow = "0x000000000000000000000000000000000000e5c0"

type Config struct {
	AppPort string

	MySQLHost string
	MySQLPort string
	MySQLDB   string
	MySQLUser string
	MySQLPass string

	RedisAddr string
	RedisDB   int

	IdempTTLSecs int

	// NATSURL empty means events are only written to the log.
	NATSURL           string
	NATSSubjectPrefix string

	EscrowAddress string
	LogLevel      string

	RelayIntervalSecs int
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func Load() *Config {
	return &Config{
		AppPort:   getenv("APP_PORT", "8080"),
		MySQLHost: getenv("MYSQL_HOST", "mysql"),
		MySQLPort: getenv("MYSQL_PORT", "3306"),
		MySQLDB:   getenv("MYSQL_DB", "loans"),
		MySQLUser: getenv("MYSQL_USER", "loans"),
		MySQLPass: getenv("MYSQL_PASS", "loans"),

		RedisAddr:    getenv("REDIS_ADDR", "redis:6379"),
		RedisDB:      getenvInt("REDIS_DB", 0),
		IdempTTLSecs: getenvInt("IDEMPOTENCY_TTL_SECONDS", 300),

		NATSURL:           os.Getenv("NATS_URL"),
		NATSSubjectPrefix: getenv("NATS_SUBJECT_PREFIX", "loans"),

		EscrowAddress: getenv("ESCROW_ADDRESS", DefaultEscrow),
		LogLevel:      getenv("LOG_LEVEL", "info"),

		RelayIntervalSecs: getenvInt("RELAY_INTERVAL_SECONDS", 5),
	}
}

func (c *Config) Validate() error {
	if c.MySQLHost == "" || c.MySQLPort == "" || c.MySQLDB == "" || c.MySQLUser == "" {
		return errors.New("missing MySQL config (MYSQL_HOST/PORT/DB/USER)")
	}
	// ensure port is valid
	if _, err := net.LookupPort("tcp", c.MySQLPort); err != nil {
		return fmt.Errorf("invalid MYSQL_PORT %q: %w", c.MySQLPort, err)
	}
	if c.AppPort == "" {
		return errors.New("missing APP_PORT")
	}
	if _, err := net.LookupPort("tcp", c.AppPort); err != nil {
		return fmt.Errorf("invalid APP_PORT %q: %w", c.AppPort, err)
	}
	if c.RedisAddr == "" {
		return errors.New("missing REDIS_ADDR")
	}
	if c.IdempTTLSecs <= 0 {
		return fmt.Errorf("IDEMPOTENCY_TTL_SECONDS must be positive, got %d", c.IdempTTLSecs)
	}
	if !strings.HasPrefix(c.EscrowAddress, "0x") || !common.IsHexAddress(c.EscrowAddress) {
		return fmt.Errorf("invalid ESCROW_ADDRESS %q", c.EscrowAddress)
	}
	if common.HexToAddress(c.EscrowAddress) == (common.Address{}) {
		return errors.New("ESCROW_ADDRESS must not be the zero address")
	}
	if c.NATSURL != "" && c.NATSSubjectPrefix == "" {
		return errors.New("missing NATS_SUBJECT_PREFIX")
	}
	if c.RelayIntervalSecs <= 0 {
		return fmt.Errorf("RELAY_INTERVAL_SECONDS must be positive, got %d", c.RelayIntervalSecs)
	}
	return nil
}

func (c *Config) mysqlAddr() string { return net.JoinHostPort(c.MySQLHost, c.MySQLPort) }

func (c *Config) MySQLDSN() string {
	// multiStatements=true is handy for migrations; parseTime needed for DATETIME
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?multiStatements=true&parseTime=true&charset=utf8mb4,utf8",
		c.MySQLUser, c.MySQLPass, c.mysqlAddr(), c.MySQLDB)
}

func (c *Config) Escrow() common.Address { return common.HexToAddress(c.EscrowAddress) }

func (c *Config) IdempTTL() time.Duration { return time.Duration(c.IdempTTLSecs) * time.Second }

func (c *Config) RelayInterval() time.Duration {
	return time.Duration(c.RelayIntervalSecs) * time.Second
}
