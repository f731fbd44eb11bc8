package configuration

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const Production = "production"

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		c.Unload()
		panic(err)
	}
	return c
})

func Use() *Configuration {
	return singleton()
}

func LoadEnv(envFiles []string) (int, error) {
	existingFiles := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existingFiles = append(existingFiles, file)
		}
	}

	if len(existingFiles) == 0 {
		return 0, nil
	}

	return len(existingFiles), godotenv.Load(existingFiles...)
}

type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"assignment_engine"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Name, d.Password,
	)
}

type RateLimitOptions struct {
	Enabled   bool   `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	GlobalRPS int    `env:"RATE_LIMIT_GLOBAL_RPS" envDefault:"1000"`
	Storage   string `env:"RATE_LIMIT_STORAGE" envDefault:"memory"` // memory or redis
	RedisURL  string `env:"RATE_LIMIT_REDIS_URL"`
}

func (r *RateLimitOptions) Validate() error {
	if r.GlobalRPS < 0 {
		return fmt.Errorf("rate limit GlobalRPS must be non-negative, got %d", r.GlobalRPS)
	}
	if r.Storage != "memory" && r.Storage != "redis" {
		return fmt.Errorf("rate limit Storage must be 'memory' or 'redis', got '%s'", r.Storage)
	}
	if r.Storage == "redis" && r.RedisURL == "" {
		return fmt.Errorf("rate limit RedisURL is required when Storage is 'redis'")
	}
	return nil
}

// SLAOptions carries the deadline policy. The hour budgets and the at-risk
// threshold are deployment policy, not engine constants.
type SLAOptions struct {
	UrgentBudget time.Duration `env:"SLA_URGENT_BUDGET" envDefault:"8h"`
	HighBudget   time.Duration `env:"SLA_HIGH_BUDGET" envDefault:"24h"`
	NormalBudget time.Duration `env:"SLA_NORMAL_BUDGET" envDefault:"48h"`
	LowBudget    time.Duration `env:"SLA_LOW_BUDGET" envDefault:"120h"`

	TodoStageBudget       time.Duration `env:"SLA_STAGE_TODO_BUDGET" envDefault:"24h"`
	InProgressStageBudget time.Duration `env:"SLA_STAGE_IN_PROGRESS_BUDGET" envDefault:"48h"`
	ReviewStageBudget     time.Duration `env:"SLA_STAGE_REVIEW_BUDGET" envDefault:"12h"`

	AtRiskFraction float64       `env:"SLA_AT_RISK_FRACTION" envDefault:"0.75"`
	SweepEnabled   bool          `env:"SLA_SWEEP_ENABLED" envDefault:"true"`
	SweepInterval  time.Duration `env:"SLA_SWEEP_INTERVAL" envDefault:"1m"`
}

func (s *SLAOptions) Validate() error {
	if s.AtRiskFraction <= 0 || s.AtRiskFraction >= 1 {
		return fmt.Errorf("SLA AtRiskFraction must be in (0, 1), got %v", s.AtRiskFraction)
	}
	if s.SweepInterval <= 0 {
		return fmt.Errorf("SLA SweepInterval must be positive, got %v", s.SweepInterval)
	}
	for _, b := range []time.Duration{s.UrgentBudget, s.HighBudget, s.NormalBudget, s.LowBudget} {
		if b <= 0 {
			return fmt.Errorf("SLA priority budgets must be positive")
		}
	}
	return nil
}

type EscalationOptions struct {
	CooldownWindow time.Duration `env:"ESCALATION_COOLDOWN_WINDOW" envDefault:"1h"`
}

type RealtimeOptions struct {
	RedisRelayEnabled bool          `env:"REALTIME_REDIS_RELAY_ENABLED" envDefault:"false"`
	RedisChannel      string        `env:"REALTIME_REDIS_CHANNEL" envDefault:"assignment-engine:events"`
	MaxReconnects     int           `env:"REALTIME_MAX_RECONNECTS" envDefault:"10"`
	MaxBackoff        time.Duration `env:"REALTIME_MAX_BACKOFF" envDefault:"30s"`
}

type PrometheusOptions struct {
	Enabled bool   `env:"PROMETHEUS_METRICS_ENABLED" envDefault:"false"`
	Path    string `env:"PROMETHEUS_METRICS_PATH" envDefault:"/debug/prometheus"`
}

type Configuration struct {
	Database   DatabaseOptions
	RateLimit  RateLimitOptions
	SLA        SLAOptions
	Escalation EscalationOptions
	Realtime   RealtimeOptions
	Prometheus PrometheusOptions

	RedisURL         string `env:"REDIS_URL" envDefault:"localhost:6379"`
	ServerPort       int    `env:"PORT" envDefault:"3200"`
	GoAppEnvironment string `env:"GO_APP_ENV" envDefault:"development"`
	SocketAddress    string `env:"-"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"error"`
	// The engine looks for this header in the request; absent, it generates a random uuidv4
	RequestIDHeader string `env:"REQUEST_ID_HEADER" envDefault:"X-Request-ID"`
	RealIPHeader    string `env:"REAL_IP_HEADER" envDefault:"X-Real-IP"`

	logger *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.ErrorLevel
	}
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		log.Println("no .env files found, using environment variables")
	}
	if err := env.Parse(c); err != nil {
		return err
	}
	if err := c.RateLimit.Validate(); err != nil {
		return err
	}
	if err := c.SLA.Validate(); err != nil {
		return err
	}
	c.Database.Opts = c.Database.ConnectionString()
	c.SocketAddress = fmt.Sprintf(":%d", c.ServerPort)

	logger := logrus.New()
	logger.SetLevel(c.LogrusLogLevel())
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)
	c.logger = logger
	return nil
}

func (c *Configuration) Unload() {
	// nothing to release yet; kept for symmetry with load
}
