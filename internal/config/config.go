package config

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	// MaxGridSide bounds grid.width and grid.height.
	MaxGridSide = 1000
	// MaxVehiclesLimit bounds sim.max_vehicles.
	MaxVehiclesLimit = 10000
)

type Config struct {
	HTTP HTTPConfig `yaml:"http"`

	Grid struct {
		Width  int `yaml:"width"`
		Height int `yaml:"height"`
	} `yaml:"grid"`

	Sim struct {
		TickInterval    time.Duration `yaml:"tick_interval"`
		InitialVehicles int           `yaml:"initial_vehicles"`
		MaxVehicles     int           `yaml:"max_vehicles"`
	} `yaml:"sim"`

	Routes struct {
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"routes"`

	Store struct {
		Driver string `yaml:"driver"` // "memory" | "postgres"
	} `yaml:"store"`

	Database DatabaseConfig `yaml:"database"`

	Alerts struct {
		Telegram struct {
			BotToken string `yaml:"bot_token"`
			ChatID   string `yaml:"chat_id"`
		} `yaml:"telegram"`
	} `yaml:"alerts"`

	Logging struct {
		Level  string `yaml:"level"`  // "debug" | "info" | "warn" | "error"
		Format string `yaml:"format"` // "text" | "json"
	} `yaml:"logging"`
}

type HTTPConfig struct {
	Address      string        `yaml:"address"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`

	// AllowedOrigins is passed to the CORS layer; empty means any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`

	IngestLimit  int           `yaml:"ingest_limit"`
	IngestWindow time.Duration `yaml:"ingest_window"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"` // e.g. "disable" | "require"
	MaxConns int32  `yaml:"max_conns"`
}

func (c *Config) Defaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 15 * time.Second
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = 15 * time.Second
	}
	if c.HTTP.IdleTimeout == 0 {
		c.HTTP.IdleTimeout = 60 * time.Second
	}
	if c.HTTP.IngestLimit == 0 {
		c.HTTP.IngestLimit = 120
	}
	if c.HTTP.IngestWindow == 0 {
		c.HTTP.IngestWindow = time.Minute
	}
	if c.Grid.Width == 0 {
		c.Grid.Width = 20
	}
	if c.Grid.Height == 0 {
		c.Grid.Height = 20
	}
	if c.Sim.MaxVehicles == 0 {
		c.Sim.MaxVehicles = 500
	}
	if c.Sim.TickInterval == 0 {
		c.Sim.TickInterval = time.Second
	}
	if c.Routes.CacheTTL == 0 {
		c.Routes.CacheTTL = 30 * time.Second
	}
	if c.Store.Driver == "" {
		c.Store.Driver = StoreMemory
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Database.Host == "" {
		c.Database.Host = "db"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.User == "" {
		c.Database.User = "routeiq"
	}
	if c.Database.Name == "" {
		c.Database.Name = "routeiq"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = 10
	}
}

func (c *Config) Validate() error {
	var errs []string
	if c.Grid.Width < 1 || c.Grid.Height < 1 {
		errs = append(errs, "grid.width and grid.height must be positive")
	}
	if c.Grid.Width > MaxGridSide || c.Grid.Height > MaxGridSide {
		errs = append(errs, "grid.width and grid.height must be at most "+strconv.Itoa(MaxGridSide))
	}
	if c.Sim.TickInterval < 0 {
		errs = append(errs, "sim.tick_interval must not be negative")
	}
	if c.Sim.InitialVehicles < 0 {
		errs = append(errs, "sim.initial_vehicles must not be negative")
	}
	if c.Sim.MaxVehicles < 1 || c.Sim.MaxVehicles > MaxVehiclesLimit {
		errs = append(errs, "sim.max_vehicles must be between 1 and "+strconv.Itoa(MaxVehiclesLimit))
	}
	if c.Sim.InitialVehicles > c.Sim.MaxVehicles {
		errs = append(errs, "sim.initial_vehicles must not exceed sim.max_vehicles")
	}
	switch c.Store.Driver {
	case StoreMemory:
	case StorePostgres:
		// DB must have either URL or (Host, User, Name)
		if c.Database.URL == "" && (c.Database.Host == "" || c.Database.User == "" || c.Database.Name == "") {
			errs = append(errs, "database.url or database.{host,user,name} must be set")
		}
	default:
		errs = append(errs, "store.driver must be one of: memory|postgres")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// AppURL returns a postgres connection URL for the application DB.
func (d *DatabaseConfig) AppURL() (string, error) {
	if d.URL != "" {
		return d.URL, nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return "", errors.New("database config incomplete: need host, user, name or set url")
	}
	u := &url.URL{
		Scheme: "postgres",
		Host:   d.Host + ":" + strconv.Itoa(d.Port),
		Path:   "/" + d.Name,
	}
	if d.Password != "" {
		u.User = url.UserPassword(d.User, d.Password)
	} else {
		u.User = url.User(d.User)
	}
	q := url.Values{}
	if d.SSLMode != "" {
		q.Set("sslmode", d.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
