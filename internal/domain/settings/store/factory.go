package store

import (
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
)

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Dependencies carries handles owned by the caller. The store never closes
// SQLiteDB.
type Dependencies struct {
	SQLiteDB *gorm.DB
}

type opener func(Config, Dependencies) (Store, error)

var openers = map[string]opener{
	DriverMemory: func(Config, Dependencies) (Store, error) {
		return NewMemory(), nil
	},
	DriverSQLite: func(cfg Config, deps Dependencies) (Store, error) {
		if deps.SQLiteDB == nil {
			return nil, fmt.Errorf("sqlite driver requires database handle")
		}
		return NewSQLite(deps.SQLiteDB, cfg)
	},
	DriverRedis: func(cfg Config, _ Dependencies) (Store, error) {
		return NewRedis(cfg)
	},
}

// Drivers lists the accepted driver names.
func Drivers() []string {
	names := make([]string, 0, len(openers))
	for name := range openers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New opens the snapshot store named by cfg.Driver; empty means memory.
func New(cfg Config, deps Dependencies) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = DriverMemory
	}
	open, ok := openers[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported settings store driver %q (want one of %s)",
			cfg.Driver, strings.Join(Drivers(), ", "))
	}
	return open(cfg, deps)
}
